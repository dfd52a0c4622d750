// Package clock holds the time-window rules for cancellation, check-in and
// no-show marking. Every function is pure: callers pass "now" explicitly.
package clock

import (
	"fmt"
	"time"
)

// NoShowBoundary selects which edge of the class a no-show is measured from.
type NoShowBoundary string

const (
	NoShowFromStart NoShowBoundary = "class_start"
	NoShowFromEnd   NoShowBoundary = "class_end"
)

const (
	DefaultCancellationWindow = 12 * time.Hour
	DefaultCheckinOpensBefore = 30 * time.Minute
)

// Policy is the per-tenant set of time rules.
type Policy struct {
	CancellationWindow time.Duration
	CheckinOpensBefore time.Duration
	NoShowBoundary     NoShowBoundary
	NoShowGrace        time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		CancellationWindow: DefaultCancellationWindow,
		CheckinOpensBefore: DefaultCheckinOpensBefore,
		NoShowBoundary:     NoShowFromStart,
	}
}

func ParseNoShowBoundary(s string) (NoShowBoundary, error) {
	switch NoShowBoundary(s) {
	case NoShowFromStart, NoShowFromEnd:
		return NoShowBoundary(s), nil
	case "":
		return NoShowFromStart, nil
	}
	return "", fmt.Errorf("invalid no-show boundary %q", s)
}

// IsCancelableWithoutPenalty reports whether at least window remains before classStart.
func IsCancelableWithoutPenalty(now, classStart time.Time, window time.Duration) bool {
	return classStart.Sub(now) >= window
}

// IsWithinCheckinWindow reports whether now lies in [classStart-opensBefore, classEnd].
func IsWithinCheckinWindow(now, classStart, classEnd time.Time, opensBefore time.Duration) bool {
	opens := classStart.Add(-opensBefore)
	return !now.Before(opens) && !now.After(classEnd)
}

// NoShowEligibleAt is the earliest instant a booking may be marked as a no-show.
func NoShowEligibleAt(classStart, classEnd time.Time, p Policy) time.Time {
	boundary := classStart
	if p.NoShowBoundary == NoShowFromEnd {
		boundary = classEnd
	}
	return boundary.Add(p.NoShowGrace)
}

func IsEligibleForNoShow(now, classStart, classEnd time.Time, p Policy) bool {
	return !now.Before(NoShowEligibleAt(classStart, classEnd, p))
}

// HasStarted reports whether the class is already underway or over.
func HasStarted(now, classStart time.Time) bool {
	return !now.Before(classStart)
}
