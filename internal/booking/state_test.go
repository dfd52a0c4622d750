package booking

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jilaboon/rafit-sub000/internal/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	now := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	all := []State{
		Confirmed{},
		Waitlisted{Position: 1},
		Cancelled{At: now, By: ActorCustomer},
		NoShow{At: now},
		Completed{CheckedInAt: now},
	}

	legal := map[[2]Status]bool{
		{StatusWaitlisted, StatusConfirmed}: true,
		{StatusWaitlisted, StatusCancelled}: true,
		{StatusConfirmed, StatusCancelled}:  true,
		{StatusConfirmed, StatusNoShow}:     true,
		{StatusConfirmed, StatusCompleted}:  true,
	}

	for _, from := range all {
		for _, to := range all {
			name := string(from.Status()) + "->" + string(to.Status())
			t.Run(name, func(t *testing.T) {
				next, err := Transition(from, to)
				if legal[[2]Status{from.Status(), to.Status()}] {
					require.NoError(t, err)
					assert.Equal(t, to, next)
					return
				}
				assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
				assert.Nil(t, next)
			})
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusNoShow.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.False(t, StatusConfirmed.IsTerminal())
	assert.False(t, StatusWaitlisted.IsTerminal())

	assert.True(t, StatusConfirmed.IsActive())
	assert.True(t, StatusWaitlisted.IsActive())
	assert.False(t, StatusNoShow.IsActive())
}

func TestTransitionRejectsBadPosition(t *testing.T) {
	_, err := Transition(Waitlisted{Position: 1}, Waitlisted{Position: 0})
	assert.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("NO_SHOW")
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, st)

	_, err = ParseStatus("pending")
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestBookingJSONFlattensState(t *testing.T) {
	at := time.Date(2026, 5, 1, 17, 0, 0, 0, time.UTC)

	out, err := json.Marshal(Booking{ID: 1, ClassInstanceID: 2, State: Waitlisted{Position: 3}})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"status":"WAITLISTED"`)
	assert.Contains(t, string(out), `"waitlist_position":3`)
	assert.NotContains(t, string(out), "cancelled_at")

	out, err = json.Marshal(Booking{ID: 1, State: Cancelled{At: at, Reason: "sick", By: ActorStaff}})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"cancelled_by":"staff"`)
	assert.Contains(t, string(out), `"cancel_reason":"sick"`)
	assert.NotContains(t, string(out), "waitlist_position")
}
