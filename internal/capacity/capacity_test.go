package capacity

import (
	"context"
	"errors"
	"testing"

	"github.com/jilaboon/rafit-sub000/internal/classinstance"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCounter struct {
	confirmed int
	err       error
}

func (f fixedCounter) CountConfirmed(_ context.Context, _ int) (int, error) {
	return f.confirmed, f.err
}

func TestTryReserveSeat(t *testing.T) {
	class := &classinstance.ClassInstance{ID: 1, Capacity: 2}

	tests := []struct {
		name      string
		confirmed int
		want      Result
	}{
		{"empty class", 0, Reserved},
		{"last seat", 1, Reserved},
		{"at capacity", 2, Full},
		{"over capacity", 3, Full},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAllocator(fixedCounter{confirmed: tt.confirmed})
			got, err := a.TryReserveSeat(context.Background(), class)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTryReserveSeatCancelledClass(t *testing.T) {
	a := NewAllocator(fixedCounter{})
	got, err := a.TryReserveSeat(context.Background(), &classinstance.ClassInstance{ID: 1, Capacity: 5, IsCancelled: true})
	require.NoError(t, err)
	assert.Equal(t, Full, got)
}

func TestFreeSeats(t *testing.T) {
	a := NewAllocator(fixedCounter{confirmed: 3})
	free, err := a.FreeSeats(context.Background(), &classinstance.ClassInstance{ID: 1, Capacity: 10})
	require.NoError(t, err)
	assert.Equal(t, 7, free)
}

func TestCounterError(t *testing.T) {
	a := NewAllocator(fixedCounter{err: errors.New("boom")})
	_, err := a.TryReserveSeat(context.Background(), &classinstance.ClassInstance{ID: 1, Capacity: 1})
	assert.Error(t, err)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "reserved", Reserved.String())
	assert.Equal(t, "full", Full.String())
	assert.Equal(t, "unknown", Result(0).String())
}
