package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/balkashynov/evshift/internal/models"
)

var t0 = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func shiftAt(status models.Status, start time.Time, end *time.Time) models.Shift {
	return models.Shift{ID: 1, Status: status, StartTime: start, EndTime: end}
}

func ptr(t time.Time) *time.Time { return &t }

func TestNextTable(t *testing.T) {
	end := t0.Add(2 * time.Hour)

	tests := []struct {
		name  string
		shift models.Shift
		now   time.Time
		want  models.Status
	}{
		{"pending before start", shiftAt(models.StatusPendingAssignment, t0, nil), t0.Add(-time.Second), models.StatusPendingAssignment},
		{"pending at start", shiftAt(models.StatusPendingAssignment, t0, nil), t0, models.StatusLateAssignment},
		{"pending after start", shiftAt(models.StatusPendingAssignment, t0, nil), t0.Add(time.Second), models.StatusLateAssignment},
		{"late stays late", shiftAt(models.StatusLateAssignment, t0, nil), t0.Add(48 * time.Hour), models.StatusLateAssignment},
		{"scheduled before start", shiftAt(models.StatusScheduled, t0, &end), t0.Add(-time.Minute), models.StatusScheduled},
		{"scheduled at start", shiftAt(models.StatusScheduled, t0, &end), t0, models.StatusInProgress},
		{"scheduled past end takes one step", shiftAt(models.StatusScheduled, t0, &end), end.Add(time.Hour), models.StatusInProgress},
		{"in progress before end", shiftAt(models.StatusInProgress, t0, &end), end.Add(-time.Second), models.StatusInProgress},
		{"in progress at end", shiftAt(models.StatusInProgress, t0, &end), end, models.StatusCompleted},
		{"in progress after end", shiftAt(models.StatusInProgress, t0, &end), end.Add(time.Second), models.StatusCompleted},
		{"in progress without end", shiftAt(models.StatusInProgress, t0, nil), t0.Add(1000 * time.Hour), models.StatusInProgress},
		{"unknown status", shiftAt(models.Status("ON_HOLD"), t0, nil), t0.Add(time.Hour), models.Status("ON_HOLD")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Next(tt.shift, tt.now))
		})
	}
}

func TestNextTerminalIsFixedPoint(t *testing.T) {
	end := t0.Add(time.Hour)
	for _, status := range []models.Status{models.StatusCompleted, models.StatusCancelled} {
		for _, now := range []time.Time{time.Time{}, t0.Add(-time.Hour), t0, end, end.Add(24 * 365 * time.Hour)} {
			assert.Equal(t, status, Next(shiftAt(status, t0, &end), now))
			assert.Equal(t, status, Next(shiftAt(status, t0, nil), now))
		}
	}
}

func TestSettleIsIdempotentAtFixedTime(t *testing.T) {
	end := t0.Add(2 * time.Hour)
	for _, now := range []time.Time{t0.Add(-time.Minute), t0, t0.Add(time.Hour), end.Add(time.Second)} {
		for _, status := range models.AllStatuses {
			for _, e := range []*time.Time{nil, &end} {
				s := shiftAt(status, t0, e)
				s.Status = Settle(s, now)
				once := s.Status
				s.Status = Settle(s, now)
				assert.Equal(t, once, s.Status, "%s at %s", status, now)
				assert.Equal(t, once, Next(s, now), "settled status must be a fixed point of Next")
			}
		}
	}
}

func TestSettleScenarios(t *testing.T) {
	end := t0.Add(2 * time.Hour)

	assert.Equal(t, models.StatusLateAssignment,
		Settle(shiftAt(models.StatusPendingAssignment, t0, nil), t0.Add(time.Second)))
	assert.Equal(t, models.StatusCompleted,
		Settle(shiftAt(models.StatusInProgress, t0, &end), end.Add(time.Second)))
	assert.Equal(t, models.StatusInProgress,
		Settle(shiftAt(models.StatusScheduled, t0, &end), t0.Add(time.Hour)))
	assert.Equal(t, models.StatusCompleted,
		Settle(shiftAt(models.StatusScheduled, t0, &end), end))
	assert.Equal(t, models.StatusInProgress,
		Settle(shiftAt(models.StatusInProgress, t0, nil), end.Add(1000*time.Hour)))
	// pending never settles past late: assignment is not the reconciler's job
	assert.Equal(t, models.StatusLateAssignment,
		Settle(shiftAt(models.StatusPendingAssignment, t0, &end), end.Add(time.Hour)))
}

func TestNextNeverMovesBackward(t *testing.T) {
	end := t0.Add(3 * time.Hour)
	for _, status := range models.AllStatuses {
		for _, now := range []time.Time{t0.Add(-time.Hour), t0, t0.Add(time.Hour), end, end.Add(time.Hour)} {
			for _, e := range []*time.Time{nil, &end} {
				next := Next(shiftAt(status, t0, e), now)
				if next != status {
					assert.True(t, IsForward(status, next), "%s -> %s at %s", status, next, now)
					assert.NotEqual(t, models.StatusCancelled, next)
				}
			}
		}
	}
}

func TestBoundary(t *testing.T) {
	end := t0.Add(time.Hour)

	at, ok := Boundary(shiftAt(models.StatusPendingAssignment, t0, nil))
	assert.True(t, ok)
	assert.Equal(t, t0, at)

	at, ok = Boundary(shiftAt(models.StatusScheduled, t0, &end))
	assert.True(t, ok)
	assert.Equal(t, t0, at)

	at, ok = Boundary(shiftAt(models.StatusInProgress, t0, &end))
	assert.True(t, ok)
	assert.Equal(t, end, at)

	for _, s := range []models.Shift{
		shiftAt(models.StatusInProgress, t0, nil),
		shiftAt(models.StatusLateAssignment, t0, nil),
		shiftAt(models.StatusCompleted, t0, &end),
		shiftAt(models.StatusCancelled, t0, nil),
	} {
		_, ok := Boundary(s)
		assert.False(t, ok, s.Status)
	}
}

func TestBoundaryAgreesWithNext(t *testing.T) {
	end := t0.Add(90 * time.Minute)
	for _, status := range models.AllStatuses {
		for _, e := range []*time.Time{nil, ptr(end)} {
			s := shiftAt(status, t0, e)
			at, ok := Boundary(s)
			if !ok {
				assert.Equal(t, status, Next(s, end.Add(100*time.Hour)))
				continue
			}
			assert.Equal(t, status, Next(s, at.Add(-time.Nanosecond)))
			assert.NotEqual(t, status, Next(s, at))
		}
	}
}

func TestAssignAndCancelRules(t *testing.T) {
	assert.True(t, CanAssign(models.StatusPendingAssignment))
	assert.True(t, CanAssign(models.StatusLateAssignment))
	assert.True(t, CanAssign(models.StatusScheduled))
	assert.False(t, CanAssign(models.StatusInProgress))
	assert.False(t, CanAssign(models.StatusCompleted))
	assert.False(t, CanAssign(models.StatusCancelled))

	for _, s := range models.NonTerminalStatuses {
		assert.True(t, CanCancel(s), s)
		assert.True(t, IsForward(s, models.StatusCancelled), s)
	}
	assert.False(t, CanCancel(models.StatusCompleted))
	assert.False(t, CanCancel(models.StatusCancelled))
	assert.False(t, CanCancel(models.Status("bogus")))
}

func TestIsForward(t *testing.T) {
	assert.True(t, IsForward(models.StatusPendingAssignment, models.StatusLateAssignment))
	assert.True(t, IsForward(models.StatusLateAssignment, models.StatusScheduled))
	assert.True(t, IsForward(models.StatusScheduled, models.StatusCompleted))
	assert.False(t, IsForward(models.StatusInProgress, models.StatusScheduled))
	assert.False(t, IsForward(models.StatusCompleted, models.StatusCancelled))
	assert.False(t, IsForward(models.StatusCancelled, models.StatusScheduled))
	assert.False(t, IsForward(models.StatusScheduled, models.StatusScheduled))
}
