// Package lifecycle holds the shift state machine. Everything here is pure:
// decisions depend only on the shift record and the supplied clock reading.
package lifecycle

import (
	"errors"
	"time"

	"github.com/balkashynov/evshift/internal/models"
)

var (
	ErrNotFound          = errors.New("shift not found")
	ErrConflict          = errors.New("shift was modified concurrently")
	ErrInvalidTransition = errors.New("transition not allowed from current status")
	ErrInvalidShift      = errors.New("invalid shift")
)

// Next returns the status the reconciler should move the shift to at now.
// It returns the current status when no time-driven transition applies,
// including for terminal and unknown statuses. At most one step is taken.
func Next(shift models.Shift, now time.Time) models.Status {
	switch shift.Status {
	case models.StatusPendingAssignment:
		if reached(now, shift.StartTime) {
			return models.StatusLateAssignment
		}
	case models.StatusScheduled:
		if reached(now, shift.StartTime) {
			return models.StatusInProgress
		}
	case models.StatusInProgress:
		if shift.EndTime != nil && reached(now, *shift.EndTime) {
			return models.StatusCompleted
		}
	}
	return shift.Status
}

// Settle applies Next until the status stops changing and returns the final
// status. A scheduled shift whose end has already passed settles as completed.
// Settling twice at the same instant yields the same status as settling once.
func Settle(shift models.Shift, now time.Time) models.Status {
	// the forward chain has at most four steps
	for i := 0; i < len(models.AllStatuses); i++ {
		next := Next(shift, now)
		if next == shift.Status {
			break
		}
		shift.Status = next
	}
	return shift.Status
}

// Boundary returns the instant from which Next will move the shift.
// ok is false when the reconciler can never move it from its current status.
func Boundary(shift models.Shift) (at time.Time, ok bool) {
	switch shift.Status {
	case models.StatusPendingAssignment, models.StatusScheduled:
		return shift.StartTime, true
	case models.StatusInProgress:
		if shift.EndTime != nil {
			return *shift.EndTime, true
		}
	}
	return time.Time{}, false
}

// now >= boundary
func reached(now, boundary time.Time) bool {
	return !now.Before(boundary)
}

// CanAssign reports whether an assignment action may act on a shift in status s.
// Re-assigning a scheduled shift keeps it scheduled.
func CanAssign(s models.Status) bool {
	switch s {
	case models.StatusPendingAssignment, models.StatusLateAssignment, models.StatusScheduled:
		return true
	}
	return false
}

// CanCancel reports whether an administrative cancel may act on status s.
func CanCancel(s models.Status) bool {
	return s.IsValid() && !s.IsTerminal()
}

// Rank orders the forward lifecycle. Cancelled has no rank of its own and
// returns -1, as do unknown values.
func Rank(s models.Status) int {
	switch s {
	case models.StatusPendingAssignment:
		return 0
	case models.StatusLateAssignment:
		return 1
	case models.StatusScheduled:
		return 2
	case models.StatusInProgress:
		return 3
	case models.StatusCompleted:
		return 4
	}
	return -1
}

// IsForward reports whether moving from one status to another respects the
// lifecycle order. Cancelling is forward from every non-terminal status.
func IsForward(from, to models.Status) bool {
	if from.IsTerminal() {
		return false
	}
	if to == models.StatusCancelled {
		return CanCancel(from)
	}
	rf, rt := Rank(from), Rank(to)
	return rf >= 0 && rt > rf
}
