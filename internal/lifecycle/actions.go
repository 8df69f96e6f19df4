package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/balkashynov/evshift/internal/models"
)

// NewShift validates req and builds the record to insert. An assigned shift
// starts SCHEDULED and needs an end time; otherwise it starts PENDING_ASSIGNMENT.
func NewShift(req models.CreateShiftRequest) (models.Shift, error) {
	if req.StartTime.IsZero() {
		return models.Shift{}, fmt.Errorf("%w: start time is required", ErrInvalidShift)
	}
	if err := checkEnd(req.StartTime, req.EndTime); err != nil {
		return models.Shift{}, err
	}

	assignee := strings.TrimSpace(req.AssigneeID)
	shiftType := strings.TrimSpace(req.ShiftType)
	if shiftType == "" {
		shiftType = models.ShiftTypeStandalone
		if req.AppointmentID != nil {
			shiftType = models.ShiftTypeBooking
		}
	}

	shift := models.Shift{
		AssigneeID:    assignee,
		StaffID:       req.StaffID,
		AppointmentID: req.AppointmentID,
		ShiftType:     shiftType,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Status:        models.StatusPendingAssignment,
		TotalHours:    models.ComputeTotalHours(req.StartTime, req.EndTime),
		Notes:         req.Notes,
	}
	if assignee != "" {
		if req.EndTime == nil {
			return models.Shift{}, fmt.Errorf("%w: end time is required when assigning at creation", ErrInvalidShift)
		}
		shift.Status = models.StatusScheduled
	}
	return shift, nil
}

// ApplyAssignment mutates shift per req and returns the status the stored
// record must still have for the write to apply. Technicians are resolved by
// the store.
func ApplyAssignment(shift *models.Shift, req models.AssignRequest) (expected models.Status, err error) {
	if !CanAssign(shift.Status) {
		return "", fmt.Errorf("%w: cannot assign a %s shift", ErrInvalidTransition, shift.Status)
	}
	assignee := strings.TrimSpace(req.AssigneeID)
	if assignee == "" {
		return "", fmt.Errorf("%w: assignee is required", ErrInvalidShift)
	}

	end := shift.EndTime
	if req.EndTime != nil {
		end = req.EndTime
	}
	if end == nil {
		return "", fmt.Errorf("%w: end time is required to schedule a shift", ErrInvalidShift)
	}
	if err := checkEnd(shift.StartTime, end); err != nil {
		return "", err
	}

	expected = shift.Status
	shift.AssigneeID = assignee
	if req.StaffID != nil {
		shift.StaffID = req.StaffID
	}
	shift.EndTime = end
	shift.TotalHours = models.ComputeTotalHours(shift.StartTime, end)
	shift.Status = models.StatusScheduled
	return expected, nil
}

// ApplyCancel moves shift to CANCELLED, appending note to the notes.
func ApplyCancel(shift *models.Shift, note string) (expected models.Status, err error) {
	if !CanCancel(shift.Status) {
		return "", fmt.Errorf("%w: cannot cancel a %s shift", ErrInvalidTransition, shift.Status)
	}
	expected = shift.Status
	shift.Status = models.StatusCancelled
	if note = strings.TrimSpace(note); note != "" {
		if shift.Notes != "" {
			shift.Notes += "\n"
		}
		shift.Notes += note
	}
	return expected, nil
}

// ApplyEndTime sets the end time of a non-terminal shift. Status is untouched:
// the reconciler completes an in-progress shift once the new end passes.
func ApplyEndTime(shift *models.Shift, end time.Time) (expected models.Status, err error) {
	if !shift.Status.IsValid() || shift.Status.IsTerminal() {
		return "", fmt.Errorf("%w: cannot change the end of a %s shift", ErrInvalidTransition, shift.Status)
	}
	if err := checkEnd(shift.StartTime, &end); err != nil {
		return "", err
	}
	shift.EndTime = &end
	shift.TotalHours = models.ComputeTotalHours(shift.StartTime, &end)
	return shift.Status, nil
}

func checkEnd(start time.Time, end *time.Time) error {
	if end != nil && !end.After(start) {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidShift)
	}
	return nil
}

// NormalizeCodes trims, upper-cases and de-duplicates technician codes.
func NormalizeCodes(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	var out []string
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
