package models

import "strings"

// Status is the lifecycle state of a shift
type Status string

const (
	StatusPendingAssignment Status = "PENDING_ASSIGNMENT"
	StatusLateAssignment    Status = "LATE_ASSIGNMENT"
	StatusScheduled         Status = "SCHEDULED"
	StatusInProgress        Status = "IN_PROGRESS"
	StatusCompleted         Status = "COMPLETED"
	StatusCancelled         Status = "CANCELLED"
)

// AllStatuses lists every status in lifecycle order, cancelled last
var AllStatuses = []Status{
	StatusPendingAssignment,
	StatusLateAssignment,
	StatusScheduled,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}

// NonTerminalStatuses lists the statuses the reconciler may still act on
var NonTerminalStatuses = []Status{
	StatusPendingAssignment,
	StatusLateAssignment,
	StatusScheduled,
	StatusInProgress,
}

// IsValid checks if the Status is one of the known values
func (s Status) IsValid() bool {
	switch s {
	case StatusPendingAssignment, StatusLateAssignment, StatusScheduled,
		StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition can leave this status
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus accepts upper or lower case names, with dashes or underscores
func ParseStatus(raw string) (Status, bool) {
	s := Status(statusReplacer.Replace(strings.ToUpper(strings.TrimSpace(raw))))
	return s, s.IsValid()
}

var statusReplacer = strings.NewReplacer("-", "_", " ", "_")
