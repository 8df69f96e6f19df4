package models

import "time"

// CreateShiftRequest holds the data needed to create a new shift
type CreateShiftRequest struct {
	AssigneeID      string     `json:"assignee_id"`
	StaffID         *string    `json:"staff_id,omitempty"`
	TechnicianCodes []string   `json:"technicians,omitempty"`
	AppointmentID   *uint      `json:"appointment_id,omitempty"`
	ShiftType       string     `json:"shift_type"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	Notes           string     `json:"notes"`
}

// AssignRequest is the out-of-band assignment action. Nil/empty optional
// fields leave the stored value alone.
type AssignRequest struct {
	AssigneeID      string     `json:"assignee_id"`
	StaffID         *string    `json:"staff_id,omitempty"`
	TechnicianCodes []string   `json:"technicians,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
}

// ListOptions filters shift listings; zero values mean no filter
type ListOptions struct {
	Statuses []Status
	From     *time.Time // start_time >= From
	To       *time.Time // start_time < To
	Limit    int
}
