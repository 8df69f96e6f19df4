package models

import (
	"math"
	"time"

	"gorm.io/gorm"
)

// Conventional shift types
const (
	ShiftTypeBooking    = "booking"    // created for a customer appointment
	ShiftTypeStandalone = "standalone" // staffed directly, no appointment
)

// Shift represents a scheduled block of work for staff and technicians
type Shift struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	AssigneeID    string  `gorm:"index" json:"assignee_id"` // empty until assigned
	StaffID       *string `json:"staff_id,omitempty"`
	AppointmentID *uint   `gorm:"index" json:"appointment_id,omitempty"`
	ShiftType     string  `json:"shift_type"`

	StartTime  time.Time  `gorm:"not null;index" json:"start_time"`
	EndTime    *time.Time `gorm:"index" json:"end_time,omitempty"`
	Status     Status     `gorm:"type:varchar(32);not null;index;default:PENDING_ASSIGNMENT" json:"status"`
	TotalHours float64    `gorm:"default:0" json:"total_hours"` // derived from start/end
	Notes      string     `json:"notes"`

	// Relationships
	Technicians []Technician `gorm:"many2many:shift_technicians;" json:"technicians"`
}

// Technician is a workshop technician who can be attached to shifts
type Technician struct {
	ID   uint   `gorm:"primarykey" json:"id"`
	Code string `gorm:"unique;not null" json:"code"`
	Name string `json:"name"`

	Shifts []Shift `gorm:"many2many:shift_technicians;" json:"-"`
}

// ShiftTechnician is the join table for the many-to-many relationship
type ShiftTechnician struct {
	ShiftID      uint `gorm:"primaryKey"`
	TechnicianID uint `gorm:"primaryKey"`
}

// IsAssigned reports whether someone has been assigned to the shift
func (s Shift) IsAssigned() bool {
	return s.AssigneeID != ""
}

// TechnicianCodes returns the codes of the attached technicians
func (s Shift) TechnicianCodes() []string {
	codes := make([]string, 0, len(s.Technicians))
	for _, t := range s.Technicians {
		codes = append(codes, t.Code)
	}
	return codes
}

// ComputeTotalHours returns the scheduled length in hours, rounded to two
// decimals. Zero when the end time is unknown or not after the start.
func ComputeTotalHours(start time.Time, end *time.Time) float64 {
	if end == nil || !end.After(start) {
		return 0
	}
	return math.Round(end.Sub(start).Hours()*100) / 100
}
