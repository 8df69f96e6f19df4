package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/balkashynov/evshift/internal/lifecycle"
	"github.com/balkashynov/evshift/internal/models"
)

var startOrder = bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}}

type techDoc struct {
	Code string `bson:"code"`
	Name string `bson:"name,omitempty"`
}

type shiftDoc struct {
	ID            uint64     `bson:"_id"`
	CreatedAt     time.Time  `bson:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at"`
	DeletedAt     *time.Time `bson:"deleted_at"`
	AssigneeID    string     `bson:"assignee_id"`
	StaffID       *string    `bson:"staff_id"`
	AppointmentID *uint64    `bson:"appointment_id"`
	ShiftType     string     `bson:"shift_type"`
	StartTime     time.Time  `bson:"start_time"`
	EndTime       *time.Time `bson:"end_time"`
	Status        string     `bson:"status"`
	TotalHours    float64    `bson:"total_hours"`
	Notes         string     `bson:"notes"`
	Technicians   []techDoc  `bson:"technicians"`
}

func fromModel(s models.Shift) shiftDoc {
	doc := shiftDoc{
		ID:          uint64(s.ID),
		CreatedAt:   s.CreatedAt.UTC(),
		UpdatedAt:   s.UpdatedAt.UTC(),
		AssigneeID:  s.AssigneeID,
		StaffID:     s.StaffID,
		ShiftType:   s.ShiftType,
		StartTime:   s.StartTime.UTC(),
		EndTime:     utcPtr(s.EndTime),
		Status:      string(s.Status),
		TotalHours:  s.TotalHours,
		Notes:       s.Notes,
		Technicians: techDocs(s.Technicians),
	}
	if s.AppointmentID != nil {
		appt := uint64(*s.AppointmentID)
		doc.AppointmentID = &appt
	}
	return doc
}

func (d shiftDoc) toModel() models.Shift {
	s := models.Shift{
		ID:         uint(d.ID),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
		AssigneeID: d.AssigneeID,
		StaffID:    d.StaffID,
		ShiftType:  d.ShiftType,
		StartTime:  d.StartTime,
		EndTime:    d.EndTime,
		Status:     models.Status(d.Status),
		TotalHours: d.TotalHours,
		Notes:      d.Notes,
	}
	if d.AppointmentID != nil {
		appt := uint(*d.AppointmentID)
		s.AppointmentID = &appt
	}
	for _, t := range d.Technicians {
		s.Technicians = append(s.Technicians, models.Technician{Code: t.Code, Name: t.Name})
	}
	return s
}

func techDocs(techs []models.Technician) []techDoc {
	docs := make([]techDoc, 0, len(techs))
	for _, t := range techs {
		docs = append(docs, techDoc{Code: t.Code, Name: t.Name})
	}
	return docs
}

func technicians(codes []string) []models.Technician {
	var out []models.Technician
	for _, code := range lifecycle.NormalizeCodes(codes) {
		out = append(out, models.Technician{Code: code})
	}
	return out
}

func statusStrings(statuses []models.Status) bson.A {
	out := make(bson.A, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func notDeleted() bson.M {
	return bson.M{"deleted_at": nil}
}

func nonTerminalFilter() bson.M {
	f := notDeleted()
	f["status"] = bson.M{"$in": statusStrings(models.NonTerminalStatuses)}
	return f
}

func dueFilter(now time.Time) bson.M {
	now = now.UTC()
	f := notDeleted()
	f["$or"] = bson.A{
		bson.M{
			"status":     bson.M{"$in": statusStrings([]models.Status{models.StatusPendingAssignment, models.StatusScheduled})},
			"start_time": bson.M{"$lte": now},
		},
		bson.M{
			"status":   string(models.StatusInProgress),
			"end_time": bson.M{"$ne": nil, "$lte": now},
		},
	}
	return f
}

func listFilter(opts models.ListOptions) bson.M {
	f := notDeleted()
	if len(opts.Statuses) > 0 {
		f["status"] = bson.M{"$in": statusStrings(opts.Statuses)}
	}
	start := bson.M{}
	if opts.From != nil {
		start["$gte"] = opts.From.UTC()
	}
	if opts.To != nil {
		start["$lt"] = opts.To.UTC()
	}
	if len(start) > 0 {
		f["start_time"] = start
	}
	return f
}

func casFilter(id uint, expected models.Status) bson.M {
	f := notDeleted()
	f["_id"] = uint64(id)
	f["status"] = string(expected)
	return f
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
