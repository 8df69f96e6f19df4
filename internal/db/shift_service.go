package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/balkashynov/evshift/internal/lifecycle"
	"github.com/balkashynov/evshift/internal/models"
)

// CreateShift creates a new shift with its technicians
func (s *ShiftStore) CreateShift(ctx context.Context, req models.CreateShiftRequest) (*models.Shift, error) {
	shift, err := lifecycle.NewShift(req)
	if err != nil {
		return nil, err
	}
	normalizeTimes(&shift)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		techs, err := findOrCreateTechnicians(tx, req.TechnicianCodes)
		if err != nil {
			return err
		}
		shift.Technicians = techs
		return tx.Create(&shift).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create shift: %w", err)
	}
	return &shift, nil
}

// GetShift retrieves a shift by ID
func (s *ShiftStore) GetShift(ctx context.Context, id uint) (*models.Shift, error) {
	return getShift(s.db.WithContext(ctx), id)
}

func getShift(tx *gorm.DB, id uint) (*models.Shift, error) {
	var shift models.Shift
	err := tx.Preload("Technicians").First(&shift, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("shift #%d: %w", id, lifecycle.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

// ListShifts retrieves shifts ordered by start time
func (s *ShiftStore) ListShifts(ctx context.Context, opts models.ListOptions) ([]models.Shift, error) {
	query := s.db.WithContext(ctx).Preload("Technicians")
	if len(opts.Statuses) > 0 {
		query = query.Where("status IN ?", opts.Statuses)
	}
	if opts.From != nil {
		query = query.Where("start_time >= ?", opts.From.UTC())
	}
	if opts.To != nil {
		query = query.Where("start_time < ?", opts.To.UTC())
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	var shifts []models.Shift
	if err := query.Order("start_time ASC, id ASC").Find(&shifts).Error; err != nil {
		return nil, err
	}
	return shifts, nil
}

// ListNonTerminalShifts returns every shift the reconciler may still move
func (s *ShiftStore) ListNonTerminalShifts(ctx context.Context) ([]models.Shift, error) {
	var shifts []models.Shift
	err := s.db.WithContext(ctx).
		Where("status IN ?", models.NonTerminalStatuses).
		Order("start_time ASC, id ASC").
		Find(&shifts).Error
	if err != nil {
		return nil, err
	}
	return shifts, nil
}

// ListDueShifts returns the non-terminal shifts whose next boundary is at or before now
func (s *ShiftStore) ListDueShifts(ctx context.Context, now time.Time) ([]models.Shift, error) {
	now = now.UTC()
	var shifts []models.Shift
	err := s.db.WithContext(ctx).
		Where("(status IN ? AND start_time <= ?) OR (status = ? AND end_time IS NOT NULL AND end_time <= ?)",
			[]models.Status{models.StatusPendingAssignment, models.StatusScheduled}, now,
			models.StatusInProgress, now).
		Order("start_time ASC, id ASC").
		Find(&shifts).Error
	if err != nil {
		return nil, err
	}
	return shifts, nil
}

// CompareAndSetStatus writes next only if the stored status is still expected.
// It reports false when the shift changed, disappeared or was soft-deleted.
func (s *ShiftStore) CompareAndSetStatus(ctx context.Context, id uint, expected, next models.Status) (bool, error) {
	if !lifecycle.IsForward(expected, next) {
		return false, fmt.Errorf("shift #%d %s -> %s: %w", id, expected, next, lifecycle.ErrInvalidTransition)
	}
	res := s.db.WithContext(ctx).
		Model(&models.Shift{}).
		Where("id = ? AND status = ?", id, expected).
		Update("status", next)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AssignShift sets the assignee and moves the shift to SCHEDULED
func (s *ShiftStore) AssignShift(ctx context.Context, id uint, req models.AssignRequest) (*models.Shift, error) {
	var out *models.Shift
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shift, err := getShift(tx, id)
		if err != nil {
			return err
		}
		expected, err := lifecycle.ApplyAssignment(shift, req)
		if err != nil {
			return err
		}
		normalizeTimes(shift)

		if err := conditionalUpdate(tx, id, expected, map[string]any{
			"assignee_id": shift.AssigneeID,
			"staff_id":    shift.StaffID,
			"end_time":    shift.EndTime,
			"total_hours": shift.TotalHours,
			"status":      shift.Status,
		}); err != nil {
			return err
		}

		if codes := lifecycle.NormalizeCodes(req.TechnicianCodes); len(codes) > 0 {
			techs, err := findOrCreateTechnicians(tx, codes)
			if err != nil {
				return err
			}
			if err := tx.Model(shift).Association("Technicians").Replace(techs); err != nil {
				return err
			}
		}

		out, err = getShift(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelShift moves a non-terminal shift to CANCELLED
func (s *ShiftStore) CancelShift(ctx context.Context, id uint, note string) (*models.Shift, error) {
	var out *models.Shift
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shift, err := getShift(tx, id)
		if err != nil {
			return err
		}
		expected, err := lifecycle.ApplyCancel(shift, note)
		if err != nil {
			return err
		}
		if err := conditionalUpdate(tx, id, expected, map[string]any{
			"status": shift.Status,
			"notes":  shift.Notes,
		}); err != nil {
			return err
		}
		out = shift
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetEndTime sets or moves the end of a non-terminal shift
func (s *ShiftStore) SetEndTime(ctx context.Context, id uint, end time.Time) (*models.Shift, error) {
	var out *models.Shift
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shift, err := getShift(tx, id)
		if err != nil {
			return err
		}
		expected, err := lifecycle.ApplyEndTime(shift, end)
		if err != nil {
			return err
		}
		normalizeTimes(shift)
		if err := conditionalUpdate(tx, id, expected, map[string]any{
			"end_time":    shift.EndTime,
			"total_hours": shift.TotalHours,
		}); err != nil {
			return err
		}
		out = shift
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteShift soft-deletes a shift
func (s *ShiftStore) DeleteShift(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Shift{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("shift #%d: %w", id, lifecycle.ErrNotFound)
	}
	return nil
}

// conditionalUpdate applies fields only while the stored status equals expected
func conditionalUpdate(tx *gorm.DB, id uint, expected models.Status, fields map[string]any) error {
	res := tx.Model(&models.Shift{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("shift #%d: %w", id, lifecycle.ErrConflict)
	}
	return nil
}

// findOrCreateTechnicians finds existing technicians or creates new ones
func findOrCreateTechnicians(tx *gorm.DB, codes []string) ([]models.Technician, error) {
	var techs []models.Technician

	for _, code := range lifecycle.NormalizeCodes(codes) {
		var tech models.Technician

		// Try to find existing technician
		err := tx.Where("code = ?", code).First(&tech).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tech = models.Technician{Code: code}
			if err := tx.Create(&tech).Error; err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}

		techs = append(techs, tech)
	}

	return techs, nil
}

// times are stored in UTC so that text comparison in sqlite orders them correctly
func normalizeTimes(shift *models.Shift) {
	shift.StartTime = shift.StartTime.UTC()
	if shift.EndTime != nil {
		end := shift.EndTime.UTC()
		shift.EndTime = &end
	}
}
