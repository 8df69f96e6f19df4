// Package store selects the shift store backend from configuration.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/balkashynov/evshift/internal/config"
	"github.com/balkashynov/evshift/internal/db"
	"github.com/balkashynov/evshift/internal/models"
	"github.com/balkashynov/evshift/internal/mongostore"
)

// Store is everything evshift needs from a shift backend: the reconciler's
// repository methods plus the administrative actions.
type Store interface {
	ListNonTerminalShifts(ctx context.Context) ([]models.Shift, error)
	ListDueShifts(ctx context.Context, now time.Time) ([]models.Shift, error)
	CompareAndSetStatus(ctx context.Context, id uint, expected, next models.Status) (bool, error)

	CreateShift(ctx context.Context, req models.CreateShiftRequest) (*models.Shift, error)
	GetShift(ctx context.Context, id uint) (*models.Shift, error)
	ListShifts(ctx context.Context, opts models.ListOptions) ([]models.Shift, error)
	AssignShift(ctx context.Context, id uint, req models.AssignRequest) (*models.Shift, error)
	CancelShift(ctx context.Context, id uint, note string) (*models.Shift, error)
	SetEndTime(ctx context.Context, id uint, end time.Time) (*models.Shift, error)
	DeleteShift(ctx context.Context, id uint) error

	Describe() string
	Close() error
}

var (
	_ Store = (*db.ShiftStore)(nil)
	_ Store = (*mongostore.Store)(nil)
)

// Open returns the backend named by cfg.Driver
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		s, err := db.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverMongo:
		s, err := mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
