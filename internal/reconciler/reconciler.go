// Package reconciler moves shifts through their time-driven lifecycle.
//
// A pass loads the candidate shifts, settles each one against a single clock
// reading and writes the new status with a conditional update. Writes that
// lose a race against an administrative action are dropped; the next pass
// sees fresh data. Shifts are independent, so a pass fans out over a small
// worker pool and one failing shift never stops the others.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/balkashynov/evshift/internal/lifecycle"
	"github.com/balkashynov/evshift/internal/metrics"
	"github.com/balkashynov/evshift/internal/models"
)

const (
	DefaultInterval = 60 * time.Second
	DefaultWorkers  = 4
)

// ErrPassInProgress is returned when a pass is requested while another is running.
var ErrPassInProgress = errors.New("reconciliation pass already in progress")

// ShiftRepository is what a pass needs from the shift store.
type ShiftRepository interface {
	ListNonTerminalShifts(ctx context.Context) ([]models.Shift, error)
	// CompareAndSetStatus reports whether the write applied. False means the
	// stored status no longer equals expected.
	CompareAndSetStatus(ctx context.Context, id uint, expected, next models.Status) (bool, error)
}

// DueShiftLister narrows the candidates to shifts whose boundary has passed.
// Repositories that implement it save the pass from loading idle shifts.
type DueShiftLister interface {
	ListDueShifts(ctx context.Context, now time.Time) ([]models.Shift, error)
}

// Transition is one status change written during a pass.
type Transition struct {
	ShiftID uint          `json:"shift_id"`
	From    models.Status `json:"from"`
	To      models.Status `json:"to"`
}

// Report summarises a pass.
type Report struct {
	RunID        string        `json:"run_id"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Examined     int           `json:"examined"`
	Transitioned int           `json:"transitioned"`
	Conflicts    int           `json:"skipped_conflict"`
	Errored      int           `json:"errored"`
	Transitions  []Transition  `json:"transitions"`
}

// Reconciler runs reconciliation passes against a ShiftRepository.
type Reconciler struct {
	repo    ShiftRepository
	logger  *zap.Logger
	now     func() time.Time
	workers int
	metrics *metrics.Metrics

	running atomic.Bool
}

// Option configures a Reconciler.
type Option func(*Reconciler)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

func WithWorkers(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

func New(repo ShiftRepository, opts ...Option) *Reconciler {
	r := &Reconciler{
		repo:    repo,
		logger:  zap.NewNop(),
		now:     time.Now,
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("reconciler")
	return r
}

// Running reports whether a pass is in flight.
func (r *Reconciler) Running() bool {
	return r.running.Load()
}

// Run performs a pass immediately and then one pass every interval, measured
// from the end of the previous pass, until ctx is done. Pass failures are
// logged and never stop the loop. A pass that has started runs to completion
// even if ctx is cancelled meanwhile.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	r.logger.Info("shift reconciler started", zap.Duration("interval", interval), zap.Int("workers", r.workers))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("shift reconciler stopped")
			return ctx.Err()
		case <-timer.C:
		}

		// errors are already logged by RunOnce
		_, _ = r.RunOnce(ctx)
		timer.Reset(interval)
	}
}

// RunOnce performs a single pass. It returns ErrPassInProgress without doing
// anything when another pass is active, and an error when the candidate
// shifts could not be loaded. Per-shift failures are counted in the report.
// A started pass runs to completion even if ctx is cancelled.
func (r *Reconciler) RunOnce(ctx context.Context) (Report, error) {
	ctx = context.WithoutCancel(ctx)
	if !r.running.CompareAndSwap(false, true) {
		r.metrics.PassSkipped()
		r.logger.Debug("skipping reconciliation pass, previous pass still running")
		return Report{}, ErrPassInProgress
	}
	defer r.running.Store(false)

	started := time.Now()
	now := r.now()
	report := Report{RunID: uuid.NewString(), StartedAt: now}
	log := r.logger.With(zap.String("run_id", report.RunID))

	shifts, err := r.candidates(ctx, now)
	if err != nil {
		r.metrics.PassFailed()
		log.Error("reconciliation pass aborted, could not load shifts", zap.Error(err))
		return report, fmt.Errorf("load shifts: %w", err)
	}

	results := make([]result, len(shifts))
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i := range shifts {
		g.Go(func() error {
			results[i] = r.reconcileShift(ctx, log, shifts[i], now)
			return nil
		})
	}
	_ = g.Wait()

	report.Examined = len(shifts)
	for _, res := range results {
		switch res.outcome {
		case outcomeTransitioned:
			report.Transitioned++
			report.Transitions = append(report.Transitions, res.transition)
		case outcomeConflict:
			report.Conflicts++
		case outcomeErrored:
			report.Errored++
		}
	}
	report.Duration = time.Since(started)

	r.metrics.PassCompleted(report.Examined, report.Conflicts, report.Errored, report.Duration)
	log.Info("reconciliation pass finished",
		zap.Int("examined", report.Examined),
		zap.Int("transitioned", report.Transitioned),
		zap.Int("skipped_conflict", report.Conflicts),
		zap.Int("errored", report.Errored),
		zap.Duration("took", report.Duration),
	)
	return report, nil
}

func (r *Reconciler) candidates(ctx context.Context, now time.Time) ([]models.Shift, error) {
	if due, ok := r.repo.(DueShiftLister); ok {
		return due.ListDueShifts(ctx, now)
	}
	return r.repo.ListNonTerminalShifts(ctx)
}

type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeTransitioned
	outcomeConflict
	outcomeErrored
)

type result struct {
	outcome    outcome
	transition Transition
}

func (r *Reconciler) reconcileShift(ctx context.Context, log *zap.Logger, shift models.Shift, now time.Time) (res result) {
	log = log.With(zap.Uint("shift_id", shift.ID))
	defer func() {
		if p := recover(); p != nil {
			log.Error("panic while reconciling shift", zap.Any("panic", p))
			res = result{outcome: outcomeErrored}
		}
	}()

	if !shift.Status.IsValid() {
		log.Error("shift has an unknown status", zap.String("status", string(shift.Status)))
		return result{outcome: outcomeErrored}
	}
	if shift.StartTime.IsZero() {
		log.Error("shift has no start time", zap.String("status", string(shift.Status)))
		return result{outcome: outcomeErrored}
	}

	next := lifecycle.Settle(shift, now)
	if next == shift.Status {
		return result{outcome: outcomeUnchanged}
	}

	applied, err := r.repo.CompareAndSetStatus(ctx, shift.ID, shift.Status, next)
	if err != nil {
		log.Error("could not update shift status",
			zap.String("from", string(shift.Status)),
			zap.String("to", string(next)),
			zap.Error(err))
		return result{outcome: outcomeErrored}
	}
	if !applied {
		log.Debug("shift changed after it was read, leaving it for the next pass",
			zap.String("expected", string(shift.Status)))
		return result{outcome: outcomeConflict}
	}

	r.metrics.Transition(string(shift.Status), string(next))
	log.Debug("shift status updated",
		zap.String("from", string(shift.Status)),
		zap.String("to", string(next)))
	return result{
		outcome:    outcomeTransitioned,
		transition: Transition{ShiftID: shift.ID, From: shift.Status, To: next},
	}
}
