package reconciler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/balkashynov/evshift/internal/metrics"
	"github.com/balkashynov/evshift/internal/models"
)

var t0 = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func at(now time.Time) Option {
	return WithClock(func() time.Time { return now })
}

func shift(id uint, status models.Status, start time.Time, end *time.Time) models.Shift {
	return models.Shift{ID: id, Status: status, StartTime: start, EndTime: end, AssigneeID: "emp"}
}

func ptr(t time.Time) *time.Time { return &t }

func TestPendingBecomesLate(t *testing.T) {
	repo := newFakeRepo(shift(1, models.StatusPendingAssignment, t0, nil))

	report, err := New(repo, at(t0.Add(time.Second))).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusLateAssignment, repo.status(1))
	assert.Equal(t, 1, report.Examined)
	assert.Equal(t, 1, report.Transitioned)
	assert.Equal(t, []Transition{{ShiftID: 1, From: models.StatusPendingAssignment, To: models.StatusLateAssignment}}, report.Transitions)
	assert.NotEmpty(t, report.RunID)
}

func TestInProgressCompletesAfterEnd(t *testing.T) {
	end := t0.Add(2 * time.Hour)
	repo := newFakeRepo(shift(1, models.StatusInProgress, t0, &end))

	_, err := New(repo, at(end.Add(time.Second))).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, repo.status(1))
}

func TestInProgressWithoutEndIsLeftAlone(t *testing.T) {
	repo := newFakeRepo(shift(1, models.StatusInProgress, t0, nil))

	for _, now := range []time.Time{t0, t0.Add(time.Hour), t0.Add(10000 * time.Hour)} {
		report, err := New(repo, at(now)).RunOnce(context.Background())
		require.NoError(t, err)
		assert.Zero(t, report.Transitioned)
		assert.Zero(t, report.Errored)
	}
	assert.Equal(t, models.StatusInProgress, repo.status(1))
	_, cas := repo.calls()
	assert.Zero(t, cas, "no write for a no-op decision")
}

func TestPassAppliesEveryDueTransition(t *testing.T) {
	now := t0.Add(30 * time.Minute)
	endPassed := t0.Add(10 * time.Minute)
	endLater := t0.Add(4 * time.Hour)

	repo := newFakeRepo(
		shift(1, models.StatusPendingAssignment, t0, nil),
		shift(2, models.StatusPendingAssignment, t0.Add(time.Hour), nil),
		shift(3, models.StatusScheduled, t0, &endLater),
		shift(4, models.StatusScheduled, t0.Add(time.Hour), ptr(t0.Add(2*time.Hour))),
		shift(5, models.StatusInProgress, t0.Add(-time.Hour), &endPassed),
		shift(6, models.StatusInProgress, t0.Add(-time.Hour), &endLater),
		shift(7, models.StatusLateAssignment, t0.Add(-time.Hour), nil),
		shift(8, models.StatusScheduled, t0.Add(-time.Hour), &endPassed),
	)

	report, err := New(repo, at(now), WithWorkers(3)).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusLateAssignment, repo.status(1))
	assert.Equal(t, models.StatusPendingAssignment, repo.status(2))
	assert.Equal(t, models.StatusInProgress, repo.status(3))
	assert.Equal(t, models.StatusScheduled, repo.status(4))
	assert.Equal(t, models.StatusCompleted, repo.status(5))
	assert.Equal(t, models.StatusInProgress, repo.status(6))
	assert.Equal(t, models.StatusLateAssignment, repo.status(7))
	// start and end both passed: settled in one pass
	assert.Equal(t, models.StatusCompleted, repo.status(8))

	assert.Equal(t, 8, report.Examined)
	assert.Equal(t, 4, report.Transitioned)
	assert.Zero(t, report.Conflicts)
	assert.Zero(t, report.Errored)
}

func TestSecondPassIsNoop(t *testing.T) {
	now := t0.Add(3 * time.Hour)
	repo := newFakeRepo(
		shift(1, models.StatusPendingAssignment, t0, nil),
		shift(2, models.StatusScheduled, t0, ptr(t0.Add(time.Hour))),
		shift(3, models.StatusScheduled, t0, ptr(t0.Add(5*time.Hour))),
		shift(4, models.StatusInProgress, t0, ptr(t0.Add(2*time.Hour))),
	)
	r := New(repo, at(now))

	first, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, first.Transitioned)
	snapshot := map[uint]models.Status{}
	for id := uint(1); id <= 4; id++ {
		snapshot[id] = repo.status(id)
	}
	_, casBefore := repo.calls()

	second, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Transitioned)
	_, casAfter := repo.calls()
	assert.Equal(t, casBefore, casAfter, "second pass must not write")
	for id, status := range snapshot {
		assert.Equal(t, status, repo.status(id))
	}
}

func TestTerminalShiftsAreNeverWritten(t *testing.T) {
	end := t0.Add(time.Hour)
	repo := newFakeRepo()
	// a repository that wrongly hands back terminal shifts
	leaky := &leakyRepo{fakeRepo: repo, extra: []models.Shift{
		shift(1, models.StatusCompleted, t0, &end),
		shift(2, models.StatusCancelled, t0, nil),
	}}

	report, err := New(leaky, at(end.Add(time.Hour))).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Examined)
	assert.Zero(t, report.Transitioned)
	_, cas := repo.calls()
	assert.Zero(t, cas)
}

type leakyRepo struct {
	*fakeRepo
	extra []models.Shift
}

func (r *leakyRepo) ListNonTerminalShifts(ctx context.Context) ([]models.Shift, error) {
	return r.extra, nil
}

func TestConflictingAssignmentWins(t *testing.T) {
	repo := newFakeRepo(shift(1, models.StatusPendingAssignment, t0, nil))
	// an assignment lands between the reconciler's read and its write
	repo.beforeCAS = func(r *fakeRepo, id uint) {
		r.set(id, models.StatusScheduled)
	}

	report, err := New(repo, at(t0.Add(time.Minute))).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusScheduled, repo.status(1), "stale decision must not overwrite the assignment")
	assert.Equal(t, 1, report.Conflicts)
	assert.Zero(t, report.Transitioned)
	assert.Zero(t, report.Errored)

	// the next pass sees the assignment and moves the shift on
	repo.beforeCAS = nil
	report, err = New(repo, at(t0.Add(2*time.Minute))).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, repo.status(1))
	assert.Equal(t, 1, report.Transitioned)
}

func TestPerShiftFailuresDoNotAbortPass(t *testing.T) {
	repo := newFakeRepo(
		shift(1, models.StatusPendingAssignment, t0, nil),
		shift(2, models.StatusPendingAssignment, t0, nil),
		shift(3, models.StatusPendingAssignment, t0, nil),
		shift(4, models.Status("PAUSED"), t0, nil),
		shift(5, models.StatusPendingAssignment, time.Time{}, nil),
	)
	repo.casErr[1] = errors.New("connection reset")
	repo.casPanic[2] = true

	report, err := New(repo, at(t0.Add(time.Minute)), WithWorkers(1)).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, report.Examined)
	assert.Equal(t, 4, report.Errored)
	assert.Equal(t, 1, report.Transitioned)
	assert.Equal(t, models.StatusLateAssignment, repo.status(3))
	assert.Equal(t, models.StatusPendingAssignment, repo.status(1))
	assert.Equal(t, models.Status("PAUSED"), repo.status(4))
	assert.Equal(t, models.StatusPendingAssignment, repo.status(5))
}

func TestFetchFailureAbortsPass(t *testing.T) {
	repo := newFakeRepo(shift(1, models.StatusPendingAssignment, t0, nil))
	repo.listErr = errors.New("store unreachable")

	core, logs := observer.New(zapcore.InfoLevel)
	_, err := New(repo, at(t0.Add(time.Hour)), WithLogger(zap.New(core))).RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unreachable")
	assert.Equal(t, models.StatusPendingAssignment, repo.status(1))

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "aborted")

	// the next pass retries from scratch
	repo.listErr = nil
	_, err = New(repo, at(t0.Add(time.Hour))).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StatusLateAssignment, repo.status(1))
}

func TestUsesDueListerWhenAvailable(t *testing.T) {
	repo := &dueRepo{fakeRepo: newFakeRepo(
		shift(1, models.StatusPendingAssignment, t0, nil),
		shift(2, models.StatusPendingAssignment, t0.Add(time.Hour), nil),
		shift(3, models.StatusLateAssignment, t0, nil),
	)}

	report, err := New(repo, at(t0.Add(time.Minute))).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.dueCalls)
	assert.Equal(t, 1, report.Examined)
	assert.Equal(t, 1, report.Transitioned)
	assert.Equal(t, models.StatusLateAssignment, repo.status(1))
	assert.Equal(t, models.StatusPendingAssignment, repo.status(2))
}

func TestSummaryLogLine(t *testing.T) {
	repo := newFakeRepo(
		shift(1, models.StatusPendingAssignment, t0, nil),
		shift(2, models.StatusPendingAssignment, t0.Add(time.Hour), nil),
	)
	core, logs := observer.New(zapcore.InfoLevel)

	_, err := New(repo, at(t0), WithLogger(zap.New(core))).RunOnce(context.Background())
	require.NoError(t, err)

	entries := logs.FilterMessage("reconciliation pass finished").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(2), fields["examined"])
	assert.Equal(t, int64(1), fields["transitioned"])
	assert.Equal(t, int64(0), fields["skipped_conflict"])
	assert.Equal(t, int64(0), fields["errored"])
	assert.NotEmpty(t, fields["run_id"])
}

func TestMetricsRecorded(t *testing.T) {
	end := t0.Add(time.Hour)
	repo := newFakeRepo(
		shift(1, models.StatusScheduled, t0, &end),
		shift(2, models.StatusScheduled, t0, &end),
	)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	_, err := New(repo, at(t0.Add(time.Minute)), WithMetrics(m)).RunOnce(context.Background())
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "evshift_shift_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "one from/to series")

	n, err = testutil.GatherAndCount(reg, "evshift_reconcile_pass_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// ctxRepo fails writes on a done context, like a database driver would
type ctxRepo struct{ *fakeRepo }

func (r ctxRepo) CompareAndSetStatus(ctx context.Context, id uint, expected, next models.Status) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return r.fakeRepo.CompareAndSetStatus(ctx, id, expected, next)
}

func TestCancelledCallerDoesNotCutPassShort(t *testing.T) {
	repo := newFakeRepo(
		shift(1, models.StatusPendingAssignment, t0, nil),
		shift(2, models.StatusPendingAssignment, t0, nil),
		shift(3, models.StatusPendingAssignment, t0, nil),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(ctxRepo{repo}, at(t0.Add(time.Second))).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Transitioned)
	assert.Zero(t, report.Errored)
	for id := uint(1); id <= 3; id++ {
		assert.Equal(t, models.StatusLateAssignment, repo.status(id))
	}
}

func TestOverlappingPassIsRefused(t *testing.T) {
	repo := newFakeRepo(shift(1, models.StatusPendingAssignment, t0, nil))
	repo.listStarted = make(chan struct{}, 1)
	repo.listGate = make(chan struct{})
	r := New(repo, at(t0.Add(time.Minute)))

	done := make(chan error, 1)
	go func() {
		_, err := r.RunOnce(context.Background())
		done <- err
	}()

	<-repo.listStarted
	assert.True(t, r.Running())
	_, err := r.RunOnce(context.Background())
	assert.True(t, errors.Is(err, ErrPassInProgress))

	close(repo.listGate)
	require.NoError(t, <-done)
	assert.False(t, r.Running())
	assert.Equal(t, models.StatusLateAssignment, repo.status(1))
}

// countingRepo tracks how many passes are inside the repository at once
type countingRepo struct {
	*fakeRepo
	active  atomic.Int32
	maxSeen atomic.Int32
	passes  atomic.Int32
	hold    time.Duration
}

func (r *countingRepo) ListNonTerminalShifts(ctx context.Context) ([]models.Shift, error) {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		m := r.maxSeen.Load()
		if n <= m || r.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	r.passes.Add(1)
	time.Sleep(r.hold)
	return r.fakeRepo.ListNonTerminalShifts(ctx)
}

func TestRunLoopFixedDelayWithoutOverlap(t *testing.T) {
	repo := &countingRepo{fakeRepo: newFakeRepo(shift(1, models.StatusPendingAssignment, t0, nil)), hold: 15 * time.Millisecond}
	r := New(repo, at(t0.Add(time.Minute)))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	var runErr error
	go func() {
		defer wg.Done()
		runErr = r.Run(ctx, 5*time.Millisecond)
	}()

	require.Eventually(t, func() bool { return repo.passes.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	wg.Wait()

	assert.True(t, errors.Is(runErr, context.Canceled))
	assert.Equal(t, int32(1), repo.maxSeen.Load(), "passes must never overlap")
	assert.Equal(t, models.StatusLateAssignment, repo.status(1))
}

func TestRunKeepsGoingAfterFailedPass(t *testing.T) {
	repo := newFakeRepo(shift(1, models.StatusPendingAssignment, t0, nil))
	repo.listErr = errors.New("store unreachable")
	r := New(repo, at(t0.Add(time.Minute)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx, time.Millisecond) }()

	require.Eventually(t, func() bool {
		list, _ := repo.calls()
		return list >= 2
	}, 2*time.Second, time.Millisecond)

	repo.mu.Lock()
	repo.listErr = nil
	repo.mu.Unlock()

	require.Eventually(t, func() bool {
		return repo.status(1) == models.StatusLateAssignment
	}, 2*time.Second, time.Millisecond)
}
