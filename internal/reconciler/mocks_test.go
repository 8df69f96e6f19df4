package reconciler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/balkashynov/evshift/internal/lifecycle"
	"github.com/balkashynov/evshift/internal/models"
)

// fakeRepo is an in-memory ShiftRepository with the same conditional write
// semantics as the real stores.
type fakeRepo struct {
	mu     sync.Mutex
	shifts map[uint]models.Shift

	listErr   error
	listCalls int
	casCalls  int

	// beforeCAS runs inside CompareAndSetStatus before the compare, letting
	// a test simulate an assignment landing between read and write
	beforeCAS func(r *fakeRepo, id uint)
	casErr    map[uint]error
	casPanic  map[uint]bool

	// listGate, when set, blocks the list call until closed
	listStarted chan struct{}
	listGate    chan struct{}
}

func newFakeRepo(shifts ...models.Shift) *fakeRepo {
	r := &fakeRepo{shifts: map[uint]models.Shift{}, casErr: map[uint]error{}, casPanic: map[uint]bool{}}
	for _, s := range shifts {
		r.shifts[s.ID] = s
	}
	return r
}

func (r *fakeRepo) ListNonTerminalShifts(ctx context.Context) ([]models.Shift, error) {
	if r.listStarted != nil {
		r.listStarted <- struct{}{}
	}
	if r.listGate != nil {
		<-r.listGate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []models.Shift
	for _, s := range r.shifts {
		if !s.Status.IsTerminal() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRepo) CompareAndSetStatus(ctx context.Context, id uint, expected, next models.Status) (bool, error) {
	r.mu.Lock()
	hook := r.beforeCAS
	r.mu.Unlock()
	if hook != nil {
		hook(r, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.casCalls++
	if r.casPanic[id] {
		panic("corrupt row")
	}
	if err := r.casErr[id]; err != nil {
		return false, err
	}
	s, ok := r.shifts[id]
	if !ok || s.Status != expected {
		return false, nil
	}
	s.Status = next
	r.shifts[id] = s
	return true, nil
}

func (r *fakeRepo) set(id uint, status models.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.shifts[id]
	s.Status = status
	r.shifts[id] = s
}

func (r *fakeRepo) status(id uint) models.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shifts[id].Status
}

func (r *fakeRepo) calls() (list, cas int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCalls, r.casCalls
}

// dueRepo adds the due-shift query on top of fakeRepo
type dueRepo struct {
	*fakeRepo
	dueCalls int
}

func (r *dueRepo) ListDueShifts(ctx context.Context, now time.Time) ([]models.Shift, error) {
	all, err := r.fakeRepo.ListNonTerminalShifts(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.dueCalls++
	r.mu.Unlock()

	var out []models.Shift
	for _, s := range all {
		if at, ok := lifecycle.Boundary(s); ok && !now.Before(at) {
			out = append(out, s)
		}
	}
	return out, nil
}
