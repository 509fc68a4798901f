package wizard

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Closer is any wizard the registry can hold.
type Closer interface {
	Close()
	Closed() bool
}

type entry[W Closer] struct {
	wizard   W
	operator int64
	touched  time.Time
}

// Registry keeps the open wizards of one kind, each bound to the operator
// that opened it.
type Registry[W Closer] struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]*entry[W]
}

// NewRegistry returns an empty registry.
func NewRegistry[W Closer](opts ...Option) *Registry[W] {
	o := buildOptions(opts)
	return &Registry[W]{now: o.now, entries: make(map[string]*entry[W])}
}

// Add stores w for operatorID and returns its new id.
func (r *Registry[W]) Add(operatorID int64, w W) string {
	return r.Open(operatorID, func(string) W { return w })
}

// Open registers the wizard build returns for operatorID. build receives
// the new id so the wizard's backend can tag its submissions with it.
func (r *Registry[W]) Open(operatorID int64, build func(id string) W) string {
	id := uuid.NewString()
	w := build(id)
	r.mu.Lock()
	r.entries[id] = &entry[W]{wizard: w, operator: operatorID, touched: r.now()}
	r.mu.Unlock()
	return id
}

// Get returns the wizard id if operatorID owns it.
func (r *Registry[W]) Get(operatorID int64, id string) (W, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero W
	e, ok := r.entries[id]
	if !ok {
		return zero, ErrNotFound
	}
	if e.operator != operatorID {
		return zero, ErrForbidden
	}
	e.touched = r.now()
	return e.wizard, nil
}

// Remove closes and drops the wizard.
func (r *Registry[W]) Remove(operatorID int64, id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	if e.operator != operatorID {
		r.mu.Unlock()
		return ErrForbidden
	}
	delete(r.entries, id)
	r.mu.Unlock()
	e.wizard.Close()
	return nil
}

// Sweep closes and drops wizards that are finished or idle for longer than
// maxIdle. It returns the number removed.
func (r *Registry[W]) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	var stale []W
	r.mu.Lock()
	for id, e := range r.entries {
		if e.wizard.Closed() || e.touched.Before(cutoff) {
			stale = append(stale, e.wizard)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()
	for _, w := range stale {
		w.Close()
	}
	return len(stale)
}

// Len is the number of registered wizards.
func (r *Registry[W]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
