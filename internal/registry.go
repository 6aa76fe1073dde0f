package internal

import "sync"

// OpKind names a process-wide, mutually exclusive operation slot.
type OpKind string

const (
	OpPhysicalScan OpKind = "physical_scan"
	OpVerification OpKind = "verification"
)

// Registry tracks in-flight exclusive operations. It replaces single static
// callback slots: a second acquisition of a held slot fails instead of
// overwriting the first registration. Every successful Acquire must be paired
// with Release on all exit paths.
type Registry struct {
	mu     sync.Mutex
	active map[OpKind]bool
}

func NewRegistry() *Registry {
	return &Registry{active: make(map[OpKind]bool)}
}

// Acquire reserves the slot, reporting false when it is already held.
func (r *Registry) Acquire(kind OpKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[kind] {
		return false
	}
	r.active[kind] = true
	return true
}

func (r *Registry) Release(kind OpKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, kind)
}

// Held reports whether the slot is currently acquired.
func (r *Registry) Held(kind OpKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[kind]
}
