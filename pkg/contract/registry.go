// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package contract

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Default is the registry used when Wrap is given a nil registry.
var Default = NewRegistry()

type stats struct {
	calls      atomic.Int64
	violations atomic.Int64
}

// Record is a registry entry: the contract's identity plus its call and
// violation counts at the time it was read.
type Record struct {
	Info
	Calls      int64 `json:"calls" yaml:"calls"`
	Violations int64 `json:"violations" yaml:"violations"`
}

// Failed reports whether the contract has ever been violated.
func (r Record) Failed() bool { return r.Violations > 0 }

type entry struct {
	info  Info
	stats *stats
}

func (e entry) record() Record {
	return Record{
		Info:       e.info,
		Calls:      e.stats.calls.Load(),
		Violations: e.stats.violations.Load(),
	}
}

// Registry maps requirement IDs to contracts. Registering an ID again
// replaces the previous contract.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

func (r *Registry) register(info Info, s *stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[info.RequirementID] = entry{info: info, stats: s}
}

// Declare records a contract known without wrapping a function, such as
// one found by scanning source. Its call and violation counts stay zero.
// Contracts without a requirement ID are ignored.
func (r *Registry) Declare(info Info) {
	if info.RequirementID == "" {
		return
	}
	r.register(info, &stats{})
}

// Lookup returns the contract linked to id.
func (r *Registry) Lookup(id string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Record{}, false
	}
	return e.record(), true
}

// Snapshot returns a copy of every entry.
func (r *Registry) Snapshot() map[string]Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := make(map[string]Record, len(r.entries))
	for id, e := range r.entries {
		snap[id] = e.record()
	}
	return snap
}

// IDs returns the linked requirement IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clear removes every entry. Wrapped functions keep enforcing their checks.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]entry)
}
