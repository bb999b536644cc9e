// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry binds requirement IDs to the tests that verify them.
//
// A Registry is safe for concurrent use. Registration normally happens at
// package load or while tests run; verification reads a Snapshot taken
// once per run so concurrent registration never shows a partial view.
package registry

import (
	"path"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/pdiddy/spectrace/pkg/types"
)

// Default is the process-wide registry used by Test and Verifies.
var Default = New()

// Registry maps requirement IDs to bindings in registration order.
type Registry struct {
	mu       sync.Mutex
	bindings map[string][]*types.TestBinding
	order    []*types.TestBinding
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{bindings: make(map[string][]*types.TestBinding)}
}

// Option configures a binding at registration.
type Option func(*types.TestBinding)

// WithName overrides the test name derived from the caller.
func WithName(name string) Option {
	return func(b *types.TestBinding) { b.Name = name }
}

// WithPackage sets the import path of the package declaring the test.
func WithPackage(pkg string) Option {
	return func(b *types.TestBinding) { b.Package = pkg }
}

// WithLocation overrides the source location derived from the caller.
func WithLocation(file string, line int) Option {
	return func(b *types.TestBinding) {
		b.SourceFile = file
		b.SourceLine = line
	}
}

// Register records ref as verifying every ID in ids. The same binding is
// appended to each ID's list, so an outcome recorded later is visible
// through all of them. Name and location default to the calling function.
func (r *Registry) Register(ids []string, ref any, desc string, opts ...Option) *types.TestBinding {
	return r.register(3, ids, ref, desc, opts)
}

// register builds and stores a binding; skip is the runtime.Caller depth
// of the user code, counted from caller.
func (r *Registry) register(skip int, ids []string, ref any, desc string, opts []Option) *types.TestBinding {
	b := &types.TestBinding{
		IDs:         append([]string(nil), ids...),
		Description: desc,
		Outcome:     types.OutcomeNotRun,
		Ref:         ref,
	}
	b.Package, b.Name, b.SourceFile, b.SourceLine = caller(skip)
	for _, opt := range opts {
		opt(b)
	}
	r.add(b)
	return b
}

func (r *Registry) add(b *types.TestBinding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range uniq(b.IDs) {
		r.bindings[id] = append(r.bindings[id], b)
	}
	r.order = append(r.order, b)
}

// Lookup returns copies of the bindings for id in registration order, or
// nil when none exist.
func (r *Registry) Lookup(id string) []types.TestBinding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyBindings(r.bindings[id])
}

// RecordOutcome attaches outcome and detail to every binding whose Name or
// qualified Path equals name. It reports whether any binding matched.
func (r *Registry) RecordOutcome(name string, outcome types.TestOutcome, detail string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := false
	for _, b := range r.order {
		if b.Name == name || b.Path() == name {
			setOutcome(b, outcome, detail)
			matched = true
		}
	}
	return matched
}

// Result is an outcome supplied by an external test run.
type Result struct {
	Outcome types.TestOutcome
	Detail  string
}

// ApplyOutcomes attaches results keyed by qualified test path, falling
// back to the bare test name. Bindings with no result keep their outcome.
// It returns the number of bindings updated.
func (r *Registry) ApplyOutcomes(results map[string]Result) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.order {
		res, ok := results[b.Path()]
		if !ok {
			res, ok = results[b.Name]
		}
		if !ok {
			continue
		}
		setOutcome(b, res.Outcome, res.Detail)
		n++
	}
	return n
}

// setOutcome keeps the worst outcome when a test reports more than once,
// e.g. a parent test and its subtests sharing a name prefix.
func setOutcome(b *types.TestBinding, outcome types.TestOutcome, detail string) {
	if b.Outcome.Failed() && !outcome.Failed() {
		return
	}
	b.Outcome = outcome
	b.Detail = detail
}

// Snapshot returns a deep copy of the ID to bindings mapping.
func (r *Registry) Snapshot() map[string][]types.TestBinding {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := make(map[string][]types.TestBinding, len(r.bindings))
	for id, bs := range r.bindings {
		snap[id] = copyBindings(bs)
	}
	return snap
}

// Bindings returns a copy of every binding in registration order.
func (r *Registry) Bindings() []types.TestBinding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyBindings(r.order)
}

// IDs returns the registered requirement IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.bindings))
	for id := range r.bindings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of distinct bindings.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Clear removes every binding.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings = make(map[string][]*types.TestBinding)
	r.order = nil
}

func copyBindings(bs []*types.TestBinding) []types.TestBinding {
	if len(bs) == 0 {
		return nil
	}
	out := make([]types.TestBinding, len(bs))
	for i, b := range bs {
		out[i] = *b
		out[i].IDs = append([]string(nil), b.IDs...)
	}
	return out
}

func uniq(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// caller resolves the package, function, file, and line skip frames up.
func caller(skip int) (pkg, name, file string, line int) {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "", "", "", 0
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "", "", file, line
	}
	pkg, name = splitFuncName(fn.Name())
	return pkg, name, file, line
}

// splitFuncName splits "github.com/x/y/pkg.TestFoo.func1" into
// "github.com/x/y/pkg" and "TestFoo".
func splitFuncName(full string) (pkg, name string) {
	dir, last := path.Split(full)
	dot := strings.Index(last, ".")
	if dot < 0 {
		return "", full
	}
	pkg = dir + last[:dot]
	name = last[dot+1:]
	if i := strings.Index(name, "."); i >= 0 {
		name = name[:i]
	}
	return pkg, name
}
