// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"fmt"
	"path"
	"reflect"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/pdiddy/spectrace/pkg/types"
)

// Test registers fn as verifying ids at definition time and returns a test
// function that runs fn and records its outcome. Declare it at package
// level so the binding exists even when the test is filtered out:
//
//	var testLogin = registry.Test([]string{"AUTH-001"}, "Reject empty password", func(t *testing.T) {
//		...
//	})
//
//	func TestLogin(t *testing.T) { testLogin(t) }
func (r *Registry) Test(ids []string, desc string, fn func(*testing.T)) func(*testing.T) {
	return r.test(4, ids, desc, fn)
}

// Test registers fn in Default. See Registry.Test.
func Test(ids []string, desc string, fn func(*testing.T)) func(*testing.T) {
	return Default.test(4, ids, desc, fn)
}

func (r *Registry) test(skip int, ids []string, desc string, fn func(*testing.T)) func(*testing.T) {
	b := r.register(skip, ids, fn, desc, nil)
	r.update(b, func(b *types.TestBinding) {
		if name := funcName(fn); strings.HasPrefix(name, "Test") {
			b.Name = name
		} else {
			b.Name = ""
		}
	})

	return func(t *testing.T) {
		t.Helper()
		r.update(b, func(b *types.TestBinding) {
			if b.Name == "" {
				b.Name = t.Name()
			}
		})
		r.track(t, b)
		defer r.recoverPanic(b)
		fn(t)
	}
}

// Verifies binds the running test to ids and records its outcome when the
// test finishes. Call it first thing in a test body:
//
//	func TestLogin(t *testing.T) {
//		registry.Verifies(t, "AUTH-001")
//		...
//	}
//
// Static discovery finds these call sites without running the tests.
// Repeated runs of the same test (go test -count=N) reuse one binding.
func (r *Registry) Verifies(t testing.TB, ids ...string) *types.TestBinding {
	t.Helper()
	return r.verifies(t, ids)
}

// Verifies binds the running test to ids in Default. See Registry.Verifies.
func Verifies(t testing.TB, ids ...string) *types.TestBinding {
	t.Helper()
	return Default.verifies(t, ids)
}

func (r *Registry) verifies(t testing.TB, ids []string) *types.TestBinding {
	t.Helper()
	b := r.find(t.Name(), ids)
	if b == nil {
		b = r.register(4, ids, nil, "", []Option{WithName(t.Name())})
	}
	r.track(t, b)
	return b
}

// find returns the binding named name that verifies exactly the set ids.
func (r *Registry) find(name string, ids []string) *types.TestBinding {
	want := idSet(ids)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.order {
		if b.Name == name && slices.Equal(idSet(b.IDs), want) {
			return b
		}
	}
	return nil
}

func idSet(ids []string) []string {
	set := uniq(ids)
	slices.Sort(set)
	return set
}

func (r *Registry) update(b *types.TestBinding, fn func(*types.TestBinding)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(b)
}

// track records the outcome of t on b once t and its subtests complete.
func (r *Registry) track(t testing.TB, b *types.TestBinding) {
	t.Cleanup(func() {
		r.update(b, func(b *types.TestBinding) {
			if b.Outcome == types.OutcomeError {
				return
			}
			switch {
			case t.Failed():
				setOutcome(b, types.OutcomeFailed, fmt.Sprintf("%s failed", t.Name()))
			case t.Skipped():
				setOutcome(b, types.OutcomeNotRun, fmt.Sprintf("%s skipped", t.Name()))
			default:
				setOutcome(b, types.OutcomePassed, "")
			}
		})
	})
}

// recoverPanic marks b as errored and re-raises the panic so the test
// framework still reports it.
func (r *Registry) recoverPanic(b *types.TestBinding) {
	p := recover()
	if p == nil {
		return
	}
	r.update(b, func(b *types.TestBinding) {
		b.Outcome = types.OutcomeError
		b.Detail = fmt.Sprintf("panic: %v", p)
	})
	panic(p)
}

func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return ""
	}
	full := f.Name()
	// Closures ("pkg.TestX.func1") have no name of their own.
	if _, last := path.Split(full); strings.Count(last, ".") > 1 {
		return ""
	}
	_, name := splitFuncName(full)
	return name
}
