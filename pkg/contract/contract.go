// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package contract enforces runtime preconditions and postconditions around
// function calls and links them to requirement IDs.
//
// A contract is declared with a Spec over the function's argument bundle A
// and result R. Preconditions receive the arguments; postconditions receive
// the arguments and the result:
//
//	login := contract.Wrap(nil, contract.Spec[Credentials, Token]{
//		RequirementID: "AUTH-001",
//		Requires: []func(Credentials) bool{
//			func(c Credentials) bool { return c.Password != "" },
//		},
//		Ensures: []func(Credentials, Token) bool{
//			func(_ Credentials, t Token) bool { return t.Value != "" },
//		},
//	}, doLogin)
//
//	tok, err := login.Call(Credentials{Email: "a@b.c", Password: "x"})
//
// A failed check returns a *Violation from Call; the wrapped function is not
// invoked when a precondition fails.
package contract

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// Phase names the check sequence a violation occurred in.
type Phase string

const (
	PhasePrecondition  Phase = "precondition"
	PhasePostcondition Phase = "postcondition"
)

// ErrViolation matches every *Violation with errors.Is.
var ErrViolation = errors.New("contract violation")

// Violation reports a predicate that returned false or panicked.
type Violation struct {
	RequirementID string
	Phase         Phase
	// Index is the position of the failing predicate within its phase.
	Index int
	Func  string
	// Cause is set when the predicate panicked.
	Cause error
}

func (v *Violation) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d failed for %s", v.Phase, v.Index, v.Func)
	if v.RequirementID != "" {
		fmt.Fprintf(&b, " (%s)", v.RequirementID)
	}
	if v.Cause != nil {
		fmt.Fprintf(&b, ": %v", v.Cause)
	}
	return b.String()
}

func (v *Violation) Unwrap() error { return v.Cause }

// Is makes errors.Is(err, ErrViolation) true for any violation.
func (v *Violation) Is(target error) bool { return target == ErrViolation }

// Spec declares the checks enforced around a function.
type Spec[A, R any] struct {
	// RequirementID links the contract in the registry. Empty contracts are
	// enforced but not registered.
	RequirementID string

	Requires []func(A) bool
	Ensures  []func(A, R) bool

	// Name and Doc describe the wrapped function for tooling. Name defaults
	// to the function's runtime name.
	Name string
	Doc  string
}

// Info is the introspectable identity of a wrapped function.
type Info struct {
	RequirementID string `json:"requirement_id,omitempty" yaml:"requirement_id,omitempty"`
	Func          string `json:"func" yaml:"func"`
	Package       string `json:"package,omitempty" yaml:"package,omitempty"`
	Doc           string `json:"doc,omitempty" yaml:"doc,omitempty"`
	Requires      int    `json:"requires" yaml:"requires"`
	Ensures       int    `json:"ensures" yaml:"ensures"`
}

// FullName returns package-qualified function name.
func (i Info) FullName() string {
	if i.Package == "" {
		return i.Func
	}
	return i.Package + "." + i.Func
}

// enforcer runs one contract's check sequence. Sync and async wrappers
// share it: begin checks preconditions and starts the call, finish waits
// for the result and checks postconditions.
type enforcer[A, R any] struct {
	spec  Spec[A, R]
	info  Info
	stats *stats
}

func newEnforcer[A, R any](reg *Registry, s Spec[A, R], fn any) *enforcer[A, R] {
	if reg == nil {
		reg = Default
	}
	pkg, name := funcIdentity(fn)
	if s.Name != "" {
		name = s.Name
	}
	e := &enforcer[A, R]{
		spec: s,
		info: Info{
			RequirementID: s.RequirementID,
			Func:          name,
			Package:       pkg,
			Doc:           s.Doc,
			Requires:      len(s.Requires),
			Ensures:       len(s.Ensures),
		},
		stats: &stats{},
	}
	if s.RequirementID != "" {
		reg.register(e.info, e.stats)
	}
	return e
}

// begin evaluates preconditions in order and, if all hold, starts the
// call. The returned await blocks until the call's result is available.
func (e *enforcer[A, R]) begin(args A, start func() func() (R, error)) (func() (R, error), error) {
	e.stats.calls.Add(1)
	for i, pred := range e.spec.Requires {
		if err := e.check(PhasePrecondition, i, func() bool { return pred(args) }); err != nil {
			return nil, err
		}
	}
	return start(), nil
}

// finish waits for the result and evaluates postconditions in order. A
// call that returned an error skips postconditions.
func (e *enforcer[A, R]) finish(args A, await func() (R, error)) (R, error) {
	res, err := await()
	if err != nil {
		return res, err
	}
	for i, pred := range e.spec.Ensures {
		if err := e.check(PhasePostcondition, i, func() bool { return pred(args, res) }); err != nil {
			var zero R
			return zero, err
		}
	}
	return res, nil
}

func (e *enforcer[A, R]) check(phase Phase, index int, pred func() bool) (err error) {
	violation := func(cause error) error {
		e.stats.violations.Add(1)
		return &Violation{
			RequirementID: e.spec.RequirementID,
			Phase:         phase,
			Index:         index,
			Func:          e.info.FullName(),
			Cause:         cause,
		}
	}
	defer func() {
		if p := recover(); p != nil {
			err = violation(fmt.Errorf("predicate panicked: %v", p))
		}
	}()
	if !pred() {
		return violation(nil)
	}
	return nil
}

// Func is a function wrapped with contract enforcement.
type Func[A, R any] struct {
	e  *enforcer[A, R]
	fn func(A) (R, error)
}

// Wrap returns fn enforced by s. When s links a requirement ID the contract
// is recorded in reg, or in Default when reg is nil.
func Wrap[A, R any](reg *Registry, s Spec[A, R], fn func(A) (R, error)) *Func[A, R] {
	return &Func[A, R]{e: newEnforcer(reg, s, fn), fn: fn}
}

// Call checks preconditions, invokes the function, checks postconditions,
// and returns the function's result unchanged when every check holds.
func (f *Func[A, R]) Call(args A) (R, error) {
	await, err := f.e.begin(args, func() func() (R, error) {
		res, err := f.fn(args)
		return func() (R, error) { return res, err }
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return f.e.finish(args, await)
}

// Func returns Call as a plain function value with fn's signature.
func (f *Func[A, R]) Func() func(A) (R, error) { return f.Call }

// Info describes the wrapped function.
func (f *Func[A, R]) Info() Info { return f.e.info }

// Calls returns the number of times the function has been called.
func (f *Func[A, R]) Calls() int64 { return f.e.stats.calls.Load() }

// Violations returns the number of calls that broke the contract.
func (f *Func[A, R]) Violations() int64 { return f.e.stats.violations.Load() }

func funcIdentity(fn any) (pkg, name string) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "", ""
	}
	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return "", ""
	}
	full := rf.Name()
	slash := strings.LastIndex(full, "/")
	dot := strings.Index(full[slash+1:], ".")
	if dot < 0 {
		return "", full
	}
	dot += slash + 1
	return full[:dot], full[dot+1:]
}
