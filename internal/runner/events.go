// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package runner

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pdiddy/spectrace/pkg/registry"
	"github.com/pdiddy/spectrace/pkg/types"
)

// maxDetailLines bounds the failure output kept per test.
const maxDetailLines = 20

// Event is one line of go test -json output.
type Event struct {
	Time        time.Time `json:"Time"`
	Action      string    `json:"Action"`
	Package     string    `json:"Package"`
	ImportPath  string    `json:"ImportPath,omitempty"`
	Test        string    `json:"Test"`
	Elapsed     float64   `json:"Elapsed"`
	Output      string    `json:"Output"`
	FailedBuild string    `json:"FailedBuild,omitempty"`
}

// PackageResult summarises one package of a test run.
type PackageResult struct {
	Name     string
	Passed   int
	Failed   int
	Skipped  int
	Duration time.Duration

	// Error is set when the package failed without attributing the failure
	// to a test: a build failure, a panic, or a timeout.
	Error string
}

// Status returns "ok", "FAIL", or "skip" in the style of go test.
func (p PackageResult) Status() string {
	if p.Error != "" || p.Failed > 0 {
		return "FAIL"
	}
	if p.Passed == 0 && p.Skipped > 0 {
		return "skip"
	}
	return "ok"
}

// Results is the parsed outcome of a go test -json run.
type Results struct {
	// Tests maps "importpath.TestName" to the test's result.
	Tests    map[string]registry.Result
	Packages []PackageResult

	// Malformed counts lines that were not JSON events.
	Malformed int
}

// Failed reports whether any package or test failed.
func (r *Results) Failed() bool {
	for _, p := range r.Packages {
		if p.Status() == "FAIL" {
			return true
		}
	}
	return false
}

// ApplyTo attaches the results to the bindings in reg. Bindings in a
// package that errored without reporting the test get OutcomeError.
// Bindings never seen keep their outcome. It returns the number of
// bindings updated.
func (r *Results) ApplyTo(reg *registry.Registry) int {
	results := make(map[string]registry.Result, len(r.Tests))
	for k, v := range r.Tests {
		results[k] = v
	}

	pkgErr := make(map[string]string)
	for _, p := range r.Packages {
		if p.Error != "" {
			pkgErr[p.Name] = p.Error
		}
	}
	for _, b := range reg.Bindings() {
		detail, ok := pkgErr[b.Package]
		if !ok {
			continue
		}
		if _, seen := results[b.Path()]; !seen {
			results[b.Path()] = registry.Result{Outcome: types.OutcomeError, Detail: detail}
		}
	}
	return reg.ApplyOutcomes(results)
}

// Parse reads a go test -json stream.
func Parse(rd io.Reader) (*Results, error) {
	agg := newAggregator()
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	malformed := 0
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			malformed++
			continue
		}
		agg.process(e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning test output: %w", err)
	}
	res := agg.results()
	res.Malformed = malformed
	return res, nil
}

type testState struct {
	name    string
	status  string // "run", "pass", "fail", "skip"
	output  []string
	elapsed float64
}

type pkgState struct {
	result  PackageResult
	tests   map[string]*testState
	order   []string
	output  []string
	panic   bool
	done    bool
	started bool
}

type aggregator struct {
	packages map[string]*pkgState
	order    []string
}

func newAggregator() *aggregator {
	return &aggregator{packages: make(map[string]*pkgState)}
}

func (a *aggregator) pkg(name string) *pkgState {
	if p, ok := a.packages[name]; ok {
		return p
	}
	p := &pkgState{result: PackageResult{Name: name}, tests: make(map[string]*testState)}
	a.packages[name] = p
	a.order = append(a.order, name)
	return p
}

func (p *pkgState) test(name string) *testState {
	if t, ok := p.tests[name]; ok {
		return t
	}
	t := &testState{name: name}
	p.tests[name] = t
	p.order = append(p.order, name)
	return t
}

func (a *aggregator) process(e Event) {
	name := e.Package
	if name == "" {
		// Build events name the test binary: "pkg [pkg.test]".
		name, _, _ = strings.Cut(e.ImportPath, " ")
	}
	if name == "" {
		return
	}
	p := a.pkg(name)

	switch e.Action {
	case "start":
		p.started = true
	case "run":
		p.test(e.Test).status = "run"
	case "pass", "fail", "skip":
		if e.Test == "" {
			p.done = true
			p.result.Duration = time.Duration(e.Elapsed * float64(time.Second))
			if e.Action == "fail" && p.result.Passed+p.result.Failed+p.result.Skipped == 0 {
				p.result.Error = strings.Join(p.output, "\n")
				if p.result.Error == "" {
					p.result.Error = "package failed"
				}
			}
			return
		}
		t := p.test(e.Test)
		t.status = e.Action
		t.elapsed = e.Elapsed
		switch e.Action {
		case "pass":
			p.result.Passed++
		case "fail":
			p.result.Failed++
		case "skip":
			p.result.Skipped++
		}
	case "output", "build-output":
		out := strings.TrimRight(e.Output, "\n")
		if out == "" {
			return
		}
		if e.Test != "" {
			t := p.test(e.Test)
			t.output = append(t.output, out)
		} else {
			p.output = append(p.output, out)
		}
		if strings.HasPrefix(out, "panic:") {
			p.panic = true
		}
	case "build-fail":
		p.done = true
		p.result.Error = strings.Join(p.output, "\n")
	}

	if e.FailedBuild != "" && p.result.Error == "" {
		p.result.Error = "build failed: " + e.FailedBuild
	}
}

func (a *aggregator) results() *Results {
	res := &Results{Tests: make(map[string]registry.Result)}
	for _, name := range a.order {
		p := a.packages[name]
		for _, tn := range p.order {
			t := p.tests[tn]
			r := registry.Result{}
			switch t.status {
			case "pass":
				r.Outcome = types.OutcomePassed
			case "fail":
				r.Outcome = types.OutcomeFailed
				r.Detail = detail(t.output)
			case "skip":
				r.Outcome = types.OutcomeNotRun
				r.Detail = detail(t.output)
			default:
				// Started but never finished: the binary panicked, timed
				// out, or was killed.
				r.Outcome = types.OutcomeError
				r.Detail = "test did not finish"
				if d := detail(t.output); d != "" {
					r.Detail += ": " + d
				}
				if p.result.Error == "" {
					p.result.Error = r.Detail
				}
			}
			res.Tests[name+"."+tn] = r
		}
		if p.panic && p.result.Error == "" && p.result.Failed == 0 {
			p.result.Error = "package panicked: " + detail(p.output)
		}
		if !p.done && p.started && p.result.Error == "" {
			p.result.Error = "package did not finish"
		}
		res.Packages = append(res.Packages, p.result)
	}
	return res
}

// detail keeps the last output lines, dropping go test framing.
func detail(lines []string) string {
	var kept []string
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if strings.HasPrefix(trimmed, "=== ") || strings.HasPrefix(trimmed, "--- ") || trimmed == "" {
			continue
		}
		kept = append(kept, trimmed)
	}
	if len(kept) > maxDetailLines {
		kept = kept[len(kept)-maxDetailLines:]
	}
	return strings.Join(kept, "\n")
}
