// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package runner executes Go tests out of process with go test -json and
// maps the event stream to binding outcomes.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/spectrace/pkg/types"
)

const goBin = "go"

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunPiped(ctx context.Context, dir, name string, args []string, stdout, stderr io.Writer) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunPiped(ctx context.Context, dir, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

var defaultExec executor = &osExecutor{}

// Runner runs go test over a module directory.
type Runner struct {
	cfg    types.TestsConfig
	exec   executor
	logger *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns a Runner for cfg. Empty fields take the defaults of
// types.DefaultConfig.
func New(cfg types.TestsConfig, opts ...Option) *Runner {
	def := types.DefaultConfig().Tests
	if cfg.Dir == "" {
		cfg.Dir = def.Dir
	}
	if len(cfg.Packages) == 0 {
		cfg.Packages = def.Packages
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	r := &Runner{cfg: cfg, exec: defaultExec, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Available reports whether the go tool is on PATH.
func (r *Runner) Available() bool {
	_, err := r.exec.LookPath(goBin)
	return err == nil
}

// Args returns the go command arguments the runner uses.
func (r *Runner) Args() []string {
	args := []string{"test", "-json", "-count=1", "-timeout", r.cfg.Timeout.String()}
	if r.cfg.Match != "" {
		args = append(args, "-run", r.cfg.Match)
	}
	return append(args, r.cfg.Packages...)
}

// Run executes the tests and parses their results. Test failures are not
// an error; a failure to start go, or output that cannot be read, is. When
// the run exceeds its timeout the parsed results mark unfinished tests as
// errors. Progress lines go to w.
func (r *Runner) Run(ctx context.Context, w io.Writer) (*Results, error) {
	if !r.Available() {
		return nil, fmt.Errorf("%s not found on PATH", goBin)
	}

	// go test enforces -timeout itself; the context is a backstop in case
	// the test binary hangs during shutdown.
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout+time.Minute)
	defer cancel()

	args := r.Args()
	r.logger.Debug("running tests", zap.String("dir", r.cfg.Dir), zap.Strings("args", args))
	fmt.Fprintf(w, "running  %s %v\n", goBin, args)

	var stdout, stderr bytes.Buffer
	start := time.Now()
	runErr := r.exec.RunPiped(ctx, r.cfg.Dir, goBin, args, &stdout, &stderr)

	res, err := Parse(&stdout)
	if err != nil {
		return nil, fmt.Errorf("parsing test output: %w", err)
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr) && len(res.Packages) > 0:
		// go test exits non-zero when tests fail.
	case ctx.Err() != nil:
		r.logger.Warn("test run interrupted", zap.Error(ctx.Err()))
	default:
		if len(res.Packages) == 0 {
			return nil, fmt.Errorf("running go test: %w: %s", runErr, bytes.TrimSpace(stderr.Bytes()))
		}
	}

	for _, p := range res.Packages {
		fmt.Fprintf(w, "%-5s    %s (%d passed, %d failed, %d skipped)\n",
			p.Status(), p.Name, p.Passed, p.Failed, p.Skipped)
	}
	r.logger.Info("test run complete",
		zap.Int("packages", len(res.Packages)),
		zap.Int("tests", len(res.Tests)),
		zap.Int("malformed", res.Malformed),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}
