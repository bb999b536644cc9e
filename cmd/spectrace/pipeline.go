// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/pdiddy/spectrace/internal/discover"
	"github.com/pdiddy/spectrace/internal/runner"
	"github.com/pdiddy/spectrace/pkg/contract"
	"github.com/pdiddy/spectrace/pkg/registry"
	"github.com/pdiddy/spectrace/pkg/spec"
	"github.com/pdiddy/spectrace/pkg/types"
	"github.com/pdiddy/spectrace/pkg/verify"
)

// newExtractor builds a requirement extractor for cfg.Specs.
func newExtractor(cfg types.Config) (*spec.Extractor, error) {
	filter, err := spec.FilterFromConfig(cfg.Specs)
	if err != nil {
		return nil, fmt.Errorf("building spec filter: %w", err)
	}
	return spec.NewExtractor(cfg.Specs.Dir, filter,
		spec.WithWorkers(cfg.Specs.Workers),
		spec.WithLogger(logger.Named("spec")),
	), nil
}

// buildVerifier discovers the tests and contracts bound to requirements,
// optionally runs the tests, and returns a verifier whose registries hold
// the bindings with their outcomes. Progress lines go to w.
func buildVerifier(ctx context.Context, cfg types.Config, w io.Writer) (*verify.Verifier, error) {
	ext, err := newExtractor(cfg)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	d := discover.New(cfg.Tests.Dir,
		discover.WithExcludeDirs(cfg.Tests.ExcludeDirs),
		discover.WithLogger(logger.Named("discover")),
	)
	found, err := d.RegisterAll(ctx, reg)
	if err != nil {
		return nil, fmt.Errorf("discovering tests and contracts: %w", err)
	}
	for _, f := range found.Failures {
		logger.Warn("skipping unparseable source file", zap.String("path", f.Path), zap.Error(f.Err))
	}
	fmt.Fprintf(w, "found    %d bindings in %d test files\n", len(found.Bindings), found.Files)
	contracts := contract.NewRegistry()
	if n := found.DeclareContracts(contracts); n > 0 {
		fmt.Fprintf(w, "found    %d contracts in %d source files\n", n, found.SourceFiles)
	}

	if cfg.Tests.Run && reg.Len() > 0 {
		r := runner.New(cfg.Tests, runner.WithLogger(logger.Named("runner")))
		res, err := r.Run(ctx, w)
		if err != nil {
			return nil, fmt.Errorf("running tests: %w", err)
		}
		n := res.ApplyTo(reg)
		logger.Debug("applied test results", zap.Int("bindings", n), zap.Int("results", len(res.Tests)))
		if res.Malformed > 0 {
			logger.Warn("ignored malformed test2json lines", zap.Int("count", res.Malformed))
		}
	}

	return verify.New(ext,
		verify.WithTests(reg),
		verify.WithContracts(contracts),
		verify.WithLogger(logger.Named("verify")),
	), nil
}
