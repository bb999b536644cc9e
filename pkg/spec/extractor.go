// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package spec

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/spectrace/pkg/types"
)

const defaultWorkers = 4

// FileError records a spec file that could not be read. It does not abort
// collection of the remaining files.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("reading spec file %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Duplicate records a requirement ID extracted more than once. First is the
// occurrence kept in the collection; Other is the rejected one.
type Duplicate struct {
	ID    string
	First types.Requirement
	Other types.Requirement
}

// Collection is the result of extracting requirements from a directory.
type Collection struct {
	// Requirements holds one record per ID, in file then line order.
	Requirements []types.Requirement

	Failures   []FileError
	Duplicates []Duplicate
}

// Diagnostics converts failures and duplicates into report diagnostics.
func (c Collection) Diagnostics() []types.Diagnostic {
	var diags []types.Diagnostic
	for _, f := range c.Failures {
		diags = append(diags, types.Diagnostic{
			Kind:    types.DiagFileReadFailure,
			File:    f.Path,
			Message: f.Err.Error(),
		})
	}
	for _, d := range c.Duplicates {
		diags = append(diags, types.Diagnostic{
			Kind:          types.DiagDuplicateID,
			File:          d.Other.SourceFile,
			Line:          d.Other.SourceLine,
			RequirementID: d.ID,
			Message:       fmt.Sprintf("%s already defined at %s", d.ID, d.First.Location()),
		})
	}
	return diags
}

// Extractor discovers spec files under Root and parses them.
type Extractor struct {
	root    string
	filter  Filter
	workers int
	logger  *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithWorkers bounds the number of files read concurrently by Collect.
func WithWorkers(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger used for per-file diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor returns an Extractor over root. A nil filter accepts every
// Markdown file.
func NewExtractor(root string, filter Filter, opts ...Option) *Extractor {
	if filter == nil {
		filter = ExcludePrefix("")
	}
	e := &Extractor{
		root:    root,
		filter:  filter,
		workers: defaultWorkers,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Root returns the directory the extractor scans.
func (e *Extractor) Root() string { return e.root }

// Files returns the matching spec files in sorted order. A missing root
// yields no files and no error.
func (e *Extractor) Files(ctx context.Context) ([]string, error) {
	files, _, err := e.scan(ctx)
	return files, err
}

func (e *Extractor) scan(ctx context.Context) ([]string, []FileError, error) {
	if _, err := os.Stat(e.root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("reading spec directory %s: %w", e.root, err)
	}

	var (
		files    []string
		failures []FileError
	)
	err := filepath.WalkDir(e.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == e.root {
				return err
			}
			failures = append(failures, FileError{Path: path, Err: err})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(e.root, path)
		if err != nil {
			rel = path
		}
		if e.filter.Match(filepath.ToSlash(rel)) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walking spec directory %s: %w", e.root, err)
	}

	sort.Strings(files)
	return files, failures, nil
}

func (e *Extractor) parseFile(path string) ([]types.Requirement, *FileError) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	defer f.Close()

	reqs, err := Parse(f, path)
	if err != nil {
		return reqs, &FileError{Path: path, Err: err}
	}
	return reqs, nil
}

// All returns a lazy sequence of the requirements under the root. Files are
// parsed one at a time as the sequence is consumed, and every call rescans
// the directory, so the sequence can be ranged over again. Unreadable
// files are yielded as *FileError values and iteration continues.
// Duplicate IDs are not filtered here; use Collect for that.
func (e *Extractor) All(ctx context.Context) iter.Seq2[types.Requirement, error] {
	return func(yield func(types.Requirement, error) bool) {
		files, failures, err := e.scan(ctx)
		if err != nil {
			yield(types.Requirement{}, err)
			return
		}
		for i := range failures {
			if !yield(types.Requirement{}, &failures[i]) {
				return
			}
		}
		for _, path := range files {
			if err := ctx.Err(); err != nil {
				yield(types.Requirement{}, err)
				return
			}
			reqs, ferr := e.parseFile(path)
			for _, r := range reqs {
				if !yield(r, nil) {
					return
				}
			}
			if ferr != nil && !yield(types.Requirement{}, ferr) {
				return
			}
		}
	}
}

type fileResult struct {
	reqs []types.Requirement
	err  *FileError
}

// Collect extracts every requirement under the root. Files are read
// concurrently but results keep sorted file order. Read failures are
// collected, not returned. When an ID repeats, the first occurrence in
// file then line order is kept and each later one is recorded as a
// Duplicate.
func (e *Extractor) Collect(ctx context.Context) (Collection, error) {
	files, failures, err := e.scan(ctx)
	if err != nil {
		return Collection{}, err
	}

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reqs, ferr := e.parseFile(path)
			results[i] = fileResult{reqs: reqs, err: ferr}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Collection{}, err
	}

	c := Collection{Failures: failures}
	seen := make(map[string]types.Requirement)
	for i, res := range results {
		if res.err != nil {
			e.logger.Warn("spec file unreadable", zap.String("file", files[i]), zap.Error(res.err.Err))
			c.Failures = append(c.Failures, *res.err)
		}
		e.logger.Debug("parsed spec file", zap.String("file", files[i]), zap.Int("requirements", len(res.reqs)))
		for _, r := range res.reqs {
			if first, dup := seen[r.ID]; dup {
				e.logger.Warn("duplicate requirement id",
					zap.String("id", r.ID),
					zap.String("first", first.Location()),
					zap.String("other", r.Location()))
				c.Duplicates = append(c.Duplicates, Duplicate{ID: r.ID, First: first, Other: r})
				continue
			}
			seen[r.ID] = r
			c.Requirements = append(c.Requirements, r)
		}
	}
	return c, nil
}
