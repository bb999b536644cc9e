// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discover finds requirement bindings in Go test sources without
// running them. It parses *_test.go files with tree-sitter and recognises
// these forms inside TestXxx functions:
//
//	registry.Verifies(t, "AUTH-001", "AUTH-002")
//	t.Run("name", registry.Test([]string{"AUTH-001"}, "desc", fn))
//	reg.Register([]string{"AUTH-001"}, nil, "desc")
//
// the doc comment form "// Verifies: AUTH-001, AUTH-002" directly above a
// test function, and package-level variables assigned from Test or
// Register, bound to every TestXxx in the package that calls them:
//
//	var testLogin = registry.Test([]string{"AUTH-001"}, "desc", fn)
//	func TestLogin(t *testing.T) { testLogin(t) }
//
// Non-test sources are scanned for contract.Wrap and contract.WrapAsync
// calls whose Spec links a requirement ID.
package discover

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/spectrace/pkg/contract"
	"github.com/pdiddy/spectrace/pkg/registry"
	"github.com/pdiddy/spectrace/pkg/spec"
)

// Form names the source construct a binding was found in.
const (
	FormVerifies = "verifies"
	FormTest     = "test"
	FormRegister = "register"
	FormComment  = "comment"
	FormVar      = "var"
)

// Binding is a requirement binding found in source.
type Binding struct {
	IDs     []string
	Name    string
	Package string
	File    string
	Line    int
	Form    string
	Desc    string
}

// Contract is a contract declaration found in source.
type Contract struct {
	RequirementID string
	Func          string
	Package       string
	Doc           string
	Requires      int
	Ensures       int
	File          string
	Line          int
}

// Result holds the bindings and contracts found by one discovery pass.
type Result struct {
	Bindings  []Binding
	Contracts []Contract
	// Files counts test files; SourceFiles counts the other .go files.
	Files       int
	SourceFiles int
	Failures    []spec.FileError
}

// DeclareContracts records every discovered contract in reg and returns
// how many were declared. A later declaration for the same ID wins.
func (r Result) DeclareContracts(reg *contract.Registry) int {
	for _, c := range r.Contracts {
		reg.Declare(contract.Info{
			RequirementID: c.RequirementID,
			Func:          c.Func,
			Package:       c.Package,
			Doc:           c.Doc,
			Requires:      c.Requires,
			Ensures:       c.Ensures,
		})
	}
	return len(r.Contracts)
}

// Discoverer scans a directory tree of Go sources.
type Discoverer struct {
	root    string
	exclude map[string]bool
	workers int
	logger  *zap.Logger
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithExcludeDirs skips directories with these base names.
func WithExcludeDirs(dirs []string) Option {
	return func(d *Discoverer) {
		for _, dir := range dirs {
			d.exclude[dir] = true
		}
	}
}

// WithWorkers bounds the number of files parsed concurrently.
func WithWorkers(n int) Option {
	return func(d *Discoverer) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Discoverer) {
		if l != nil {
			d.logger = l
		}
	}
}

// New returns a Discoverer rooted at root.
func New(root string, opts ...Option) *Discoverer {
	d := &Discoverer{
		root:    root,
		exclude: map[string]bool{"testdata": true, "vendor": true},
		workers: 4,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// parsed is what one file contributes before package-level resolution.
type parsed struct {
	dir       string
	test      bool
	scan      *fileScan
	contracts []Contract
}

// Discover parses every Go file under the root. Files that cannot be read
// or parsed are recorded in Failures and skipped.
func (d *Discoverer) Discover(ctx context.Context) (Result, error) {
	files, err := d.goFiles(ctx)
	if err != nil {
		return Result{}, err
	}

	modPath, modDir := findModule(d.root)

	results := make([]parsed, len(files))
	failed := make([]*spec.FileError, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := parseFile(gctx, file)
			if err != nil {
				failed[i] = &spec.FileError{Path: file, Err: err}
				return nil
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("discovering bindings: %w", err)
	}

	var res Result
	var dirs []string
	byDir := make(map[string][]*fileScan)
	for i := range files {
		if failed[i] != nil {
			d.logger.Warn("skipping source file", zap.String("path", failed[i].Path), zap.Error(failed[i].Err))
			res.Failures = append(res.Failures, *failed[i])
			continue
		}
		p := results[i]
		if !p.test {
			res.SourceFiles++
			pkg := importPath(modPath, modDir, p.dir)
			for _, c := range p.contracts {
				c.Package = pkg
				res.Contracts = append(res.Contracts, c)
			}
			continue
		}
		res.Files++
		if _, ok := byDir[p.dir]; !ok {
			dirs = append(dirs, p.dir)
		}
		byDir[p.dir] = append(byDir[p.dir], p.scan)
	}

	// Test files of one directory share package-level variables.
	for _, dir := range dirs {
		pkg := importPath(modPath, modDir, dir)
		bs := resolve(byDir[dir])
		for i := range bs {
			bs[i].Package = pkg
		}
		res.Bindings = append(res.Bindings, bs...)
	}

	d.logger.Debug("discovery complete",
		zap.Int("test_files", res.Files),
		zap.Int("source_files", res.SourceFiles),
		zap.Int("bindings", len(res.Bindings)),
		zap.Int("contracts", len(res.Contracts)),
		zap.Int("failures", len(res.Failures)))
	return res, nil
}

// RegisterAll discovers bindings and registers each one in reg.
func (d *Discoverer) RegisterAll(ctx context.Context, reg *registry.Registry) (Result, error) {
	res, err := d.Discover(ctx)
	if err != nil {
		return res, err
	}
	for _, b := range res.Bindings {
		reg.Register(b.IDs, nil, b.Desc,
			registry.WithName(b.Name),
			registry.WithPackage(b.Package),
			registry.WithLocation(b.File, b.Line))
	}
	return res, nil
}

func (d *Discoverer) goFiles(ctx context.Context) ([]string, error) {
	var files []string
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			if p == d.root {
				return err
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := entry.Name()
		if entry.IsDir() {
			if p != d.root && (d.exclude[name] || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(name, ".go") && !strings.HasPrefix(name, "_") && !strings.HasPrefix(name, ".") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("walking %s: %w", d.root, err)
	}
	sort.Strings(files)
	return files, nil
}

// parseFile scans one file: bindings for test files, contracts otherwise.
func parseFile(ctx context.Context, file string) (parsed, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return parsed{}, err
	}
	p := parsed{dir: filepath.Dir(file), test: strings.HasSuffix(file, "_test.go")}
	if p.test {
		p.scan, err = scanTests(ctx, content)
		if err != nil {
			return parsed{}, err
		}
		p.scan.setFile(file)
		return p, nil
	}
	p.contracts, err = ParseContracts(ctx, content)
	if err != nil {
		return parsed{}, err
	}
	for i := range p.contracts {
		p.contracts[i].File = file
	}
	return p, nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
		if spec.ValidID(f) {
			ids = append(ids, f)
		}
	}
	return ids
}

// merge folds bindings of the same test and form into one, keeping the
// first line.
func merge(bs []Binding) []Binding {
	type key struct{ name, form string }
	idx := make(map[key]int)
	var out []Binding
	for _, b := range bs {
		k := key{b.Name, b.Form}
		if i, ok := idx[k]; ok {
			out[i].IDs = appendNew(out[i].IDs, b.IDs...)
			if out[i].Desc == "" {
				out[i].Desc = b.Desc
			}
			continue
		}
		idx[k] = len(out)
		b.IDs = appendNew(nil, b.IDs...)
		out = append(out, b)
	}
	return out
}

func appendNew(dst []string, ids ...string) []string {
	for _, id := range ids {
		dup := false
		for _, have := range dst {
			if have == id {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, id)
		}
	}
	return dst
}

// findModule walks up from dir to the nearest go.mod and returns its
// module path and directory, or empty strings when there is none.
func findModule(dir string) (modPath, modDir string) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", ""
	}
	for {
		if p := readModulePath(filepath.Join(abs, "go.mod")); p != "" {
			return p, abs
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", ""
		}
		abs = parent
	}
}

func readModulePath(gomod string) string {
	f, err := os.Open(gomod)
	if err != nil {
		return ""
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && fields[0] == "module" {
			return strings.Trim(fields[1], `"`)
		}
	}
	return ""
}

// importPath maps a package directory to its import path within the module.
func importPath(modPath, modDir, dir string) string {
	if modPath == "" {
		return ""
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(modDir, abs)
	if err != nil || rel == "." {
		return modPath
	}
	return path.Join(modPath, filepath.ToSlash(rel))
}
