// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package spec

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/pdiddy/spectrace/pkg/types"
)

// Filter decides whether a file under the extraction root is a spec
// document. relPath is slash-separated and relative to the root.
type Filter interface {
	Match(relPath string) bool
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(relPath string) bool

// Match calls f.
func (f FilterFunc) Match(relPath string) bool { return f(relPath) }

// ExcludePrefix accepts every .md file whose base name does not start
// with prefix. An empty prefix accepts all Markdown files.
func ExcludePrefix(prefix string) Filter {
	return FilterFunc(func(relPath string) bool {
		base := path.Base(relPath)
		if !strings.EqualFold(path.Ext(base), ".md") {
			return false
		}
		return prefix == "" || !strings.HasPrefix(base, prefix)
	})
}

// Glob accepts files matching a doublestar pattern such as "**/spec-*.md".
func Glob(pattern string) (Filter, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid spec file pattern %q", pattern)
	}
	return FilterFunc(func(relPath string) bool {
		ok, err := doublestar.Match(pattern, relPath)
		return err == nil && ok
	}), nil
}

// FilterFromConfig builds the filter selected by cfg.Policy.
func FilterFromConfig(cfg types.SpecsConfig) (Filter, error) {
	switch cfg.Policy {
	case types.FilterExcludePrefix, "":
		return ExcludePrefix(cfg.ExcludePrefix), nil
	case types.FilterGlob:
		if cfg.Pattern == "" {
			return nil, fmt.Errorf("glob policy requires a pattern")
		}
		return Glob(cfg.Pattern)
	default:
		return nil, fmt.Errorf("unsupported filter policy %q: use %s or %s",
			cfg.Policy, types.FilterExcludePrefix, types.FilterGlob)
	}
}
