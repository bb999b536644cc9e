// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discover

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/pdiddy/spectrace/pkg/spec"
)

var verifiesComment = regexp.MustCompile(`^//\s*Verifies:\s*(.+)$`)

// Parse returns the bindings declared in one Go test file. Bindings carry
// no file or package. Package-level Test and Register variables resolve
// only against tests in the same source; Discover resolves them across the
// whole package.
func Parse(ctx context.Context, content []byte) ([]Binding, error) {
	scan, err := scanTests(ctx, content)
	if err != nil {
		return nil, err
	}
	return resolve([]*fileScan{scan}), nil
}

// varBinding is a package-level variable assigned from Test or Register.
type varBinding struct {
	name string
	ids  []string
	desc string
	file string
	line int
}

// varRef is a use of an identifier inside a test: a direct call, or a
// function value passed to t.Run.
type varRef struct {
	name string
	test string
	file string
	line int
}

// fileScan is everything one test file contributes to its package.
type fileScan struct {
	bindings []Binding
	vars     []varBinding
	refs     []varRef
}

func (f *fileScan) setFile(file string) {
	for i := range f.bindings {
		f.bindings[i].File = file
	}
	for i := range f.vars {
		f.vars[i].file = file
	}
	for i := range f.refs {
		f.refs[i].file = file
	}
}

// resolve binds package-level variables to the tests that use them and
// merges the package's bindings. A variable no test uses is reported
// under its own name, since it is registered at load time regardless.
func resolve(files []*fileScan) []Binding {
	vars := make(map[string]varBinding)
	for _, f := range files {
		for _, v := range f.vars {
			vars[v.name] = v
		}
	}

	used := make(map[string]bool)
	var out []Binding
	for _, f := range files {
		out = append(out, f.bindings...)
		for _, ref := range f.refs {
			v, ok := vars[ref.name]
			if !ok {
				continue
			}
			used[v.name] = true
			out = append(out, Binding{
				IDs:  v.ids,
				Name: ref.test,
				File: ref.file,
				Line: ref.line,
				Form: FormVar,
				Desc: v.desc,
			})
		}
	}
	for _, f := range files {
		for _, v := range f.vars {
			if used[v.name] || v.name == "_" {
				continue
			}
			out = append(out, Binding{IDs: v.ids, Name: v.name, File: v.file, Line: v.line, Form: FormVar, Desc: v.desc})
		}
	}
	return merge(out)
}

func parseTree(ctx context.Context, content []byte) (*sitter.Tree, *sitter.Node, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	root := tree.RootNode()
	if root == nil {
		tree.Close()
		return nil, nil, errors.New("tree-sitter returned nil root node")
	}
	return tree, root, nil
}

func scanTests(ctx context.Context, content []byte) (*fileScan, error) {
	tree, root, err := parseTree(ctx, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	s := &scanner{src: content, subNames: make(map[string]int)}
	var comments []*sitter.Node
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "comment":
			if len(comments) > 0 && child.StartPoint().Row > comments[len(comments)-1].EndPoint().Row+1 {
				comments = nil
			}
			comments = append(comments, child)
		case "function_declaration":
			if len(comments) > 0 && child.StartPoint().Row > comments[len(comments)-1].EndPoint().Row+1 {
				comments = nil
			}
			s.function(child, comments)
			comments = nil
		case "var_declaration":
			s.varDecl(child)
			comments = nil
		default:
			comments = nil
		}
	}
	return &s.fileScan, nil
}

type scanner struct {
	fileScan
	src []byte
	// subNames counts subtest names per parent the way go test makes
	// them unique.
	subNames map[string]int
}

func (s *scanner) text(n *sitter.Node) string {
	return string(s.src[n.StartByte():n.EndByte()])
}

func line(n *sitter.Node) int { return int(n.StartPoint().Row) + 1 }

func (s *scanner) function(fn *sitter.Node, comments []*sitter.Node) {
	nameNode := fn.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := s.text(nameNode)
	if !strings.HasPrefix(name, "Test") {
		return
	}

	for _, c := range comments {
		m := verifiesComment.FindStringSubmatch(strings.TrimSpace(s.text(c)))
		if m == nil {
			continue
		}
		if ids := splitIDs(m[1]); len(ids) > 0 {
			s.bindings = append(s.bindings, Binding{IDs: ids, Name: name, Line: line(fn), Form: FormComment})
		}
	}

	body := fn.ChildByFieldName("body")
	if body == nil {
		return
	}
	s.walk(body, name)
}

// varDecl records package-level variables whose value is a Test or
// Register call with a literal ID list.
func (s *scanner) varDecl(n *sitter.Node) {
	if n.Type() != "var_spec" {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			s.varDecl(n.NamedChild(i))
		}
		return
	}

	valueList := n.ChildByFieldName("value")
	if valueList == nil {
		return
	}
	typ := n.ChildByFieldName("type")
	var names []string
	for _, c := range namedChildren(n) {
		if c.Type() != "identifier" || (typ != nil && c.StartByte() == typ.StartByte()) {
			continue
		}
		names = append(names, s.text(c))
	}
	values := namedChildren(valueList)
	for i, name := range names {
		if i >= len(values) || values[i].Type() != "call_expression" {
			continue
		}
		ids, desc, _, ok := s.bindingCall(values[i])
		if !ok {
			continue
		}
		s.vars = append(s.vars, varBinding{name: name, ids: ids, desc: desc, line: line(values[i])})
	}
}

// walk visits call expressions under n. testName is the go test name of
// the enclosing test, extended with t.Run subtest names.
func (s *scanner) walk(n *sitter.Node, testName string) {
	if n.Type() == "call_expression" {
		if s.call(n, testName) {
			return
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		s.walk(n.NamedChild(i), testName)
	}
}

// call records a binding for n when it is a recognised form and reports
// whether its arguments were already visited.
func (s *scanner) call(n *sitter.Node, testName string) bool {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn == nil || args == nil {
		return false
	}
	if fn.Type() == "identifier" {
		s.refs = append(s.refs, varRef{name: s.text(fn), test: testName, line: line(n)})
	}
	argv := namedChildren(args)

	switch callee(s.src, fn) {
	case "Verifies":
		if len(argv) < 2 {
			return false
		}
		var ids []string
		for _, a := range argv[1:] {
			if v, ok := stringLit(s.src, a); ok && spec.ValidID(v) {
				ids = append(ids, v)
			}
		}
		if len(ids) > 0 {
			s.bindings = append(s.bindings, Binding{IDs: ids, Name: testName, Line: line(n), Form: FormVerifies})
		}
	case "Test", "Register":
		ids, desc, form, ok := s.bindingCall(n)
		if !ok {
			return false
		}
		s.bindings = append(s.bindings, Binding{IDs: ids, Name: testName, Line: line(n), Form: form, Desc: desc})
	case "Run":
		// t.Run("sub", ...) extends the test name for nested bindings.
		if len(argv) < 2 {
			return false
		}
		sub, ok := stringLit(s.src, argv[0])
		if !ok {
			return false
		}
		child := testName + "/" + s.uniqueSubtest(testName, rewriteSubtest(sub))
		for _, a := range argv[1:] {
			if a.Type() == "identifier" {
				s.refs = append(s.refs, varRef{name: s.text(a), test: child, line: line(n)})
			}
			s.walk(a, child)
		}
		return true
	}
	return false
}

// bindingCall extracts the IDs and description from a Test or Register
// call whose first argument is a []string literal.
func (s *scanner) bindingCall(n *sitter.Node) (ids []string, desc, form string, ok bool) {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn == nil || args == nil {
		return nil, "", "", false
	}
	argv := namedChildren(args)
	name := callee(s.src, fn)
	if (name != "Test" && name != "Register") || len(argv) < 2 || argv[0].Type() != "composite_literal" {
		return nil, "", "", false
	}
	ids = s.idList(argv[0])
	if len(ids) == 0 {
		return nil, "", "", false
	}
	form = FormTest
	descArg := argv[1]
	if name == "Register" {
		form = FormRegister
		if len(argv) > 2 {
			descArg = argv[2]
		}
	}
	desc, _ = stringLit(s.src, descArg)
	return ids, desc, form, true
}

// callee returns the called function's name, ignoring its package or
// receiver and any explicit type arguments.
func callee(src []byte, fn *sitter.Node) string {
	switch fn.Type() {
	case "identifier":
		return string(src[fn.StartByte():fn.EndByte()])
	case "selector_expression":
		if field := fn.ChildByFieldName("field"); field != nil {
			return string(src[field.StartByte():field.EndByte()])
		}
	case "index_expression", "generic_type", "type_instantiation_expression":
		if fn.NamedChildCount() > 0 {
			return callee(src, fn.NamedChild(0))
		}
	}
	return ""
}

// idList collects the valid requirement IDs in a []string{...} literal.
func (s *scanner) idList(lit *sitter.Node) []string {
	var ids []string
	var collect func(n *sitter.Node)
	collect = func(n *sitter.Node) {
		if v, ok := stringLit(s.src, n); ok {
			if spec.ValidID(v) {
				ids = append(ids, v)
			}
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			collect(n.NamedChild(i))
		}
	}
	if body := lit.ChildByFieldName("body"); body != nil {
		collect(body)
	}
	return ids
}

// uniqueSubtest suffixes repeated subtest names under one parent with
// #01, #02, and so on, and names an empty subtest #00.
func (s *scanner) uniqueSubtest(parent, sub string) string {
	name := parent + "/" + sub
	empty := sub == ""
	for {
		next, exists := s.subNames[name]
		if !empty && !exists {
			s.subNames[name] = 1
			return sub
		}
		s.subNames[name] = next + 1
		sub = fmt.Sprintf("%s#%02d", sub, next)
		name = parent + "/" + sub
		empty = false
	}
}

func stringLit(src []byte, n *sitter.Node) (string, bool) {
	switch n.Type() {
	case "interpreted_string_literal", "raw_string_literal":
		v, err := strconv.Unquote(string(src[n.StartByte():n.EndByte()]))
		if err != nil {
			return "", false
		}
		return v, true
	}
	return "", false
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() != "comment" {
			out = append(out, c)
		}
	}
	return out
}

// rewriteSubtest applies go test's subtest name rewriting: space runes
// become underscores and unprintable runes are escaped.
func rewriteSubtest(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('_')
		case !strconv.IsPrint(r):
			q := strconv.QuoteRune(r)
			b.WriteString(q[1 : len(q)-1])
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
