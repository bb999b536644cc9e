// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discover

import (
	"context"
	"iter"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// ParseContracts returns the contracts declared in Go source: calls to
// Wrap or WrapAsync whose Spec literal sets RequirementID. Contracts carry
// no file or package.
func ParseContracts(ctx context.Context, content []byte) ([]Contract, error) {
	tree, root, err := parseTree(ctx, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	c := &contractScanner{src: content}
	c.walk(root, "")
	return c.out, nil
}

type contractScanner struct {
	src []byte
	out []Contract
}

func (c *contractScanner) text(n *sitter.Node) string {
	return string(c.src[n.StartByte():n.EndByte()])
}

// walk visits n; assigned names the variable or function the current
// expression is bound to, used when the wrapped function is a literal.
func (c *contractScanner) walk(n *sitter.Node, assigned string) {
	switch n.Type() {
	case "function_declaration", "method_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			assigned = c.text(name)
		}
	case "var_spec", "const_spec":
		if name := n.ChildByFieldName("name"); name != nil {
			assigned = c.text(name)
		}
	case "short_var_declaration", "assignment_statement":
		if left := n.ChildByFieldName("left"); left != nil && left.NamedChildCount() > 0 {
			assigned = lastName(c.src, left.NamedChild(0))
		}
	case "call_expression":
		if c.call(n, assigned) {
			return
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c.walk(n.NamedChild(i), assigned)
	}
}

// call records a contract for a Wrap or WrapAsync call and reports
// whether one was found.
func (c *contractScanner) call(n *sitter.Node, assigned string) bool {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn == nil || args == nil {
		return false
	}
	switch callee(c.src, fn) {
	case "Wrap", "WrapAsync":
	default:
		return false
	}
	argv := namedChildren(args)
	if len(argv) < 2 {
		return false
	}

	var lit *sitter.Node
	for _, a := range argv {
		if a.Type() != "composite_literal" {
			continue
		}
		if typ := a.ChildByFieldName("type"); typ != nil && strings.Contains(c.text(typ), "Spec") {
			lit = a
			break
		}
	}
	if lit == nil {
		return false
	}

	k := Contract{Line: line(n)}
	for key, value := range c.fields(lit) {
		switch key {
		case "RequirementID":
			k.RequirementID, _ = stringLit(c.src, value)
		case "Name":
			k.Func, _ = stringLit(c.src, value)
		case "Doc":
			k.Doc, _ = stringLit(c.src, value)
		case "Requires":
			k.Requires = elements(value)
		case "Ensures":
			k.Ensures = elements(value)
		}
	}
	if k.RequirementID == "" {
		return false
	}
	if k.Func == "" {
		k.Func = lastName(c.src, argv[len(argv)-1])
	}
	if k.Func == "" {
		k.Func = assigned
	}
	c.out = append(c.out, k)
	return true
}

// fields yields the keyed elements of a composite literal.
func (c *contractScanner) fields(lit *sitter.Node) iter.Seq2[string, *sitter.Node] {
	return func(yield func(string, *sitter.Node) bool) {
		body := lit.ChildByFieldName("body")
		if body == nil {
			return
		}
		for _, el := range namedChildren(body) {
			if el.Type() != "keyed_element" {
				continue
			}
			kv := namedChildren(el)
			if len(kv) != 2 {
				continue
			}
			key, value := unwrapElement(kv[0]), unwrapElement(kv[1])
			if !yield(c.text(key), value) {
				return
			}
		}
	}
}

// unwrapElement returns the expression inside a literal_element node.
func unwrapElement(n *sitter.Node) *sitter.Node {
	if n.Type() == "literal_element" && n.NamedChildCount() > 0 {
		return n.NamedChild(0)
	}
	return n
}

// elements counts the entries of a slice literal, or 0 for any other
// expression.
func elements(n *sitter.Node) int {
	if n.Type() != "composite_literal" {
		return 0
	}
	body := n.ChildByFieldName("body")
	if body == nil {
		return 0
	}
	return len(namedChildren(body))
}

// lastName returns the identifier an expression ends in: the name of an
// identifier, or the field of a selector such as svc.Login.
func lastName(src []byte, n *sitter.Node) string {
	switch n.Type() {
	case "identifier", "field_identifier":
		return string(src[n.StartByte():n.EndByte()])
	case "selector_expression":
		if field := n.ChildByFieldName("field"); field != nil {
			return string(src[field.StartByte():field.EndByte()])
		}
	}
	return ""
}
