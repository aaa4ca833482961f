package template

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/combiner/internal/jsonpath"
)

// Template is a compiled payload template: a Branch (object), or a
// Leaf (interpolated string).
type Template struct {
	branch *branchTemplate // non-nil iff this is a Branch
	leaf   *leafTemplate   // non-nil iff this is a Leaf
}

type branchTemplate struct {
	pairs []pairTemplate
}

type pairTemplate struct {
	key   *Template
	value *Template
}

type leafTemplate struct {
	parts []part
}

// part is either literal text or a reference to a dotted path.
type part struct {
	literal string
	path    []string // nil iff this part is a literal
}

// CompileError reports a precise position for a template compile
// failure.
type CompileError struct {
	Line, Column int
	Message      string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("template: %d:%d: %s", e.Line, e.Column, e.Message)
}

// Compile builds a Template from a parsed YAML node. The root must be
// a mapping or a scalar string; anything else is a compile error.
func Compile(n *yaml.Node) (*Template, error) {
	if n == nil {
		return nil, &CompileError{Message: "template is nil"}
	}
	// A document node wraps its single child; unwrap it.
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) != 1 {
			return nil, &CompileError{Line: n.Line, Column: n.Column, Message: "empty document"}
		}
		n = n.Content[0]
	}
	switch n.Kind {
	case yaml.MappingNode:
		return compileMapping(n)
	case yaml.ScalarNode:
		if n.Tag != "" && n.Tag != "!!str" {
			return nil, &CompileError{Line: n.Line, Column: n.Column, Message: fmt.Sprintf("leaf value must be a string, got %s", n.Tag)}
		}
		lt, err := compileLeaf(n.Value, n.Line, n.Column)
		if err != nil {
			return nil, err
		}
		return &Template{leaf: lt}, nil
	default:
		return nil, &CompileError{Line: n.Line, Column: n.Column, Message: "template root must be a mapping or a string"}
	}
}

// CompileString compiles a single leaf string directly, without a YAML
// document — used for key templates and standalone string templates
// built programmatically (e.g. from config fields that are already
// decoded strings).
func CompileString(s string) (*Template, error) {
	lt, err := compileLeaf(s, 0, 0)
	if err != nil {
		return nil, err
	}
	return &Template{leaf: lt}, nil
}

func compileMapping(n *yaml.Node) (*Template, error) {
	if len(n.Content)%2 != 0 {
		return nil, &CompileError{Line: n.Line, Column: n.Column, Message: "malformed mapping"}
	}
	pairs := make([]pairTemplate, 0, len(n.Content)/2)
	for i := 0; i < len(n.Content); i += 2 {
		keyNode, valNode := n.Content[i], n.Content[i+1]
		keyTmpl, err := Compile(keyNode)
		if err != nil {
			return nil, err
		}
		valTmpl, err := Compile(valNode)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pairTemplate{key: keyTmpl, value: valTmpl})
	}
	return &Template{branch: &branchTemplate{pairs: pairs}}, nil
}

// Render renders the template against a JSON value. Branches render
// to map[string]any (preserving last-write-wins on duplicate rendered
// keys, per spec.md §4.7); leaves render to string.
func (t *Template) Render(v any) (any, error) {
	switch {
	case t.branch != nil:
		out := make(map[string]any, len(t.branch.pairs))
		for _, pair := range t.branch.pairs {
			kRendered, err := pair.key.Render(v)
			if err != nil {
				return nil, err
			}
			k, ok := kRendered.(string)
			if !ok {
				return nil, &RenderError{Message: "object key must render to a string"}
			}
			vRendered, err := pair.value.Render(v)
			if err != nil {
				return nil, err
			}
			out[k] = vRendered
		}
		return out, nil
	case t.leaf != nil:
		return renderLeaf(t.leaf, v)
	default:
		return nil, &RenderError{Message: "template: empty template"}
	}
}

// RenderError reports a failure extracting a referenced path during
// render.
type RenderError struct {
	Path    string
	Message string
}

func (e *RenderError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("template: render path %q: %s", e.Path, e.Message)
	}
	return "template: " + e.Message
}

func renderLeaf(lt *leafTemplate, v any) (string, error) {
	var out string
	for _, p := range lt.parts {
		if p.path == nil {
			out += p.literal
			continue
		}
		extracted, err := jsonpath.Extract(v, p.path)
		if err != nil {
			return "", &RenderError{Path: joinPath(p.path), Message: "field not found"}
		}
		out += jsonpath.Canonical(extracted)
	}
	return out, nil
}

func joinPath(segments []string) string {
	out := ""
	for i, s := range segments {
		if i > 0 {
			out += "."
		}
		out += s
	}
	return out
}
