// Package template compiles and renders the payload templates named in
// spec.md §4.7 and §6: a structured document (mapping or leaf string)
// with "${{ path.path }}" interpolations, rendered against a JSON
// value produced by a predicate's extraction.
//
// Compile happens once, at config load time, against a *yaml.Node so
// a mapping's pairs keep their declared order (Go's map[string]any is
// unordered). Render walks the pairs in that order, so when two keys
// render to the same string the later pair wins; the rendered object
// itself is a map[string]any and carries no key order. Render happens
// once per rule evaluation, against the extraction value.
package template
