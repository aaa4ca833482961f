package template

import (
	"strings"
)

const (
	openMarker  = "${{"
	closeMarker = "}}"
)

// compileLeaf tokenises a leaf string into literal and reference
// parts. line/column are the position of the start of s within its
// enclosing document, used to make CompileError positions precise.
func compileLeaf(s string, line, column int) (*leafTemplate, error) {
	var parts []part
	var literal strings.Builder

	i := 0
	for i < len(s) {
		idx := strings.Index(s[i:], openMarker)
		if idx == -1 {
			literal.WriteString(s[i:])
			break
		}
		literal.WriteString(s[i : i+idx])
		markerStart := i + idx
		closeIdx := strings.Index(s[markerStart:], closeMarker)
		if closeIdx == -1 {
			return nil, &CompileError{
				Line:    line,
				Column:  column + markerStart,
				Message: "unclosed \"${{\" marker",
			}
		}
		inner := s[markerStart+len(openMarker) : markerStart+closeIdx]
		path, err := parseReference(inner)
		if err != nil {
			return nil, &CompileError{
				Line:    line,
				Column:  column + markerStart,
				Message: err.Error(),
			}
		}
		if literal.Len() > 0 {
			parts = append(parts, part{literal: literal.String()})
			literal.Reset()
		}
		parts = append(parts, part{path: path})
		i = markerStart + closeIdx + len(closeMarker)
	}
	if literal.Len() > 0 {
		parts = append(parts, part{literal: literal.String()})
	}
	return &leafTemplate{parts: parts}, nil
}

// parseReference parses the content between "${{" and "}}": whitespace
// is ignored, identifiers are [A-Za-z0-9_]+ separated by ".".
func parseReference(inner string) ([]string, error) {
	trimmed := strings.TrimSpace(inner)
	if trimmed == "" {
		return nil, &invalidReferenceError{token: "", empty: true}
	}
	segments := strings.Split(trimmed, ".")
	path := make([]string, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if !isIdentifier(seg) {
			return nil, &invalidReferenceError{token: seg}
		}
		path = append(path, seg)
	}
	return path, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}

type invalidReferenceError struct {
	token string
	empty bool
}

func (e *invalidReferenceError) Error() string {
	if e.empty {
		return "empty reference"
	}
	return "invalid reference token \"" + e.token + "\""
}
