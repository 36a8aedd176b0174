// Package jsonpath evaluates simple JSONPath expressions against JSON
// documents.
//
// Expressions are translated once into gjson paths, so a compiled Path can
// be evaluated against every response body without re-parsing.
package jsonpath

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Path is a compiled JSONPath expression. It is safe for concurrent use.
type Path struct {
	expr  string
	gpath string
}

// Compile translates a JSONPath expression such as "$.data[0].id".
func Compile(expr string) (*Path, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty JSONPath expression")
	}

	return &Path{expr: expr, gpath: convertToGjsonPath(expr)}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(expr string) *Path {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the original expression.
func (p *Path) String() string {
	return p.expr
}

// Lookup returns the value at the path as a string. Objects and arrays are
// returned as raw JSON, null as "null". ok is false when the body is not
// valid JSON or the path does not exist.
func (p *Path) Lookup(body []byte) (value string, ok bool) {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return "", false
	}

	result := gjson.GetBytes(body, p.gpath)
	if !result.Exists() {
		return "", false
	}

	switch result.Type {
	case gjson.Null:
		return "null", true
	case gjson.JSON:
		return result.Raw, true
	}
	return result.String(), true
}

// Extract extracts a value from a JSON string using a JSONPath expression.
func Extract(json string, expr string) (string, error) {
	if json == "" {
		return "", fmt.Errorf("empty JSON string")
	}

	p, err := Compile(expr)
	if err != nil {
		return "", err
	}

	value, ok := p.Lookup([]byte(json))
	if !ok {
		return "", fmt.Errorf("path not found: %s", expr)
	}
	return value, nil
}

// convertToGjsonPath converts a JSONPath expression to a gjson path format
//
//	JSONPath: $.users[0].name
//	gjson:    users.0.name
func convertToGjsonPath(path string) string {
	path = strings.TrimPrefix(path, "$")
	if path == "" {
		return "@this"
	}

	path = strings.TrimPrefix(path, ".")

	// Bracketed names: $['name'] and $["name"]
	path = strings.NewReplacer("['", ".", "']", "", `["`, ".", `"]`, "").Replace(path)

	// Index access: [n] -> .n
	path = strings.NewReplacer("[", ".", "]", "").Replace(path)

	return strings.TrimPrefix(path, ".")
}
