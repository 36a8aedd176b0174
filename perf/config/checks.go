package config

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wesleyorama2/vuload/perf"
	"github.com/wesleyorama2/vuload/pkg/jsonpath"
	"github.com/wesleyorama2/vuload/pkg/jsonschema"
)

// Check types.
const (
	CheckStatus   = "status"
	CheckBody     = "body"
	CheckHeader   = "header"
	CheckJSONPath = "jsonpath"
	CheckSchema   = "schema"
	CheckDuration = "duration"
)

// Check conditions.
const (
	CondEq          = "eq"
	CondNe          = "ne"
	CondLt          = "lt"
	CondLte         = "lte"
	CondGt          = "gt"
	CondGte         = "gte"
	CondIn          = "in"
	CondContains    = "contains"
	CondNotContains = "not_contains"
	CondMatches     = "matches"
	CondExists      = "exists"
	CondValid       = "valid"
)

// validConditions lists the conditions each check type accepts.
var validConditions = map[string][]string{
	CheckStatus:   {CondEq, CondNe, CondLt, CondLte, CondGt, CondGte, CondIn},
	CheckBody:     {CondContains, CondNotContains, CondEq, CondMatches},
	CheckHeader:   {CondExists, CondEq, CondContains, CondMatches},
	CheckJSONPath: {CondExists, CondEq, CondNe, CondContains, CondMatches},
	CheckSchema:   {CondValid},
	CheckDuration: {CondLt, CondLte, CondGt, CondGte},
}

// CompileCheck turns a declarative check into a perf.Check. Values such as
// regular expressions and schemas are compiled once, here.
func CompileCheck(c *CheckConfig) (perf.Check, error) {
	pred, err := compilePredicate(c)
	if err != nil {
		return perf.Check{}, err
	}

	name := c.Name
	if name == "" {
		name = defaultCheckName(c)
	}
	return perf.Check{Name: name, Predicate: pred}, nil
}

func compilePredicate(c *CheckConfig) (perf.Predicate, error) {
	allowed, ok := validConditions[c.Type]
	if !ok {
		return nil, fmt.Errorf("invalid check type: %q", c.Type)
	}
	if !contains(allowed, c.Condition) {
		return nil, fmt.Errorf("invalid condition %q for %s check (valid: %s)",
			c.Condition, c.Type, strings.Join(allowed, ", "))
	}

	switch c.Type {
	case CheckStatus:
		return compileStatus(c)
	case CheckBody:
		return compileBody(c)
	case CheckHeader:
		return compileHeader(c)
	case CheckJSONPath:
		return compileJSONPath(c)
	case CheckSchema:
		return compileSchema(c)
	case CheckDuration:
		return compileDuration(c)
	}
	return nil, fmt.Errorf("invalid check type: %q", c.Type)
}

func compileStatus(c *CheckConfig) (perf.Predicate, error) {
	if c.Condition == CondIn {
		codes := make(map[int]bool)
		for _, part := range strings.Split(c.Value, ",") {
			code, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, fmt.Errorf("invalid status code %q", part)
			}
			codes[code] = true
		}
		return func(r *perf.Response) bool { return codes[r.StatusCode] }, nil
	}

	want, err := strconv.Atoi(strings.TrimSpace(c.Value))
	if err != nil {
		return nil, fmt.Errorf("invalid status code %q", c.Value)
	}
	cmp := compareInts(c.Condition)
	return func(r *perf.Response) bool { return cmp(r.StatusCode, want) }, nil
}

func compileBody(c *CheckConfig) (perf.Predicate, error) {
	value := []byte(c.Value)

	switch c.Condition {
	case CondContains:
		return func(r *perf.Response) bool { return bytes.Contains(r.Body, value) }, nil
	case CondNotContains:
		return func(r *perf.Response) bool { return !bytes.Contains(r.Body, value) }, nil
	case CondEq:
		return func(r *perf.Response) bool { return bytes.Equal(bytes.TrimSpace(r.Body), bytes.TrimSpace(value)) }, nil
	default:
		re, err := regexp.Compile(c.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid regular expression: %w", err)
		}
		return func(r *perf.Response) bool { return re.Match(r.Body) }, nil
	}
}

func compileHeader(c *CheckConfig) (perf.Predicate, error) {
	name := c.Path
	if name == "" {
		return nil, fmt.Errorf("header check requires path (the header name)")
	}

	if c.Condition == CondExists {
		return func(r *perf.Response) bool { return r.Headers.Get(name) != "" }, nil
	}

	match, err := compileStringMatch(c.Condition, c.Value)
	if err != nil {
		return nil, err
	}
	return func(r *perf.Response) bool {
		values := r.Headers.Values(name)
		for _, v := range values {
			if match(v) {
				return true
			}
		}
		return false
	}, nil
}

func compileJSONPath(c *CheckConfig) (perf.Predicate, error) {
	path, err := jsonpath.Compile(c.Path)
	if err != nil {
		return nil, fmt.Errorf("jsonpath check requires path: %w", err)
	}

	if c.Condition == CondExists {
		return func(r *perf.Response) bool {
			_, ok := path.Lookup(r.Body)
			return ok
		}, nil
	}

	match, err := compileStringMatch(c.Condition, c.Value)
	if err != nil {
		return nil, err
	}
	return func(r *perf.Response) bool {
		v, ok := path.Lookup(r.Body)
		return ok && match(v)
	}, nil
}

func compileSchema(c *CheckConfig) (perf.Predicate, error) {
	schema, err := jsonschema.Compile(c.Value)
	if err != nil {
		return nil, err
	}
	return func(r *perf.Response) bool { return schema.Valid(r.Body) }, nil
}

func compileDuration(c *CheckConfig) (perf.Predicate, error) {
	limit, err := ParseDurationString(c.Value)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("duration check requires a positive value")
	}
	cmp := compareInts(c.Condition)
	return func(r *perf.Response) bool {
		return cmp(int(r.Duration/time.Microsecond), int(limit/time.Microsecond))
	}, nil
}

// compileStringMatch builds the string comparisons shared by header and
// jsonpath checks.
func compileStringMatch(cond, value string) (func(string) bool, error) {
	switch cond {
	case CondEq:
		return func(s string) bool { return s == value }, nil
	case CondNe:
		return func(s string) bool { return s != value }, nil
	case CondContains:
		return func(s string) bool { return strings.Contains(s, value) }, nil
	case CondMatches:
		re, err := regexp.Compile(value)
		if err != nil {
			return nil, fmt.Errorf("invalid regular expression: %w", err)
		}
		return re.MatchString, nil
	}
	return nil, fmt.Errorf("unsupported condition %q", cond)
}

func compareInts(cond string) func(actual, expected int) bool {
	switch cond {
	case CondNe:
		return func(a, e int) bool { return a != e }
	case CondLt:
		return func(a, e int) bool { return a < e }
	case CondLte:
		return func(a, e int) bool { return a <= e }
	case CondGt:
		return func(a, e int) bool { return a > e }
	case CondGte:
		return func(a, e int) bool { return a >= e }
	default:
		return func(a, e int) bool { return a == e }
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
