// Package jsonschema validates JSON documents against JSON Schema.
package jsonschema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationErrors represents a collection of validation errors
type ValidationErrors []error

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Schema is a compiled JSON Schema. It is safe for concurrent use.
type Schema struct {
	schema *jsonschema.Schema
}

// Compile parses and compiles a JSON Schema document.
func Compile(schemaStr string) (*Schema, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource("schema.json", strings.NewReader(schemaStr)); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	return &Schema{schema: schema}, nil
}

// Validate checks body against the schema. It returns nil when the body is
// valid, or ValidationErrors listing every violation.
func (s *Schema) Validate(body []byte) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return ValidationErrors{fmt.Errorf("invalid JSON: %w", err)}
	}

	if err := s.schema.Validate(doc); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			if errs := extractValidationErrors(validationErr); len(errs) > 0 {
				return errs
			}
		}
		return ValidationErrors{err}
	}

	return nil
}

// Valid reports whether body satisfies the schema.
func (s *Schema) Valid(body []byte) bool {
	return s.Validate(body) == nil
}

// Validate validates a JSON string against a JSON Schema.
// Returns true if the JSON is valid. Schema and JSON parse failures are
// returned as errors.
func Validate(jsonStr, schemaStr string) (bool, error) {
	schema, err := Compile(schemaStr)
	if err != nil {
		return false, err
	}

	if !json.Valid([]byte(jsonStr)) {
		return false, fmt.Errorf("invalid JSON")
	}

	return schema.Valid([]byte(jsonStr)), nil
}

// extractValidationErrors extracts the leaf errors from a
// jsonschema.ValidationError tree.
func extractValidationErrors(err *jsonschema.ValidationError) ValidationErrors {
	var errors ValidationErrors

	if len(err.Causes) == 0 && err.Message != "" {
		errors = append(errors, fmt.Errorf("validation error at %s: %s", err.InstanceLocation, err.Message))
	}

	for _, childErr := range err.Causes {
		errors = append(errors, extractValidationErrors(childErr)...)
	}

	return errors
}
