package report

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteJSON writes r as indented JSON. Durations are encoded in
// nanoseconds.
func WriteJSON(w io.Writer, r *Result) error {
	if r == nil {
		return fmt.Errorf("result cannot be nil")
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

// GenerateJSON writes r as JSON to path.
func GenerateJSON(r *Result, path string) error {
	if r == nil {
		return fmt.Errorf("result cannot be nil")
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}
