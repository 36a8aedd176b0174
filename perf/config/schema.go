package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/vuload/perf/threshold"
)

// TestConfig is the root configuration for a load run.
type TestConfig struct {
	// Name of the run (for reporting)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Description of the run (optional)
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// VUs is the fixed number of virtual users
	VUs int `json:"vus" yaml:"vus"`

	// Duration is how long VUs keep iterating (e.g., "30s", "1m")
	Duration Duration `json:"duration" yaml:"duration"`

	// GracePeriod is how long in-flight iterations may finish after Duration
	GracePeriod Duration `json:"gracePeriod,omitempty" yaml:"gracePeriod,omitempty"`

	// Request is issued once per iteration
	Request RequestConfig `json:"request" yaml:"request"`

	// Checks are evaluated against every response, in order
	Checks []CheckConfig `json:"checks,omitempty" yaml:"checks,omitempty"`

	// Thresholds define pass/fail criteria for the run
	Thresholds *threshold.Config `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`

	// Settings contains HTTP client settings
	Settings Settings `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// RequestConfig defines the HTTP request.
type RequestConfig struct {
	// HTTP method, defaults to GET
	Method string `json:"method,omitempty" yaml:"method,omitempty"`

	URL string `json:"url" yaml:"url"`

	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	Body string `json:"body,omitempty" yaml:"body,omitempty"`

	// Timeout for this request, overrides settings.timeout when shorter
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// CheckConfig defines a declarative check.
type CheckConfig struct {
	// Name identifies the check in reports; generated when empty
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Type is what to check: "status", "body", "header", "jsonpath", "schema", "duration"
	Type string `json:"type" yaml:"type"`

	// Condition is the comparison, e.g. "eq", "contains", "matches"
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// Value is the expected value
	Value string `json:"value,omitempty" yaml:"value,omitempty"`

	// Path is the header name for header checks or the JSONPath for jsonpath checks
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Settings contains HTTP client settings.
type Settings struct {
	// Timeout is the default HTTP request timeout
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// MaxConnsPerHost limits connections per host (default: one per VU)
	MaxConnsPerHost int `json:"maxConnsPerHost,omitempty" yaml:"maxConnsPerHost,omitempty"`

	// MaxIdleConnsPerHost limits idle connections per host
	MaxIdleConnsPerHost int `json:"maxIdleConnsPerHost,omitempty" yaml:"maxIdleConnsPerHost,omitempty"`

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`

	// DisableKeepAlives disables HTTP keep-alives
	DisableKeepAlives bool `json:"disableKeepAlives,omitempty" yaml:"disableKeepAlives,omitempty"`

	// DisableCompression disables automatic decompression
	DisableCompression bool `json:"disableCompression,omitempty" yaml:"disableCompression,omitempty"`

	// MaxBodyBytes caps the response bytes kept for checks
	MaxBodyBytes int64 `json:"maxBodyBytes,omitempty" yaml:"maxBodyBytes,omitempty"`

	// UserAgent is the User-Agent header value
	UserAgent string `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`

	// Headers are sent with every request unless the request overrides them
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML
// strings such as "30s". Bare integers are read as seconds.
type Duration time.Duration

// GetDuration returns the duration or a default if empty.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*d = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}

	dur, err := ParseDurationString(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}
