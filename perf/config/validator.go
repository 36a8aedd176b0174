package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/wesleyorama2/vuload/perf/threshold"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

// Validate checks the whole configuration and reports every problem found.
// It expects ApplyDefaults to have run.
//
// Returns nil if valid, or a *ValidationErrors.
func (c *TestConfig) Validate() error {
	errs := &ValidationErrors{}

	if c.VUs < 1 {
		errs.Add("vus", fmt.Sprintf("must be at least 1, got %d", c.VUs))
	}
	if c.Duration <= 0 {
		errs.Add("duration", "must be positive")
	}
	if c.GracePeriod < 0 {
		errs.Add("gracePeriod", "must not be negative")
	}

	validateRequest(&c.Request, errs)

	seen := make(map[string]int, len(c.Checks))
	for i := range c.Checks {
		field := fmt.Sprintf("checks[%d]", i)
		check := &c.Checks[i]
		if prev, dup := seen[check.Name]; dup {
			errs.Add(field+".name", fmt.Sprintf("duplicate check name %q (also checks[%d])", check.Name, prev))
		} else {
			seen[check.Name] = i
		}
		if _, err := compilePredicate(check); err != nil {
			errs.Add(field, err.Error())
		}
	}

	if c.Thresholds != nil {
		terrs := threshold.Validate(c.Thresholds)
		fields := make([]string, 0, len(terrs))
		for field := range terrs {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			errs.Add("thresholds."+field, terrs[field].Error())
		}
	}

	validateSettings(&c.Settings, errs)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateRequest(r *RequestConfig, errs *ValidationErrors) {
	if r.URL == "" {
		errs.Add("request.url", "is required")
	} else if u, err := url.Parse(r.URL); err != nil {
		errs.Add("request.url", fmt.Sprintf("invalid URL: %v", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs.Add("request.url", fmt.Sprintf("scheme must be http or https, got %q", u.Scheme))
	} else if u.Host == "" {
		errs.Add("request.url", "host is required")
	}

	if r.Method != "" && !validMethods[strings.ToUpper(r.Method)] {
		errs.Add("request.method", fmt.Sprintf("unsupported method %q", r.Method))
	}
	if r.Timeout < 0 {
		errs.Add("request.timeout", "must not be negative")
	}
}

func validateSettings(s *Settings, errs *ValidationErrors) {
	if s.Timeout < 0 {
		errs.Add("settings.timeout", "must not be negative")
	}
	if s.MaxConnsPerHost < 0 {
		errs.Add("settings.maxConnsPerHost", "must not be negative")
	}
	if s.MaxIdleConnsPerHost < 0 {
		errs.Add("settings.maxIdleConnsPerHost", "must not be negative")
	}
	if s.MaxBodyBytes < 0 {
		errs.Add("settings.maxBodyBytes", "must not be negative")
	}
}
