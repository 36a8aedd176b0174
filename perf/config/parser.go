package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/vuload/perf"
)

// Default values applied by ApplyDefaults.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "vuload/1.0"
)

// LoadConfig loads a test configuration from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
//
// Returns the parsed TestConfig or an error if parsing fails.
func LoadConfig(path string) (*TestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data, path)
}

// ParseConfig parses configuration data.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension.
func ParseConfig(data []byte, path string) (*TestConfig, error) {
	var config TestConfig

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		// Try YAML by default
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config (unknown format %s): %w", ext, err)
		}
	}

	return &config, nil
}

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as integer: "30" (treated as 30 seconds)
func ParseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	if seconds, err := strconv.Atoi(s); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// ApplyDefaults applies default values to a TestConfig.
func ApplyDefaults(config *TestConfig) {
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = Duration(DefaultTimeout)
	}
	if config.Settings.MaxConnsPerHost == 0 {
		config.Settings.MaxConnsPerHost = config.VUs
	}
	if config.Settings.MaxIdleConnsPerHost == 0 {
		config.Settings.MaxIdleConnsPerHost = config.Settings.MaxConnsPerHost
	}
	if config.Settings.MaxBodyBytes == 0 {
		config.Settings.MaxBodyBytes = perf.DefaultMaxBodyBytes
	}
	if config.Settings.UserAgent == "" {
		config.Settings.UserAgent = DefaultUserAgent
	}
	if config.GracePeriod == 0 {
		config.GracePeriod = Duration(perf.DefaultGracePeriod)
	}

	if config.Request.Method == "" {
		config.Request.Method = "GET"
	}
	config.Request.Method = strings.ToUpper(config.Request.Method)

	for i := range config.Checks {
		applyCheckDefaults(&config.Checks[i])
	}
}

// applyCheckDefaults fills in the condition and a readable name.
func applyCheckDefaults(c *CheckConfig) {
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	c.Condition = strings.ToLower(strings.TrimSpace(c.Condition))

	if c.Condition == "" {
		switch c.Type {
		case CheckStatus:
			c.Condition = CondEq
		case CheckBody:
			c.Condition = CondContains
		case CheckHeader, CheckJSONPath:
			if c.Value == "" {
				c.Condition = CondExists
			} else {
				c.Condition = CondEq
			}
		case CheckSchema:
			c.Condition = CondValid
		case CheckDuration:
			c.Condition = CondLt
		}
	}

	if c.Name == "" {
		c.Name = defaultCheckName(c)
	}
}

// defaultCheckName names a check the way a person would describe it, e.g.
// `Status is 200` or `Response contains "succ"`.
func defaultCheckName(c *CheckConfig) string {
	switch c.Type {
	case CheckStatus:
		switch c.Condition {
		case CondEq:
			return "Status is " + c.Value
		case CondIn:
			return "Status in " + c.Value
		}
		return fmt.Sprintf("Status %s %s", c.Condition, c.Value)
	case CheckBody:
		switch c.Condition {
		case CondContains:
			return fmt.Sprintf("Response contains %q", c.Value)
		case CondNotContains:
			return fmt.Sprintf("Response does not contain %q", c.Value)
		}
		return fmt.Sprintf("Response %s %q", c.Condition, c.Value)
	case CheckHeader, CheckJSONPath:
		if c.Condition == CondExists {
			return fmt.Sprintf("%s %s exists", c.Type, c.Path)
		}
		return fmt.Sprintf("%s %s %s %q", c.Type, c.Path, c.Condition, c.Value)
	case CheckSchema:
		return "Response matches schema"
	case CheckDuration:
		return fmt.Sprintf("Duration %s %s", c.Condition, c.Value)
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s %s", c.Type, c.Condition, c.Value))
}

// ToRunConfig converts the configuration into a perf.RunConfig, compiling
// every check. Call ApplyDefaults and Validate first.
func (c *TestConfig) ToRunConfig() (*perf.RunConfig, error) {
	headers := make(map[string]string, len(c.Settings.Headers)+len(c.Request.Headers))
	for k, v := range c.Settings.Headers {
		headers[k] = v
	}
	for k, v := range c.Request.Headers {
		headers[k] = v
	}

	checks := make([]perf.Check, 0, len(c.Checks))
	for i := range c.Checks {
		check, err := CompileCheck(&c.Checks[i])
		if err != nil {
			return nil, fmt.Errorf("checks[%d]: %w", i, err)
		}
		checks = append(checks, check)
	}

	return &perf.RunConfig{
		Name:        c.Name,
		VUs:         c.VUs,
		Duration:    time.Duration(c.Duration),
		GracePeriod: time.Duration(c.GracePeriod),
		Request: perf.RequestDescriptor{
			Method:  c.Request.Method,
			URL:     c.Request.URL,
			Headers: headers,
			Body:    c.Request.Body,
			Timeout: time.Duration(c.Request.Timeout),
		},
		Checks: checks,
		HTTP: perf.HTTPClientConfig{
			Timeout:             time.Duration(c.Settings.Timeout),
			MaxConnsPerHost:     c.Settings.MaxConnsPerHost,
			MaxIdleConnsPerHost: c.Settings.MaxIdleConnsPerHost,
			InsecureSkipVerify:  c.Settings.InsecureSkipVerify,
			DisableKeepAlives:   c.Settings.DisableKeepAlives,
			DisableCompression:  c.Settings.DisableCompression,
			MaxBodyBytes:        c.Settings.MaxBodyBytes,
			UserAgent:           c.Settings.UserAgent,
		},
	}, nil
}
