package perf

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// ErrAlreadyRun is returned when Run is called on a controller that has
// already been used.
var ErrAlreadyRun = errors.New("run controller has already been started")

// Transport error kinds.
const (
	ErrKindTimeout  = "timeout"
	ErrKindRefused  = "refused"
	ErrKindDNS      = "dns"
	ErrKindTLS      = "tls"
	ErrKindAborted  = "aborted"
	ErrKindProtocol = "protocol"
	ErrKindOther    = "other"
)

// TransportError is returned by an Executor when no response was obtained.
// It is absorbed into the iteration outcome and never ends a run.
type TransportError struct {
	Kind string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// newTransportError classifies err into a TransportError.
func newTransportError(err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	return &TransportError{Kind: classifyTransportError(err), Err: err}
}

func classifyTransportError(err error) string {
	if errors.Is(err, context.Canceled) {
		return ErrKindAborted
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrKindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrKindDNS
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrKindRefused
	}

	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var recordErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuth) ||
		errors.As(err, &hostErr) || errors.As(err, &recordErr) {
		return ErrKindTLS
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && strings.Contains(urlErr.Err.Error(), "tls:") {
		return ErrKindTLS
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return ErrKindRefused
		}
		return ErrKindProtocol
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return ErrKindRefused
	case strings.Contains(msg, "malformed HTTP"), strings.Contains(msg, "unexpected EOF"),
		strings.Contains(msg, "server closed"), strings.Contains(msg, "EOF"):
		return ErrKindProtocol
	}
	return ErrKindOther
}

// CheckError describes a predicate that panicked instead of returning a
// result. The check is counted as failed.
type CheckError struct {
	Check     string
	Recovered interface{}
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("check %q panicked: %v", e.Check, e.Recovered)
}

// ConfigurationError reports an invalid run configuration field.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every ConfigurationError found in a RunConfig.
type ValidationErrors struct {
	Errors []*ConfigurationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}

	var msgs []string
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}

	return fmt.Sprintf("invalid run configuration:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Add appends a configuration error.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ConfigurationError{Field: field, Message: message})
}

// HasErrors reports whether any error was collected.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// As lets errors.As extract the first ConfigurationError.
func (e *ValidationErrors) As(target interface{}) bool {
	if t, ok := target.(**ConfigurationError); ok && len(e.Errors) > 0 {
		*t = e.Errors[0]
		return true
	}
	return false
}
