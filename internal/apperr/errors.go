// Package apperr holds the error kinds that cross from the pipeline stages
// into the HTTP layer.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ClientInputError reports a missing field or an empty payload.
type ClientInputError struct {
	Message string
}

func (e *ClientInputError) Error() string { return e.Message }

// Input is a shorthand for a ClientInputError.
func Input(format string, args ...any) error {
	return &ClientInputError{Message: fmt.Sprintf(format, args...)}
}

// ResourceMissingError reports a blob (or other named resource) that does not exist.
type ResourceMissingError struct {
	Kind string
	Name string
	Err  error
}

func (e *ResourceMissingError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

func (e *ResourceMissingError) Unwrap() error { return e.Err }

// ConfigError is a broken deployment precondition. Retrying will not help.
type ConfigError struct {
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ExternalProcessError is a transcoder that could not be launched or exited
// with a non-zero status. Diagnostics holds the tail of its stderr.
type ExternalProcessError struct {
	Executable  string
	ExitCode    int
	Diagnostics []string
	SpawnErr    error
}

func (e *ExternalProcessError) Error() string {
	if e.SpawnErr != nil {
		return fmt.Sprintf("start %s: %v", e.Executable, e.SpawnErr)
	}
	return fmt.Sprintf("%s exited with status %d", e.Executable, e.ExitCode)
}

func (e *ExternalProcessError) Unwrap() error { return e.SpawnErr }

// Detail joins the captured diagnostics for operators.
func (e *ExternalProcessError) Detail() string {
	if e.SpawnErr != nil {
		return e.SpawnErr.Error()
	}
	return strings.Join(e.Diagnostics, "\n")
}

// ServiceUnreachableError means a collaborator refused or never accepted the connection.
type ServiceUnreachableError struct {
	Service string
	URL     string
	Err     error
}

func (e *ServiceUnreachableError) Error() string {
	return fmt.Sprintf("%s service unreachable at %s: %v", e.Service, e.URL, e.Err)
}

func (e *ServiceUnreachableError) Unwrap() error { return e.Err }

// Remediation is the operator hint returned alongside a 502.
func (e *ServiceUnreachableError) Remediation() string {
	return fmt.Sprintf("Could not connect to the %s service at %s. Make sure it is running and reachable from this server.", e.Service, e.URL)
}

// ServiceRejectedError is a 4xx answer from a collaborator. It is never retried.
type ServiceRejectedError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *ServiceRejectedError) Error() string {
	return fmt.Sprintf("%s service rejected the request with status %d", e.Service, e.StatusCode)
}

// ServiceFailureError is any other unsuccessful answer (5xx, malformed body).
type ServiceFailureError struct {
	Service    string
	StatusCode int
	Body       string
	Err        error
}

func (e *ServiceFailureError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s service failed with status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s service failed: %v", e.Service, e.Err)
}

func (e *ServiceFailureError) Unwrap() error { return e.Err }

// RetryExhaustedError carries the last cause after every attempt failed.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// IsConnectFailure reports whether err happened while establishing a connection.
func IsConnectFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return false
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
