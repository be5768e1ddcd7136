// Package FAULT holds the closed set of error kinds surfaced by a session.
// Every kind is a pointer type carrying the operation that failed, and where it
// helps, the target it failed against. Secret values never reach Error().
package fault

import (
	"fmt"
	"strings"
)

// ConfigError reports a missing or unreadable local setting.
type ConfigError struct {
	Op     string
	Path   string
	Key    string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": config error")
	if e.Path != "" {
		fmt.Fprintf(&b, " in %s", e.Path)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " (key %q)", e.Key)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Reasons a secret fetch can fail.
const (
	SecretNotFound     = "not_found"
	SecretEmpty        = "empty"
	SecretMalformed    = "malformed"
	SecretUnauthorized = "unauthorized"
	SecretUnavailable  = "unavailable"
)

// SecretFetchError reports a failed read from a secret store. Vault and Name
// identify the secret; the payload is never included.
type SecretFetchError struct {
	Op     string
	Vault  string
	Name   string
	Reason string
	Err    error
}

func (e *SecretFetchError) Error() string {
	msg := fmt.Sprintf("%s: secret %q from %s: %s", e.Op, e.Name, e.Vault, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SecretFetchError) Unwrap() error { return e.Err }

// CredentialError reports that resolution could not produce complete
// Credentials. Err holds the underlying ConfigError or SecretFetchError when
// one caused it; Field names the first missing field otherwise.
type CredentialError struct {
	Op          string
	Environment string
	Field       string
	Err         error
}

func (e *CredentialError) Error() string {
	msg := fmt.Sprintf("%s: credentials unavailable (environment %s)", e.Op, e.Environment)
	if e.Field != "" {
		msg += fmt.Sprintf(": missing %s", e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CredentialError) Unwrap() error { return e.Err }

// ValidationError reports incomplete Credentials handed to the connection
// string builder.
type ValidationError struct {
	Op    string
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s is required", e.Op, e.Field)
}

// ConnectivityError reports a failed pre-flight probe.
type ConnectivityError struct {
	Op     string
	Target string
	Reason string
	Err    error
}

func (e *ConnectivityError) Error() string {
	msg := fmt.Sprintf("%s: probe of %s failed: %s", e.Op, e.Target, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// ConnectionError reports a driver or transport failure on the session
// connection.
type ConnectionError struct {
	Op     string
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	msg := e.Op + ": connection"
	if e.Target != "" {
		msg += " to " + e.Target
	}
	msg += " failed"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NotFoundError reports a query that returned no rows where at least one was
// expected. It is not a transport failure.
type NotFoundError struct {
	Op   string
	What string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: no %s found", e.Op, e.What)
}

// StatusError reports a non-2xx reply from the API under test.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}
