package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/systmms/dsvault/pkg/vault"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// EngineError enhances Vault errors with context for the terminal.
// The original error stays reachable through errors.Is and errors.As.
func EngineError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var ue UserError
	if errors.As(err, &ue) {
		return err
	}
	return UserError{
		Message:    fmt.Sprintf("Vault error during %s", operation),
		Details:    err.Error(),
		Suggestion: engineSuggestion(err),
		Err:        err,
	}
}

// engineSuggestion returns helpful suggestions based on the error taxonomy
func engineSuggestion(err error) string {
	var ce *vault.ClientError
	if errors.As(err, &ce) {
		switch ce.Kind {
		case vault.NotAuthenticated:
			return "Run 'dsvault login' first, or set VAULT_TOKEN"
		case vault.InvalidMountPath:
			return "Mount paths are slash separated names such as 'secret' or 'team/kv'"
		case vault.UnsupportedURL:
			return "Check the URI. Supported forms: vault:/<kv-mount>/<key>?version=N, vault:/<db-mount>/creds/<role>, vault:/<db-mount>/static-creds/<role>"
		case vault.UnsupportedReturnType:
			return "Request the value as a string or as bytes"
		case vault.DecodingFailed:
			return "Vault returned an unexpected payload. Check the mount is the expected engine type"
		}
		return ""
	}

	var se *vault.ServerError
	if errors.As(err, &se) {
		switch se.Kind {
		case vault.Forbidden:
			return "Token lacks permission or has expired. Check the token policies with 'vault token lookup'"
		case vault.BadRequest:
			if strings.Contains(strings.Join(se.Errors, " "), "wrapping token") {
				return "Wrapping tokens are single use. Request a new wrapped secret"
			}
			return "Vault rejected the request. Verify the role, key and credentials"
		case vault.InternalServerError:
			return "Vault reported an internal error. Check the server logs"
		case vault.OperationFailed:
			if se.StatusCode == 404 {
				return "Nothing exists at that path. Verify the mount, key and version"
			}
			if se.StatusCode == 503 {
				return "Vault is sealed or in standby. Unseal it or target the active node"
			}
		}
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "The operation timed out. Check Vault connectivity or increase server.timeout_ms"
	}

	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check VAULT_ADDR and your network"
	}
	if strings.Contains(errStr, "certificate") {
		return "TLS verification failed. Set VAULT_CACERT or server.ca_cert"
	}

	return ""
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var se *vault.ServerError
	if errors.As(err, &se) {
		return se.StatusCode == 429 || se.StatusCode == 502 || se.StatusCode == 503 || se.StatusCode == 504
	}
	if errors.As(err, new(*vault.ClientError)) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"rate limit",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	if _, ok := err.(UserError); ok {
		return err
	}
	if _, ok := err.(ConfigError); ok {
		return err
	}

	// Root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") && !errors.As(err, new(*vault.ServerError)) {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
