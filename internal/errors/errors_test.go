package errors_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/dsvault/internal/errors"
	"github.com/systmms/dsvault/pkg/vault"
)

// TestUserErrorFormatting verifies UserError displays properly
func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UserError{
		Message:    "Operation failed",
		Details:    "Connection timeout",
		Suggestion: "Check network connectivity",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "Operation failed")
	assert.Contains(t, errMsg, "Details: Connection timeout")
	assert.Contains(t, errMsg, "Try: Check network connectivity")
}

func TestUserErrorFallsBackToWrapped(t *testing.T) {
	t.Parallel()

	inner := fmt.Errorf("boom")
	err := errors.UserError{Err: inner}

	assert.Equal(t, "boom", err.Error())
	assert.ErrorIs(t, err, inner)
}

// TestConfigErrorFormatting verifies ConfigError displays with context
func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ConfigError{
		Field:      "server.address",
		Value:      "invalid-url",
		Message:    "Invalid URL format",
		Suggestion: "Use format: https://hostname:port",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "server.address")
	assert.Contains(t, errMsg, "invalid-url")
	assert.Contains(t, errMsg, "Invalid URL format")
	assert.Contains(t, errMsg, "https://hostname:port")
}

func TestEngineErrorSuggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "not authenticated", err: vault.ErrNotAuthenticated, want: "dsvault login"},
		{name: "unsupported url", err: &vault.ClientError{Kind: vault.UnsupportedURL}, want: "Supported forms"},
		{name: "unsupported return type", err: &vault.ClientError{Kind: vault.UnsupportedReturnType}, want: "string or as bytes"},
		{name: "forbidden", err: &vault.ServerError{Kind: vault.Forbidden, StatusCode: 403}, want: "permission"},
		{name: "wrapping token", err: &vault.ServerError{Kind: vault.BadRequest, StatusCode: 400, Errors: []string{"wrapping token is not valid or does not exist"}}, want: "single use"},
		{name: "not found", err: &vault.ServerError{Kind: vault.OperationFailed, StatusCode: 404}, want: "Nothing exists"},
		{name: "sealed", err: &vault.ServerError{Kind: vault.OperationFailed, StatusCode: 503}, want: "sealed"},
		{name: "timeout", err: fmt.Errorf("read: %w", context.DeadlineExceeded), want: "timed out"},
		{name: "connection refused", err: fmt.Errorf("dial tcp 127.0.0.1:8200: connect: connection refused"), want: "VAULT_ADDR"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := errors.EngineError("read", tt.err)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), "Vault error during read")
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestEngineErrorKeepsTypedErrors(t *testing.T) {
	t.Parallel()

	err := errors.EngineError("login", fmt.Errorf("login: %w", &vault.ServerError{Kind: vault.Forbidden, StatusCode: 403}))

	var se *vault.ServerError
	require.True(t, stderrors.As(err, &se))
	assert.Equal(t, vault.Forbidden, se.Kind)
	assert.ErrorIs(t, err, vault.ErrForbidden)

	assert.NoError(t, errors.EngineError("noop", nil))

	ue := errors.UserError{Message: "already friendly"}
	assert.Equal(t, ue, errors.EngineError("x", ue))
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "sealed", err: &vault.ServerError{Kind: vault.OperationFailed, StatusCode: 503}, want: true},
		{name: "rate limited", err: &vault.ServerError{Kind: vault.OperationFailed, StatusCode: 429}, want: true},
		{name: "forbidden", err: &vault.ServerError{Kind: vault.Forbidden, StatusCode: 403}, want: false},
		{name: "client error with timeout text", err: &vault.ClientError{Kind: vault.InvalidArgument, Message: "timeout must be positive"}, want: false},
		{name: "connection reset", err: fmt.Errorf("read: connection reset by peer"), want: true},
		{name: "plain", err: fmt.Errorf("boom"), want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, errors.IsRetryable(tt.err))
		})
	}
}

func TestSimplifyError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.SimplifyError(nil))

	ue := errors.UserError{Message: "x"}
	assert.Equal(t, ue, errors.SimplifyError(ue))

	yamlErr := errors.SimplifyError(fmt.Errorf("load: %w", fmt.Errorf("yaml: line 3: did not find expected key")))
	var ce errors.ConfigError
	require.True(t, stderrors.As(yamlErr, &ce))
	assert.Contains(t, ce.Message, "YAML")

	_, statErr := os.Stat("/definitely/not/here")
	simplified := errors.SimplifyError(statErr)
	assert.Contains(t, simplified.Error(), "File or directory not found")

	forbidden := fmt.Errorf("read: %w", &vault.ServerError{Kind: vault.Forbidden, StatusCode: 403, Errors: []string{"permission denied"}})
	assert.Equal(t, forbidden, errors.SimplifyError(forbidden), "vault permission errors keep their type")

	plain := fmt.Errorf("boom")
	assert.Equal(t, plain, errors.SimplifyError(plain))
}
