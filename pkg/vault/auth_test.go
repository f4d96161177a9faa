package vault

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/dsvault/pkg/vaultapi"
	"github.com/systmms/dsvault/tests/fakes"
	"github.com/systmms/dsvault/tests/testutil"
)

func TestAuthenticate_TokenIsLocal(t *testing.T) {
	t.Parallel()

	backend := fakes.NewFakeBackend()
	client := New(backend)

	require.NoError(t, client.Authenticate(context.Background(), TokenAuth{Token: "s.static"}))

	tok, ok := client.Tokens().Get()
	assert.True(t, ok)
	assert.Equal(t, "s.static", tok)
	assert.Equal(t, 0, backend.TotalCalls())
}

func TestAuthenticate_PointerMethods(t *testing.T) {
	t.Parallel()

	backend := fakes.NewFakeBackend().
		WithAppRole("approle", "web", "role-1").
		WithSecretID("role-1", "secret-1")
	client := New(backend)

	require.NoError(t, client.Authenticate(context.Background(), &TokenAuth{Token: "s.ptr"}))
	require.NoError(t, client.Authenticate(context.Background(), &AppRoleAuth{RoleID: "role-1", SecretID: "secret-1"}))
	assert.True(t, client.IsAuthenticated())
}

func TestAuthenticate_InvalidArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method AuthMethod
		want   error
	}{
		{name: "empty token", method: TokenAuth{}, want: ErrInvalidArgument},
		{name: "nil method", method: nil, want: ErrInvalidArgument},
		{name: "empty role id", method: AppRoleAuth{SecretID: "s"}, want: ErrInvalidArgument},
		{name: "empty secret id", method: AppRoleAuth{RoleID: "r"}, want: ErrInvalidArgument},
		{name: "bad mount", method: AppRoleAuth{Mount: "my approle", RoleID: "r", SecretID: "s"}, want: ErrInvalidMountPath},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			backend := fakes.NewFakeBackend()
			client := New(backend)

			err := client.Authenticate(context.Background(), tt.method)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.False(t, client.IsAuthenticated())
			assert.Equal(t, 0, backend.TotalCalls())
		})
	}
}

func TestAuthenticate_AppRole(t *testing.T) {
	t.Parallel()

	backend := fakes.NewFakeBackend().
		WithAppRole("approle", "web", "role-1").
		WithSecretID("role-1", "secret-1")
	client := New(backend)

	err := client.Authenticate(context.Background(), AppRoleAuth{RoleID: "role-1", SecretID: "secret-1"})
	require.NoError(t, err)

	tok, ok := client.Tokens().Get()
	require.True(t, ok)
	assert.True(t, backend.HasToken(tok))
	assert.Equal(t, 1, backend.CallCount(fakes.OpAppRoleLogin))
	assert.Equal(t, 0, backend.CallCount(fakes.OpUnwrap))
}

func TestAuthenticate_AppRoleBadCredentials(t *testing.T) {
	t.Parallel()

	backend := fakes.NewFakeBackend().WithAppRole("approle", "web", "role-1")
	client := New(backend)
	client.Tokens().Set("s.previous")

	err := client.Authenticate(context.Background(), AppRoleAuth{RoleID: "role-1", SecretID: "wrong"})
	require.Error(t, err)

	var serverErr *ServerError
	require.True(t, errors.As(err, &serverErr))
	assert.Equal(t, BadRequest, serverErr.Kind)
	assert.Equal(t, []string{"invalid role or secret ID"}, serverErr.Errors)

	tok, _ := client.Tokens().Get()
	assert.Equal(t, "s.previous", tok, "failed login must not replace the session token")
}

func TestAuthenticate_AppRoleServerErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ServerErrorKind
		wantErrs []string
	}{
		{name: "forbidden", status: 403, body: `{"errors":["permission denied"]}`, wantKind: Forbidden, wantErrs: []string{"permission denied"}},
		{name: "internal", status: 500, body: `{"errors":["boom"]}`, wantKind: InternalServerError, wantErrs: []string{"boom"}},
		{name: "sealed", status: 503, body: `{"errors":["Vault is sealed"]}`, wantKind: OperationFailed, wantErrs: []string{"Vault is sealed"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			backend := fakes.NewFakeBackend().WithUndocumented(fakes.OpAppRoleLogin, tt.status, tt.body)
			client := New(backend)

			err := client.Authenticate(context.Background(), AppRoleAuth{RoleID: "r", SecretID: "s"})
			var serverErr *ServerError
			require.True(t, errors.As(err, &serverErr))
			assert.Equal(t, tt.wantKind, serverErr.Kind)
			assert.Equal(t, tt.status, serverErr.StatusCode)
			assert.Equal(t, tt.wantErrs, serverErr.Errors)
		})
	}
}

func TestAuthenticate_AppRoleTransportError(t *testing.T) {
	t.Parallel()

	transportErr := errors.New("connection refused")
	backend := fakes.NewFakeBackend().WithError(fakes.OpAppRoleLogin, transportErr)
	client := New(backend)

	err := client.Authenticate(context.Background(), AppRoleAuth{RoleID: "r", SecretID: "s"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, transportErr))
	assert.Equal(t, 1, backend.CallCount(fakes.OpAppRoleLogin), "login must not be retried")
}

func TestAuthenticate_AppRoleUnknownOutcome(t *testing.T) {
	t.Parallel()

	backend := fakes.NewFakeBackend().WithOutcomeKind(fakes.OpAppRoleLogin, vaultapi.OutcomeKind(0))
	client := New(backend)

	err := client.Authenticate(context.Background(), AppRoleAuth{RoleID: "r", SecretID: "s"})
	assert.True(t, errors.Is(err, ErrDecodingFailed))
}

func TestAuthenticate_AppRoleMissingClientToken(t *testing.T) {
	t.Parallel()

	// An OK outcome with a nil payload stands in for a login response without an auth block.
	backend := fakes.NewFakeBackend().WithOutcomeKind(fakes.OpAppRoleLogin, vaultapi.OutcomeOK)
	client := New(backend)

	err := client.Authenticate(context.Background(), AppRoleAuth{RoleID: "r", SecretID: "s"})
	assert.True(t, errors.Is(err, ErrDecodingFailed))
	assert.False(t, client.IsAuthenticated())
}

func TestAuthenticate_WrappedAppRole(t *testing.T) {
	t.Parallel()

	backend := fakes.NewFakeBackend().
		WithAppRole("approle", "web", "role-1").
		WithSecretID("role-1", "real-secret").
		WithWrappedData("s.wrapping", map[string]interface{}{
			"secret_id":          "real-secret",
			"secret_id_accessor": "acc",
		})
	client := New(backend)

	err := client.Authenticate(context.Background(), AppRoleAuth{RoleID: "role-1", SecretID: "s.wrapping", Wrapped: true})
	require.NoError(t, err)
	assert.Equal(t, 1, backend.CallCount(fakes.OpUnwrap))
	assert.Equal(t, 1, backend.CallCount(fakes.OpAppRoleLogin))

	// Wrapping tokens are single use.
	client.Logout()
	err = client.Authenticate(context.Background(), AppRoleAuth{RoleID: "role-1", SecretID: "s.wrapping", Wrapped: true})
	assert.True(t, errors.Is(err, ErrBadRequest))
}

func TestAuthenticate_WrappedAppRoleSelfWrapGuard(t *testing.T) {
	t.Parallel()

	backend := fakes.NewFakeBackend()
	client := New(backend)
	client.Tokens().Set("s.session")

	err := client.Authenticate(context.Background(), AppRoleAuth{RoleID: "r", SecretID: "s.session", Wrapped: true})
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.Equal(t, 0, backend.TotalCalls())
}

func TestAuthenticate_WrappedAppRoleWithoutSecretID(t *testing.T) {
	t.Parallel()

	backend := fakes.NewFakeBackend().WithWrappedData("s.wrapping", map[string]interface{}{"other": "x"})
	client := New(backend)

	err := client.Authenticate(context.Background(), AppRoleAuth{RoleID: "r", SecretID: "s.wrapping", Wrapped: true})
	assert.True(t, errors.Is(err, ErrDecodingFailed))
	assert.Equal(t, 0, backend.CallCount(fakes.OpAppRoleLogin))
}

func TestAuthenticate_LogsRedacted(t *testing.T) {
	t.Parallel()

	logger := testutil.NewTestLoggerWithDebug(t, true)
	client := New(fakes.NewFakeBackend(), WithLogger(logger.Logger()))

	require.NoError(t, client.Authenticate(context.Background(), TokenAuth{Token: "s.very-secret-token"}))
	logger.AssertRedacted(t, "s.very-secret-token")
}
