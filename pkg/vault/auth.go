package vault

import (
	"context"
	"fmt"

	"github.com/systmms/dsvault/internal/logging"
	"github.com/systmms/dsvault/pkg/vaultapi"
)

// DefaultAppRoleMount is the mount used when AppRoleAuth.Mount is empty.
const DefaultAppRoleMount = "approle"

// AuthMethod is a login method accepted by Client.Authenticate.
// It is implemented only by TokenAuth and AppRoleAuth.
type AuthMethod interface {
	methodName() string
}

// TokenAuth installs a static token. No request is sent; the server
// reports an invalid token on first use.
type TokenAuth struct {
	Token string
}

func (TokenAuth) methodName() string { return "token" }

// AppRoleAuth logs in with a role ID and secret ID. When Wrapped is set,
// SecretID is a response-wrapping token holding the real secret ID.
type AppRoleAuth struct {
	Mount    string
	RoleID   string
	SecretID string
	Wrapped  bool
}

func (AppRoleAuth) methodName() string { return "approle" }

// Authenticate logs in with method and replaces the session token on success.
// On failure the previous token, if any, is left in place.
func (c *Client) Authenticate(ctx context.Context, method AuthMethod) error {
	var err error
	name := "unknown"

	switch m := method.(type) {
	case TokenAuth:
		name = m.methodName()
		err = c.authenticateToken(m)
	case *TokenAuth:
		name = m.methodName()
		err = c.authenticateToken(*m)
	case AppRoleAuth:
		name = m.methodName()
		err = c.authenticateAppRole(ctx, m)
	case *AppRoleAuth:
		name = m.methodName()
		err = c.authenticateAppRole(ctx, *m)
	default:
		err = newClientError(InvalidArgument, "unsupported auth method %T", method)
	}

	c.metrics.RecordLogin(name, err)
	return err
}

func (c *Client) authenticateToken(m TokenAuth) error {
	if m.Token == "" {
		return newClientError(InvalidArgument, "token is empty")
	}
	c.tokens.Set(m.Token)
	c.logger.Debug("installed static token %s", logging.Secret(m.Token))
	return nil
}

func (c *Client) authenticateAppRole(ctx context.Context, m AppRoleAuth) error {
	mountName := m.Mount
	if mountName == "" {
		mountName = DefaultAppRoleMount
	}
	mount, err := ParseMountPath(mountName)
	if err != nil {
		return err
	}
	if m.RoleID == "" {
		return newClientError(InvalidArgument, "role ID is empty")
	}
	if m.SecretID == "" {
		return newClientError(InvalidArgument, "secret ID is empty")
	}

	secretID := m.SecretID
	if m.Wrapped {
		payload, err := Unwrap[AppRoleSecretID](ctx, c, m.SecretID)
		if err != nil {
			return fmt.Errorf("failed to unwrap secret ID: %w", err)
		}
		if payload.SecretID == "" {
			return newClientError(DecodingFailed, "wrapped payload has no secret_id")
		}
		secretID = payload.SecretID
	}

	auth, err := call(ctx, c, "approle_login", func(ctx context.Context) (vaultapi.Outcome[*vaultapi.Auth], error) {
		return c.backend.AppRoleLogin(ctx, mount.String(), m.RoleID, secretID)
	})
	if err != nil {
		return err
	}
	if auth == nil || auth.ClientToken == "" {
		return newClientError(DecodingFailed, "login response has no client_token")
	}

	c.tokens.Set(auth.ClientToken)
	c.logger.Debug("logged in via %s with role %s", mount, logging.Secret(m.RoleID))
	return nil
}
