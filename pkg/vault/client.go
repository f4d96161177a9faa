// Package vault is the session layer of dsvault: it owns the session token,
// authenticates against a Vault-compatible server, unwraps response-wrapping
// tokens and issues the secret engine calls used by resource resolution.
//
// A Client is created unauthenticated. Every engine call reads the session token
// at the moment it is issued and fails with NotAuthenticated when none is set:
//
//	backend, err := vaultapi.NewHTTPBackend(vaultapi.Config{Address: addr})
//	if err != nil {
//		return err
//	}
//	client := vault.New(backend, vault.WithLogger(logger))
//	if err := client.Authenticate(ctx, vault.AppRoleAuth{RoleID: roleID, SecretID: wrapped, Wrapped: true}); err != nil {
//		return err
//	}
//	secret, err := client.ReadKV(ctx, vault.MustMountPath("secret"), "app/db", nil)
//
// Re-authentication replaces the token without waiting for calls already in
// flight. Those calls keep the token they started with and may fail once the
// server revokes it.
//
// No call is retried. Errors are *ClientError for local misuse and undecodable
// payloads, *ServerError for statuses reported by the server, and wrapped
// transport errors otherwise.
package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/systmms/dsvault/internal/logging"
	"github.com/systmms/dsvault/internal/metrics"
	"github.com/systmms/dsvault/pkg/vaultapi"
)

// Client is an explicit session handle. It is safe for concurrent use.
type Client struct {
	backend vaultapi.Backend
	tokens  *TokenStore
	logger  *logging.Logger
	metrics *metrics.Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Secrets are only logged through logging.Secret.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTokenStore shares an existing token store with the client.
func WithTokenStore(store *TokenStore) Option {
	return func(c *Client) {
		if store != nil {
			c.tokens = store
		}
	}
}

// New creates an unauthenticated client on top of backend.
func New(backend vaultapi.Backend, opts ...Option) *Client {
	c := &Client{
		backend: backend,
		tokens:  NewTokenStore(),
		logger:  logging.Discard(),
		metrics: metrics.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tokens returns the client's session token store.
func (c *Client) Tokens() *TokenStore {
	return c.tokens
}

// IsAuthenticated reports whether a session token is currently set.
func (c *Client) IsAuthenticated() bool {
	_, ok := c.tokens.Get()
	return ok
}

// Logout drops the session token locally. The token is not revoked.
func (c *Client) Logout() {
	c.tokens.Clear()
}

func (c *Client) sessionToken() (string, error) {
	tok, ok := c.tokens.Get()
	if !ok {
		return "", newClientError(NotAuthenticated, "authenticate before calling the server")
	}
	return tok, nil
}

// call runs one endpoint call and maps its outcome. Transport failures are
// wrapped with the operation name.
func call[T any](ctx context.Context, c *Client, operation string, fn func(context.Context) (vaultapi.Outcome[T], error)) (T, error) {
	start := time.Now()

	var payload T
	out, err := fn(ctx)
	if err != nil {
		err = fmt.Errorf("%s: %w", operation, err)
	} else {
		payload, err = fromOutcome(out)
	}

	c.metrics.RecordEngineRequest(operation, err, time.Since(start).Seconds())
	if err != nil {
		c.logger.Debug("%s failed: %v", operation, err)
	}
	return payload, err
}

// fromOutcome matches every outcome kind.
func fromOutcome[T any](out vaultapi.Outcome[T]) (T, error) {
	var zero T
	switch out.Kind {
	case vaultapi.OutcomeOK:
		return out.Payload, nil
	case vaultapi.OutcomeBadRequest:
		return zero, &ServerError{Kind: BadRequest, StatusCode: 400, Errors: out.Errors}
	case vaultapi.OutcomeUndocumented:
		return zero, serverErrorFromStatus(out.StatusCode, out.Body)
	default:
		return zero, newClientError(DecodingFailed, "unrecognised response outcome %d", int(out.Kind))
	}
}

// decodeInto converts a generic JSON object into out.
func decodeInto(in interface{}, out interface{}) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return &ClientError{Kind: DecodingFailed, Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ClientError{Kind: DecodingFailed, Err: err}
	}
	return nil
}
