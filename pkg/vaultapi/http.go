package vaultapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
)

// Config configures an HTTPBackend.
type Config struct {
	// Address is the server base URL, e.g. https://vault.example.com:8200.
	Address string

	// Namespace is sent as X-Vault-Namespace on every request when set.
	Namespace string

	// Timeout bounds each HTTP request. Zero keeps the library default.
	Timeout time.Duration

	// CACert is a PEM file used to verify the server certificate.
	CACert string

	// TLSSkipVerify disables certificate verification.
	TLSSkipVerify bool

	// HTTPClient overrides the underlying HTTP client. TLS options are ignored when set.
	HTTPClient *http.Client
}

// HTTPBackend talks to Vault over HTTP.
type HTTPBackend struct {
	base      *api.Client
	namespace string
}

// NewHTTPBackend builds a backend with retries disabled and no ambient token.
func NewHTTPBackend(cfg Config) (*HTTPBackend, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("vault address is required")
	}

	apiCfg := api.DefaultConfig()
	if apiCfg.Error != nil {
		return nil, fmt.Errorf("failed to read vault environment: %w", apiCfg.Error)
	}
	apiCfg.Address = strings.TrimSuffix(cfg.Address, "/")
	apiCfg.MaxRetries = 0
	if cfg.Timeout > 0 {
		apiCfg.Timeout = cfg.Timeout
	}

	if cfg.HTTPClient != nil {
		apiCfg.HttpClient = cfg.HTTPClient
	} else if cfg.CACert != "" || cfg.TLSSkipVerify {
		if err := apiCfg.ConfigureTLS(&api.TLSConfig{
			CACert:   cfg.CACert,
			Insecure: cfg.TLSSkipVerify,
		}); err != nil {
			return nil, fmt.Errorf("failed to configure vault TLS: %w", err)
		}
	}

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	// NewClient picks up VAULT_TOKEN; the session token is owned by the caller.
	client.ClearToken()

	return &HTTPBackend{base: client, namespace: cfg.Namespace}, nil
}

// Address returns the configured server base URL.
func (b *HTTPBackend) Address() string {
	return b.base.Address()
}

// clientFor returns a per-call client carrying exactly the given bearer token.
func (b *HTTPBackend) clientFor(token string) (*api.Client, error) {
	c, err := b.base.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to clone vault client: %w", err)
	}
	if token == "" {
		c.ClearToken()
	} else {
		c.SetToken(token)
	}
	if b.namespace != "" {
		c.SetNamespace(b.namespace)
	}
	return c, nil
}

// AppRoleLogin implements Backend.
func (b *HTTPBackend) AppRoleLogin(ctx context.Context, mount, roleID, secretID string) (Outcome[*Auth], error) {
	c, err := b.clientFor("")
	if err != nil {
		return Outcome[*Auth]{}, err
	}

	secret, err := c.Logical().WriteWithContext(ctx, "auth/"+mount+"/login", map[string]interface{}{
		"role_id":   roleID,
		"secret_id": secretID,
	})
	if err != nil {
		return classify[*Auth](err)
	}
	if secret == nil {
		return Undocumented[*Auth](http.StatusNoContent, nil), nil
	}
	return OK(authFrom(secret.Auth)), nil
}

// Unwrap implements Backend.
func (b *HTTPBackend) Unwrap(ctx context.Context, wrappingToken string) (Outcome[*Response], error) {
	c, err := b.clientFor(wrappingToken)
	if err != nil {
		return Outcome[*Response]{}, err
	}

	// An empty token argument makes the library authenticate with the client token.
	secret, err := c.Logical().UnwrapWithContext(ctx, "")
	if err != nil {
		return classify[*Response](err)
	}
	if secret == nil {
		return Undocumented[*Response](http.StatusNotFound, nil), nil
	}
	return OK(responseFrom(secret)), nil
}

// ReadKV implements Backend.
func (b *HTTPBackend) ReadKV(ctx context.Context, token, mount, key string, version *int) (Outcome[map[string]interface{}], error) {
	c, err := b.clientFor(token)
	if err != nil {
		return Outcome[map[string]interface{}]{}, err
	}

	var query map[string][]string
	if version != nil {
		query = map[string][]string{"version": {strconv.Itoa(*version)}}
	}

	secret, err := c.Logical().ReadWithDataWithContext(ctx, mount+"/data/"+key, query)
	if err != nil {
		return classify[map[string]interface{}](err)
	}
	if secret == nil {
		return Undocumented[map[string]interface{}](http.StatusNotFound, nil), nil
	}
	// Deleted or destroyed versions come back as a 404 that still carries metadata.
	if secret.Data["data"] == nil {
		body, _ := json.Marshal(map[string]interface{}{"errors": []string{}, "data": secret.Data})
		return Undocumented[map[string]interface{}](http.StatusNotFound, body), nil
	}
	return OK(secret.Data), nil
}

// WriteKV implements Backend.
func (b *HTTPBackend) WriteKV(ctx context.Context, token, mount, key string, data map[string]interface{}) (Outcome[map[string]interface{}], error) {
	c, err := b.clientFor(token)
	if err != nil {
		return Outcome[map[string]interface{}]{}, err
	}

	secret, err := c.Logical().WriteWithContext(ctx, mount+"/data/"+key, map[string]interface{}{
		"data": data,
	})
	if err != nil {
		return classify[map[string]interface{}](err)
	}
	if secret == nil {
		return Undocumented[map[string]interface{}](http.StatusNoContent, nil), nil
	}
	return OK(secret.Data), nil
}

// ReadDatabaseCredentials implements Backend.
func (b *HTTPBackend) ReadDatabaseCredentials(ctx context.Context, token, mount, role string, static bool) (Outcome[*Response], error) {
	c, err := b.clientFor(token)
	if err != nil {
		return Outcome[*Response]{}, err
	}

	segment := "creds"
	if static {
		segment = "static-creds"
	}

	secret, err := c.Logical().ReadWithContext(ctx, mount+"/"+segment+"/"+role)
	if err != nil {
		return classify[*Response](err)
	}
	if secret == nil {
		return Undocumented[*Response](http.StatusNotFound, nil), nil
	}
	return OK(responseFrom(secret)), nil
}

// ReadAppRoleRoleID implements Backend.
func (b *HTTPBackend) ReadAppRoleRoleID(ctx context.Context, token, mount, role string) (Outcome[map[string]interface{}], error) {
	c, err := b.clientFor(token)
	if err != nil {
		return Outcome[map[string]interface{}]{}, err
	}

	secret, err := c.Logical().ReadWithContext(ctx, "auth/"+mount+"/role/"+role+"/role-id")
	if err != nil {
		return classify[map[string]interface{}](err)
	}
	if secret == nil {
		return Undocumented[map[string]interface{}](http.StatusNotFound, nil), nil
	}
	return OK(secret.Data), nil
}

// GenerateAppRoleSecretID implements Backend.
func (b *HTTPBackend) GenerateAppRoleSecretID(ctx context.Context, token, mount, role string, wrapTTL time.Duration) (Outcome[*Response], error) {
	c, err := b.clientFor(token)
	if err != nil {
		return Outcome[*Response]{}, err
	}

	if wrapTTL > 0 {
		ttl := strconv.Itoa(int(wrapTTL/time.Second)) + "s"
		c.SetWrappingLookupFunc(func(operation, path string) string {
			return ttl
		})
	}

	secret, err := c.Logical().WriteWithContext(ctx, "auth/"+mount+"/role/"+role+"/secret-id", map[string]interface{}{})
	if err != nil {
		return classify[*Response](err)
	}
	if secret == nil {
		return Undocumented[*Response](http.StatusNoContent, nil), nil
	}
	return OK(responseFrom(secret)), nil
}

// classify turns a library error into an outcome. Errors without an HTTP status
// are transport failures and are returned as-is.
func classify[T any](err error) (Outcome[T], error) {
	var respErr *api.ResponseError
	if !errors.As(err, &respErr) {
		return Outcome[T]{}, err
	}
	if respErr.StatusCode == http.StatusBadRequest {
		return BadRequestOutcome[T](respErr.Errors), nil
	}
	return Undocumented[T](respErr.StatusCode, errorBody(respErr)), nil
}

func errorBody(respErr *api.ResponseError) []byte {
	if respErr.RawError {
		return []byte(strings.Join(respErr.Errors, "\n"))
	}
	body, err := json.Marshal(map[string][]string{"errors": respErr.Errors})
	if err != nil {
		return nil
	}
	return body
}

func responseFrom(s *api.Secret) *Response {
	return &Response{
		RequestID:     s.RequestID,
		LeaseID:       s.LeaseID,
		LeaseDuration: s.LeaseDuration,
		Renewable:     s.Renewable,
		Data:          s.Data,
		Warnings:      s.Warnings,
		Auth:          authFrom(s.Auth),
		WrapInfo:      wrapInfoFrom(s.WrapInfo),
	}
}

func authFrom(a *api.SecretAuth) *Auth {
	if a == nil {
		return nil
	}
	return &Auth{
		ClientToken:   a.ClientToken,
		Accessor:      a.Accessor,
		Policies:      a.Policies,
		Metadata:      a.Metadata,
		LeaseDuration: a.LeaseDuration,
		Renewable:     a.Renewable,
	}
}

func wrapInfoFrom(w *api.SecretWrapInfo) *WrapInfo {
	if w == nil {
		return nil
	}
	return &WrapInfo{
		Token:           w.Token,
		Accessor:        w.Accessor,
		TTL:             w.TTL,
		CreationTime:    w.CreationTime,
		CreationPath:    w.CreationPath,
		WrappedAccessor: w.WrappedAccessor,
	}
}
