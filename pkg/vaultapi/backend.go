package vaultapi

import (
	"context"
	"time"
)

// Backend is one method per Vault endpoint used by dsvault.
//
// Implementations must be safe for concurrent use. Methods that act on behalf of a
// session receive the bearer token explicitly; an empty token means the request is
// sent without X-Vault-Token.
type Backend interface {
	// AppRoleLogin calls auth/<mount>/login.
	AppRoleLogin(ctx context.Context, mount, roleID, secretID string) (Outcome[*Auth], error)

	// Unwrap calls sys/wrapping/unwrap authenticated by the wrapping token itself.
	Unwrap(ctx context.Context, wrappingToken string) (Outcome[*Response], error)

	// ReadKV calls <mount>/data/<key>. A nil version reads the latest version.
	// The payload is the KV v2 envelope: {"data": {...}, "metadata": {...}}.
	ReadKV(ctx context.Context, token, mount, key string, version *int) (Outcome[map[string]interface{}], error)

	// WriteKV writes data to <mount>/data/<key> and returns the version metadata.
	WriteKV(ctx context.Context, token, mount, key string, data map[string]interface{}) (Outcome[map[string]interface{}], error)

	// ReadDatabaseCredentials calls <mount>/static-creds/<role> or <mount>/creds/<role>.
	ReadDatabaseCredentials(ctx context.Context, token, mount, role string, static bool) (Outcome[*Response], error)

	// ReadAppRoleRoleID calls auth/<mount>/role/<role>/role-id.
	ReadAppRoleRoleID(ctx context.Context, token, mount, role string) (Outcome[map[string]interface{}], error)

	// GenerateAppRoleSecretID calls auth/<mount>/role/<role>/secret-id. A positive
	// wrapTTL asks the server to response-wrap the result. Not idempotent.
	GenerateAppRoleSecretID(ctx context.Context, token, mount, role string, wrapTTL time.Duration) (Outcome[*Response], error)
}

// Response is Vault's generic response envelope.
type Response struct {
	RequestID     string                 `json:"request_id,omitempty"`
	LeaseID       string                 `json:"lease_id,omitempty"`
	LeaseDuration int                    `json:"lease_duration,omitempty"`
	Renewable     bool                   `json:"renewable,omitempty"`
	Data          map[string]interface{} `json:"data,omitempty"`
	Warnings      []string               `json:"warnings,omitempty"`
	Auth          *Auth                  `json:"auth,omitempty"`
	WrapInfo      *WrapInfo              `json:"wrap_info,omitempty"`
}

// Auth is the auth block returned by login endpoints.
type Auth struct {
	ClientToken   string            `json:"client_token"`
	Accessor      string            `json:"accessor,omitempty"`
	Policies      []string          `json:"policies,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	LeaseDuration int               `json:"lease_duration,omitempty"`
	Renewable     bool              `json:"renewable,omitempty"`
}

// WrapInfo describes a response-wrapping token.
type WrapInfo struct {
	Token           string    `json:"token"`
	Accessor        string    `json:"accessor,omitempty"`
	TTL             int       `json:"ttl"`
	CreationTime    time.Time `json:"creation_time"`
	CreationPath    string    `json:"creation_path,omitempty"`
	WrappedAccessor string    `json:"wrapped_accessor,omitempty"`
}
