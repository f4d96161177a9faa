package vault

import (
	"context"
	"time"

	"github.com/systmms/dsvault/pkg/vaultapi"
)

// KVSecret is one version of a KV v2 secret.
type KVSecret struct {
	Data     map[string]interface{}
	Metadata KVMetadata
}

// KVMetadata describes a KV v2 secret version.
type KVMetadata struct {
	Version        int               `json:"version"`
	CreatedTime    time.Time         `json:"created_time"`
	DeletionTime   string            `json:"deletion_time"`
	Destroyed      bool              `json:"destroyed"`
	CustomMetadata map[string]string `json:"custom_metadata"`
}

// ReadKV reads key from the KV v2 engine at mount. A nil version reads the latest.
func (c *Client) ReadKV(ctx context.Context, mount MountPath, key string, version *int) (*KVSecret, error) {
	if err := checkKey(mount, key); err != nil {
		return nil, err
	}
	if version != nil && *version < 0 {
		return nil, newClientError(InvalidArgument, "version %d is negative", *version)
	}
	token, err := c.sessionToken()
	if err != nil {
		return nil, err
	}

	payload, err := call(ctx, c, "kv_read", func(ctx context.Context) (vaultapi.Outcome[map[string]interface{}], error) {
		return c.backend.ReadKV(ctx, token, mount.String(), key, version)
	})
	if err != nil {
		return nil, err
	}

	data, ok := payload["data"].(map[string]interface{})
	if !ok {
		return nil, newClientError(DecodingFailed, "kv response for %s/%s has no data object", mount, key)
	}

	secret := &KVSecret{Data: data}
	if meta, ok := payload["metadata"]; ok && meta != nil {
		if err := decodeInto(meta, &secret.Metadata); err != nil {
			return nil, err
		}
	}
	return secret, nil
}

// WriteKV writes a new version of key and returns its metadata.
func (c *Client) WriteKV(ctx context.Context, mount MountPath, key string, data map[string]interface{}) (*KVMetadata, error) {
	if err := checkKey(mount, key); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	token, err := c.sessionToken()
	if err != nil {
		return nil, err
	}

	payload, err := call(ctx, c, "kv_write", func(ctx context.Context) (vaultapi.Outcome[map[string]interface{}], error) {
		return c.backend.WriteKV(ctx, token, mount.String(), key, data)
	})
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, newClientError(DecodingFailed, "kv write response for %s/%s is empty", mount, key)
	}

	var meta KVMetadata
	if err := decodeInto(payload, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// DatabaseRoleKind distinguishes static from dynamic database roles.
type DatabaseRoleKind int

const (
	// StaticRole credentials belong to a fixed username rotated by the server.
	StaticRole DatabaseRoleKind = iota + 1
	// DynamicRole credentials are minted per request with a lease.
	DynamicRole
)

func (k DatabaseRoleKind) String() string {
	switch k {
	case StaticRole:
		return "static"
	case DynamicRole:
		return "dynamic"
	default:
		return "unknown"
	}
}

// DatabaseRole names a role on a database secrets engine.
type DatabaseRole struct {
	Kind DatabaseRoleKind
	Name string
}

// StaticDatabaseRole returns a static role reference.
func StaticDatabaseRole(name string) DatabaseRole {
	return DatabaseRole{Kind: StaticRole, Name: name}
}

// DynamicDatabaseRole returns a dynamic role reference.
func DynamicDatabaseRole(name string) DatabaseRole {
	return DatabaseRole{Kind: DynamicRole, Name: name}
}

// DatabaseCredentials is the result of a credential read.
type DatabaseCredentials struct {
	Username      string
	Password      string
	Data          map[string]interface{}
	LeaseID       string
	LeaseDuration time.Duration
	Renewable     bool
}

// ReadDatabaseCredentials reads credentials for role from the database engine at mount.
func (c *Client) ReadDatabaseCredentials(ctx context.Context, mount MountPath, role DatabaseRole) (*DatabaseCredentials, error) {
	if mount.IsZero() {
		return nil, newClientError(InvalidMountPath, "mount path is not set")
	}
	if role.Name == "" {
		return nil, newClientError(InvalidArgument, "database role name is empty")
	}
	if role.Kind != StaticRole && role.Kind != DynamicRole {
		return nil, newClientError(InvalidArgument, "database role kind %d is invalid", int(role.Kind))
	}
	token, err := c.sessionToken()
	if err != nil {
		return nil, err
	}

	resp, err := call(ctx, c, "database_creds_read", func(ctx context.Context) (vaultapi.Outcome[*vaultapi.Response], error) {
		return c.backend.ReadDatabaseCredentials(ctx, token, mount.String(), role.Name, role.Kind == StaticRole)
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Data == nil {
		return nil, newClientError(DecodingFailed, "credential response for %s/%s has no data", mount, role.Name)
	}

	var fields struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeInto(resp.Data, &fields); err != nil {
		return nil, err
	}

	return &DatabaseCredentials{
		Username:      fields.Username,
		Password:      fields.Password,
		Data:          resp.Data,
		LeaseID:       resp.LeaseID,
		LeaseDuration: time.Duration(resp.LeaseDuration) * time.Second,
		Renewable:     resp.Renewable,
	}, nil
}

// AppRoleSecretID is a generated AppRole secret ID.
type AppRoleSecretID struct {
	SecretID string `json:"secret_id"`
	Accessor string `json:"secret_id_accessor"`
	TTL      int    `json:"secret_id_ttl"`
	NumUses  int    `json:"secret_id_num_uses"`
}

// ReadAppRoleID returns the role ID of role on the AppRole mount.
func (c *Client) ReadAppRoleID(ctx context.Context, mount MountPath, role string) (string, error) {
	if err := checkRole(mount, role); err != nil {
		return "", err
	}
	token, err := c.sessionToken()
	if err != nil {
		return "", err
	}

	payload, err := call(ctx, c, "approle_role_id_read", func(ctx context.Context) (vaultapi.Outcome[map[string]interface{}], error) {
		return c.backend.ReadAppRoleRoleID(ctx, token, mount.String(), role)
	})
	if err != nil {
		return "", err
	}

	roleID, ok := payload["role_id"].(string)
	if !ok || roleID == "" {
		return "", newClientError(DecodingFailed, "role-id response for %s has no role_id", role)
	}
	return roleID, nil
}

// GenerateAppRoleSecretID creates a new secret ID for role. The call is not
// idempotent and is never retried.
func (c *Client) GenerateAppRoleSecretID(ctx context.Context, mount MountPath, role string) (AppRoleSecretID, error) {
	resp, err := c.generateSecretID(ctx, mount, role, 0)
	if err != nil {
		return AppRoleSecretID{}, err
	}
	if resp == nil || resp.Data == nil {
		return AppRoleSecretID{}, newClientError(DecodingFailed, "secret-id response for %s has no data", role)
	}

	var out AppRoleSecretID
	if err := decodeInto(resp.Data, &out); err != nil {
		return AppRoleSecretID{}, err
	}
	if out.SecretID == "" {
		return AppRoleSecretID{}, newClientError(DecodingFailed, "secret-id response for %s has no secret_id", role)
	}
	return out, nil
}

// GenerateWrappedAppRoleSecretID creates a new secret ID for role and has the
// server wrap it for ttl. The call is not idempotent and is never retried.
func (c *Client) GenerateWrappedAppRoleSecretID(ctx context.Context, mount MountPath, role string, ttl time.Duration) (Wrapped[AppRoleSecretID], error) {
	if ttl < time.Second {
		return Wrapped[AppRoleSecretID]{}, newClientError(InvalidArgument, "wrap TTL %s is shorter than one second", ttl)
	}

	resp, err := c.generateSecretID(ctx, mount, role, ttl)
	if err != nil {
		return Wrapped[AppRoleSecretID]{}, err
	}
	if resp == nil || resp.WrapInfo == nil || resp.WrapInfo.Token == "" {
		return Wrapped[AppRoleSecretID]{}, newClientError(DecodingFailed, "secret-id response for %s is not wrapped", role)
	}
	return wrappedFrom[AppRoleSecretID](resp.WrapInfo), nil
}

func (c *Client) generateSecretID(ctx context.Context, mount MountPath, role string, wrapTTL time.Duration) (*vaultapi.Response, error) {
	if err := checkRole(mount, role); err != nil {
		return nil, err
	}
	token, err := c.sessionToken()
	if err != nil {
		return nil, err
	}

	return call(ctx, c, "approle_secret_id_generate", func(ctx context.Context) (vaultapi.Outcome[*vaultapi.Response], error) {
		return c.backend.GenerateAppRoleSecretID(ctx, token, mount.String(), role, wrapTTL)
	})
}

func checkKey(mount MountPath, key string) error {
	if mount.IsZero() {
		return newClientError(InvalidMountPath, "mount path is not set")
	}
	if key == "" {
		return newClientError(InvalidArgument, "secret key is empty")
	}
	return nil
}

func checkRole(mount MountPath, role string) error {
	if mount.IsZero() {
		return newClientError(InvalidMountPath, "mount path is not set")
	}
	if role == "" {
		return newClientError(InvalidArgument, "role name is empty")
	}
	return nil
}
