// Package testconfig builds dsvault configurations for tests.
//
// It lives apart from testutil because it imports internal/config, which
// pkg/vault tests must not depend on.
package testconfig

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/systmms/dsvault/internal/config"
	"github.com/systmms/dsvault/internal/logging"
)

// TestConfigBuilder provides a fluent API for building test configurations.
//
// It writes a dsvault.yaml into a temporary directory and returns a
// config.Config whose environment is a private map, so tests never touch
// the process environment.
//
// Example usage:
//
//	cfg := testconfig.NewTestConfig(t).
//	    WithKVMounts("secret").
//	    WithToken("s.root").
//	    Build()
type TestConfigBuilder struct {
	def    *config.Definition
	env    map[string]string
	logger *logging.Logger
	t      *testing.T
}

// NewTestConfig creates a builder pointing at http://127.0.0.1:8200.
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	return &TestConfigBuilder{
		def: &config.Definition{
			Server: config.ServerConfig{Address: "http://127.0.0.1:8200"},
		},
		env:    make(map[string]string),
		logger: logging.NewWithWriter(io.Discard, false, true),
		t:      t,
	}
}

// WithAddress sets server.address.
func (b *TestConfigBuilder) WithAddress(address string) *TestConfigBuilder {
	b.def.Server.Address = address
	return b
}

// WithKVMounts adds KV v2 reader mounts.
func (b *TestConfigBuilder) WithKVMounts(mounts ...string) *TestConfigBuilder {
	b.def.Resources.KVMounts = append(b.def.Resources.KVMounts, mounts...)
	return b
}

// WithDatabase adds a database mount and the database behind it.
func (b *TestConfigBuilder) WithDatabase(mount string, db config.DatabaseConfig) *TestConfigBuilder {
	b.def.Resources.DatabaseMounts = append(b.def.Resources.DatabaseMounts, mount)
	if b.def.Databases == nil {
		b.def.Databases = make(map[string]config.DatabaseConfig)
	}
	b.def.Databases[mount] = db
	return b
}

// WithUnwrap enables sys/wrapping/unwrap references.
func (b *TestConfigBuilder) WithUnwrap() *TestConfigBuilder {
	b.def.Resources.Unwrap = true
	return b
}

// WithToken exports VAULT_TOKEN.
func (b *TestConfigBuilder) WithToken(token string) *TestConfigBuilder {
	return b.WithEnv("VAULT_TOKEN", token)
}

// WithTokenKeychain reads the token from an OS keychain item.
func (b *TestConfigBuilder) WithTokenKeychain(service, account string) *TestConfigBuilder {
	b.def.Auth.TokenKeychain = &config.KeychainRef{Service: service, Account: account}
	return b
}

// WithAppRole configures AppRole login on the default mount.
func (b *TestConfigBuilder) WithAppRole(roleID, secretID string, wrapped bool) *TestConfigBuilder {
	b.def.Auth.Method = "approle"
	b.def.Auth.AppRole = config.AppRoleConfig{RoleID: roleID, SecretID: secretID, Wrapped: wrapped}
	return b
}

// WithEnv sets a variable in the builder's private environment.
func (b *TestConfigBuilder) WithEnv(key, value string) *TestConfigBuilder {
	b.env[key] = value
	return b
}

// WithLogger replaces the discarding logger.
func (b *TestConfigBuilder) WithLogger(logger *logging.Logger) *TestConfigBuilder {
	b.logger = logger
	return b
}

// Definition returns the in-memory definition.
func (b *TestConfigBuilder) Definition() *config.Definition {
	return b.def
}

// Write marshals the definition to dsvault.yaml in a temporary directory
// and returns the path.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	data, err := yaml.Marshal(b.def)
	if err != nil {
		b.t.Fatalf("Failed to marshal test config: %v", err)
	}
	return WriteTestConfig(b.t, string(data))
}

// Build writes the file and returns a Config ready for Prepare.
func (b *TestConfigBuilder) Build() *config.Config {
	b.t.Helper()

	env := make(map[string]string, len(b.env))
	for k, v := range b.env {
		env[k] = v
	}
	return &config.Config{
		Path:   b.Write(),
		Logger: b.logger,
		Getenv: func(key string) string { return env[key] },
	}
}

// WriteTestConfig writes a YAML string to dsvault.yaml in a temporary directory.
func WriteTestConfig(t *testing.T, yamlContent string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "dsvault.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}
