package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	dserrors "github.com/systmms/dsvault/internal/errors"
	"github.com/systmms/dsvault/internal/logging"
	"github.com/systmms/dsvault/pkg/vault"
)

// DefaultPath is the configuration file looked up when --config is not given.
const DefaultPath = "dsvault.yaml"

// DefaultTimeoutMs bounds a single Vault read.
const DefaultTimeoutMs = 30000

// Config holds the runtime configuration
type Config struct {
	Path   string
	Logger *logging.Logger
	// Optional makes a missing file load as an empty definition.
	Optional bool
	// Getenv reads environment overrides. Nil means os.Getenv.
	Getenv     func(string) string
	Definition *Definition
}

// Definition represents the dsvault.yaml structure
type Definition struct {
	Version   int                       `yaml:"version" json:"version"`
	Server    ServerConfig              `yaml:"server" json:"server"`
	Auth      AuthConfig                `yaml:"auth" json:"auth"`
	Resources ResourcesConfig           `yaml:"resources" json:"resources"`
	Databases map[string]DatabaseConfig `yaml:"databases,omitempty" json:"databases,omitempty"`
	Metrics   MetricsConfig             `yaml:"metrics" json:"metrics"`
}

// ServerConfig describes how to reach Vault
type ServerConfig struct {
	Address       string `yaml:"address" json:"address,omitempty"`
	Namespace     string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	TimeoutMs     int    `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
	TLSSkipVerify bool   `yaml:"tls_skip,omitempty" json:"tls_skip,omitempty"`
	CACert        string `yaml:"ca_cert,omitempty" json:"ca_cert,omitempty"`
}

// AuthConfig selects and configures the login method
type AuthConfig struct {
	Method        string        `yaml:"method,omitempty" json:"method,omitempty"`
	Token         string        `yaml:"token,omitempty" json:"token,omitempty"`
	TokenKeychain *KeychainRef  `yaml:"token_keychain,omitempty" json:"token_keychain,omitempty"`
	AppRole       AppRoleConfig `yaml:"approle,omitempty" json:"approle,omitempty"`
}

// AppRoleConfig holds AppRole credentials
type AppRoleConfig struct {
	Mount            string       `yaml:"mount,omitempty" json:"mount,omitempty"`
	RoleID           string       `yaml:"role_id,omitempty" json:"role_id,omitempty"`
	SecretID         string       `yaml:"secret_id,omitempty" json:"secret_id,omitempty"`
	Wrapped          bool         `yaml:"wrapped,omitempty" json:"wrapped,omitempty"`
	SecretIDKeychain *KeychainRef `yaml:"secret_id_keychain,omitempty" json:"secret_id_keychain,omitempty"`
}

// KeychainRef names an OS keychain item
type KeychainRef struct {
	Service string `yaml:"service" json:"service"`
	Account string `yaml:"account" json:"account"`
}

// ResourcesConfig lists the mounts resource URIs may address
type ResourcesConfig struct {
	Scheme         string   `yaml:"scheme,omitempty" json:"scheme,omitempty"`
	KVMounts       []string `yaml:"kv_mounts,omitempty" json:"kv_mounts,omitempty"`
	KVDataMounts   []string `yaml:"kv_data_mounts,omitempty" json:"kv_data_mounts,omitempty"`
	DatabaseMounts []string `yaml:"database_mounts,omitempty" json:"database_mounts,omitempty"`
	Unwrap         bool     `yaml:"unwrap,omitempty" json:"unwrap,omitempty"`
	Concurrency    int      `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
}

// DatabaseConfig describes the database behind a database secrets mount
type DatabaseConfig struct {
	Type     string `yaml:"type" json:"type"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port,omitempty" json:"port,omitempty"`
	Database string `yaml:"database,omitempty" json:"database,omitempty"`
	SSLMode  string `yaml:"sslmode,omitempty" json:"sslmode,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Port    int    `yaml:"port,omitempty" json:"port,omitempty"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
}

// Load reads, validates and parses the dsvault.yaml file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			if c.Optional {
				c.Definition = &Definition{}
				return nil
			}
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create dsvault.yaml or set VAULT_ADDR and VAULT_TOKEN",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	def, err := Parse(data)
	if err != nil {
		return err
	}
	c.Definition = def
	return nil
}

// Prepare loads the file, applies environment overrides and validates the result
func (c *Config) Prepare() error {
	if err := c.Load(); err != nil {
		return err
	}
	getenv := c.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := c.ApplyEnv(getenv); err != nil {
		return err
	}
	return c.Validate()
}

// Parse validates data against the schema and decodes it
func Parse(data []byte) (*Definition, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if raw == nil {
		return &Definition{}, nil
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, dserrors.ConfigError{
			Message:    err.Error(),
			Suggestion: "Check value types against the documented configuration format",
		}
	}

	if def.Version != 0 {
		return nil, dserrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your dsvault.yaml file",
		}
	}

	return &def, nil
}

// ApplyEnv overlays the standard Vault environment variables. Environment wins
// over the file.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if c.Definition == nil {
		c.Definition = &Definition{}
	}
	d := c.Definition

	if v := getenv("VAULT_ADDR"); v != "" {
		d.Server.Address = v
	}
	if v := getenv("VAULT_NAMESPACE"); v != "" {
		d.Server.Namespace = v
	}
	if v := getenv("VAULT_CACERT"); v != "" {
		d.Server.CACert = v
	}
	if v := getenv("VAULT_SKIP_VERIFY"); v != "" {
		skip, err := strconv.ParseBool(v)
		if err != nil {
			return dserrors.ConfigError{
				Field:      "VAULT_SKIP_VERIFY",
				Value:      v,
				Message:    "not a boolean",
				Suggestion: "Use true or false",
			}
		}
		d.Server.TLSSkipVerify = skip
	}
	if v := getenv("VAULT_TOKEN"); v != "" {
		d.Auth.Token = v
		if d.Auth.Method == "" {
			d.Auth.Method = "token"
		}
	}
	return nil
}

// Validate checks the settings needed to talk to Vault
func (c *Config) Validate() error {
	if c.Definition == nil {
		return dserrors.UserError{
			Message:    "Configuration not loaded",
			Suggestion: "This is an internal error. Please report it",
		}
	}
	d := c.Definition

	if strings.TrimSpace(d.Server.Address) == "" {
		return dserrors.ConfigError{
			Field:      "server.address",
			Message:    "Vault address is required",
			Suggestion: "Set server.address in dsvault.yaml or export VAULT_ADDR",
		}
	}

	for field, mounts := range map[string][]string{
		"resources.kv_mounts":       d.Resources.KVMounts,
		"resources.kv_data_mounts":  d.Resources.KVDataMounts,
		"resources.database_mounts": d.Resources.DatabaseMounts,
	} {
		for _, m := range mounts {
			if _, err := vault.ParseMountPath(m); err != nil {
				return dserrors.ConfigError{
					Field:      field,
					Value:      m,
					Message:    err.Error(),
					Suggestion: "Mount paths are slash separated names such as 'secret' or 'team/kv'",
				}
			}
		}
	}

	switch d.Auth.Method {
	case "", "token":
	case "approle":
		if d.Auth.AppRole.RoleID == "" {
			return dserrors.ConfigError{
				Field:      "auth.approle.role_id",
				Message:    "role_id is required for approle auth",
				Suggestion: "Read it with 'vault read auth/approle/role/<role>/role-id'",
			}
		}
	default:
		return dserrors.ConfigError{
			Field:      "auth.method",
			Value:      d.Auth.Method,
			Message:    "unsupported auth method",
			Suggestion: "Use 'token' or 'approle'",
		}
	}

	return nil
}

// Timeout returns the per-read timeout
func (d *Definition) Timeout() time.Duration {
	if d.Server.TimeoutMs <= 0 {
		return DefaultTimeoutMs * time.Millisecond
	}
	return time.Duration(d.Server.TimeoutMs) * time.Millisecond
}

// AppRoleMount returns the configured AppRole mount or the default
func (d *Definition) AppRoleMount() string {
	if d.Auth.AppRole.Mount == "" {
		return vault.DefaultAppRoleMount
	}
	return d.Auth.AppRole.Mount
}

// GetDatabase returns the connection settings for a database mount
func (c *Config) GetDatabase(mount string) (DatabaseConfig, error) {
	if c.Definition == nil {
		return DatabaseConfig{}, dserrors.UserError{
			Message:    "Configuration not loaded",
			Suggestion: "This is an internal error. Please report it",
		}
	}

	if db, ok := c.Definition.Databases[mount]; ok {
		return db, nil
	}

	var available []string
	for name := range c.Definition.Databases {
		available = append(available, name)
	}

	suggestion := "Add the mount to the 'databases:' section of your dsvault.yaml"
	if len(available) > 0 {
		suggestion = fmt.Sprintf("Available databases: %s. %s", strings.Join(available, ", "), suggestion)
	}

	return DatabaseConfig{}, dserrors.ConfigError{
		Field:      "databases",
		Value:      mount,
		Message:    "database not found in configuration",
		Suggestion: suggestion,
	}
}
