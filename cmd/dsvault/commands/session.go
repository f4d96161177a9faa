package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/systmms/dsvault/internal/config"
	dserrors "github.com/systmms/dsvault/internal/errors"
	"github.com/systmms/dsvault/internal/keychain"
	"github.com/systmms/dsvault/internal/logging"
	"github.com/systmms/dsvault/internal/metrics"
	"github.com/systmms/dsvault/pkg/resolve"
	"github.com/systmms/dsvault/pkg/vault"
	"github.com/systmms/dsvault/pkg/vaultapi"
)

// newBackend builds the transport. Tests replace it with an in-memory server.
var newBackend = func(def *config.Definition) (vaultapi.Backend, error) {
	return vaultapi.NewHTTPBackend(vaultapi.Config{
		Address:       def.Server.Address,
		Namespace:     def.Server.Namespace,
		Timeout:       def.Timeout(),
		CACert:        def.Server.CACert,
		TLSSkipVerify: def.Server.TLSSkipVerify,
	})
}

// session is one CLI invocation's view of Vault.
type session struct {
	cfg     *config.Config
	logger  *logging.Logger
	client  *vault.Client
	metrics *metrics.Recorder
	server  *metrics.Server
}

func openSession(cfg *config.Config) (*session, error) {
	if err := cfg.Prepare(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	def := cfg.Definition

	backend, err := newBackend(def)
	if err != nil {
		return nil, dserrors.UserError{
			Message:    "Failed to create Vault client",
			Details:    err.Error(),
			Suggestion: "Check server.address, server.ca_cert and VAULT_ADDR",
			Err:        err,
		}
	}

	rec := metrics.New()
	s := &session{
		cfg:     cfg,
		logger:  logger,
		client:  vault.New(backend, vault.WithLogger(logger), vault.WithMetrics(rec)),
		metrics: rec,
	}

	if def.Metrics.Enabled {
		mc := metrics.DefaultServerConfig()
		mc.Enabled = true
		if def.Metrics.Port != 0 {
			mc.Port = def.Metrics.Port
		}
		if def.Metrics.Path != "" {
			mc.Path = def.Metrics.Path
		}
		s.server = metrics.NewServer(mc, logger)
		if err := s.server.Start(); err != nil {
			logger.Warn("metrics server not started: %v", err)
			s.server = nil
		}
	}

	return s, nil
}

func (s *session) close() {
	s.client.Logout()
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.server.Stop(ctx); err != nil {
		s.logger.Debug("metrics server stop: %v", err)
	}
}

// hasCredentials reports whether the configuration names any login material.
func (s *session) hasCredentials() bool {
	a := s.cfg.Definition.Auth
	switch a.Method {
	case "approle":
		return true
	default:
		return a.Token != "" || a.TokenKeychain != nil
	}
}

// authMethod builds the login method from configuration and the keychain.
func (s *session) authMethod() (vault.AuthMethod, error) {
	a := s.cfg.Definition.Auth

	switch a.Method {
	case "approle":
		secretID := a.AppRole.SecretID
		if secretID == "" && a.AppRole.SecretIDKeychain != nil {
			v, err := readKeychain(*a.AppRole.SecretIDKeychain)
			if err != nil {
				return nil, err
			}
			secretID = v
		}
		if secretID == "" {
			return nil, dserrors.ConfigError{
				Field:      "auth.approle.secret_id",
				Message:    "no secret ID configured",
				Suggestion: "Set auth.approle.secret_id or auth.approle.secret_id_keychain",
			}
		}
		return vault.AppRoleAuth{
			Mount:    s.cfg.Definition.AppRoleMount(),
			RoleID:   a.AppRole.RoleID,
			SecretID: secretID,
			Wrapped:  a.AppRole.Wrapped,
		}, nil

	default:
		token := a.Token
		if token == "" && a.TokenKeychain != nil {
			v, err := readKeychain(*a.TokenKeychain)
			if err != nil {
				return nil, err
			}
			token = v
		}
		if token == "" {
			return nil, dserrors.UserError{
				Message:    "No Vault credentials configured",
				Suggestion: "Export VAULT_TOKEN, set auth.token_keychain, or configure auth.method: approle",
				Err:        vault.ErrNotAuthenticated,
			}
		}
		return vault.TokenAuth{Token: token}, nil
	}
}

func readKeychain(ref config.KeychainRef) (string, error) {
	item := keychain.Item{Service: ref.Service, Account: ref.Account}
	v, err := keychain.Get(item)
	if err != nil {
		return "", dserrors.UserError{
			Message:    fmt.Sprintf("Failed to read %s from the keychain", item),
			Details:    err.Error(),
			Suggestion: "Save it with 'dsvault login --save " + item.String() + "'",
			Err:        err,
		}
	}
	return v, nil
}

func (s *session) login(ctx context.Context) error {
	method, err := s.authMethod()
	if err != nil {
		return err
	}
	if err := s.client.Authenticate(ctx, method); err != nil {
		return dserrors.EngineError("login", err)
	}
	return nil
}

// dispatcher builds a resolver over the configured mounts.
func (s *session) dispatcher() (*resolve.Dispatcher, error) {
	r := s.cfg.Definition.Resources

	parse := func(field string, names []string) ([]vault.MountPath, error) {
		mounts := make([]vault.MountPath, 0, len(names))
		for _, n := range names {
			m, err := vault.ParseMountPath(n)
			if err != nil {
				return nil, dserrors.ConfigError{Field: field, Value: n, Message: err.Error()}
			}
			mounts = append(mounts, m)
		}
		return mounts, nil
	}

	kv, err := parse("resources.kv_mounts", r.KVMounts)
	if err != nil {
		return nil, err
	}
	kvData, err := parse("resources.kv_data_mounts", r.KVDataMounts)
	if err != nil {
		return nil, err
	}
	db, err := parse("resources.database_mounts", r.DatabaseMounts)
	if err != nil {
		return nil, err
	}

	opts := []resolve.Option{
		resolve.WithScheme(r.Scheme),
		resolve.WithKeyValueMounts(kv...),
		resolve.WithKeyValueDataMounts(kvData...),
		resolve.WithDatabaseMounts(db...),
		resolve.WithTimeout(s.cfg.Definition.Timeout()),
		resolve.WithLogger(s.logger),
		resolve.WithMetrics(s.metrics),
	}
	if r.Concurrency > 0 {
		opts = append(opts, resolve.WithConcurrency(r.Concurrency))
	}
	if r.Unwrap {
		opts = append(opts, resolve.WithUnwrapParser())
	}
	return resolve.New(s.client, opts...), nil
}
