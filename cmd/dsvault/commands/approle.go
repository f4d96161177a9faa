package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/dsvault/internal/config"
	dserrors "github.com/systmms/dsvault/internal/errors"
	"github.com/systmms/dsvault/pkg/vault"
)

func NewAppRoleCommand(cfg *config.Config) *cobra.Command {
	var mount string

	cmd := &cobra.Command{
		Use:   "approle",
		Short: "Read AppRole role IDs and issue secret IDs",
	}
	cmd.PersistentFlags().StringVar(&mount, "mount", vault.DefaultAppRoleMount, "AppRole auth mount")

	cmd.AddCommand(
		newRoleIDCommand(cfg, &mount),
		newSecretIDCommand(cfg, &mount),
	)
	return cmd
}

func newRoleIDCommand(cfg *config.Config, mount *string) *cobra.Command {
	return &cobra.Command{
		Use:   "role-id <role>",
		Short: "Print the role ID of a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := vault.ParseMountPath(*mount)
			if err != nil {
				return dserrors.EngineError("role-id read", err)
			}

			s, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := context.Background()
			if err := s.login(ctx); err != nil {
				return err
			}

			roleID, err := s.client.ReadAppRoleID(ctx, m, args[0])
			if err != nil {
				return dserrors.EngineError("role-id read", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), roleID)
			return nil
		},
	}
}

func newSecretIDCommand(cfg *config.Config, mount *string) *cobra.Command {
	var wrapTTL time.Duration

	cmd := &cobra.Command{
		Use:   "secret-id <role>",
		Short: "Issue a new secret ID for a role",
		Long: `Issue a new secret ID for a role and print it as JSON.

With --wrap-ttl the server wraps the secret ID and only the wrapping token is
printed. Hand that token to the workload, which sets auth.approle.wrapped.

Examples:
  dsvault approle secret-id ci
  dsvault approle secret-id ci --wrap-ttl 5m`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := vault.ParseMountPath(*mount)
			if err != nil {
				return dserrors.EngineError("secret-id generate", err)
			}

			s, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := context.Background()
			if err := s.login(ctx); err != nil {
				return err
			}

			var out interface{}
			if wrapTTL > 0 {
				w, err := s.client.GenerateWrappedAppRoleSecretID(ctx, m, args[0], wrapTTL)
				if err != nil {
					return dserrors.EngineError("secret-id generate", err)
				}
				out = map[string]interface{}{
					"wrapping_token":    w.Token,
					"wrapping_accessor": w.Accessor,
					"wrapping_ttl":      int(w.TTL / time.Second),
					"creation_time":     w.CreationTime,
					"creation_path":     w.CreationPath,
				}
			} else {
				sid, err := s.client.GenerateAppRoleSecretID(ctx, m, args[0])
				if err != nil {
					return dserrors.EngineError("secret-id generate", err)
				}
				out = sid
			}

			doc, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(doc))
			return nil
		},
	}

	cmd.Flags().DurationVar(&wrapTTL, "wrap-ttl", 0, "Wrap the secret ID for this long")

	return cmd
}
