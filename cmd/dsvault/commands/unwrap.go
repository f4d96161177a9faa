package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/dsvault/internal/config"
	dserrors "github.com/systmms/dsvault/internal/errors"
	"github.com/systmms/dsvault/pkg/vault"
)

func NewUnwrapCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unwrap <wrapping-token>",
		Short: "Unwrap a response-wrapping token",
		Long: `Exchange a response-wrapping token for its payload and print it as JSON.

The wrapping token authenticates the request, so no login is required.
When credentials are configured they are loaded first so the session token
itself is never unwrapped. Wrapping tokens are single use.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := context.Background()
			if s.hasCredentials() {
				if err := s.login(ctx); err != nil {
					return err
				}
			}

			payload, err := vault.Unwrap[map[string]interface{}](ctx, s.client, args[0])
			if err != nil {
				return dserrors.EngineError("unwrap", err)
			}

			doc, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(doc))
			return nil
		},
	}

	return cmd
}
