package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/dsvault/internal/config"
	dserrors "github.com/systmms/dsvault/internal/errors"
	"github.com/systmms/dsvault/internal/keychain"
)

func NewLoginCommand(cfg *config.Config) *cobra.Command {
	var (
		saveTo     string
		printToken bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against Vault",
		Long: `Authenticate with the configured method and report the result.

Token auth installs VAULT_TOKEN (or auth.token) without contacting the server.
AppRole auth logs in with the role ID and secret ID, unwrapping the secret ID
first when auth.approle.wrapped is set.

Examples:
  # Verify AppRole credentials
  dsvault login

  # Log in and keep the session token in the OS keychain
  dsvault login --save dsvault/default

  # Print the session token for another tool
  export VAULT_TOKEN=$(dsvault login --print-token)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var item keychain.Item
			if saveTo != "" {
				parsed, err := keychain.ParseItem(saveTo)
				if err != nil {
					return dserrors.UserError{
						Message:    "Invalid keychain item",
						Details:    err.Error(),
						Suggestion: "Use --save <service>/<account>",
					}
				}
				item = parsed
			}

			s, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.login(context.Background()); err != nil {
				return err
			}

			token, ok := s.client.Tokens().Get()
			if !ok {
				return dserrors.UserError{Message: "Login returned no session token"}
			}

			if saveTo != "" {
				if err := keychain.Set(item, token); err != nil {
					return dserrors.UserError{
						Message:    "Failed to save the session token",
						Details:    err.Error(),
						Suggestion: "Check that the OS keychain is unlocked",
						Err:        err,
					}
				}
				s.logger.Info("Saved session token to keychain item %s", item)
			}

			if printToken {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✅ Authenticated to %s\n", cfg.Definition.Server.Address)
			return nil
		},
	}

	cmd.Flags().StringVar(&saveTo, "save", "", "Save the session token to a keychain item (service/account)")
	cmd.Flags().BoolVar(&printToken, "print-token", false, "Print the session token to stdout")

	return cmd
}
