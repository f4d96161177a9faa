package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/dsvault/internal/config"
	"github.com/systmms/dsvault/internal/dbcheck"
	dserrors "github.com/systmms/dsvault/internal/errors"
	"github.com/systmms/dsvault/pkg/vault"
)

// openDB opens database handles for db-check. Nil means sql.Open.
var openDB dbcheck.Opener

func NewDBCheckCommand(cfg *config.Config) *cobra.Command {
	var static bool

	cmd := &cobra.Command{
		Use:   "db-check <mount> <role>",
		Short: "Verify database credentials issued by Vault",
		Long: `Read credentials for a database role and connect with them.

The connection details come from the 'databases:' section of dsvault.yaml,
keyed by mount. PostgreSQL and MySQL are supported.

Examples:
  dsvault db-check db readonly
  dsvault db-check db app --static`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mountName, role := args[0], args[1]

			s, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer s.close()

			target, err := cfg.GetDatabase(mountName)
			if err != nil {
				return err
			}
			mount, err := vault.ParseMountPath(mountName)
			if err != nil {
				return dserrors.EngineError("database check", err)
			}

			ctx := context.Background()
			if err := s.login(ctx); err != nil {
				return err
			}

			dbRole := vault.DynamicDatabaseRole(role)
			if static {
				dbRole = vault.StaticDatabaseRole(role)
			}
			creds, err := s.client.ReadDatabaseCredentials(ctx, mount, dbRole)
			if err != nil {
				return dserrors.EngineError("database credential read", err)
			}

			res, err := dbcheck.New(openDB, s.logger).Check(ctx, dbcheck.Target{
				Type:     target.Type,
				Host:     target.Host,
				Port:     target.Port,
				Database: target.Database,
				SSLMode:  target.SSLMode,
			}, creds)
			if err != nil {
				return dserrors.UserError{
					Message:    fmt.Sprintf("Credentials for %s/%s did not work", mountName, role),
					Details:    err.Error(),
					Suggestion: "Check the role's creation statements and the databases section of dsvault.yaml",
					Err:        err,
				}
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✅ %s: connected to %s as %s in %s\n", res.Driver, res.Address, res.Username, res.Latency)
			return nil
		},
	}

	cmd.Flags().BoolVar(&static, "static", false, "Read static-creds instead of creds")

	return cmd
}
