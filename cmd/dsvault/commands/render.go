package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/systmms/dsvault/internal/config"
	dserrors "github.com/systmms/dsvault/internal/errors"
	"github.com/systmms/dsvault/internal/template"
)

func NewRenderCommand(cfg *config.Config) *cobra.Command {
	var (
		templatePath string
		outPath      string
		permissions  string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a template with resolved secrets",
		Long: `Render a Go text/template whose read calls name resource URIs.

Every URI is resolved before rendering, concurrently and once per URI.
The read function returns the raw payload; field extracts a JSON field.

Examples:
  # config.tmpl:  password={{ read "vault:/db/creds/app" | field "password" }}
  dsvault render --template config.tmpl --out app.conf

  # Print to stdout
  dsvault render --template config.tmpl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if templatePath == "" {
				return dserrors.UserError{
					Message:    "Template path is required",
					Suggestion: "Use --template <file>",
				}
			}
			perm, err := strconv.ParseUint(permissions, 8, 32)
			if err != nil {
				return dserrors.UserError{
					Message:    fmt.Sprintf("Invalid permissions '%s'", permissions),
					Suggestion: "Use an octal mode such as 0600",
				}
			}

			src, err := os.ReadFile(templatePath)
			if err != nil {
				return dserrors.SimplifyError(err)
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
			d, err := s.dispatcher()
			if err != nil {
				return err
			}

			rendered, err := template.New(d, s.logger).Render(ctx, templatePath, string(src))
			if err != nil {
				return dserrors.EngineError("render", err)
			}

			if outPath == "" {
				_, _ = cmd.OutOrStdout().Write(rendered)
				return nil
			}
			if err := template.WriteFile(outPath, rendered, os.FileMode(perm)); err != nil {
				return dserrors.UserError{
					Message:    "Failed to write rendered output",
					Details:    err.Error(),
					Suggestion: "Check that the target directory exists and is writable",
					Err:        err,
				}
			}
			s.logger.Info("Rendered %s to %s", templatePath, outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&templatePath, "template", "", "Template file to render")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file (stdout when empty)")
	cmd.Flags().StringVar(&permissions, "permissions", "0600", "Output file mode")

	return cmd
}
