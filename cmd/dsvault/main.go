package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/dsvault/cmd/dsvault/commands"
	"github.com/systmms/dsvault/internal/config"
	"github.com/systmms/dsvault/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "dsvault",
		Short: "Read secrets from Vault by URI",
		Long: `dsvault authenticates against a Vault server and reads secrets addressed
by resource URIs such as vault:/secret/app?version=2 or vault:/db/creds/readonly.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)
			// Environment variables alone are enough when --config is not given.
			cfg.Optional = !cmd.Flags().Changed("config")
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewLoginCommand(cfg),
		commands.NewReadCommand(cfg),
		commands.NewRenderCommand(cfg),
		commands.NewUnwrapCommand(cfg),
		commands.NewAppRoleCommand(cfg),
		commands.NewDBCheckCommand(cfg),
	)

	return rootCmd.Execute()
}
