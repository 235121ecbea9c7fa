package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/credstore/cmd/credstore/commands"
	"github.com/systmms/credstore/internal/config"
	dserrors "github.com/systmms/credstore/internal/errors"
	"github.com/systmms/credstore/internal/logging"
	"github.com/systmms/credstore/pkg/credential"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile     string
		noColor        bool
		debug          bool
		nonInteractive bool
		metricsFile    string
	)

	credential.Version = version
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "credstore",
		Short: "Store, resolve and search credentials in keychain and protected stores",
		Long: `credstore manages secrets identified by a service and a user name.

Secrets live in named stores configured in credstore.yaml. A keychain store
uses one of the User, System, Common or Dynamic domains; a protected store
partitions secrets by access group and can use the cloud-synchronized scope.
Without a configuration file a single keychain store on the OS keyring is used.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)
			cfg.NonInteractive = nonInteractive
			cfg.MetricsFile = metricsFile
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "credstore.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Fail instead of asking for user presence")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics for this run to a textfile")

	rootCmd.AddCommand(
		commands.NewSetCommand(cfg),
		commands.NewGetCommand(cfg),
		commands.NewDeleteCommand(cfg),
		commands.NewResolveCommand(cfg),
		commands.NewAttributesCommand(cfg),
		commands.NewSearchCommand(cfg),
		commands.NewPurgeCommand(cfg),
		commands.NewStoresCommand(cfg),
	)

	return rootCmd.Execute()
}
