package commands

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/credstore/internal/config"
	dserrors "github.com/systmms/credstore/internal/errors"
	"github.com/systmms/credstore/internal/logging"
	"github.com/systmms/credstore/internal/registry"
)

// NewSetCommand creates the set command
func NewSetCommand(cfg *config.Config) *cobra.Command {
	var (
		storeName string
		modifiers map[string]string
		password  string
		binary    bool
	)

	cmd := &cobra.Command{
		Use:   "set <service> <user>",
		Short: "Create or replace a credential",
		Long: `Create or replace the secret stored for a service and user.

The secret is read from --password or, when that flag is absent, from standard
input. A trailing newline on standard input is dropped unless --binary is given.

Replacing an existing secret keeps the access policy it was created with.`,
		Example: `  # Store a password typed on the terminal
  credstore set github.com alice

  # Store in a specific protected access group
  echo -n "$TOKEN" | credstore set --store shared -m access-group=team.app api.example.com deploy

  # Require user presence on every read
  credstore set -s shared -m require-user-presence=true --password s3cret vault.local root`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var secret []byte
			if cmd.Flags().Changed("password") {
				secret = []byte(password)
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return dserrors.UserError{
						Message:    "Failed to read the secret from standard input",
						Details:    err.Error(),
						Suggestion: "Pass the secret with --password instead",
						Err:        err,
					}
				}
				if !binary {
					data = []byte(strings.TrimRight(string(data), "\r\n"))
				}
				secret = data
			}

			return withStore(cmd, cfg, storeName, func(reg *registry.Registered) error {
				entry, err := reg.Store.Build(args[0], args[1], modifiers)
				if err != nil {
					return dserrors.StoreError(reg.Name, "set", err)
				}
				cfg.Logger.Debug("setting %s/%s in %s: %s (%d bytes)",
					args[0], args[1], reg.Name, logging.Secret(secret), len(secret))
				if err := entry.SetSecret(secret); err != nil {
					return redactedStoreError(reg.Name, "set", err, string(secret))
				}
				cfg.Logger.Info("Stored secret for %s/%s in %s", args[0], args[1], reg.Name)
				return nil
			})
		},
	}

	addStoreFlags(cmd, &storeName, &modifiers)
	cmd.Flags().StringVar(&password, "password", "", "Secret to store (read from stdin if omitted)")
	cmd.Flags().BoolVar(&binary, "binary", false, "Store standard input byte for byte")

	return cmd
}
