package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/credstore/internal/config"
	dserrors "github.com/systmms/credstore/internal/errors"
	"github.com/systmms/credstore/internal/registry"
)

// NewDeleteCommand creates the delete command
func NewDeleteCommand(cfg *config.Config) *cobra.Command {
	var (
		storeName string
		modifiers map[string]string
	)

	cmd := &cobra.Command{
		Use:     "delete <service> <user>",
		Aliases: []string{"rm"},
		Short:   "Delete a credential",
		Long: `Delete the secret stored for a service and user.

Without a pinned access group only the secret selected by default resolution is
removed. Secrets in other access groups are left untouched.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, cfg, storeName, func(reg *registry.Registered) error {
				entry, err := reg.Store.Build(args[0], args[1], modifiers)
				if err != nil {
					return dserrors.StoreError(reg.Name, "delete", err)
				}
				if err := entry.DeleteCredential(); err != nil {
					return dserrors.StoreError(reg.Name, "delete", err)
				}
				cfg.Logger.Info("Deleted %s/%s from %s", args[0], args[1], reg.Name)
				return nil
			})
		},
	}

	addStoreFlags(cmd, &storeName, &modifiers)

	return cmd
}
