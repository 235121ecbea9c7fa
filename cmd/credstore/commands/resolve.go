package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/credstore/internal/config"
	dserrors "github.com/systmms/credstore/internal/errors"
	"github.com/systmms/credstore/internal/registry"
)

// NewResolveCommand creates the resolve command
func NewResolveCommand(cfg *config.Config) *cobra.Command {
	var (
		storeName string
		modifiers map[string]string
	)

	cmd := &cobra.Command{
		Use:   "resolve <service> <user>",
		Short: "Find the unique credential an entry refers to",
		Long: `Resolve a service and user to exactly one stored credential and print
where it lives.

Fails when nothing matches, or when the secret exists in more than one access
group. In that case the candidate groups are listed so one can be pinned with
--modifier access-group=<group>.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, cfg, storeName, func(reg *registry.Registered) error {
				entry, err := reg.Store.Build(args[0], args[1], modifiers)
				if err != nil {
					return dserrors.StoreError(reg.Name, "resolve", err)
				}
				resolved, err := entry.GetCredential()
				if err != nil {
					return dserrors.StoreError(reg.Name, "resolve", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), resolved.String())
				return err
			})
		},
	}

	addStoreFlags(cmd, &storeName, &modifiers)

	return cmd
}
