package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/systmms/credstore/internal/config"
	dserrors "github.com/systmms/credstore/internal/errors"
	"github.com/systmms/credstore/internal/registry"
)

// NewAttributesCommand creates the attributes command
func NewAttributesCommand(cfg *config.Config) *cobra.Command {
	var (
		storeName string
		modifiers map[string]string
	)

	cmd := &cobra.Command{
		Use:   "attributes <service> <user>",
		Short: "Show the attributes a store exposes for a credential",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, cfg, storeName, func(reg *registry.Registered) error {
				entry, err := reg.Store.Build(args[0], args[1], modifiers)
				if err != nil {
					return dserrors.StoreError(reg.Name, "attributes", err)
				}
				attrs, err := entry.GetAttributes()
				if err != nil {
					return dserrors.StoreError(reg.Name, "attributes", err)
				}
				if len(attrs) == 0 {
					cfg.Logger.Info("%s/%s has no attributes", args[0], args[1])
					return nil
				}
				keys := make([]string, 0, len(attrs))
				for k := range attrs {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, attrs[k]); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	addStoreFlags(cmd, &storeName, &modifiers)

	return cmd
}
