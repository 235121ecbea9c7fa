package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/credstore/internal/config"
	"github.com/systmms/credstore/internal/registry"
)

// NewStoresCommand creates the stores command
func NewStoresCommand(cfg *config.Config) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "stores",
		Short: "List configured credential stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd, cfg, func(r *registry.Registry) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				if verbose {
					_, _ = fmt.Fprintln(w, "NAME\tTYPE\tBACKEND\tVENDOR\tID")
					_, _ = fmt.Fprintln(w, "----\t----\t-------\t------\t--")
				} else {
					_, _ = fmt.Fprintln(w, "NAME\tTYPE\tBACKEND\tVENDOR")
					_, _ = fmt.Fprintln(w, "----\t----\t-------\t------")
				}

				for _, name := range r.Names() {
					reg, err := r.Get(name)
					if err != nil {
						return err
					}
					label := name
					if name == r.Default() {
						label += " *"
					}
					backend := reg.Config.Backend.Type
					if backend == "" {
						backend = "keyring"
					}
					if verbose {
						_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", label, reg.Config.Type, backend, reg.Store.Vendor(), reg.Store.ID())
					} else {
						_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", label, reg.Config.Type, backend, reg.Store.Vendor())
					}
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show store instance ids")

	return cmd
}
