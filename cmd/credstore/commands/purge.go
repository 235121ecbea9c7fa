package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/systmms/credstore/internal/config"
	dserrors "github.com/systmms/credstore/internal/errors"
	"github.com/systmms/credstore/internal/registry"
	"github.com/systmms/credstore/pkg/credential"
)

// NewPurgeCommand creates the purge command
func NewPurgeCommand(cfg *config.Config) *cobra.Command {
	var (
		storeName string
		spec      map[string]string
		yes       bool
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every credential matching a search spec",
		Long: `Delete every credential in a store that matches a search spec.

Credentials that require user presence are included, so purging them asks for
presence. With an empty spec the whole store is emptied.`,
		Example: `  credstore purge -s shared --spec service=api.example.com --yes`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return dserrors.UserError{
					Message:    "purge deletes credentials and cannot be undone",
					Suggestion: "Run 'credstore search' with the same spec to review, then pass --yes",
				}
			}
			query := map[string]string{"show-authentication-ui": "true"}
			for k, v := range spec {
				query[k] = v
			}

			return withStore(cmd, cfg, storeName, func(reg *registry.Registered) error {
				entries, err := reg.Store.Search(query)
				if err != nil {
					return dserrors.StoreError(reg.Name, "purge", err)
				}
				deleted := 0
				for _, e := range entries {
					err := e.DeleteCredential()
					switch {
					case err == nil:
						deleted++
					case errors.Is(err, credential.ErrNoEntry):
						cfg.Logger.Debug("%s is already gone", e)
					default:
						return dserrors.StoreError(reg.Name, "purge", err)
					}
				}
				cfg.Logger.Info("Deleted %d credential(s) from %s", deleted, reg.Name)
				return nil
			})
		},
	}

	addStoreFlags(cmd, &storeName, nil)
	cmd.Flags().StringToStringVar(&spec, "spec", nil, "Search key=value pairs (repeatable)")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")

	return cmd
}
