package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/credstore/internal/config"
	dserrors "github.com/systmms/credstore/internal/errors"
	"github.com/systmms/credstore/internal/registry"
	"github.com/systmms/credstore/pkg/credential"
)

type searchResult struct {
	Service     string `json:"service"`
	User        string `json:"user"`
	Keychain    string `json:"keychain,omitempty"`
	AccessGroup string `json:"access_group,omitempty"`
	CloudSync   bool   `json:"cloud_sync,omitempty"`
}

func toSearchResult(e *credential.Entry) searchResult {
	service, user, _ := e.Specifiers()
	scope := e.Scope()
	return searchResult{
		Service:     service,
		User:        user,
		Keychain:    scope.Keychain,
		AccessGroup: scope.AccessGroup,
		CloudSync:   scope.CloudSynchronize,
	}
}

func (r searchResult) location() string {
	if r.Keychain != "" {
		return r.Keychain
	}
	if r.CloudSync {
		return r.AccessGroup + " (cloud)"
	}
	return r.AccessGroup
}

// NewSearchCommand creates the search command
func NewSearchCommand(cfg *config.Config) *cobra.Command {
	var (
		storeName string
		spec      map[string]string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "List credentials matching a search spec",
		Long: `List the credentials in a store that match a search spec.

Keychain stores accept the keys service, user, keychain and
show-authentication-ui. Protected stores accept service, user, access-group and
show-authentication-ui. Credentials that require user presence are only listed
with show-authentication-ui=true, and listing them asks for presence.`,
		Example: `  credstore search --spec service=github.com
  credstore search -s shared --spec access-group=team.app --json
  credstore search -s shared --spec show-authentication-ui=true`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, cfg, storeName, func(reg *registry.Registered) error {
				entries, err := reg.Store.Search(spec)
				if err != nil {
					return dserrors.StoreError(reg.Name, "search", err)
				}
				results := make([]searchResult, 0, len(entries))
				for _, e := range entries {
					results = append(results, toSearchResult(e))
				}

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(results)
				}
				if len(results) == 0 {
					cfg.Logger.Info("No credentials match in %s", reg.Name)
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "SERVICE\tUSER\tLOCATION")
				_, _ = fmt.Fprintln(w, "-------\t----\t--------")
				for _, r := range results {
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.Service, r.User, r.location())
				}
				return w.Flush()
			})
		},
	}

	addStoreFlags(cmd, &storeName, nil)
	cmd.Flags().StringToStringVar(&spec, "spec", nil, "Search key=value pairs (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}
