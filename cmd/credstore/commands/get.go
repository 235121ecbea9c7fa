package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/credstore/internal/config"
	dserrors "github.com/systmms/credstore/internal/errors"
	"github.com/systmms/credstore/internal/registry"
)

type getOutput struct {
	Store       string `json:"store"`
	Service     string `json:"service"`
	User        string `json:"user"`
	Keychain    string `json:"keychain,omitempty"`
	AccessGroup string `json:"access_group,omitempty"`
	Password    string `json:"password"`
}

// NewGetCommand creates the get command
func NewGetCommand(cfg *config.Config) *cobra.Command {
	var (
		storeName string
		modifiers map[string]string
		binary    bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "get <service> <user>",
		Short: "Print a stored secret",
		Long: `Print the secret stored for a service and user.

For protected stores without a pinned access group the secret is read from the
first access group that holds one. Use 'credstore resolve' to detect secrets
that exist in several groups.`,
		Example: `  credstore get github.com alice
  credstore get --store shared -m access-group=team.shared api.example.com deploy
  credstore get --binary signing key > key.der`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if binary && asJSON {
				return dserrors.UserError{
					Message:    "--binary and --json cannot be combined",
					Suggestion: "Use one output format",
				}
			}
			return withStore(cmd, cfg, storeName, func(reg *registry.Registered) error {
				entry, err := reg.Store.Build(args[0], args[1], modifiers)
				if err != nil {
					return dserrors.StoreError(reg.Name, "get", err)
				}
				out := cmd.OutOrStdout()

				if binary {
					secret, err := entry.GetSecret()
					if err != nil {
						return dserrors.StoreError(reg.Name, "get", err)
					}
					_, err = out.Write(secret)
					return err
				}

				password, err := entry.GetPassword()
				if err != nil {
					return dserrors.StoreError(reg.Name, "get", err)
				}
				if !asJSON {
					_, err = fmt.Fprintln(out, password)
					return err
				}
				scope := entry.Scope()
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(getOutput{
					Store:       reg.Name,
					Service:     args[0],
					User:        args[1],
					Keychain:    scope.Keychain,
					AccessGroup: scope.AccessGroup,
					Password:    password,
				})
			})
		},
	}

	addStoreFlags(cmd, &storeName, &modifiers)
	cmd.Flags().BoolVar(&binary, "binary", false, "Write the raw secret bytes without a newline")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}
