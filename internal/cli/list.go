package cli

import (
	"github.com/spf13/cobra"

	"github.com/trebuchet-org/treb-release/internal/cli/render"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	var (
		network      string
		contractType string
		tag          string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recorded deployments of a network",
		Long: `List the deployment registry of a network, grouped by contract type with
the oldest deployment first. Reads deployments/<network>.json (or the SQLite
registry) only; no RPC access is needed.`,
		Example: `  # List everything deployed on BSC
  treb-release list --network bsc

  # List tribe deployments tagged tribe-prod
  treb-release list -n bsc --type tribe --tag tribe-prod`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			result, err := app.ListReleases.Run(cmd.Context(), usecase.ListReleasesParams{
				Network:      network,
				ContractType: contractType,
				Tag:          tag,
			})
			if err != nil {
				return err
			}

			if app.Config.JSON {
				return render.JSON(cmd.OutOrStdout(), result)
			}
			return render.NewReleasesRenderer(cmd.OutOrStdout()).RenderReleaseList(result)
		},
	}

	cmd.Flags().StringVarP(&network, "network", "n", "", "Network whose registry to list")
	cmd.Flags().StringVar(&contractType, "type", "", "Only list this contract type")
	cmd.Flags().StringVar(&tag, "tag", "", "Only list deployments with this tag (case-insensitive, 'untagged' matches records without one)")
	_ = cmd.MarkFlagRequired("network")

	return cmd
}
