package cli

import (
	"github.com/spf13/cobra"

	"github.com/trebuchet-org/treb-release/internal/cli/render"
)

// NewFingerprintCmd creates the fingerprint command
func NewFingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <artifact>",
		Short: "Print the version fingerprint of a compiled contract",
		Long: `Print the version fingerprint recorded for a compiled contract: the keccak256
of its creation bytecode with the trailing compiler metadata removed. Two
builds of the same source with different metadata share a fingerprint.`,
		Example: `  treb-release fingerprint Tribe
  treb-release fingerprint src/Tribe.sol:Tribe --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			result, err := app.FingerprintArtifact.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if app.Config.JSON {
				return render.JSON(cmd.OutOrStdout(), result)
			}
			return render.NewFingerprintRenderer(cmd.OutOrStdout()).Render(result)
		},
	}
}
