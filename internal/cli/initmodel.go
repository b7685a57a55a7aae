package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/signcheck/internal/classifier"
)

// NewInitModelCmd creates the 'init-model' command that writes a
// deterministic random parameter file for development.
func NewInitModelCmd(load configLoader) *cobra.Command {
	var out string
	var seed uint64

	cmd := &cobra.Command{
		Use:   "init-model",
		Short: "Write a random-weight parameter file for development",
		Long: `Generate classifier parameters with the configured topology and the static
ASL alphabet labels. The weights are random, so predictions are meaningless,
but the file exercises the full loading and inference path.`,
		Example: `  signcheck init-model --out model.json
  signcheck init-model --out model.json --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return errors.New("--out is required")
			}
			cfg, err := load(cmd.Context())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("seed") {
				seed = cfg.ModelSeed
			}

			params := classifier.NewRandom(cfg.ClassifierConfig(), classifier.Letters(), seed)
			if err := params.Save(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s model %s to %s\n", params.Topology, params.Version, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Random seed (default from config)")
	return cmd
}
