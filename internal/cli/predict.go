package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayusman/signcheck/internal/app"
	"github.com/ayusman/signcheck/internal/inference"
)

// NewPredictCmd creates the 'predict' command for offline classification.
func NewPredictCmd(load configLoader) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Classify a landmark payload from a file or stdin",
		Example: `  signcheck predict --file frame.json
  echo '{"points": [[0,0,0], ...]}' | signcheck predict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd.Context())
			if err != nil {
				return err
			}

			var body []byte
			if file == "" || file == "-" {
				body, err = io.ReadAll(cmd.InOrStdin())
			} else {
				body, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}

			model, err := app.LoadModel(cfg)
			if err != nil {
				return err
			}
			svc, err := inference.New(model, inference.WithMinConfidence(cfg.MinConfidence))
			if err != nil {
				return err
			}

			pred, err := svc.Predict(body)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(pred)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Payload file (default stdin)")
	return cmd
}
