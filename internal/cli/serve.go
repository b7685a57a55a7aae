package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/signcheck/internal/app"
)

// NewServeCmd creates the 'serve' command that runs the HTTP service.
func NewServeCmd(load configLoader) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP assessment service",
		Long: `Start the HTTP service exposing /predict, the lesson and assessment API,
the assessment WebSocket stream and /metrics.

The server shuts down gracefully on SIGINT or SIGTERM.`,
		Example: `  signcheck serve
  signcheck serve --addr :9090
  SIGNCHECK_DB_DRIVER=pgx SIGNCHECK_DB_DSN=postgres://... signcheck serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := load(ctx)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}
