package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/dotside-studios/davi-nfc-bridge/agent"
	"github.com/dotside-studios/davi-nfc-bridge/nfc"
	"github.com/spf13/cobra"
)

func newWatchCommand(load loader) *cobra.Command {
	var includeStatus bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print discoveries as JSON lines",
		Long:  "Print every discovery as one JSON object per line until interrupted. The server only runs when the remote provider needs it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a := agent.New(cfg, logger, agentOptions(false))
			enc := json.NewEncoder(cmd.OutOrStdout())
			a.Registry.AddListener(func(d *nfc.Discovery) {
				if d.IsStatus() && !includeStatus {
					return
				}
				if err := enc.Encode(d); err != nil {
					logger.Warn().Err(err).Msg("failed to write discovery")
				}
			})

			if err := a.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return a.Stop(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&includeStatus, "status", false, "also print adapter status events")
	return cmd
}
