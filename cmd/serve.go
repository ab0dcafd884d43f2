package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dotside-studios/davi-nfc-bridge/agent"
	"github.com/dotside-studios/davi-nfc-bridge/tray"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a := agent.New(cfg, logger, agentOptions(true))
			if err := a.Start(ctx); err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := a.Stop(shutdownCtx); err != nil {
					logger.Error().Err(err).Msg("shutdown failed")
				}
			}()

			if !cfg.Tray {
				<-ctx.Done()
				logger.Info().Msg("shutting down")
				return nil
			}

			app := tray.New(tray.Config{
				Registry: a.Registry,
				Port:     cfg.Port,
				TLS:      cfg.TLS,
				Logger:   logger,
				OnQuit:   stop,
			})
			go func() {
				<-ctx.Done()
				app.Quit()
			}()
			app.Run()
			return nil
		},
	}
}
