package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dotside-studios/davi-nfc-bridge/agent"
	"github.com/spf13/cobra"
)

// ErrUnavailable is returned by probe when no NFC capability is present.
var ErrUnavailable = errors.New("nfc unavailable")

func newProbeCommand(load loader) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Report whether NFC is available",
		Long:  "Start the configured providers, optionally wait, and report NFC availability. Exits non-zero when unavailable.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}

			a := agent.New(cfg, logger, agentOptions(false))
			if err := a.Start(cmd.Context()); err != nil {
				return err
			}
			defer a.Stop(context.Background())

			if wait > 0 {
				select {
				case <-time.After(wait):
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), shutdownTimeout)
			defer cancel()
			available, err := a.HasNFC(ctx)
			if err != nil {
				return err
			}
			if !available {
				fmt.Fprintln(cmd.OutOrStdout(), "unavailable")
				return ErrUnavailable
			}
			fmt.Fprintln(cmd.OutOrStdout(), "available")
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "time to give providers before asking")
	return cmd
}
