package cmd

import (
	"fmt"

	"github.com/dotside-studios/davi-nfc-bridge/provider/hardware"
	"github.com/spf13/cobra"
)

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List libnfc readers",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := hardware.ListDevices()
			if err != nil {
				return fmt.Errorf("listing devices: %w", err)
			}
			if len(devices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No readers found")
				return nil
			}
			for _, d := range devices {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}
}
