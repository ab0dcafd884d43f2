package cmd

import (
	"fmt"

	"github.com/dotside-studios/davi-nfc-bridge/buildinfo"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.BuildInfo())
		},
	}
}
