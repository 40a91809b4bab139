package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yok-tottii/EzS2T-Realtime/internal/transcriber"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ezs2t-realtime version %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Model: %s\n", transcriber.DefaultModel)
		},
	}
}
