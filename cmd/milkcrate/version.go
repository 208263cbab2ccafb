package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sydlexius/milkcrate/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "milkcrate %s (%s)\n", version.Version, version.Commit)
		},
	}
}
