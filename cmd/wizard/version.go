package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/wizard"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of wizard",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "wizard version %s\n", strings.TrimSpace(wizard.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
