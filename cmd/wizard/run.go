package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/wizard/internal/cli"
	"github.com/aretw0/wizard/internal/presentation/tui"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [session-id]",
	Short: "Run a tour interactively in the terminal",
	Long: `Hosts one tour session and reads commands from stdin. The session is persisted
in the configured store, so running again with the same ID resumes it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := "default"
		if len(args) > 0 {
			sessionID = args[0]
		}
		fresh, _ := cmd.Flags().GetBool("fresh")
		jsonMode, _ := cmd.Flags().GetBool("json")
		style, _ := cmd.Flags().GetString("style")

		env, err := setupEnvironment(cmd, cli.SetupOptions{})
		if err != nil {
			return err
		}
		defer env.Close()

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		if !jsonMode {
			tui.PrintBanner(cmd.OutOrStdout())
		}
		return cli.Run(ctx, env, cli.RunOptions{
			SessionID: sessionID,
			Fresh:     fresh,
			Style:     style,
			JSON:      jsonMode,
			In:        os.Stdin,
			Out:       cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("fresh", false, "Discard the persisted session before starting")
	runCmd.Flags().Bool("json", false, "Print snapshots as JSON instead of rendered markdown")
	runCmd.Flags().String("style", "", "Glamour style (dark, light, notty); detected when empty")
}
