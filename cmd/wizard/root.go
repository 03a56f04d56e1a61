package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/wizard/internal/cli"
	"github.com/aretw0/wizard/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Wizard runs guided onboarding tours as state machines",
	Long: `Wizard walks users through a product one feature at a time. The tour is driven by
machine tables and persisted after every step, so it can be resumed from the terminal,
over HTTP or from another replica.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("config", config.DefaultPath, "Settings file")
	flags.String("store", "", "Storage backend (memory, file, redis, mysql)")
	flags.String("dir", "", "Directory of the file store")
	flags.String("machines", "", "Directory of machine tables (default: bundled)")
	flags.String("components", "", "Directory of Markdown component copy layered over the catalog")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("debug", false, "Log every transition and action")
}

// loadConfig reads the settings file and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	overrides := map[string]*string{
		"store":      &cfg.Store,
		"dir":        &cfg.File.Dir,
		"machines":   &cfg.Machines.Dir,
		"components": &cfg.Machines.Components,
		"log-level":  &cfg.Log.Level,
	}
	for name, field := range overrides {
		if cmd.Flags().Changed(name) {
			*field, _ = cmd.Flags().GetString(name)
		}
	}
	if cmd.Flags().Changed("dir") && !cmd.Flags().Changed("store") {
		cfg.Store = config.StoreFile
	}
	return cfg, cfg.Validate()
}

// setupEnvironment wires storage and sessions for commands that host tours.
func setupEnvironment(cmd *cobra.Command, opts cli.SetupOptions) (*cli.Environment, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	opts.Debug, _ = cmd.Flags().GetBool("debug")
	return cli.Setup(cmd.Context(), cfg, opts)
}
