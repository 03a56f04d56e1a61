package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/wizard/internal/cli"
	"github.com/aretw0/wizard/internal/presentation/graph"
	"github.com/aretw0/wizard/pkg/machines"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [machine]",
	Short: "Export a machine table as a Mermaid flowchart",
	Long: `Outputs a Mermaid diagram (graph TD) of the tutorial machine, or of the feature
machine named as argument.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		reg, err := cli.LoadMachines(cfg)
		if err != nil {
			return err
		}

		key := machines.TutorialKey
		if len(args) > 0 {
			key = args[0]
		}
		def, ok := reg.Table(key)
		if !ok {
			return fmt.Errorf("unknown machine %q (have %v)", key, reg.Features())
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(def, nil))
		return nil
	},
}

var machinesCmd = &cobra.Command{
	Use:   "machines",
	Short: "List the machine tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		reg, err := cli.LoadMachines(cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		tutorial := reg.Tutorial()
		fmt.Fprintf(out, "%s (initial %s)\n", tutorial.Key(), tutorial.InitialState())
		for _, name := range reg.Features() {
			def, _ := reg.Table(name)
			fmt.Fprintf(out, "  %s (initial %s)\n", name, def.InitialState())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(machinesCmd)
}
