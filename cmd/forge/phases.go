package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boshu2/autoforge/internal/phase"
)

var phasesCmd = &cobra.Command{
	Use:   "phases",
	Short: "Print the fixed phase pipeline",
	Long: `phases lists the seventeen-phase pipeline in execution order, the same
order "forge run" and "forge resume" walk. Use the printed names with a
config file's phases.<name>.enabled override or with "forge approve".`,
	Args: cobra.NoArgs,
	RunE: runPhases,
}

func init() {
	rootCmd.AddCommand(phasesCmd)
}

func runPhases(cmd *cobra.Command, args []string) error {
	for i, name := range phase.Order {
		fmt.Printf("%2d. %s\n", i+1, name)
	}
	return nil
}
