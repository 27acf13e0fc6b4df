package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/boshu2/autoforge/internal/executor"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check installed agent CLIs and environment",
	Long: `doctor probes PATH for every agent CLI the executor registry knows how
to drive, reports which primary/secondary/debate configuration
AutoConfigureAgents would pick, and notes whether the process looks
like it is running inside a container (relevant only if you plan to
pass --autonomous).`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	reg := executor.NewRegistry()

	fmt.Println("agent CLIs:")
	installed := reg.DetectInstalled()
	for _, agentType := range reg.AgentTypes() {
		mark := "not found"
		if installed[agentType] {
			mark = "found"
		}
		fmt.Printf("  %-12s %s\n", agentType, mark)
	}

	primary, secondary, debateEnabled := reg.AutoConfigureAgents()
	fmt.Println()
	fmt.Println("auto-configuration:")
	fmt.Printf("  primary:   %s\n", orNone(primary))
	fmt.Printf("  secondary: %s\n", orNone(secondary))
	fmt.Printf("  debate:    %v\n", debateEnabled)

	fmt.Println()
	fmt.Println("sandbox:")
	if _, err := os.Stat("/.dockerenv"); err == nil {
		fmt.Println("  /.dockerenv present — autonomous mode would be permitted")
	} else {
		fmt.Println("  /.dockerenv absent — autonomous mode requires a container runtime marker")
		fmt.Println("  or FORGE_ALLOW_HOST_AUTONOMOUS=I_ACCEPT_THE_RISK")
	}

	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
