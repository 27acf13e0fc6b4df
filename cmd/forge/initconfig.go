package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/boshu2/autoforge/internal/config"
)

var initConfigOut string

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a starter config file",
	Long: `init-config marshals config.Default() to YAML and writes it to the given
path (forge.yaml by default), so every recognized knob is present with
its default value ready to edit, rather than an empty file the user has
to populate from documentation.`,
	Args: cobra.NoArgs,
	RunE: runInitConfig,
}

func init() {
	initConfigCmd.Flags().StringVar(&initConfigOut, "out", "forge.yaml", "Path to write the starter config to")
	rootCmd.AddCommand(initConfigCmd)
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(initConfigOut); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite", initConfigOut)
	}

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}

	header := "# forge configuration. Every key here mirrors a field in internal/config.Config;\n" +
		"# unset keys fall back to the same defaults this file was generated from.\n"

	if err := os.WriteFile(initConfigOut, append([]byte(header), data...), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", initConfigOut, err)
	}

	fmt.Println("wrote", initConfigOut)
	return nil
}
