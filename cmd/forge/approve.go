package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/boshu2/autoforge/internal/approval"
)

var approveRepoPath string

var approveCmd = &cobra.Command{
	Use:   "approve <phase>",
	Short: "Grant a file-based approval gate",
	Long: `approve writes the marker file a running "forge run" is watching (via
fsnotify, with a poll fallback) for a phase configured with an
approval gate, letting it proceed without a human at the terminal it
was started from.`,
	Args: cobra.ExactArgs(1),
	RunE: runApprove,
}

func init() {
	approveCmd.Flags().StringVar(&approveRepoPath, "repo", ".", "Path to the repository the run is working in")
	rootCmd.AddCommand(approveCmd)
}

func runApprove(cmd *cobra.Command, args []string) error {
	phaseName := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repoPath, err := filepath.Abs(approveRepoPath)
	if err != nil {
		return fmt.Errorf("resolve repo path: %w", err)
	}

	plansDir := cfg.PlansDir
	if !filepath.IsAbs(plansDir) {
		plansDir = filepath.Join(repoPath, plansDir)
	}

	store := approval.NewStore(plansDir)
	if err := store.GrantApproval(phaseName); err != nil {
		return fmt.Errorf("grant approval for %s: %w", phaseName, err)
	}

	fmt.Printf("approved %q\n", phaseName)
	return nil
}
