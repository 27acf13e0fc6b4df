package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/boshu2/autoforge/internal/checkpoint"
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "List stored checkpoints",
	Long: `checkpoints prints every checkpoint saved under the XDG state directory,
newest first, with its task slug and the phase it stopped at — the ids
it prints are what "forge resume" expects.`,
	Args: cobra.NoArgs,
	RunE: runCheckpoints,
}

func init() {
	rootCmd.AddCommand(checkpointsCmd)
}

func runCheckpoints(cmd *cobra.Command, args []string) error {
	store, err := checkpoint.NewStore(appName)
	if err != nil {
		return err
	}
	manager := checkpoint.NewManager(store)

	summaries, err := manager.List()
	if err != nil {
		return fmt.Errorf("list checkpoints: %w", err)
	}
	if len(summaries) == 0 {
		fmt.Println("no checkpoints found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTASK\tPHASE\tCREATED")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.TaskSlug, s.Phase, s.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
