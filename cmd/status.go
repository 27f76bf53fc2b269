package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/doepilot/internal/store"
)

var statusWorkDir string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a run's persisted state and iteration history",
	Long: `Reads the working directory's persisted state and lists every
iteration with its completion status.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusWorkDir, "workdir", ".", "Run working directory")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := store.NewFSStore(statusWorkDir)
	if err != nil {
		return fmt.Errorf("failed to open working directory: %w", err)
	}

	state, err := st.LoadState()
	if err != nil {
		if _, missing := err.(*store.NotFoundError); missing {
			fmt.Println("No run state found.")
			return nil
		}
		return err
	}

	fmt.Printf("Phase: %s\n", state.Phase)
	fmt.Printf("Last completed iteration: %d\n", state.Iteration)
	fmt.Printf("Updated: %s\n", state.UpdatedAt.Format("2006-01-02 15:04:05"))
	if state.Best != nil {
		fmt.Printf("Best score: %.6g (iteration %d)\n", state.Best.Score, state.Best.Iteration)
	}
	fmt.Println()

	fmt.Println("Current windows:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FACTOR\tLOW\tHIGH")
	for _, name := range sortedWindowNames(state) {
		win := state.Windows[name]
		fmt.Fprintf(w, "%s\t%g\t%g\n", name, win.Low, win.High)
	}
	w.Flush()
	fmt.Println()

	infos, err := st.ListIterations()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No iterations found.")
		return nil
	}

	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITERATION\tCOMPLETE")
	fmt.Fprintln(w, "---------\t--------")
	for _, info := range infos {
		fmt.Fprintf(w, "%d\t%v\n", info.Iteration, info.Complete)
	}
	w.Flush()
	return nil
}

func sortedWindowNames(state *store.RunState) []string {
	names := make([]string, 0, len(state.Windows))
	for name := range state.Windows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
