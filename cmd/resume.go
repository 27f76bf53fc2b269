package main

import (
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a run from its persisted state",
	Long: `Resumes an interrupted run from the working directory's persisted
state. The last incomplete iteration is re-run from scratch; cluster
mode with --recover additionally skips rows whose results already
exist.`,
	RunE: runResume,
}

func init() {
	addEngineFlags(resumeCmd)
	resumeCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	eng, _, err := buildEngine()
	if err != nil {
		return err
	}
	report, err := eng.Resume(cmd.Context())
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}
