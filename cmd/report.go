package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	repProject    string
	repOutputPath string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Assemble a project's recorded runs into one Markdown report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if repProject == "" {
			return fmt.Errorf("--project is required")
		}
		p, err := openProject(repProject)
		if err != nil {
			return err
		}
		md, err := p.BuildReport()
		if err != nil {
			return err
		}
		return emit([]byte(md), repOutputPath, "report")
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&repProject, "project", "p", "", "project name")
	reportCmd.Flags().StringVarP(&repOutputPath, "output", "o", "", "optional path to write the report")
}
