package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	addProjectName string
	addDataDesc    string
	addIntake      intakeFlags
)

var addCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Register a dataset with a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := args[0]
		if addProjectName == "" {
			return fmt.Errorf("--project is required")
		}
		p, err := openProject(addProjectName)
		if err != nil {
			return err
		}
		tbl, err := addIntake.load(file)
		if err != nil {
			return err
		}
		d, err := p.AddDataset(file, addDataDesc, tbl)
		if err != nil {
			return err
		}
		if err := p.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Dataset added: %s (%d rows × %d columns, id %s)\n", filepath.Base(file), d.Rows, len(d.Columns), d.ID[:8])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringVarP(&addProjectName, "project", "p", "", "project name")
	addCmd.Flags().StringVar(&addDataDesc, "desc", "", "dataset description")
	addIntake.register(addCmd.Flags())
}
