package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	pmProject string
	pmClear   bool
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage per-project settings",
}

var projectSetAlphaCmd = &cobra.Command{
	Use:   "set-alpha <alpha>",
	Short: "Set or clear a project's significance level",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if pmProject == "" {
			return fmt.Errorf("--project is required")
		}
		p, err := openProject(pmProject)
		if err != nil {
			return err
		}
		alpha := 0.0
		if !pmClear {
			if len(args) == 0 || args[0] == "" {
				return fmt.Errorf("alpha is required unless --clear is set")
			}
			if alpha, err = strconv.ParseFloat(args[0], 64); err != nil {
				return fmt.Errorf("invalid alpha %q: %w", args[0], err)
			}
			if alpha == 0 {
				return fmt.Errorf("alpha must be in (0, 1); use --clear to remove the override")
			}
		}
		if err := p.SetAlpha(alpha); err != nil {
			return err
		}
		if err := p.Save(); err != nil {
			return err
		}
		if pmClear {
			fmt.Printf("✓ Cleared project alpha for %s\n", pmProject)
		} else {
			fmt.Printf("✓ Set project alpha for %s: %g\n", pmProject, p.Config.Alpha)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectSetAlphaCmd)

	projectSetAlphaCmd.Flags().StringVarP(&pmProject, "project", "p", "", "project name")
	projectSetAlphaCmd.Flags().BoolVar(&pmClear, "clear", false, "clear the project's alpha override")
}
