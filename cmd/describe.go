package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/statloom-cli/internal/analysis"
	"github.com/KaramelBytes/statloom-cli/internal/stats"
)

var (
	descOutputPath string
	descFormat     string
	descOutlierThr float64
	descIntake     intakeFlags
)

var describeCmd = &cobra.Command{
	Use:   "describe <file>",
	Short: "Summarize every column of a CSV/TSV/XLSX file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveFormat(descFormat, descOutputPath)
		if err != nil {
			return err
		}
		if descOutlierThr <= 0 {
			return fmt.Errorf("--outlier-threshold must be positive")
		}
		tbl, err := descIntake.load(args[0])
		if err != nil {
			return err
		}
		body, err := analysis.Encode(stats.Describe(tbl, descOutlierThr), format)
		if err != nil {
			return err
		}
		return emit(body, descOutputPath, "summary")
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().StringVarP(&descOutputPath, "output", "o", "", "optional path to write the summary")
	describeCmd.Flags().StringVar(&descFormat, "format", "", "summary format: md|json|yaml")
	describeCmd.Flags().Float64Var(&descOutlierThr, "outlier-threshold", stats.DefaultOutlierThreshold, "robust |z| threshold for outliers (MAD-based)")
	descIntake.register(describeCmd.Flags())
}
