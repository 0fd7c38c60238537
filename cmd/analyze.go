package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/statloom-cli/internal/analysis"
	"github.com/KaramelBytes/statloom-cli/internal/dataset"
	"github.com/KaramelBytes/statloom-cli/internal/project"
)

var (
	anaProject     string
	anaOutputPath  string
	anaFormat      string
	anaName        string
	anaDescription string
	anaY           string
	anaGroup       string
	anaFactors     []string
	anaX           []string
	anaVars        []string
	anaPair        []string
	anaNumFactors  int
	anaRotate      bool
	anaAlpha       float64
	anaIntake      intakeFlags
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <kind> <file|dataset>",
	Short: "Run one statistical analysis on a CSV/TSV/XLSX file",
	Long: `Run one analysis and print or save its report.

Kinds: ` + strings.Join(kindList(), ", ") + `

Examples:
  statloom analyze ttest trial.csv --y score --group arm
  statloom analyze paired trial.csv --pair after,before
  statloom analyze anova2 trial.csv --y yield --factor variety --factor fertilizer
  statloom analyze regress trial.csv --y after --x before,dose -o fit.json
  statloom analyze factor survey.xlsx --vars q1,q2,q3,q4 --n-factors 2
  statloom analyze corr trial.csv -p myproject   # or a dataset registered with 'add'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := analysis.ParseKind(args[0])
		if err != nil {
			return err
		}
		path := args[1]
		req := analysis.Request{
			Name:       anaName,
			Kind:       kind,
			Y:          anaY,
			Group:      anaGroup,
			Factors:    anaFactors,
			X:          anaX,
			Vars:       anaVars,
			Pair:       anaPair,
			NumFactors: anaNumFactors,
			Rotate:     anaRotate,
		}
		if cmd.Flags().Changed("alpha") {
			if !(anaAlpha > 0 && anaAlpha < 1) {
				return fmt.Errorf("--alpha must be in (0, 1), got %g", anaAlpha)
			}
			req.Alpha = anaAlpha
		}
		format, err := resolveFormat(anaFormat, anaOutputPath)
		if err != nil {
			return err
		}

		var p *project.Project
		if anaProject != "" {
			if p, err = openProject(anaProject); err != nil {
				return err
			}
		}

		path = resolveDataPath(p, path)
		tbl, err := anaIntake.load(path, req.CategoricalColumns()...)
		if err != nil {
			return err
		}
		res, err := newRunner(p).Run(tbl, req)
		if err != nil {
			return err
		}
		body, err := analysis.Encode(res, format)
		if err != nil {
			return err
		}

		// Decide where to write: --output path, or attach to project, or stdout
		written := false
		if anaOutputPath != "" {
			if err := emit(body, anaOutputPath, "analysis"); err != nil {
				return err
			}
			written = true
		}
		if p != nil {
			run, err := recordRun(p, path, anaDescription, tbl, req.Name, res, body, format)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Recorded %s in project '%s' as %s\n", res.Kind, p.Name, run.File)
			written = true
		}
		if !written {
			return emit(body, "", "analysis")
		}
		return nil
	},
}

// recordRun registers the dataset, stores the encoded result and saves the
// project.
func recordRun(p *project.Project, path, desc string, tbl *dataset.Table, name string, res *analysis.Result, body []byte, format analysis.Format) (*project.Run, error) {
	if _, err := p.AddDataset(path, desc, tbl); err != nil {
		return nil, err
	}
	run, err := p.RecordRun(name, res, tbl.Fingerprint(), body, format)
	if err != nil {
		return nil, err
	}
	if err := p.Save(); err != nil {
		return nil, err
	}
	logger.Info("run recorded",
		zap.String("project", p.Name),
		zap.String("run", run.Name),
		zap.String("file", run.File))
	return run, nil
}

func kindList() []string {
	var out []string
	for _, k := range analysis.Kinds() {
		out = append(out, string(k))
	}
	return out
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	f := analyzeCmd.Flags()
	f.StringVarP(&anaProject, "project", "p", "", "project name to record the run in")
	f.StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the report")
	f.StringVar(&anaFormat, "format", "", "report format: md|json|yaml (default from config or output extension)")
	f.StringVar(&anaName, "name", "", "run name when recording to a project")
	f.StringVar(&anaDescription, "desc", "", "dataset description when recording to a project")

	f.StringVar(&anaY, "y", "", "numeric response column")
	f.StringVar(&anaGroup, "group", "", "categorical grouping column (ttest, anova)")
	f.StringSliceVar(&anaFactors, "factor", nil, "categorical factor column (repeatable: anova2, chisq)")
	f.StringSliceVar(&anaX, "x", nil, "predictor columns (regress)")
	f.StringSliceVar(&anaVars, "vars", nil, "numeric columns (pca, factor, corr; default all numeric)")
	f.StringSliceVar(&anaPair, "pair", nil, "two numeric columns for a paired t-test: first,second")
	f.IntVar(&anaNumFactors, "n-factors", 0, "number of factors to extract (factor; default by Kaiser criterion)")
	f.BoolVar(&anaRotate, "rotate", true, "apply Varimax rotation (factor)")
	f.Float64Var(&anaAlpha, "alpha", 0.05, "significance level (default from project or config)")
	anaIntake.register(f)
}
