package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/statloom-cli/internal/analysis"
	"github.com/KaramelBytes/statloom-cli/internal/project"
)

var (
	bProject  string
	bDataPath string
	bOutDir   string
	bFormat   string
	bParallel int
	bQuiet    bool
	bIntake   intakeFlags
)

var batchCmd = &cobra.Command{
	Use:   "batch <plan.yaml>",
	Short: "Run every request of a YAML plan against one dataset",
	Long: `Run a batch of analyses described by a YAML plan:

  dataset: trial.csv
  alpha: 0.01
  categorical: [dose]
  requests:
    - name: score-by-arm
      kind: ttest
      y: score
      group: arm
    - kind: regress
      y: after
      x: [before, dose]

Requests run concurrently on the shared table; a failing request is reported
and the rest still run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		planPath := args[0]
		raw, err := os.ReadFile(planPath)
		if err != nil {
			return fmt.Errorf("read plan: %w", err)
		}
		plan, err := analysis.ParsePlan(raw)
		if err != nil {
			return err
		}
		dataPath := bDataPath
		if dataPath == "" {
			dataPath = plan.DatasetPath(planPath)
		}
		if dataPath == "" {
			return fmt.Errorf("plan has no dataset; pass --data")
		}
		format, err := resolveFormat(bFormat, "")
		if err != nil {
			return err
		}

		var p *project.Project
		if bProject != "" {
			if p, err = openProject(bProject); err != nil {
				return err
			}
		}
		if bOutDir != "" {
			if err := os.MkdirAll(bOutDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
		}

		dataPath = resolveDataPath(p, dataPath)
		tbl, err := bIntake.load(dataPath, plan.CategoricalColumns()...)
		if err != nil {
			return err
		}
		parallel := bParallel
		if parallel <= 0 && cfg != nil {
			parallel = cfg.BatchParallelism
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		total := len(plan.Requests)
		var mu sync.Mutex
		onStart := func(i int, req analysis.Request) {
			if bQuiet {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			fmt.Printf("[%d/%d] Processing %s...\n", i+1, total, req.Label())
		}
		outcomes := newRunner(p).RunBatch(ctx, tbl, plan.Requests, parallel, onStart)

		failed := 0
		for _, o := range outcomes {
			if o.Err != nil {
				failed++
				fmt.Printf("✗ %s: %v\n", o.Request.Label(), o.Err)
				continue
			}
			body, err := analysis.Encode(o.Result, format)
			if err != nil {
				return err
			}
			switch {
			case bOutDir != "":
				out := filepath.Join(bOutDir, o.Request.Label()+format.Ext())
				if err := os.WriteFile(out, body, 0o644); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				if !bQuiet {
					fmt.Printf("✓ %s → %s\n", o.Request.Label(), out)
				}
			case p == nil:
				fmt.Printf("--- %s ---\n", o.Request.Label())
				if err := emit(body, "", o.Request.Label()); err != nil {
					return err
				}
			}
			if p != nil {
				run, err := recordRun(p, dataPath, "", tbl, o.Request.Label(), o.Result, body, format)
				if err != nil {
					return err
				}
				if !bQuiet {
					fmt.Printf("✓ Recorded %s in project '%s' as %s\n", o.Request.Label(), p.Name, run.File)
				}
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d request(s) failed", failed, total)
		}
		if !bQuiet {
			fmt.Printf("✓ Completed %d request(s)\n", total)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
	f := batchCmd.Flags()
	f.StringVarP(&bProject, "project", "p", "", "project name to record every run in")
	f.StringVar(&bDataPath, "data", "", "dataset path (overrides the plan's dataset)")
	f.StringVar(&bOutDir, "out-dir", "", "directory to write one report per request")
	f.StringVar(&bFormat, "format", "", "report format: md|json|yaml")
	f.IntVar(&bParallel, "parallel", 0, "maximum concurrent requests (default from config)")
	f.BoolVarP(&bQuiet, "quiet", "q", false, "suppress progress output")
	bIntake.register(f)
}
