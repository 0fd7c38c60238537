package project_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/statloom-cli/internal/analysis"
	"github.com/KaramelBytes/statloom-cli/internal/dataset"
	"github.com/KaramelBytes/statloom-cli/internal/project"
)

func sampleTable(t *testing.T) *dataset.Table {
	t.Helper()
	tbl, err := dataset.NewTable("scores.csv",
		dataset.NewCategoricalColumn("arm", []string{"A", "A", "A", "B", "B", "B"}),
		dataset.NewNumericColumn("score", []float64{1, 2, 3, 4, 5, 6}),
	)
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func TestRecordRunAndBuildReport(t *testing.T) {
	tdir := t.TempDir()
	data := filepath.Join(tdir, "scores.csv")
	if err := os.WriteFile(data, []byte("arm,score\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tbl := sampleTable(t)

	proj := project.NewProject("trial", "Phase II readout", filepath.Join(tdir, "proj"))
	d, err := proj.AddDataset(data, "primary endpoint", tbl)
	if err != nil {
		t.Fatalf("add dataset: %v", err)
	}
	if d.Fingerprint != tbl.Fingerprint() || d.Rows != 6 {
		t.Fatalf("unexpected dataset record: %+v", d)
	}
	again, err := proj.AddDataset(data, "", tbl)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != d.ID || len(proj.Datasets) != 1 {
		t.Fatalf("re-adding the same path should refresh, got %d datasets", len(proj.Datasets))
	}
	if got, ok := proj.FindDataset("scores.csv"); !ok || got.ID != d.ID {
		t.Fatalf("find by name failed")
	}

	res, err := analysis.NewRunner(nil, analysis.DefaultSettings()).
		Run(tbl, analysis.Request{Kind: analysis.KindTTest, Y: "score", Group: "arm"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	md, err := analysis.Encode(res, analysis.FormatMarkdown)
	if err != nil {
		t.Fatal(err)
	}
	run, err := proj.RecordRun("Score by arm", res, tbl.Fingerprint(), md, analysis.FormatMarkdown)
	if err != nil {
		t.Fatalf("record run: %v", err)
	}
	if !strings.HasPrefix(run.File, "runs"+string(filepath.Separator)) || !strings.Contains(run.File, "score-by-arm") {
		t.Fatalf("unexpected run file %s", run.File)
	}
	js, err := analysis.Encode(res, analysis.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := proj.RecordRun("", res, tbl.Fingerprint(), js, analysis.FormatJSON); err != nil {
		t.Fatal(err)
	}
	if err := proj.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := project.LoadProject(proj.RootDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(loaded.Runs))
	}
	report, err := loaded.BuildReport()
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	for _, want := range []string{"[PROJECT]", "Phase II readout", "[DATASETS]", "[RUNS]",
		"--- Run: Score by arm (ttest,", "Welch t-test: score by arm", "(stored as json: runs"} {
		if !strings.Contains(report, want) {
			t.Fatalf("report missing %q:\n%s", want, report)
		}
	}
	if strings.Contains(report, "dataset changed") {
		t.Fatalf("fingerprints match, no change warning expected")
	}
}

func TestBuildReportRequiresRuns(t *testing.T) {
	proj := project.NewProject("empty", "", t.TempDir())
	if _, err := proj.BuildReport(); err == nil {
		t.Fatalf("expected error for project without runs")
	}
}

func TestSetAlpha(t *testing.T) {
	proj := project.NewProject("a", "", t.TempDir())
	if err := proj.SetAlpha(0.01); err != nil {
		t.Fatal(err)
	}
	if proj.Config.Alpha != 0.01 {
		t.Fatalf("alpha not set")
	}
	if err := proj.SetAlpha(1.5); err == nil {
		t.Fatalf("expected error for alpha outside (0,1)")
	}
	if err := proj.SetAlpha(0); err != nil || proj.Config.Alpha != 0 {
		t.Fatalf("zero should clear the override")
	}
}
