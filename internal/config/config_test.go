package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("STATLOOM_ALPHA", "0.01")

	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Alpha != 0.01 {
		t.Fatalf("env override not applied: alpha=%v", c.Alpha)
	}
	if c.VarimaxMaxIter != 50 || c.VarimaxTolerance != 1e-6 {
		t.Fatalf("unexpected varimax defaults: %d %g", c.VarimaxMaxIter, c.VarimaxTolerance)
	}
	if c.OutputFormat != "md" || c.MaxRows != 100000 || c.BatchParallelism != 4 || c.LogLevel != "warn" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if want := filepath.Join(home, ".statloom", "projects"); c.ProjectsDir != want {
		t.Fatalf("projects_dir=%s want %s", c.ProjectsDir, want)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(home, "custom.yaml")

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set("alpha", "0.1"); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("output_format", "JSON"); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("thousands_separator", "space"); err != nil {
		t.Fatal(err)
	}
	if err := Save(c, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if again.Alpha != 0.1 || again.OutputFormat != "json" || again.ThousandsSeparator != " " {
		t.Fatalf("round trip lost values: %+v", again)
	}
	if v, _ := again.Get("alpha"); v != "0.1" {
		t.Fatalf("get alpha = %q", v)
	}
}

func TestSetRejectsInvalidValues(t *testing.T) {
	c := &Global{}
	cases := map[string]string{
		"alpha":             "1.5",
		"varimax_max_iter":  "zero",
		"batch_parallelism": "0",
		"output_format":     "xml",
		"decimal_separator": ";",
		"log_level":         "verbose",
		"no_such_key":       "1",
	}
	for key, val := range cases {
		if err := c.Set(key, val); err == nil {
			t.Errorf("Set(%q, %q) should fail", key, val)
		}
	}
	if err := c.Set("max_rows", "0"); err != nil {
		t.Errorf("max_rows 0 means unlimited: %v", err)
	}
	if keys := Keys(); keys[0] != "projects_dir" || len(keys) != 11 {
		t.Errorf("unexpected keys %v", keys)
	}
}
