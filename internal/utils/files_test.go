package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSafeWriteFileReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	if err := SafeWriteFile(path, []byte("first")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := SafeWriteFile(path, []byte("second")); err != nil {
		t.Fatalf("second write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "second" {
		t.Fatalf("got %q", b)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}

func TestPrettyYAML(t *testing.T) {
	v := struct {
		Name  string    `yaml:"name"`
		Alpha float64   `yaml:"alpha"`
		Vars  []string  `yaml:"vars"`
		Load  []float64 `yaml:"load"`
	}{Name: "pca", Alpha: 0.05, Vars: []string{"a", "b"}, Load: []float64{0.5}}
	b, err := PrettyYAML(v)
	if err != nil {
		t.Fatal(err)
	}
	out := string(b)
	for _, want := range []string{"name: pca\n", "alpha: 0.05\n", "- a\n", "- b\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestFindProjectRootWalksUp(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "project.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "runs", "2026")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got != root {
		t.Fatalf("got %s want %s", got, root)
	}
}
