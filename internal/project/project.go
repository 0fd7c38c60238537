package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/statloom-cli/internal/analysis"
	"github.com/KaramelBytes/statloom-cli/internal/dataset"
	"github.com/KaramelBytes/statloom-cli/internal/utils"
)

const (
	projectFileName = "project.json"
	runsDirName     = "runs"
)

// Project represents a statloom project persisted on disk.
type Project struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Datasets    map[string]*Dataset `json:"datasets"`
	Runs        []*Run              `json:"runs"`
	Config      *ProjectConfig      `json:"config"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`

	// Not serialized: on-disk location of the project.json
	rootDir string `json:"-"`
}

// ProjectConfig holds per-project overrides of global settings. Zero values
// inherit the global configuration.
type ProjectConfig struct {
	Alpha float64 `json:"alpha,omitempty"`
}

// NewProject constructs an in-memory project. Call Save() to persist.
func NewProject(name, description, rootDir string) *Project {
	return &Project{
		Name:        name,
		Description: description,
		Datasets:    make(map[string]*Dataset),
		Config:      &ProjectConfig{},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		rootDir:     rootDir,
	}
}

// LoadProject loads a project.json from the provided directory.
func LoadProject(dir string) (*Project, error) {
	path := filepath.Join(dir, projectFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("project not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read project: %w", err)
	}
	var p Project
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse project: %w", err)
	}
	if p.Config == nil {
		p.Config = &ProjectConfig{}
	}
	p.rootDir = dir
	return &p, nil
}

// RootDir returns the on-disk project directory path.
func (p *Project) RootDir() string { return p.rootDir }

// Save writes project.json using atomic write.
func (p *Project) Save() error {
	if p.rootDir == "" {
		return errors.New("project root directory not set")
	}
	if err := utils.EnsureProjectDir(p.rootDir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	p.UpdatedAt = time.Now()
	data, err := utils.PrettyJSON(p)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(p.rootDir, projectFileName), data)
}

// AddDataset registers a loaded table under its source path. Adding the same
// path again refreshes the existing entry.
func (p *Project) AddDataset(path, description string, tbl *dataset.Table) (*Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat dataset: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if p.Datasets == nil {
		p.Datasets = make(map[string]*Dataset)
	}
	d := &Dataset{ID: uuid.NewString()}
	for _, existing := range p.Datasets {
		if existing.Path == abs {
			d = existing
			break
		}
	}
	d.Path = abs
	d.Name = tbl.Name
	if description != "" || d.Description == "" {
		d.Description = description
	}
	d.Rows = tbl.Rows()
	d.Columns = tbl.Names()
	d.Fingerprint = tbl.Fingerprint()
	d.AddedAt = info.ModTime()
	p.Datasets[d.ID] = d
	p.UpdatedAt = time.Now()
	return d, nil
}

// FindDataset looks a dataset up by ID, name or path.
func (p *Project) FindDataset(ref string) (*Dataset, bool) {
	if d, ok := p.Datasets[ref]; ok {
		return d, true
	}
	for _, id := range p.datasetIDs() {
		d := p.Datasets[id]
		if d.Name == ref || d.Path == ref || filepath.Base(d.Path) == ref {
			return d, true
		}
	}
	return nil, false
}

func (p *Project) datasetIDs() []string {
	ids := make([]string, 0, len(p.Datasets))
	for id := range p.Datasets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetAlpha sets the project's significance level; zero clears the override.
func (p *Project) SetAlpha(alpha float64) error {
	if alpha != 0 && !(alpha > 0 && alpha < 1) {
		return fmt.Errorf("alpha must be in (0, 1), got %g", alpha)
	}
	if p.Config == nil {
		p.Config = &ProjectConfig{}
	}
	p.Config.Alpha = alpha
	p.UpdatedAt = time.Now()
	return nil
}

// RecordRun writes an encoded result under runs/ and appends it to the run
// history. fingerprint identifies the table the result was computed from.
func (p *Project) RecordRun(name string, res *analysis.Result, fingerprint string, body []byte, format analysis.Format) (*Run, error) {
	if p.rootDir == "" {
		return nil, errors.New("project root directory not set")
	}
	dir := filepath.Join(p.rootDir, runsDirName)
	if err := utils.EnsureProjectDir(dir); err != nil {
		return nil, fmt.Errorf("ensure runs dir: %w", err)
	}
	now := time.Now()
	id := uuid.NewString()
	if name == "" {
		name = string(res.Kind)
	}
	file := fmt.Sprintf("%s-%s-%s%s", now.Format("20060102-150405"), slug(name), id[:8], format.Ext())
	if err := utils.SafeWriteFile(filepath.Join(dir, file), body); err != nil {
		return nil, fmt.Errorf("write run: %w", err)
	}
	r := &Run{
		ID:          id,
		Name:        name,
		Kind:        string(res.Kind),
		Title:       res.Title,
		Dataset:     res.Dataset,
		Fingerprint: fingerprint,
		Rows:        res.Rows,
		Dropped:     res.Dropped,
		File:        filepath.Join(runsDirName, file),
		Format:      string(format),
		CreatedAt:   now,
	}
	p.Runs = append(p.Runs, r)
	p.UpdatedAt = now
	return r, nil
}

// slug lowercases s and keeps [a-z0-9], mapping separators to '-'.
func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else if r == ' ' || r == '-' || r == '_' || r == '.' {
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "run"
	}
	return out
}

// BuildReport assembles the project's datasets and recorded runs, oldest
// first, into one Markdown document. Runs stored as JSON or YAML are listed
// by file.
func (p *Project) BuildReport() (string, error) {
	if p == nil {
		return "", errors.New("project is nil")
	}
	if len(p.Runs) == 0 {
		return "", errors.New("no analysis runs recorded in project")
	}

	var sb strings.Builder
	sb.WriteString("[PROJECT]\n")
	sb.WriteString(p.Name)
	sb.WriteString("\n")
	if p.Description != "" {
		sb.WriteString(p.Description)
		sb.WriteString("\n")
	}
	if p.Config != nil && p.Config.Alpha > 0 {
		sb.WriteString(fmt.Sprintf("Significance level: %g\n", p.Config.Alpha))
	}

	sb.WriteString("\n[DATASETS]\n")
	if len(p.Datasets) == 0 {
		sb.WriteString("(none registered)\n")
	}
	for _, id := range p.datasetIDs() {
		d := p.Datasets[id]
		sb.WriteString(fmt.Sprintf("- %s: %d rows × %d columns (fingerprint %s)", d.Name, d.Rows, len(d.Columns), d.Fingerprint))
		if d.Description != "" {
			sb.WriteString(" ")
			sb.WriteString(d.Description)
		}
		sb.WriteString("\n")
	}

	runs := append([]*Run(nil), p.Runs...)
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].CreatedAt.Before(runs[j].CreatedAt) })
	known := map[string]bool{}
	for _, d := range p.Datasets {
		known[d.Fingerprint] = true
	}

	sb.WriteString("\n[RUNS]\n")
	for _, r := range runs {
		sb.WriteString(fmt.Sprintf("--- Run: %s (%s, %s) ---\n", r.Name, r.Kind, r.CreatedAt.Format(time.RFC3339)))
		if r.Fingerprint != "" && len(p.Datasets) > 0 && !known[r.Fingerprint] {
			sb.WriteString("⚠ dataset changed since this run was recorded\n")
		}
		if r.Format != string(analysis.FormatMarkdown) {
			sb.WriteString(fmt.Sprintf("%s (stored as %s: %s)\n\n", r.Title, r.Format, r.File))
			continue
		}
		b, err := os.ReadFile(filepath.Join(p.rootDir, r.File))
		if err != nil {
			return "", fmt.Errorf("read run %s: %w", r.Name, err)
		}
		sb.WriteString(strings.TrimSpace(string(b)))
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}
