package analysis

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/statloom-cli/internal/dataset"
)

// Plan is a batch of requests against one dataset, read from YAML:
//
//	dataset: trial.csv
//	alpha: 0.01
//	categorical: [dose]
//	requests:
//	  - name: score-by-arm
//	    kind: ttest
//	    y: score
//	    group: arm
type Plan struct {
	// Dataset is resolved relative to the plan file when not absolute.
	Dataset     string    `yaml:"dataset"`
	Alpha       float64   `yaml:"alpha,omitempty"`
	Categorical []string  `yaml:"categorical,omitempty"`
	Requests    []Request `yaml:"requests"`
}

// ParsePlan decodes a YAML plan and names its requests; duplicate names get
// a numeric suffix. Unknown kinds are left for Run to report per request.
func ParsePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if len(p.Requests) == 0 {
		return nil, fmt.Errorf("plan has no requests")
	}
	seen := map[string]int{}
	for i := range p.Requests {
		req := &p.Requests[i]
		if k, err := ParseKind(string(req.Kind)); err == nil {
			req.Kind = k
		}
		if req.Alpha == 0 {
			req.Alpha = p.Alpha
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			name = string(req.Kind)
			if name == "" {
				name = fmt.Sprintf("request_%d", i+1)
			}
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		req.Name = name
	}
	return &p, nil
}

// DatasetPath resolves the plan's dataset against the plan file location.
func (p *Plan) DatasetPath(planPath string) string {
	if p.Dataset == "" || filepath.IsAbs(p.Dataset) {
		return p.Dataset
	}
	return filepath.Join(filepath.Dir(planPath), p.Dataset)
}

// CategoricalColumns merges the plan-level list with every column a request
// reads as a factor.
func (p *Plan) CategoricalColumns() []string {
	seen := map[string]bool{}
	var out []string
	add := func(names []string) {
		for _, n := range trimAll(names) {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	add(p.Categorical)
	for _, r := range p.Requests {
		add(r.CategoricalColumns())
	}
	return out
}

// Outcome pairs a request with its result or error.
type Outcome struct {
	Request Request
	Result  *Result
	Err     error
}

// RunBatch executes requests on at most parallel goroutines. Outcomes are
// returned in request order; one failing request does not stop the others.
// Requests not started before ctx is done report ctx.Err(). onStart, when
// non-nil, is called as each request begins and must be safe for concurrent
// use.
func (r *Runner) RunBatch(ctx context.Context, tbl *dataset.Table, reqs []Request, parallel int, onStart func(i int, req Request)) []Outcome {
	if parallel < 1 {
		parallel = 1
	}
	out := make([]Outcome, len(reqs))
	p := pool.New().WithMaxGoroutines(parallel)
	for i, req := range reqs {
		i, req := i, req
		p.Go(func() {
			out[i].Request = req
			if err := ctx.Err(); err != nil {
				out[i].Err = err
				return
			}
			if onStart != nil {
				onStart(i, req)
			}
			out[i].Result, out[i].Err = r.Run(tbl, req)
		})
	}
	p.Wait()

	failed := 0
	for _, o := range out {
		if o.Err != nil {
			failed++
		}
	}
	r.log.Debug("batch finished",
		zap.String("dataset", tbl.Name),
		zap.Int("requests", len(reqs)),
		zap.Int("failed", failed),
		zap.Int("parallel", parallel))
	return out
}
