package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var (
	listProjects bool
	listDatasets bool
	listRuns     bool
	listProjName string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects, datasets or recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		selected := 0
		for _, b := range []bool{listProjects, listDatasets, listRuns} {
			if b {
				selected++
			}
		}
		if selected != 1 {
			return fmt.Errorf("specify exactly one of --projects, --datasets or --runs")
		}
		if listProjects {
			return listAllProjects()
		}
		if listProjName == "" {
			return fmt.Errorf("--project is required when using --datasets or --runs")
		}
		p, err := openProject(listProjName)
		if err != nil {
			return err
		}
		if listDatasets {
			if len(p.Datasets) == 0 {
				fmt.Println("(no datasets)")
				return nil
			}
			ids := make([]string, 0, len(p.Datasets))
			for id := range p.Datasets {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				d := p.Datasets[id]
				fmt.Printf("- %s: %s, %d rows × %d columns (%s)\n", d.ID, d.Name, d.Rows, len(d.Columns), d.Description)
			}
			return nil
		}
		if len(p.Runs) == 0 {
			fmt.Println("(no runs)")
			return nil
		}
		for _, r := range p.Runs {
			fmt.Printf("- %s [%s] %s: %s → %s\n", r.CreatedAt.Format(time.DateTime), r.Kind, r.Name, r.Title, r.File)
		}
		return nil
	},
}

func listAllProjects() error {
	root, err := defaultProjectsDir()
	if err != nil {
		return err
	}
	dirs, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	found := false
	for _, e := range dirs {
		if !e.IsDir() {
			continue
		}
		pj := filepath.Join(root, e.Name(), "project.json")
		if _, err := os.Stat(pj); err == nil {
			fmt.Printf("- %s\n", e.Name())
			found = true
		}
	}
	if !found {
		fmt.Println("(no projects)")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listProjects, "projects", false, "list projects")
	listCmd.Flags().BoolVar(&listDatasets, "datasets", false, "list datasets in a project")
	listCmd.Flags().BoolVar(&listRuns, "runs", false, "list recorded runs in a project")
	listCmd.Flags().StringVarP(&listProjName, "project", "p", "", "project name for --datasets or --runs")
}
