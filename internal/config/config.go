package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	ProjectsDir string `mapstructure:"projects_dir" yaml:"projects_dir"`

	// Analysis defaults
	Alpha                float64 `mapstructure:"alpha" yaml:"alpha"`
	VarimaxMaxIter       int     `mapstructure:"varimax_max_iter" yaml:"varimax_max_iter"`
	VarimaxTolerance     float64 `mapstructure:"varimax_tolerance" yaml:"varimax_tolerance"`
	PCALoadingComponents int     `mapstructure:"pca_loading_components" yaml:"pca_loading_components"`
	BatchParallelism     int     `mapstructure:"batch_parallelism" yaml:"batch_parallelism"`

	// Output and intake
	OutputFormat       string `mapstructure:"output_format" yaml:"output_format"`
	MaxRows            int    `mapstructure:"max_rows" yaml:"max_rows"`
	DecimalSeparator   string `mapstructure:"decimal_separator" yaml:"decimal_separator"`
	ThousandsSeparator string `mapstructure:"thousands_separator" yaml:"thousands_separator"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

var defaults = map[string]any{
	"alpha":                  0.05,
	"varimax_max_iter":       50,
	"varimax_tolerance":      1e-6,
	"pca_loading_components": 3,
	"batch_parallelism":      4,
	"output_format":          "md",
	"max_rows":               100000,
	"decimal_separator":      "",
	"thousands_separator":    "",
	"log_level":              "warn",
}

// configDir is ~/.statloom.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".statloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.statloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := configDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env (STATLOOM_*) > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("STATLOOM")
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetDefault("projects_dir", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Resolve projects_dir default: ~/.statloom/projects
	if c.ProjectsDir == "" {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		c.ProjectsDir = filepath.Join(dir, "projects")
	}
	return &c, nil
}

// Keys lists the settable keys in display order.
func Keys() []string {
	keys := []string{"projects_dir"}
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys[1:])
	return keys
}

// Get returns the value of key formatted for display.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "projects_dir":
		return c.ProjectsDir, nil
	case "alpha":
		return cast.ToString(c.Alpha), nil
	case "varimax_max_iter":
		return cast.ToString(c.VarimaxMaxIter), nil
	case "varimax_tolerance":
		return cast.ToString(c.VarimaxTolerance), nil
	case "pca_loading_components":
		return cast.ToString(c.PCALoadingComponents), nil
	case "batch_parallelism":
		return cast.ToString(c.BatchParallelism), nil
	case "output_format":
		return c.OutputFormat, nil
	case "max_rows":
		return cast.ToString(c.MaxRows), nil
	case "decimal_separator":
		return c.DecimalSeparator, nil
	case "thousands_separator":
		return c.ThousandsSeparator, nil
	case "log_level":
		return c.LogLevel, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// Set parses val for key and validates it.
func (c *Global) Set(key, val string) error {
	val = strings.TrimSpace(val)
	switch key {
	case "projects_dir":
		c.ProjectsDir = val
	case "alpha":
		f, err := cast.ToFloat64E(val)
		if err != nil || !(f > 0 && f < 1) {
			return fmt.Errorf("invalid alpha: %s (want a number in (0, 1))", val)
		}
		c.Alpha = f
	case "varimax_max_iter", "pca_loading_components", "batch_parallelism", "max_rows":
		i, err := cast.ToIntE(val)
		if err != nil || i < 0 || (i == 0 && key != "max_rows") {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		switch key {
		case "varimax_max_iter":
			c.VarimaxMaxIter = i
		case "pca_loading_components":
			c.PCALoadingComponents = i
		case "batch_parallelism":
			c.BatchParallelism = i
		default:
			c.MaxRows = i
		}
	case "varimax_tolerance":
		f, err := cast.ToFloat64E(val)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid float for varimax_tolerance: %v", val)
		}
		c.VarimaxTolerance = f
	case "output_format":
		switch strings.ToLower(val) {
		case "md", "markdown":
			c.OutputFormat = "md"
		case "json", "yaml":
			c.OutputFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid output_format: %s (use md, json or yaml)", val)
		}
	case "decimal_separator":
		switch val {
		case "", ".", ",":
			c.DecimalSeparator = val
		case "comma":
			c.DecimalSeparator = ","
		default:
			return fmt.Errorf("invalid decimal_separator: %s (use '.' or ',')", val)
		}
	case "thousands_separator":
		switch val {
		case "", ",", ".":
			c.ThousandsSeparator = val
		case "space":
			c.ThousandsSeparator = " "
		default:
			return fmt.Errorf("invalid thousands_separator: %s (use ',', '.' or 'space')", val)
		}
	case "log_level":
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
		}
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}
