package cmd

import (
	"fmt"
	"os"
	"strings"

	cfgpkg "github.com/KaramelBytes/statloom-cli/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	cfgFile string
	debug   bool

	// Loaded configuration
	cfg *cfgpkg.Global

	// Replaced in loadConfig once the log level is known.
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "statloom",
	Short: "StatLoom CLI: run statistical analyses on tabular data",
	Long: `StatLoom loads CSV/TSV/XLSX datasets and runs t-tests, ANOVA, regression,
PCA and factor analysis, writing Markdown, JSON or YAML reports and keeping a
history of runs per project.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	defer func() { _ = logger.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.statloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = &cfgpkg.Global{}
	}
	cfg = c

	l, err := newLogger(debug, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: logger setup failed: %v\n", err)
		return
	}
	logger = l
}

// newLogger writes to stderr so reports on stdout stay clean.
func newLogger(debug bool, level string) (*zap.Logger, error) {
	if debug {
		zc := zap.NewDevelopmentConfig()
		zc.OutputPaths = []string{"stderr"}
		return zc.Build()
	}
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil || level == "" {
		lvl = zapcore.WarnLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.DisableStacktrace = true
	zc.Sampling = nil
	return zc.Build()
}
