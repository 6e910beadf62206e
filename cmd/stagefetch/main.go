// Command stagefetch downloads a dataset archive once and stages its records
// into per-split folders.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/stagefetch"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string
	baseDir    string

	// Loaded in PersistentPreRunE
	cfg    *Config
	logger *stagefetch.Logger
)

var rootCmd = &cobra.Command{
	Use:   "stagefetch",
	Short: "Fetch a dataset archive once and stage it into split folders",
	Long: `stagefetch tries each configured source in order, downloads the first
available archive and unpacks it into one folder per split. A split folder
carries a manifest only after a complete run, so later runs load the staged
records without touching the network.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") || cfg.Log.Level == "" {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") || cfg.Log.Format == "" {
			cfg.Log.Format = logFormat
		}
		if baseDir != "" {
			cfg.BaseDir = baseDir
		}
		logger, err = newLogger(cfg.Log)
		return err
	},
}

func newLogger(c LogConfig) (*stagefetch.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	switch strings.ToLower(c.Format) {
	case "", "text":
		return stagefetch.NewTextLogger(level), nil
	case "json":
		return stagefetch.NewJSONLogger(level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Format)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "stagefetch.yaml", "Path to the YAML config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVarP(&baseDir, "base-dir", "d", "", "Dataset folder (overrides base_dir)")

	rootCmd.AddCommand(fetchCmd, infoCmd, cleanCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
