// Package cli wires the preparation stages into a cobra command tree.
//
// Every command resolves the YAML configuration (--config flag, then the
// CONFIG_PATH environment variable, then config/config.yaml), applies its own
// flag overrides, runs one stage and prints a plain-text summary to stdout.
// Diagnostics go to the slog default logger on stderr.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ironsheep/ultrasound-prep/internal/config"
)

// EnvLogLevel names the environment variable holding the default log level.
const EnvLogLevel = "ULTRASOUND_PREP_LOG_LEVEL"

// LogLevel is the level of the default slog handler installed by SetupLogging.
var LogLevel = new(slog.LevelVar)

// SetupLogging installs a text handler on w as the slog default. level is one
// of debug, info, warn or error; empty means info.
func SetupLogging(w io.Writer, level string) error {
	if err := setLevel(level); err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: LogLevel})))
	return nil
}

func setLevel(level string) error {
	if strings.TrimSpace(level) == "" {
		LogLevel.Set(slog.LevelInfo)
		return nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	LogLevel.Set(l)
	return nil
}

// app is the state shared by all commands of one invocation.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	loaded string // config file used, empty for built-in defaults
	runID  string
}

// NewRootCommand builds the full command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "ultrasound-prep",
		Short: "Prepare the fetal ultrasound dataset for model tuning",
		Long: `ultrasound-prep downloads the fetal ultrasound dataset, reorganizes and
cleans it, derives ellipse overlays and statistics, correlates images with
their metadata, builds the JSONL tuning file, and uploads the results to
Google Cloud Storage.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $"+config.EnvConfigPath+" or "+config.DefaultPath+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		a.downloadCommand(),
		a.extractCommand(),
		a.stripCommand(),
		a.cleanCommand(),
		a.overlayCommand(),
		a.ellipseParamsCommand(),
		a.annotateCommand(),
		a.correlateCommand(),
		a.jsonlCommand(),
		a.bucketCommand(),
		a.uploadCommand(),
	)

	return root
}

func (a *app) init() error {
	if a.logLevel != "" {
		if err := setLevel(a.logLevel); err != nil {
			return err
		}
	}

	cfg, loaded, err := config.Resolve(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.loaded = loaded
	a.runID = uuid.NewString()

	if loaded == "" {
		slog.Debug("using built-in configuration", "run", a.runID)
	} else {
		slog.Debug("loaded configuration", "path", loaded, "run", a.runID)
	}
	return nil
}

// Execute runs the command tree against os.Args.
func Execute(ctx context.Context, version string) error {
	root := NewRootCommand(version)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
