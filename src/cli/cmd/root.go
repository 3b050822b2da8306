package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sofmeright/ue4-docker/src/config"
	"github.com/sofmeright/ue4-docker/src/errs"
	"github.com/sofmeright/ue4-docker/src/logging"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	cfg       *config.Config
	logger    *slog.Logger
	runID     string
)

var rootCmd = &cobra.Command{
	Use:   "ue4-docker",
	Short: "Windows and Linux containers for Unreal Engine",
	Long:  "ue4-docker builds Unreal Engine container images from source, release by release.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it.
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if logFormat != "" {
			cfg.LogFormat = logFormat
		}
		warnings, err := config.Validate(cfg)
		if err != nil {
			return errs.Configf("invalid config: %v", err)
		}

		logger, err = newLogger(cmd.Name(), cfg.LogFormat)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			logger.Warn(w)
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .ue4-docker.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (default: text)")
}

// newLogger builds the process logger. JSON records carry a run ID so
// concurrent builds can be told apart in aggregated logs.
func newLogger(command, format string) (*slog.Logger, error) {
	mode, err := logging.ParseMode(format)
	if err != nil {
		return nil, errs.Configf("%v", err)
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	runID = uuid.NewString()
	if mode == logging.ModeJSON {
		l := logging.New(os.Stderr, logging.Options{Mode: mode, Level: level})
		return l.With("run", runID, "command", command), nil
	}
	return logging.NewCLI(fmt.Sprintf("[ue4-docker %s] ", command), level), nil
}

// singleDashFlags are long flags historically spelled with one dash.
var singleDashFlags = map[string]bool{
	"username":     true,
	"password":     true,
	"repo":         true,
	"branch":       true,
	"isolation":    true,
	"basetag":      true,
	"suffix":       true,
	"ue4cli":       true,
	"conan-ue4cli": true,
	"layout":       true,
	"interval":     true,
	"changelist":   true,
	"tag":          true,
}

// normalizeArgs rewrites "-basetag ltsc2019" style arguments to their
// double-dash form. Everything after "--" is left untouched.
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i, a := range args {
		if a == "--" {
			return append(out, args[i:]...)
		}
		if strings.HasPrefix(a, "-") && !strings.HasPrefix(a, "--") {
			name, _, _ := strings.Cut(a[1:], "=")
			if singleDashFlags[name] {
				a = "-" + a
			}
		}
		out = append(out, a)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Execute runs the root command.
func Execute() error {
	rootCmd.SetArgs(normalizeArgs(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error(err.Error(), "kind", errs.Kind(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}
