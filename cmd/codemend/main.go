package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"codemend/internal/logging"
)

var (
	// Global flags
	verbose   bool
	workspace string
	cfgPath   string
	timeout   time.Duration

	// Logger
	logger *zap.Logger

	cancelTimeout context.CancelFunc
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "codemend",
	Short: "codemend - error recovery for generated source trees",
	Long: `codemend repairs generated app source trees that failed to compile.

It classifies build diagnostics, runs an ordered chain of repair
strategies (cleanup, dependency, identifier, syntax, knowledge,
generative), and only accepts a fix after verifying it produced a
real, non-regressive diff. Identifier mappings and fix patterns that
survive verification are remembered for the next run.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("categorized logging unavailable", zap.Error(err))
		}
		if verbose {
			logging.SetDebug(true)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		cancelTimeout = cancel
		cmd.SetContext(ctx)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if cancelTimeout != nil {
			cancelTimeout()
		}
		if logger != nil {
			logger.Sync()
		}
		logging.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "Workspace directory")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".codemend/config.yaml", "Config file path")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(dedupeCmd)
}

// resolveConfigPath interprets a relative --config against the
// workspace and leaves an absolute one alone.
func resolveConfigPath(workspace, cfgPath string) string {
	if filepath.IsAbs(cfgPath) {
		return cfgPath
	}
	return filepath.Join(workspace, cfgPath)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		// Exiting here, after Execute has returned, lets the command's
		// deferred cleanup (engine close, session close) run first.
		if errors.Is(err, errExhausted) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
