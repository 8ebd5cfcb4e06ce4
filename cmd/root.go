package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/okian/posgrade/internal/config"
	"github.com/okian/posgrade/pkg/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// cfg is populated by the root command before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "posgrade",
	Short: "Grade NBA player position classification submissions",
	Long: `posgrade grades a predictions file (sol.csv) against the held-out tail of
the NBA player stats table and reports a weighted score in [0, 1].

Configuration is read from defaults, the YAML file named by POSGRADE_CONFIG and
POSGRADE_* environment variables. A .env file in the working directory is
loaded first.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(gradeCmd)
	rootCmd.AddCommand(produceCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.Version = version
}

// setup loads .env and configuration and initializes logging.
func setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	loaded, err := config.Load(cmd.Context())
	if err != nil {
		return err
	}
	cfg = loaded

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(cmd.ErrOrStderr())); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
