package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pytron-dev/pytron/internal/logger"
	"github.com/pytron-dev/pytron/internal/version"
)

var (
	// configPath to the settings YAML file (defaults to the pytron home).
	configPath string

	// logLevel is the minimum level for log output.
	logLevel string

	// rootCmd represents the base command for packaging and running projects.
	rootCmd = &cobra.Command{
		Use:   "pytron",
		Short: "Package Python projects into portable zip archives and run them with uv",
		Long: "pytron packages a Python project directory into a single zip archive and " +
			"later extracts and executes it through the uv dependency manager, so a " +
			"script plus its dependencies travel as one artifact.",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}
		},
	}
)

// Execute runs the pytron CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to settings file (defaults to the pytron home)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error, fatal")
}
