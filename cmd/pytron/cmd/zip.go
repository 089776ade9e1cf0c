package cmd

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pytron-dev/pytron/internal/config"
	"github.com/pytron-dev/pytron/internal/service/packer"
)

var (
	// zipOutput is the archive path written by the zip subcommand.
	zipOutput string

	// zipIgnorePatterns are extra glob patterns excluded from the archive.
	zipIgnorePatterns []string

	// zipSign appends a signature trailer and writes a sidecar key.
	zipSign bool

	// zipCmd packages a project directory into a zip archive.
	zipCmd = &cobra.Command{
		Use:   "zip [directory]",
		Short: "Package a project directory into a zip archive",
		Long: "Package every file under the directory (default: the current one) into a " +
			"zip archive, honoring .gitignore and the built-in excludes for Python " +
			"artifacts. User patterns append to the defaults; pass a single empty " +
			"pattern to drop the defaults.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			directory := "."
			if len(args) == 1 {
				directory = args[0]
			}

			options := &packer.Options{
				Directory:      directory,
				Output:         zipOutput,
				IgnorePatterns: splitPatterns(zipIgnorePatterns),
				Sign:           zipSign,
				ConfigPath:     configPath,
			}

			return packer.Run(ctx, options)
		},
	}
)

// splitPatterns expands comma-separated pattern values while keeping an
// explicit empty value, which is the drop-the-defaults signal.
func splitPatterns(values []string) []string {
	var patterns []string

	for _, value := range values {
		if value == "" {
			patterns = append(patterns, "")
			continue
		}

		patterns = append(patterns, strings.Split(value, ",")...)
	}

	return patterns
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	zipCmd.Flags().StringVarP(&zipOutput, "output", "o", config.DefaultArchiveName, "output archive path")
	zipCmd.Flags().StringArrayVarP(&zipIgnorePatterns, "ignore-patterns", "i", nil, "additional ignore patterns (comma-separated, repeatable; a single empty value drops the built-in defaults)")
	zipCmd.Flags().BoolVar(&zipSign, "sign", false, "sign the archive and write a sidecar public key")

	rootCmd.AddCommand(zipCmd)
}
