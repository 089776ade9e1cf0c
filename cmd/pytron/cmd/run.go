package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pytron-dev/pytron/internal/service/runner"
)

// runCmd executes a script or archive through uv. Flag parsing is disabled:
// tokens before the target (or a `--` separator) belong to uv, tokens after
// it belong to the script, and cobra must not swallow either group.
var runCmd = &cobra.Command{
	Use:   "run [UV_FLAGS] [ZIPFILE|SCRIPT] [SCRIPT_ARGS]...",
	Short: "Run a script, either directly or from a zip archive",
	Long: `Run a script, either directly or from a zip archive.

Arguments are separated by a double-dash (--) or by the target path itself:
  - arguments before -- or before the target are passed to uv run
  - arguments after -- or after the target are passed to the script

Special flags:
  -h/--help          show this help message
  -hh/--uv-run-help  show uv's own run help
  --signed [KEY]     verify the archive signature before extraction
  --password VALUE   reserved for encrypted archives`,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
			return cmd.Help()
		}

		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		code, err := runner.Run(ctx, &runner.Options{
			Args:       args,
			ConfigPath: configPath,
		})
		if err != nil {
			cmd.PrintErrln("Error:", err)
		}

		// Mirror the runner's exit code, whether it is the child's own or
		// a failure code such as 2 for a malformed argument vector. Cleanup
		// already ran inside the runner before it returned.
		if code = exitCode(code, err); code != 0 {
			stop()
			os.Exit(code)
		}

		return nil
	},
}

// exitCode maps a runner result to the process exit code, keeping failures
// non-zero even when the runner reported no specific code.
func exitCode(code int, err error) int {
	if err != nil && code == 0 {
		return 1
	}

	return code
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(runCmd)
}
