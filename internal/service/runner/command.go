package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pytron-dev/pytron/internal/archive"
	"github.com/pytron-dev/pytron/internal/config"
	"github.com/pytron-dev/pytron/internal/invocation"
	"github.com/pytron-dev/pytron/internal/logger"
	"github.com/pytron-dev/pytron/internal/service/uv"
	"github.com/pytron-dev/pytron/internal/signature"
)

// Options are inputs accepted by the runner entry point.
type Options struct {
	// Args is the raw argument vector following the `run` subcommand.
	Args []string
	// ConfigPath optionally points at a settings file outside the pytron home.
	ConfigPath string
}

// SignatureKeyEnvVar names an environment override for the verification key path.
const SignatureKeyEnvVar = "PYTRON_SIGNATURE_KEY"

var (
	errEncryptedUnsupported = errors.New("encrypted archives are not supported")
	errScriptNotFound       = errors.New("script not found")
)

// Run disambiguates the argument vector, prepares the target, and executes
// it through uv. It returns the exit code to propagate: uv's own exit code
// on a completed run, non-zero on any runner failure.
func Run(ctx context.Context, opts *Options) (int, error) {
	ctx = logger.WithName(ctx, "run")

	plan, err := invocation.Parse(opts.Args)
	if err != nil {
		return 2, err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return 1, err
	}

	uvPath, err := uv.Ensure(ctx, cfg)
	if err != nil {
		return 1, err
	}

	if plan.ManagerHelp {
		return execute(ctx, uvPath, "", []string{"run", "--help"})
	}

	if plan.Password != "" {
		// The flag is kept for CLI compatibility with encrypted bundles.
		return 1, errEncryptedUnsupported
	}

	if plan.Target == "" {
		plan.Target = cfg.DefaultArchive
		logger.DebugKV(ctx, "No target given, using default", "target", plan.Target)
	}

	if plan.TargetIsArchive() {
		return runArchive(ctx, uvPath, plan.Target, cfg, plan)
	}

	return runScript(ctx, uvPath, plan.Target, plan)
}

// runArchive verifies (when requested), extracts, and executes an archive target.
func runArchive(ctx context.Context, uvPath, archivePath string, cfg *config.Config, plan *invocation.Plan) (int, error) {
	if plan.SignedRequested {
		keyPath := resolveKeyPath(ctx, archivePath, plan)
		if err := signature.Verify(archivePath, keyPath); err != nil {
			return 1, err
		}

		logger.InfoKV(ctx, "Signature verified", "archive", archivePath, "key", keyPath)
	}

	workDir, err := archive.ExtractToTemp(ctx, archivePath, filepath.Join(config.Home(), "temp"))
	if err != nil {
		return 1, err
	}

	// Best-effort cleanup on every exit path; a leftover directory is an
	// inconvenience, not a failure.
	defer func() {
		if removeErr := os.RemoveAll(workDir); removeErr != nil {
			logger.WarnKV(ctx, "Unable to remove extraction directory",
				"directory", workDir, "error", removeErr)
		}
	}()

	script := filepath.Join(workDir, filepath.FromSlash(cfg.Entrypoint))
	if _, err = os.Stat(script); err != nil {
		return 1, fmt.Errorf("%s in %s: %w", cfg.Entrypoint, archivePath, errScriptNotFound)
	}

	args := managerArgs(plan, script)

	logger.InfoKV(ctx, "Running from archive",
		"archive", archivePath, "script", cfg.Entrypoint, "workdir", workDir)

	return execute(ctx, uvPath, workDir, args)
}

// runScript executes a plain script target in place, no extraction.
func runScript(ctx context.Context, uvPath, script string, plan *invocation.Plan) (int, error) {
	if _, err := os.Stat(script); err != nil {
		return 1, fmt.Errorf("%s: %w", script, errScriptNotFound)
	}

	logger.InfoKV(ctx, "Running script directly", "script", script)

	return execute(ctx, uvPath, "", managerArgs(plan, script))
}

// managerArgs assembles the uv argument vector:
// run-this-script directive, manager flags, script path, script args.
func managerArgs(plan *invocation.Plan, script string) []string {
	args := make([]string, 0, 2+len(plan.ManagerFlags)+len(plan.ScriptArgs))
	args = append(args, "run")
	args = append(args, plan.ManagerFlags...)
	args = append(args, script)
	args = append(args, plan.ScriptArgs...)

	return args
}

// resolveKeyPath picks the verification key: explicit flag value, then the
// environment, then the archive name with a .key extension.
func resolveKeyPath(ctx context.Context, archivePath string, plan *invocation.Plan) string {
	if plan.SignedKeyPath != "" {
		return plan.SignedKeyPath
	}

	if fromEnv := os.Getenv(SignatureKeyEnvVar); fromEnv != "" {
		logger.InfoKV(ctx, "Using verification key from environment", "key", fromEnv)
		return fromEnv
	}

	return signature.KeyPathFor(archivePath)
}

// execute spawns uv with inherited stdio, blocks until it exits, and maps
// its exit status to a code the CLI can propagate.
func execute(ctx context.Context, uvPath, workDir string, args []string) (int, error) {
	logger.DebugKV(ctx, "Invoking dependency manager", "uv", uvPath, "args", args)

	cmd := exec.CommandContext(ctx, uvPath, args...)
	cmd.Dir = workDir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return 1, fmt.Errorf("spawn uv: %w", err)
}
