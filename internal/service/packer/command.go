package packer

import (
	"context"
	"fmt"

	"github.com/pytron-dev/pytron/internal/archive"
	"github.com/pytron-dev/pytron/internal/config"
	"github.com/pytron-dev/pytron/internal/ignore"
	"github.com/pytron-dev/pytron/internal/logger"
	"github.com/pytron-dev/pytron/internal/signature"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// Directory is the project directory to package.
	Directory string
	// Output is the archive path to create or overwrite.
	Output string
	// IgnorePatterns are user-supplied glob patterns; they append to the
	// defaults, a single empty pattern replaces them.
	IgnorePatterns []string
	// Sign appends an ed25519 signature trailer and writes a sidecar key.
	Sign bool
	// ConfigPath optionally points at a settings file outside the pytron home.
	ConfigPath string
}

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "zip")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	rules, err := ignore.Build(opts.Directory, opts.IgnorePatterns, cfg.IgnorePatterns)
	if err != nil {
		return fmt.Errorf("assemble ignore rules: %w", err)
	}

	logger.InfoKV(ctx, "Packaging project",
		"directory", opts.Directory, "output", opts.Output)
	logger.DebugKV(ctx, "Active ignore patterns", "patterns", rules.Patterns())

	count, err := archive.Create(ctx, opts.Directory, opts.Output, rules)
	if err != nil {
		return fmt.Errorf("package %s: %w", opts.Directory, err)
	}

	logger.InfoKV(ctx, "Archive created", "output", opts.Output, "files", count)

	if opts.Sign {
		keyPath, err := signature.Sign(opts.Output)
		if err != nil {
			return fmt.Errorf("sign %s: %w", opts.Output, err)
		}

		logger.InfoKV(ctx, "Archive signed", "key", keyPath)
		logger.Infof(ctx, "Distribute %s alongside the archive; consumers verify with: pytron run --signed %s %s",
			keyPath, keyPath, opts.Output)
	}

	logger.Infof(ctx, "Run it anywhere with: pytron run %s", opts.Output)

	return nil
}
