package invocation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Plan is the three-way partition of a raw `run` argument vector:
// flags for the dependency manager, an optional target path, and arguments
// for the executed script. It is built once per invocation and consumed by
// the process launch.
type Plan struct {
	// ManagerFlags are passed verbatim to `uv run`, in order.
	ManagerFlags []string
	// Target is the archive or script path, empty when none was given.
	Target string
	// ScriptArgs are passed verbatim to the executed script, in order.
	ScriptArgs []string

	// Password is the value of --password/-p (reserved for encrypted archives).
	Password string
	// SignedKeyPath is the explicit key path given with --signed, if any.
	SignedKeyPath string
	// SignedRequested is set when --signed was present in any form.
	SignedRequested bool
	// ManagerHelp is set by -hh/--uv-run-help: show the manager's own run help.
	ManagerHelp bool
}

// ErrMissingFlagValue is returned when a flag that consumes a value is the
// last token.
var ErrMissingFlagValue = errors.New("flag requires a value")

// state enumerates the phases of the scan.
type state int

const (
	// collectingManagerFlags runs until a separator or positional target.
	collectingManagerFlags state = iota
	// collectingScriptArgs consumes everything verbatim.
	collectingScriptArgs
)

// keySuffix marks an explicit --signed value.
const keySuffix = ".key"

// managerValueFlags are uv flags known to consume the following token.
// Their values must not be mistaken for the target path.
var managerValueFlags = map[string]struct{}{
	"--python":            {},
	"--with":              {},
	"--with-requirements": {},
	"--index":             {},
	"--default-index":     {},
	"--extra-index-url":   {},
	"--env-file":          {},
	"--directory":         {},
	"--project":           {},
}

// Parse partitions the raw tokens following the `run` subcommand.
//
// The scan is a two-state machine. While collecting manager flags, the
// first token that is neither dash-prefixed nor the value of a known
// value-consuming flag becomes the target and flips the state; from then on
// every token is a script argument, dashes included. A literal `--` flips
// the state immediately without setting a target. Tool-owned flags
// (--password/-p, --signed, -hh/--uv-run-help) are peeled off before
// routing.
func Parse(tokens []string) (*Plan, error) {
	plan := &Plan{}
	current := collectingManagerFlags

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]

		if current == collectingScriptArgs {
			plan.ScriptArgs = append(plan.ScriptArgs, token)
			continue
		}

		switch {
		case token == "--":
			current = collectingScriptArgs

		case token == "--password" || token == "-p":
			if i+1 >= len(tokens) {
				return nil, fmt.Errorf("%s: %w", token, ErrMissingFlagValue)
			}

			i++
			plan.Password = tokens[i]

		case strings.HasPrefix(token, "--password="):
			plan.Password = strings.TrimPrefix(token, "--password=")

		case token == "--signed":
			plan.SignedRequested = true
			// An explicit key path may follow; anything else (the target,
			// another flag) stays in the stream and the key is resolved
			// from the environment or the archive name later.
			if i+1 < len(tokens) && strings.HasSuffix(tokens[i+1], keySuffix) {
				i++
				plan.SignedKeyPath = tokens[i]
			}

		case strings.HasPrefix(token, "--signed="):
			plan.SignedRequested = true
			plan.SignedKeyPath = strings.TrimPrefix(token, "--signed=")

		case token == "-hh" || token == "--uv-run-help":
			plan.ManagerHelp = true

		case strings.HasPrefix(token, "-"):
			plan.ManagerFlags = append(plan.ManagerFlags, token)

			if _, consumes := managerValueFlags[token]; consumes {
				if i+1 >= len(tokens) {
					return nil, fmt.Errorf("%s: %w", token, ErrMissingFlagValue)
				}

				i++
				plan.ManagerFlags = append(plan.ManagerFlags, tokens[i])
			}

		default:
			plan.Target = token
			current = collectingScriptArgs
		}
	}

	return plan, nil
}

// TargetIsArchive reports whether the resolved target names a zip archive.
func (p *Plan) TargetIsArchive() bool {
	return strings.EqualFold(filepath.Ext(p.Target), ".zip")
}
