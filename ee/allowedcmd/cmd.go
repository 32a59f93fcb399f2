// Package allowedcmd wraps access to exec.Cmd in order to consolidate path
// lookup logic. We mostly use hardcoded (known, safe) paths to
// executables, but make an exception to allow for looking up executable
// locations when it's not possible to know these locations in advance --
// e.g. on NixOS, we cannot know the specific store path ahead of time.
// All process spawning the display core does should go through this
// package.
package allowedcmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"

	"github.com/kolide/displayd/ee/observability"
)

type TracedCmd struct {
	Ctx context.Context // nolint:containedctx // short-lived cmd context
	*exec.Cmd
}

// Start overrides Start to add a span around process spawn.
func (t *TracedCmd) Start() error {
	_, span := observability.StartSpan(t.Ctx, "path", t.Path, "args", fmt.Sprintf("%+v", t.Args))
	defer span.End()

	return t.Cmd.Start() //nolint:forbidigo
}

func (t *TracedCmd) String() string {
	return fmt.Sprintf("%+v", t.Args)
}

// Run overrides Run to add a span around process execution.
func (t *TracedCmd) Run() error {
	_, span := observability.StartSpan(t.Ctx, "path", t.Path, "args", fmt.Sprintf("%+v", t.Args))
	defer span.End()

	return t.Cmd.Run() //nolint:forbidigo
}

// Output overrides Output to add a span around process execution.
func (t *TracedCmd) Output() ([]byte, error) {
	_, span := observability.StartSpan(t.Ctx, "path", t.Path, "args", fmt.Sprintf("%+v", t.Args))
	defer span.End()

	return t.Cmd.Output() //nolint:forbidigo
}

var ErrCommandNotFound = errors.New("command not found")

type AllowedCommand struct {
	knownPaths []string
	env        []string
}

func newAllowedCommand(knownPaths ...string) AllowedCommand {
	return AllowedCommand{
		knownPaths: knownPaths,
	}
}

func (ac AllowedCommand) WithEnv(env string) AllowedCommand {
	ac.env = append(ac.env, env)
	return ac
}

func (ac AllowedCommand) Name() string {
	if len(ac.knownPaths) == 0 {
		return "~unknown~"
	}

	return ac.knownPaths[0]
}

// Cmd resolves the command to one of its known paths (falling back to a
// PATH search on distros where the install location isn't fixed, e.g.
// NixOS) and returns a traced *exec.Cmd wrapper ready to Start/Run.
func (ac AllowedCommand) Cmd(ctx context.Context, arg ...string) (*TracedCmd, error) {
	for _, knownPath := range ac.knownPaths {
		knownPath = filepath.Clean(knownPath)

		if _, err := os.Stat(knownPath); err == nil {
			return ac.newCmd(ctx, knownPath, arg...), nil
		}
	}

	if !allowSearchPath() {
		return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, ac.Name())
	}

	for _, knownPath := range ac.knownPaths {
		cmdName := filepath.Base(knownPath)
		if foundPath, err := exec.LookPath(cmdName); err == nil {
			return ac.newCmd(ctx, foundPath, arg...), nil
		}
	}

	return nil, fmt.Errorf("%w: not found at %s and could not be located elsewhere", ErrCommandNotFound, ac.Name())
}

func (ac AllowedCommand) newCmd(ctx context.Context, fullPathToCmd string, arg ...string) *TracedCmd {
	cmd := exec.CommandContext(ctx, fullPathToCmd, arg...) //nolint:forbidigo
	cmd.Env = append(cmd.Environ(), ac.env...)
	return &TracedCmd{
		Ctx: ctx,
		Cmd: cmd,
	}
}

func allowSearchPath() bool {
	return IsNixOS()
}

// Save results of lookup so we don't have to stat for /etc/NIXOS every time
// we want to know.
var (
	checkedIsNixOS = &atomic.Bool{}
	isNixOS        = &atomic.Bool{}
)

func IsNixOS() bool {
	if checkedIsNixOS.Load() {
		return isNixOS.Load()
	}

	if _, err := os.Stat("/etc/NIXOS"); err == nil {
		isNixOS.Store(true)
	}

	checkedIsNixOS.Store(true)
	return isNixOS.Load()
}
