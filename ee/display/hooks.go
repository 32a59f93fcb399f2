package display

import (
	"context"
	"fmt"
	"time"

	"github.com/kolide/displayd/ee/allowedcmd"
	"github.com/kolide/displayd/ee/config"
	"github.com/kolide/displayd/ee/observability"
)

// SetupDisplay is the optional post-start hook: it sets the root cursor,
// runs the configured display-setup command, and reloads configuration
// afterward since the hook may have altered on-disk config. It is only
// meaningful once the supervisor has reached StateRunning.
func (s *Supervisor) SetupDisplay(ctx context.Context, reloader config.Reloader) error {
	ctx, span := observability.StartSpan(ctx, "seat", s.cfg.Seat)
	defer span.End()

	if s.State() != StateRunning {
		return fmt.Errorf("setupDisplay called while supervisor is %s, not running", s.State())
	}

	env := s.hookEnv()

	cursorTimeout := s.cfg.CursorSetupTimeout
	if cursorTimeout <= 0 {
		cursorTimeout = time.Second
	}
	if err := s.runCursorSetup(ctx, env, cursorTimeout); err != nil {
		s.logger.Warn("cursor setup failed or timed out", "err", err)
	}

	setupTimeout := s.cfg.DisplaySetupTimeout
	if setupTimeout <= 0 {
		setupTimeout = 30 * time.Second
	}
	if err := s.runDisplaySetup(ctx, env, setupTimeout); err != nil {
		observability.SetError(span, err)
		s.logger.Warn("display setup command failed or timed out", "err", err)
	}

	if reloader != nil {
		if _, err := reloader.Reload(); err != nil {
			s.logger.Warn("reloading configuration after display setup", "err", err)
		}
	}

	return nil
}

func (s *Supervisor) hookEnv() []string {
	return []string{
		"DISPLAY=" + s.DisplayName(),
		"HOME=/",
		"PATH=" + s.cfg.DefaultPath,
		"XAUTHORITY=" + string(s.AuthorityPath()),
		"SHELL=/bin/sh",
		"XCURSOR_THEME=" + s.cfg.CursorTheme,
	}
}

func (s *Supervisor) runCursorSetup(ctx context.Context, env []string, timeout time.Duration) error {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd, err := allowedcmd.XsetRoot.Cmd(runCtx, "-cursor_name", "left_ptr")
	if err != nil {
		return fmt.Errorf("locating xsetroot: %w", err)
	}
	cmd.Env = env

	return runWithTimeout(cmd, timeout)
}

func (s *Supervisor) runDisplaySetup(ctx context.Context, env []string, timeout time.Duration) error {
	if s.cfg.DisplaySetupCommand == "" {
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd, err := allowedcmd.Sh.Cmd(runCtx, "-c", s.cfg.DisplaySetupCommand)
	if err != nil {
		return fmt.Errorf("locating shell for display-setup hook: %w", err)
	}
	cmd.Env = env

	return runWithTimeout(cmd, timeout)
}
