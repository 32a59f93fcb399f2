// Command displayd is the unprivileged display-manager daemon: it
// supervises one seat's X server via ee/display and launches sessions
// against it by spawning ee/sessionhelper's setuid session-helper through
// ee/orchestrator.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kolide/displayd/ee/display"
	"github.com/kolide/displayd/ee/orchestrator"
	"github.com/kolide/displayd/pkg/rungroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	if err := mainImpl(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func mainImpl(args []string) error {
	opts, err := parseOptions(args)
	if err != nil {
		return err
	}

	logger := newLogger(opts)
	logger.Info("starting", "seat", opts.snapshot.Seat)

	onEvent := func(ev display.Event) {
		logger.Info("display event", "event", ev.String())
	}

	supervisor := display.NewSupervisor(opts.snapshot, logger, onEvent)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()
	if err := supervisor.Start(startCtx); err != nil {
		return fmt.Errorf("starting display server: %w", err)
	}

	if err := supervisor.SetupDisplay(context.Background(), nil); err != nil {
		logger.Warn("display setup hook failed", "err", err)
	}

	o := orchestrator.New(opts.HelperPath, opts.snapshot.RuntimeDir)
	greeter := &logGreeter{logger: logger}

	stop := make(chan struct{})

	runGroup := rungroup.NewRunGroup()
	runGroup.SetSlogger(logger)

	runGroup.Add("displaySupervisor", supervisor.Execute, supervisor.Interrupt)

	runGroup.Add("signalListener", func() error {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		sig := <-signals
		logger.Info("received signal", "signal", sig.String())
		return nil
	}, func(error) {})

	runGroup.Add("sessionLifecycle", func() error {
		return sessionLifecycle(context.Background(), o, supervisor, opts, greeter, logger, stop)
	}, func(error) {
		close(stop)
	})

	if err := runGroup.Run(); err != nil {
		logger.Error("run group exited with error", "err", err)
		return err
	}

	return nil
}

// sessionLifecycle keeps a session running against the supervised
// display for as long as the daemon is up: either the configured
// autologin user's session, repeatedly, or the greeter session. Handing
// an authenticated user off from the greeter's own UI into a second
// Helper invocation is the graphical greeter's job -- an external
// collaborator out of scope here -- so in greeter mode this just keeps
// relaunching the greeter session whenever it exits.
func sessionLifecycle(ctx context.Context, o *orchestrator.Orchestrator, supervisor *display.Supervisor, opts *options, greeter orchestrator.Greeter, logger *slog.Logger, stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		env := map[string]string{
			"DISPLAY":    supervisor.DisplayName(),
			"XAUTHORITY": string(supervisor.AuthorityPath()),
		}
		cookie := string(supervisor.Cookie())

		var desc orchestrator.SessionDescriptor
		if opts.AutologinUser != "" {
			desc = orchestrator.SessionDescriptor{
				ExecPath: opts.SessionPath,
				User:     opts.AutologinUser,
				Type:     orchestrator.SessionX11,
				Env:      env,
			}
		} else {
			desc = orchestrator.SessionDescriptor{
				ExecPath: opts.GreeterPath,
				Type:     orchestrator.SessionGreeter,
				Env:      env,
			}
		}

		result, err := o.Launch(ctx, desc, greeter, env, cookie, true)
		if err != nil {
			logger.Error("launching session", "err", err, "type", desc.Type)
			select {
			case <-stop:
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		logger.Info("session exited", "exit_code", result.ExitCode, "user", result.User, "type", desc.Type)
	}
}

func newLogger(opts *options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	if opts.LogPath != "" {
		out = &lumberjack.Logger{
			Filename:   opts.LogPath,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
	}

	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: level,
	})).With("component", "displayd", "pid", os.Getpid())
}
