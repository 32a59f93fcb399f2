// Command session-helper is the privileged leg of session launch. It is
// installed setuid-root, invoked only by the Orchestrator (never by a
// user directly), and exits with one of sessionhelper's defined codes.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/kolide/displayd/ee/sessionhelper"
	"github.com/kolide/displayd/ee/sessionhelper/pamlite"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})).With("component", "session-helper", "pid", os.Getpid())

	invocation, err := sessionhelper.ParseInvocation(args)
	if err != nil {
		logger.Error("parsing invocation", "err", err)
		return sessionhelper.ExitOtherError
	}

	backend := pamlite.NewBackend(invocation.Autologin, os.Getenv("DISPLAYD_REFERENCE_SECRET"))

	driver := sessionhelper.NewDriver(invocation, backend, logger)
	return driver.Run(context.Background())
}
