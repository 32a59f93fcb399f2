package sessionhelper

import (
	"context"
	"errors"

	"github.com/kolide/displayd/ee/sessionipc"
)

// Prompter lets a Backend conduct the REQUEST conversation without
// depending directly on sessionipc.Channel -- it's the seam a Backend
// drives to ask the Orchestrator (and, through it, the greeter) for
// secrets or confirmations, and to raise informational/error notices.
type Prompter interface {
	Request(prompts []sessionipc.Prompt) ([]sessionipc.Prompt, error)
	Info(message string, kind int32) error
	Error(message string, kind int32) error
}

// Backend is the pluggable authentication engine the Driver runs. Its
// internals (PAM or otherwise) are out of scope for this core; only this
// four-call contract matters.
type Backend interface {
	// Start begins an authentication attempt for user (which may be
	// empty, deferring to the backend's own default/autologin logic).
	Start(ctx context.Context, user string, prompter Prompter) error
	// Authenticate runs the conversation to completion, returning the
	// authenticated user name on success.
	Authenticate(ctx context.Context, prompter Prompter) (string, error)
	// OpenSession is called once, after authentication succeeds and iff
	// a session is to be launched, with the final session environment.
	OpenSession(ctx context.Context, env map[string]string) error
	// CloseSession is always called after OpenSession succeeded, even if
	// the session process later exits abnormally.
	CloseSession(ctx context.Context) error
}

var (
	// ErrBackendAuthFailed wraps any failure from Start or Authenticate.
	ErrBackendAuthFailed = errors.New("sessionhelper: backend authentication failed")
	// ErrBackendSessionOpenFailed wraps an OpenSession failure.
	ErrBackendSessionOpenFailed = errors.New("sessionhelper: backend session open failed")
)
