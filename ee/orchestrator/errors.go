package orchestrator

import "errors"

var (
	// ErrHelperInFlight is returned by Launch when another Helper
	// session is already in progress for this display.
	ErrHelperInFlight = errors.New("orchestrator: a helper session is already in flight for this display")

	// ErrCorrelationMismatch is returned when the Helper's HELLO frame
	// carries an id that doesn't match the one we spawned it with --
	// evidence of a socket-hijack attempt by another local principal.
	ErrCorrelationMismatch = errors.New("orchestrator: helper correlation id mismatch")

	// ErrHelperOther mirrors the Helper's HELPER_OTHER_ERROR exit code.
	ErrHelperOther = errors.New("orchestrator: helper exited with a non-session error")
)
