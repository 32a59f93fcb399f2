package display

import "errors"

var (
	// ErrAuthWriteFailed is returned when the xauth helper tool could
	// not be run or exited non-zero while materializing an authority
	// file.
	ErrAuthWriteFailed = errors.New("writing x authority file failed")

	// ErrServerSpawnFailed is returned when the X server process could
	// not be started.
	ErrServerSpawnFailed = errors.New("spawning x server failed")

	// ErrDisplayNumberMissing is returned when the X server exited (or
	// closed its displayfd pipe) without ever reporting a display
	// number.
	ErrDisplayNumberMissing = errors.New("x server did not report a display number")

	// ErrHookTimeout is non-fatal: a setup/teardown hook exceeded its
	// timeout and was killed. Callers log it and continue.
	ErrHookTimeout = errors.New("hook exceeded its timeout")

	// ErrNotIdle is returned by Start when the supervisor is not in the
	// Idle state, and by Stop when it is not in the Running state.
	ErrNotIdle = errors.New("supervisor is not in the required state for this transition")
)
