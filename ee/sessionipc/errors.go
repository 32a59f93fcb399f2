package sessionipc

import "errors"

// ErrProtocolViolation is returned when a received frame's opcode does not
// match what the current exchange expected, or carries an opcode outside
// the closed set. Per the channel's contract, the caller receives a
// default-constructed Frame alongside this error and is expected to fail
// the session rather than retry.
var ErrProtocolViolation = errors.New("sessionipc: protocol violation")
