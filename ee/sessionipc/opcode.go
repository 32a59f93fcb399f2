// Package sessionipc implements the Framed IPC Channel: a length-prefixed,
// opcode-tagged message stream carried over a local stream socket between
// the unprivileged Orchestrator and the privileged Helper. The wire format
// is a small hand-rolled binary serializer, not a general RPC framework --
// see the encoding rules on Frame and the Channel type.
package sessionipc

import "fmt"

// Opcode tags the payload that follows a frame's length prefix. The set is
// closed; Channel.Receive rejects anything outside it.
type Opcode uint32

const (
	OpcodeHello Opcode = iota
	OpcodeInfo
	OpcodeError
	OpcodeRequest
	OpcodeAuthenticated
	OpcodeSessionStatus
)

func (o Opcode) String() string {
	switch o {
	case OpcodeHello:
		return "HELLO"
	case OpcodeInfo:
		return "INFO"
	case OpcodeError:
		return "ERROR"
	case OpcodeRequest:
		return "REQUEST"
	case OpcodeAuthenticated:
		return "AUTHENTICATED"
	case OpcodeSessionStatus:
		return "SESSION_STATUS"
	default:
		return fmt.Sprintf("OPCODE(%d)", uint32(o))
	}
}

func validOpcode(o Opcode) bool {
	return o <= OpcodeSessionStatus
}

// PromptKind distinguishes the prompts a backend may raise during a REQUEST
// conversation (e.g. secret entry vs. informational confirmation). The
// closed set of kinds is left to callers; the wire only carries the int32.
type PromptKind int32

// Prompt is one entry in a REQUEST frame's prompt list.
type Prompt struct {
	Kind     PromptKind
	Message  string
	Response string
	Hidden   bool
}
