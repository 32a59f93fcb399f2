package sessionipc

// Frame is a decoded, opcode-tagged message. Payload fields not relevant to
// Opcode are left zero-valued; see the per-opcode constructors below for the
// fields each direction actually populates.
type Frame struct {
	Opcode Opcode

	// HELLO
	ID int64

	// INFO / ERROR
	Message string
	Kind    int32

	// REQUEST
	Prompts []Prompt

	// AUTHENTICATED
	User string
	Env  map[string]string
	// Cookie reuses the AuthCookie wire shape as a plain string: the
	// channel doesn't know about the display package's type, it only
	// carries bytes.
	Cookie string

	// SESSION_STATUS
	Success bool
}

// HelloFrame builds the Helper's opening frame.
func HelloFrame(id int64) Frame {
	return Frame{Opcode: OpcodeHello, ID: id}
}

// InfoFrame builds a Helper->Orchestrator informational notice.
func InfoFrame(message string, kind int32) Frame {
	return Frame{Opcode: OpcodeInfo, Message: message, Kind: kind}
}

// ErrorFrame builds a Helper->Orchestrator error notice.
func ErrorFrame(message string, kind int32) Frame {
	return Frame{Opcode: OpcodeError, Message: message, Kind: kind}
}

// RequestFrame builds a REQUEST frame carrying a prompt list, sent in
// either direction of the conversation.
func RequestFrame(prompts []Prompt) Frame {
	return Frame{Opcode: OpcodeRequest, Prompts: prompts}
}

// AuthenticatedQuery is the Helper->Orchestrator half of the AUTHENTICATED
// exchange: just the authenticated user name (empty on failure).
func AuthenticatedQuery(user string) Frame {
	return Frame{Opcode: OpcodeAuthenticated, User: user}
}

// AuthenticatedReply is the Orchestrator->Helper half: the session
// environment and the display's auth cookie (empty cookie when no session
// is to be launched).
func AuthenticatedReply(user string, env map[string]string, cookie string) Frame {
	return Frame{Opcode: OpcodeAuthenticated, User: user, Env: env, Cookie: cookie}
}

// SessionStatusQuery is the Helper->Orchestrator half: whether the session
// opened successfully.
func SessionStatusQuery(success bool) Frame {
	return Frame{Opcode: OpcodeSessionStatus, Success: success}
}

// SessionStatusAck is the Orchestrator->Helper empty acknowledgement.
func SessionStatusAck() Frame {
	return Frame{Opcode: OpcodeSessionStatus}
}

func encodeFrame(f Frame) ([]byte, error) {
	if !validOpcode(f.Opcode) {
		return nil, ErrProtocolViolation
	}

	var e encoder
	switch f.Opcode {
	case OpcodeHello:
		e.writeInt64(f.ID)
	case OpcodeInfo, OpcodeError:
		e.writeString(f.Message)
		e.writeInt32(f.Kind)
	case OpcodeRequest:
		e.writePromptList(f.Prompts)
	case OpcodeAuthenticated:
		e.writeString(f.User)
		// Env/Cookie are only present on the Orchestrator->Helper leg;
		// an empty map/string round-trips cleanly for the other leg.
		e.writeStringMap(f.Env)
		e.writeString(f.Cookie)
	case OpcodeSessionStatus:
		e.writeBool(f.Success)
	}

	header := make([]byte, 8)
	byteOrder.PutUint32(header[0:4], uint32(len(e.bytes())))
	byteOrder.PutUint32(header[4:8], uint32(f.Opcode))

	return append(header, e.bytes()...), nil
}

func decodePayload(opcode Opcode, payload []byte) (Frame, error) {
	f := Frame{Opcode: opcode}
	d := newDecoder(payload)

	var err error
	switch opcode {
	case OpcodeHello:
		f.ID, err = d.readInt64()
	case OpcodeInfo, OpcodeError:
		if f.Message, err = d.readString(); err != nil {
			break
		}
		f.Kind, err = d.readInt32()
	case OpcodeRequest:
		f.Prompts, err = d.readPromptList()
	case OpcodeAuthenticated:
		if f.User, err = d.readString(); err != nil {
			break
		}
		if f.Env, err = d.readStringMap(); err != nil {
			break
		}
		f.Cookie, err = d.readString()
	case OpcodeSessionStatus:
		f.Success, err = d.readBool()
	default:
		return Frame{}, ErrProtocolViolation
	}

	if err != nil {
		return Frame{}, err
	}
	return f, nil
}
