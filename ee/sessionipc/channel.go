package sessionipc

import (
	"bufio"
	"fmt"
	"io"
	"net"
)

// DefaultMaxFrameSize bounds the memory a single frame may claim. Prompt
// lists and environment maps are the only unbounded-ish payloads on this
// wire, and neither legitimately approaches this size.
const DefaultMaxFrameSize = 1 << 20 // 1 MiB

// Channel wraps a stream connection (a Unix-domain socket, in practice)
// with the send/receive half of the length-prefixed, opcode-tagged frame
// protocol. It buffers reads until a frame's declared length is fully
// satisfied, so callers never observe a partial frame.
type Channel struct {
	conn         net.Conn
	r            *bufio.Reader
	maxFrameSize uint32
}

// NewChannel wraps conn with the default maximum frame size.
func NewChannel(conn net.Conn) *Channel {
	return NewChannelWithMaxFrameSize(conn, DefaultMaxFrameSize)
}

// NewChannelWithMaxFrameSize wraps conn, enforcing a caller-supplied
// maximum frame size -- mainly for tests exercising ErrFrameTooLarge.
func NewChannelWithMaxFrameSize(conn net.Conn, maxFrameSize uint32) *Channel {
	return &Channel{
		conn:         conn,
		r:            bufio.NewReader(conn),
		maxFrameSize: maxFrameSize,
	}
}

// Close closes the underlying connection.
func (c *Channel) Close() error {
	return c.conn.Close()
}

// Send encodes and writes f in full, or returns an error if the write
// didn't complete.
func (c *Channel) Send(f Frame) error {
	wire, err := encodeFrame(f)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}

	if _, err := c.conn.Write(wire); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// Receive reads one complete frame off the wire.
func (c *Channel) Receive() (Frame, error) {
	var header [8]byte
	if _, err := io.ReadFull(c.r, header[:]); err != nil {
		return Frame{}, fmt.Errorf("reading frame header: %w", err)
	}

	length := byteOrder.Uint32(header[0:4])
	opcode := Opcode(byteOrder.Uint32(header[4:8]))

	if length > c.maxFrameSize {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(c.r, payload); err != nil {
		return Frame{}, fmt.Errorf("reading frame payload: %w", err)
	}

	if !validOpcode(opcode) {
		return Frame{}, fmt.Errorf("%w: unknown opcode %d", ErrProtocolViolation, uint32(opcode))
	}

	return decodePayload(opcode, payload)
}

// Expect reads one frame and verifies its opcode matches want. On
// mismatch it returns a default-constructed Frame for want's opcode and
// ErrProtocolViolation, per the channel's contract -- the caller is
// expected to fail the session rather than retry.
func (c *Channel) Expect(want Opcode) (Frame, error) {
	f, err := c.Receive()
	if err != nil {
		return Frame{Opcode: want}, err
	}

	if f.Opcode != want {
		return Frame{Opcode: want}, fmt.Errorf("%w: expected %s, got %s", ErrProtocolViolation, want, f.Opcode)
	}

	return f, nil
}
