package sessionipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// byteOrder is the single fixed endianness for every integer on the wire.
var byteOrder = binary.BigEndian

// ErrFrameTooLarge is returned when a frame's declared length prefix
// exceeds the channel's configured maximum.
var ErrFrameTooLarge = errors.New("sessionipc: frame exceeds maximum size")

// ErrMalformedFrame is returned when a payload is shorter than the fields
// its opcode requires.
var ErrMalformedFrame = errors.New("sessionipc: malformed frame payload")

type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) writeUint32(v uint32) {
	var b [4]byte
	byteOrder.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) writeInt32(v int32) {
	e.writeUint32(uint32(v))
}

func (e *encoder) writeInt64(v int64) {
	var b [8]byte
	byteOrder.PutUint64(b[:], uint64(v))
	e.buf.Write(b[:])
}

func (e *encoder) writeBool(v bool) {
	if v {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
}

func (e *encoder) writeString(s string) {
	e.writeUint32(uint32(len(s)))
	e.buf.WriteString(s)
}

func (e *encoder) writeStringMap(m map[string]string) {
	e.writeUint32(uint32(len(m)))
	for k, v := range m {
		e.writeString(k)
		e.writeString(v)
	}
}

func (e *encoder) writePromptList(prompts []Prompt) {
	e.writeUint32(uint32(len(prompts)))
	for _, p := range prompts {
		e.writeInt32(int32(p.Kind))
		e.writeString(p.Message)
		e.writeString(p.Response)
		e.writeBool(p.Hidden)
	}
}

func (e *encoder) bytes() []byte {
	return e.buf.Bytes()
}

type decoder struct {
	r *bytes.Reader
}

func newDecoder(payload []byte) *decoder {
	return &decoder{r: bytes.NewReader(payload)}
}

func (d *decoder) readUint32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, fmt.Errorf("%w: reading uint32: %v", ErrMalformedFrame, err)
	}
	return byteOrder.Uint32(b[:]), nil
}

func (d *decoder) readInt32() (int32, error) {
	v, err := d.readUint32()
	return int32(v), err
}

func (d *decoder) readInt64() (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, fmt.Errorf("%w: reading int64: %v", ErrMalformedFrame, err)
	}
	return int64(byteOrder.Uint64(b[:])), nil
}

func (d *decoder) readBool() (bool, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return false, fmt.Errorf("%w: reading bool: %v", ErrMalformedFrame, err)
	}
	return b != 0, nil
}

func (d *decoder) readString() (string, error) {
	n, err := d.readUint32()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return "", fmt.Errorf("%w: reading string body: %v", ErrMalformedFrame, err)
	}
	return string(buf), nil
}

func (d *decoder) readStringMap() (map[string]string, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		k, err := d.readString()
		if err != nil {
			return nil, err
		}
		v, err := d.readString()
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

func (d *decoder) readPromptList() ([]Prompt, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	prompts := make([]Prompt, 0, n)
	for i := uint32(0); i < n; i++ {
		kind, err := d.readInt32()
		if err != nil {
			return nil, err
		}
		msg, err := d.readString()
		if err != nil {
			return nil, err
		}
		resp, err := d.readString()
		if err != nil {
			return nil, err
		}
		hidden, err := d.readBool()
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, Prompt{Kind: PromptKind(kind), Message: msg, Response: resp, Hidden: hidden})
	}
	return prompts, nil
}
