package cql

import (
	"bytes"
	"fmt"
	"io"
)

// Frame header layout, big-endian:
//
//	byte  version   (0x04 request, 0x84 response)
//	byte  flags
//	u16   stream
//	byte  opcode
//	u32   length
//	...   body
const (
	VersionRequest  = 0x04
	VersionResponse = 0x84

	// MaxBodyLength caps frame bodies at 256 MiB.
	MaxBodyLength = 256 << 20
)

// Opcode is the single byte distinguishing the message kind.
type Opcode byte

const (
	OpError     Opcode = 0x00
	OpStartup   Opcode = 0x01
	OpReady     Opcode = 0x02
	OpOptions   Opcode = 0x05
	OpSupported Opcode = 0x06
	OpQuery     Opcode = 0x07
	OpResult    Opcode = 0x08
)

func (op Opcode) String() string {
	switch op {
	case OpError:
		return "ERROR"
	case OpStartup:
		return "STARTUP"
	case OpReady:
		return "READY"
	case OpOptions:
		return "OPTIONS"
	case OpSupported:
		return "SUPPORTED"
	case OpQuery:
		return "QUERY"
	case OpResult:
		return "RESULT"
	default:
		return fmt.Sprintf("0x%02x", byte(op))
	}
}

func (op Opcode) isRequest() bool {
	switch op {
	case OpStartup, OpOptions, OpQuery:
		return true
	}
	return false
}

func (op Opcode) isResponse() bool {
	switch op {
	case OpError, OpReady, OpSupported, OpResult:
		return true
	}
	return false
}

func validOpcode(b byte) bool {
	switch Opcode(b) {
	case OpError, OpStartup, OpReady, OpOptions, OpSupported, OpQuery, OpResult:
		return true
	}
	return false
}

// Header is the fixed 9-byte frame prefix (the length field is carried
// alongside the body in Frame).
type Header struct {
	Version byte
	Flags   byte
	Stream  uint16
	Opcode  Opcode
}

// Frame is one protocol message: header plus raw body bytes.
type Frame struct {
	Header Header
	Body   []byte
}

// ReadFrame reads one frame, validating the version, the opcode and its
// direction, and the body length cap.
func ReadFrame(r io.Reader) (*Frame, error) {
	var fixed [9]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return nil, err
	}

	version := fixed[0]
	if version != VersionRequest && version != VersionResponse {
		return nil, fmt.Errorf("invalid version: expected 0x04 or 0x84, got 0x%02x", version)
	}
	if !validOpcode(fixed[4]) {
		return nil, fmt.Errorf("invalid opcode: 0x%02x", fixed[4])
	}
	opcode := Opcode(fixed[4])
	if version == VersionRequest && !opcode.isRequest() {
		return nil, fmt.Errorf("invalid opcode: %s is not a request opcode", opcode)
	}
	if version == VersionResponse && !opcode.isResponse() {
		return nil, fmt.Errorf("invalid opcode: %s is not a response opcode", opcode)
	}

	length := uint32(fixed[5])<<24 | uint32(fixed[6])<<16 | uint32(fixed[7])<<8 | uint32(fixed[8])
	if length > MaxBodyLength {
		return nil, fmt.Errorf("frame body too large: %d bytes", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	return &Frame{
		Header: Header{
			Version: version,
			Flags:   fixed[1],
			Stream:  uint16(fixed[2])<<8 | uint16(fixed[3]),
			Opcode:  opcode,
		},
		Body: body,
	}, nil
}

// WriteFrame writes one frame, enforcing the same direction rules as
// ReadFrame.
func WriteFrame(w io.Writer, h Header, body []byte) error {
	if h.Version != VersionRequest && h.Version != VersionResponse {
		return fmt.Errorf("invalid version: 0x%02x", h.Version)
	}
	if h.Version == VersionRequest && !h.Opcode.isRequest() {
		return fmt.Errorf("invalid opcode: %s is not a request opcode", h.Opcode)
	}
	if h.Version == VersionResponse && !h.Opcode.isResponse() {
		return fmt.Errorf("invalid opcode: %s is not a response opcode", h.Opcode)
	}
	if len(body) > MaxBodyLength {
		return fmt.Errorf("frame body too large: %d bytes", len(body))
	}

	var buf bytes.Buffer
	buf.WriteByte(h.Version)
	buf.WriteByte(h.Flags)
	buf.WriteByte(byte(h.Stream >> 8))
	buf.WriteByte(byte(h.Stream))
	buf.WriteByte(byte(h.Opcode))
	if err := writeUint32(&buf, uint32(len(body))); err != nil {
		return err
	}
	buf.Write(body)

	_, err := w.Write(buf.Bytes())
	return err
}

// WriteResponse writes a response frame with the given opcode and body,
// echoing the request's stream id.
func WriteResponse(w io.Writer, op Opcode, stream uint16, body []byte) error {
	return WriteFrame(w, Header{Version: VersionResponse, Stream: stream, Opcode: op}, body)
}

// WriteRequest writes a request frame.
func WriteRequest(w io.Writer, op Opcode, stream uint16, body []byte) error {
	return WriteFrame(w, Header{Version: VersionRequest, Stream: stream, Opcode: op}, body)
}
