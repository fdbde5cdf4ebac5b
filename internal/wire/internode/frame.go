// Package internode implements the peer-to-peer framing protocol: a single
// frame-type byte followed by a self-delimited binary body. It is not
// compatible with the client protocol.
package internode

import (
	"bufio"
	"fmt"
	"io"
)

// FrameType discriminates the body that follows.
type FrameType byte

const (
	FrameQuery  FrameType = 0x01
	FrameResult FrameType = 0x02
	FrameSyn    FrameType = 0x03
	FrameAck    FrameType = 0x04
	FrameHinted FrameType = 0x05
)

func (t FrameType) String() string {
	switch t {
	case FrameQuery:
		return "QUERY"
	case FrameResult:
		return "RESULT"
	case FrameSyn:
		return "SYN"
	case FrameAck:
		return "ACK"
	case FrameHinted:
		return "HINTED"
	default:
		return fmt.Sprintf("0x%02x", byte(t))
	}
}

// Body is one of QueryBody, ResultBody, SynBody, AckBody or HintedBody.
type Body interface {
	encode(w io.Writer) error
	decode(r io.Reader) error
}

// WriteFrame writes the frame-type byte and the body.
func WriteFrame(w io.Writer, t FrameType, body Body) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write([]byte{byte(t)}); err != nil {
		return err
	}
	if err := body.encode(bw); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadFrame reads one frame and decodes its body.
func ReadFrame(r io.Reader) (FrameType, Body, error) {
	var tb [1]byte
	if _, err := io.ReadFull(r, tb[:]); err != nil {
		return 0, nil, err
	}

	var body Body
	switch FrameType(tb[0]) {
	case FrameQuery:
		body = &QueryBody{}
	case FrameResult:
		body = &ResultBody{}
	case FrameSyn:
		body = &SynBody{}
	case FrameAck:
		body = &AckBody{}
	case FrameHinted:
		body = &HintedBody{}
	default:
		return 0, nil, fmt.Errorf("invalid frame type: 0x%02x", tb[0])
	}

	if err := body.decode(r); err != nil {
		return 0, nil, err
	}
	return FrameType(tb[0]), body, nil
}
