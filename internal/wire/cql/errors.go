package cql

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/ringdb/ringdb/pkg/types"
)

// ErrorCode is the i32 error code of an ERROR body.
type ErrorCode int32

const (
	ErrServerError   ErrorCode = 0x0000
	ErrProtocolError ErrorCode = 0x000A
	ErrUnavailable   ErrorCode = 0x1000
	ErrReadFailure   ErrorCode = 0x1300
	ErrWriteFailure  ErrorCode = 0x1500
	ErrSyntaxError   ErrorCode = 0x2000
	ErrInvalid       ErrorCode = 0x2200
	ErrConfigError   ErrorCode = 0x2300
	ErrAlreadyExists ErrorCode = 0x2400
)

// ErrorBody is the decoded ERROR body: code, message and code-specific
// extras.
type ErrorBody struct {
	Code    ErrorCode
	Message string
	Extras  map[string]string
}

// EncodeError encodes an ERROR body. The extras required by the code must
// be present: Unavailable needs consistency/required/alive, Read/Write
// failure need consistency/received/block_for/failures plus
// data_present/write_type, AlreadyExists needs keyspace/table.
func EncodeError(e *ErrorBody) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeInt32(&buf, int32(e.Code)); err != nil {
		return nil, err
	}
	if err := WriteString(&buf, e.Message); err != nil {
		return nil, err
	}

	extra := func(key string) (string, error) {
		v, ok := e.Extras[key]
		if !ok {
			return "", fmt.Errorf("error extra %q not found", key)
		}
		return v, nil
	}
	extraInt := func(key string) (int32, error) {
		v, err := extra(key)
		if err != nil {
			return 0, err
		}
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("error extra %q is not an integer: %w", key, err)
		}
		return int32(n), nil
	}
	writeConsistency := func() error {
		v, err := extra("consistency")
		if err != nil {
			return err
		}
		cl, err := types.ParseConsistency(v)
		if err != nil {
			return err
		}
		return writeUint16(&buf, uint16(cl))
	}

	switch e.Code {
	case ErrUnavailable:
		if err := writeConsistency(); err != nil {
			return nil, err
		}
		for _, key := range []string{"required", "alive"} {
			n, err := extraInt(key)
			if err != nil {
				return nil, err
			}
			if err := writeInt32(&buf, n); err != nil {
				return nil, err
			}
		}
	case ErrReadFailure, ErrWriteFailure:
		if err := writeConsistency(); err != nil {
			return nil, err
		}
		for _, key := range []string{"received", "block_for", "failures"} {
			n, err := extraInt(key)
			if err != nil {
				return nil, err
			}
			if err := writeInt32(&buf, n); err != nil {
				return nil, err
			}
		}
		if e.Code == ErrReadFailure {
			n, err := extraInt("data_present")
			if err != nil {
				return nil, err
			}
			buf.WriteByte(byte(n))
		} else {
			v, err := extra("write_type")
			if err != nil {
				return nil, err
			}
			if err := WriteString(&buf, v); err != nil {
				return nil, err
			}
		}
	case ErrAlreadyExists:
		for _, key := range []string{"keyspace", "table"} {
			v, err := extra(key)
			if err != nil {
				return nil, err
			}
			if err := WriteString(&buf, v); err != nil {
				return nil, err
			}
		}
	}

	return buf.Bytes(), nil
}

// ParseError decodes an ERROR body.
func ParseError(body []byte) (*ErrorBody, error) {
	r := bytes.NewReader(body)
	code, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	message, err := ReadString(r)
	if err != nil {
		return nil, err
	}

	e := &ErrorBody{Code: ErrorCode(code), Message: message, Extras: map[string]string{}}

	readConsistency := func() error {
		raw, err := readUint16(r)
		if err != nil {
			return err
		}
		cl, err := types.ConsistencyFromWire(raw)
		if err != nil {
			return err
		}
		e.Extras["consistency"] = cl.String()
		return nil
	}
	readInt := func(key string) error {
		n, err := readInt32(r)
		if err != nil {
			return err
		}
		e.Extras[key] = strconv.FormatInt(int64(n), 10)
		return nil
	}

	switch e.Code {
	case ErrUnavailable:
		if err := readConsistency(); err != nil {
			return nil, err
		}
		for _, key := range []string{"required", "alive"} {
			if err := readInt(key); err != nil {
				return nil, err
			}
		}
	case ErrReadFailure, ErrWriteFailure:
		if err := readConsistency(); err != nil {
			return nil, err
		}
		for _, key := range []string{"received", "block_for", "failures"} {
			if err := readInt(key); err != nil {
				return nil, err
			}
		}
		if e.Code == ErrReadFailure {
			b, err := readUint8(r)
			if err != nil {
				return nil, err
			}
			e.Extras["data_present"] = strconv.Itoa(int(b))
		} else {
			s, err := ReadString(r)
			if err != nil {
				return nil, err
			}
			e.Extras["write_type"] = s
		}
	case ErrAlreadyExists:
		for _, key := range []string{"keyspace", "table"} {
			s, err := ReadString(r)
			if err != nil {
				return nil, err
			}
			e.Extras[key] = s
		}
	}

	return e, nil
}
