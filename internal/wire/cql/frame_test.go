package cql

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringdb/ringdb/pkg/types"
)

func TestFrameHeaderBytes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRequest(&buf, OpStartup, 1, nil))

	// version, flags, stream, opcode, length
	assert.Equal(t, []byte{0x04, 0x00, 0x00, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00}, buf.Bytes())
}

func TestFrameRoundTrip(t *testing.T) {
	body := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	var buf bytes.Buffer
	require.NoError(t, WriteRequest(&buf, OpQuery, 0x1234, body))

	frame, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, byte(VersionRequest), frame.Header.Version)
	assert.Equal(t, uint16(0x1234), frame.Header.Stream)
	assert.Equal(t, OpQuery, frame.Header.Opcode)
	assert.Equal(t, body, frame.Body)
}

func TestReadFrameRejectsBadVersion(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0x05, 0x00, 0x00, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00}))
	assert.Error(t, err)
}

func TestReadFrameRejectsWrongDirection(t *testing.T) {
	// READY is a response opcode; a request frame must not carry it.
	_, err := ReadFrame(bytes.NewReader([]byte{0x04, 0x00, 0x00, 0x01, 0x02, 0x00, 0x00, 0x00, 0x00}))
	assert.Error(t, err)

	// QUERY is a request opcode; a response frame must not carry it.
	_, err = ReadFrame(bytes.NewReader([]byte{0x84, 0x00, 0x00, 0x01, 0x07, 0x00, 0x00, 0x00, 0x00}))
	assert.Error(t, err)
}

func TestReadFrameRejectsUnknownOpcode(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0x04, 0x00, 0x00, 0x01, 0x11, 0x00, 0x00, 0x00, 0x00}))
	assert.Error(t, err)
}

func TestWriteFrameRejectsWrongDirection(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteRequest(&buf, OpError, 1, nil))
	assert.Error(t, WriteResponse(&buf, OpStartup, 1, nil))
}

func TestStartupRoundTrip(t *testing.T) {
	body, err := EncodeStartup(map[string]string{
		"CQL_VERSION": CQLVersion,
		"COMPRESSION": "lz4",
		"IGNORED_KEY": "dropped on write",
	})
	require.NoError(t, err)

	opts, err := ParseStartup(body)
	require.NoError(t, err)
	assert.Equal(t, CQLVersion, opts["CQL_VERSION"])
	assert.Equal(t, "lz4", opts["COMPRESSION"])
	_, ok := opts["IGNORED_KEY"]
	assert.False(t, ok)
}

func TestParseStartupRequiresVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStringMap(&buf, map[string]string{"COMPRESSION": "lz4"}))
	_, err := ParseStartup(buf.Bytes())
	assert.Error(t, err)
}

func TestQueryRoundTrip(t *testing.T) {
	body, err := EncodeQuery("SELECT id FROM t WHERE id = 1", types.ConsistencyQuorum, QueryFlagSkipMetadata)
	require.NoError(t, err)

	msg, err := ParseQuery(body)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM t WHERE id = 1", msg.Statement)
	assert.Equal(t, types.ConsistencyQuorum, msg.Consistency)
	assert.Equal(t, byte(QueryFlagSkipMetadata), msg.Flags)
}

func TestSupportedRoundTrip(t *testing.T) {
	options := map[string][]string{
		"CQL_VERSION": {"3.0.0"},
		"COMPRESSION": {"lz4", "snappy"},
	}
	body, err := EncodeSupported(options)
	require.NoError(t, err)

	read, err := ParseSupported(body)
	require.NoError(t, err)
	assert.Equal(t, options, read)
}

func TestVoidResult(t *testing.T) {
	rr, err := ParseResult(EncodeVoidResult())
	require.NoError(t, err)
	assert.Nil(t, rr)
}

func TestRowsResultRoundTrip(t *testing.T) {
	rr := &RowsResult{
		Keyspace: "app",
		Table:    "users",
		Columns: []ColumnSpec{
			{Name: "id", Type: TypeInt},
			{Name: "name", Type: TypeVarchar},
		},
		Rows: [][]string{
			{"1", "ada"},
			{"2", "NULL"},
		},
	}
	body, err := EncodeRowsResult(rr)
	require.NoError(t, err)

	read, err := ParseResult(body)
	require.NoError(t, err)
	assert.Equal(t, rr, read)
}

func TestErrorRoundTrips(t *testing.T) {
	cases := []*ErrorBody{
		{Code: ErrServerError, Message: "something unexpected happened", Extras: map[string]string{}},
		{Code: ErrProtocolError, Message: "a protocol error occurred", Extras: map[string]string{}},
		{Code: ErrSyntaxError, Message: "syntax error", Extras: map[string]string{}},
		{Code: ErrInvalid, Message: "invalid", Extras: map[string]string{}},
		{
			Code:    ErrUnavailable,
			Message: "unavailable",
			Extras:  map[string]string{"consistency": "ONE", "required": "1", "alive": "0"},
		},
		{
			Code:    ErrReadFailure,
			Message: "read failure",
			Extras: map[string]string{
				"consistency": "ONE", "received": "1", "block_for": "2",
				"failures": "1", "data_present": "1",
			},
		},
		{
			Code:    ErrWriteFailure,
			Message: "write failure",
			Extras: map[string]string{
				"consistency": "ONE", "received": "1", "block_for": "2",
				"failures": "1", "write_type": "SIMPLE",
			},
		},
		{
			Code:    ErrAlreadyExists,
			Message: "already exists",
			Extras:  map[string]string{"keyspace": "ks", "table": "tbl"},
		},
	}

	for _, e := range cases {
		body, err := EncodeError(e)
		require.NoError(t, err, e.Message)
		read, err := ParseError(body)
		require.NoError(t, err, e.Message)
		assert.Equal(t, e, read, e.Message)
	}
}

func TestEncodeErrorMissingExtras(t *testing.T) {
	_, err := EncodeError(&ErrorBody{
		Code:    ErrAlreadyExists,
		Message: "already exists",
		Extras:  map[string]string{"keyspace": "ks"},
	})
	assert.Error(t, err)
}
