package cql

import (
	"bytes"
	"fmt"

	"github.com/ringdb/ringdb/pkg/types"
)

// CQLVersion is the only protocol version accepted in STARTUP.
const CQLVersion = "3.0.0"

// Recognized STARTUP options besides CQL_VERSION. Unknown keys are
// permitted on read and dropped on write.
var startupOptions = map[string]bool{
	"CQL_VERSION":       true,
	"COMPRESSION":       true,
	"NO_COMPACT":        true,
	"THROW_ON_OVERLOAD": true,
}

// ParseStartup decodes a STARTUP body and enforces the mandatory
// CQL_VERSION key.
func ParseStartup(body []byte) (map[string]string, error) {
	opts, err := ReadStringMap(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if opts["CQL_VERSION"] != CQLVersion {
		return nil, fmt.Errorf("STARTUP must carry CQL_VERSION=%s", CQLVersion)
	}
	return opts, nil
}

// EncodeStartup encodes a STARTUP body, keeping only recognized keys.
func EncodeStartup(opts map[string]string) ([]byte, error) {
	kept := make(map[string]string, len(opts))
	for k, v := range opts {
		if startupOptions[k] {
			kept[k] = v
		}
	}
	var buf bytes.Buffer
	if err := WriteStringMap(&buf, kept); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// QueryFlagSkipMetadata is the only QUERY flag this node interprets.
const QueryFlagSkipMetadata = 0x02

// QueryMsg is the decoded QUERY body.
type QueryMsg struct {
	Statement   string
	Consistency types.ConsistencyLevel
	Flags       byte
}

// ParseQuery decodes a QUERY body: [long string] statement, u16
// consistency, u8 flags.
func ParseQuery(body []byte) (*QueryMsg, error) {
	r := bytes.NewReader(body)
	statement, err := ReadLongString(r)
	if err != nil {
		return nil, err
	}
	raw, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	cl, err := types.ConsistencyFromWire(raw)
	if err != nil {
		return nil, err
	}
	flags, err := readUint8(r)
	if err != nil {
		return nil, err
	}
	return &QueryMsg{Statement: statement, Consistency: cl, Flags: flags}, nil
}

// EncodeQuery encodes a QUERY body.
func EncodeQuery(statement string, cl types.ConsistencyLevel, flags byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteLongString(&buf, statement); err != nil {
		return nil, err
	}
	if err := writeUint16(&buf, uint16(cl)); err != nil {
		return nil, err
	}
	buf.WriteByte(flags)
	return buf.Bytes(), nil
}

// EncodeSupported encodes a SUPPORTED body.
func EncodeSupported(options map[string][]string) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteStringMultimap(&buf, options); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseSupported decodes a SUPPORTED body.
func ParseSupported(body []byte) (map[string][]string, error) {
	return ReadStringMultimap(bytes.NewReader(body))
}
