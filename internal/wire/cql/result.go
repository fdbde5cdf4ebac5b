package cql

import (
	"bytes"
	"fmt"

	"github.com/ringdb/ringdb/internal/schema"
)

// Result kinds used by this node.
const (
	resultKindVoid = 0x0001
	resultKindRows = 0x0002
)

// flagGlobalTablesSpec marks rows metadata carrying a single
// (keyspace, table) spec shared by every column.
const flagGlobalTablesSpec = 0x0001

// DataType is the u16 option id of a column type on the wire.
type DataType uint16

const (
	TypeBoolean   DataType = 0x0004
	TypeFloat     DataType = 0x0008
	TypeInt       DataType = 0x0009
	TypeTimestamp DataType = 0x000B
	TypeVarchar   DataType = 0x000D
	TypeInet      DataType = 0x0010
)

// DataTypeFor maps a schema column type to its wire id.
func DataTypeFor(t schema.ColumnType) DataType {
	switch t {
	case schema.Boolean:
		return TypeBoolean
	case schema.Float:
		return TypeFloat
	case schema.Int:
		return TypeInt
	case schema.Timestamp:
		return TypeTimestamp
	default:
		return TypeVarchar
	}
}

// ColumnSpec names and types one result column.
type ColumnSpec struct {
	Name string
	Type DataType
}

// RowsResult is a RESULT body of kind Rows. Values are textual; the NULL
// literal encodes as a negative-length [bytes].
type RowsResult struct {
	Keyspace string
	Table    string
	Columns  []ColumnSpec
	Rows     [][]string
}

// EncodeVoidResult encodes a RESULT body of kind Void.
func EncodeVoidResult() []byte {
	var buf bytes.Buffer
	writeInt32(&buf, resultKindVoid)
	return buf.Bytes()
}

// EncodeRowsResult encodes a RESULT body of kind Rows with a global table
// spec and per-column specs.
func EncodeRowsResult(rr *RowsResult) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeInt32(&buf, resultKindRows); err != nil {
		return nil, err
	}
	if err := writeInt32(&buf, flagGlobalTablesSpec); err != nil {
		return nil, err
	}
	if err := writeInt32(&buf, int32(len(rr.Columns))); err != nil {
		return nil, err
	}
	if err := WriteString(&buf, rr.Keyspace); err != nil {
		return nil, err
	}
	if err := WriteString(&buf, rr.Table); err != nil {
		return nil, err
	}
	for _, col := range rr.Columns {
		if err := WriteString(&buf, col.Name); err != nil {
			return nil, err
		}
		if err := writeUint16(&buf, uint16(col.Type)); err != nil {
			return nil, err
		}
	}
	if err := writeInt32(&buf, int32(len(rr.Rows))); err != nil {
		return nil, err
	}
	for _, row := range rr.Rows {
		if len(row) != len(rr.Columns) {
			return nil, fmt.Errorf("row has %d values for %d columns", len(row), len(rr.Columns))
		}
		for _, value := range row {
			if value == "NULL" {
				if err := WriteBytes(&buf, nil); err != nil {
					return nil, err
				}
				continue
			}
			if err := WriteBytes(&buf, []byte(value)); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}

// ParseResult decodes a RESULT body. A Void result yields a nil RowsResult.
func ParseResult(body []byte) (*RowsResult, error) {
	r := bytes.NewReader(body)
	kind, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	switch kind {
	case resultKindVoid:
		return nil, nil
	case resultKindRows:
	default:
		return nil, fmt.Errorf("invalid result kind: %d", kind)
	}

	flags, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	columnsCount, err := readInt32(r)
	if err != nil {
		return nil, err
	}

	rr := &RowsResult{}
	if flags&flagGlobalTablesSpec != 0 {
		if rr.Keyspace, err = ReadString(r); err != nil {
			return nil, err
		}
		if rr.Table, err = ReadString(r); err != nil {
			return nil, err
		}
	}

	rr.Columns = make([]ColumnSpec, 0, columnsCount)
	for i := int32(0); i < columnsCount; i++ {
		name, err := ReadString(r)
		if err != nil {
			return nil, err
		}
		dt, err := readUint16(r)
		if err != nil {
			return nil, err
		}
		rr.Columns = append(rr.Columns, ColumnSpec{Name: name, Type: DataType(dt)})
	}

	rowsCount, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	rr.Rows = make([][]string, 0, rowsCount)
	for i := int32(0); i < rowsCount; i++ {
		row := make([]string, 0, columnsCount)
		for j := int32(0); j < columnsCount; j++ {
			value, err := ReadBytes(r)
			if err != nil {
				return nil, err
			}
			if value == nil {
				row = append(row, "NULL")
			} else {
				row = append(row, string(value))
			}
		}
		rr.Rows = append(rr.Rows, row)
	}
	return rr, nil
}
