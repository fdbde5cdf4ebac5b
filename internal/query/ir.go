package query

import "github.com/ringdb/ringdb/internal/schema"

// StatementKind discriminates the parsed statement.
type StatementKind int

const (
	KindCreateTable StatementKind = iota
	KindDropTable
	KindSelect
	KindInsert
	KindUpdate
	KindDelete
)

func (k StatementKind) String() string {
	switch k {
	case KindCreateTable:
		return "create_table"
	case KindDropTable:
		return "drop_table"
	case KindSelect:
		return "select"
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// OrderMode is the direction of an ORDER BY clause.
type OrderMode int

const (
	Asc OrderMode = iota
	Desc
)

// Order is the optional ORDER BY of a SELECT.
type Order struct {
	Column string
	Mode   OrderMode
}

// KeyValue is a (column, value) pair extracted from a query, used to route
// the query to its replicas.
type KeyValue struct {
	Column string
	Value  string
}

// Query is the parsed form of one CQL statement.
type Query struct {
	Kind  StatementKind
	Table string
	// Raw is the original statement text, kept for hinted handoff.
	Raw string

	// Schema is set for CREATE TABLE.
	Schema *schema.Schema
	// Columns is the SELECT projection; "*" expands at execution time.
	Columns []string
	// OrderBy is the optional SELECT ordering.
	OrderBy *Order
	// Row holds INSERT values or UPDATE assignments.
	Row map[string]string
	// Where filters SELECT, UPDATE and DELETE.
	Where *WhereClause
}

// IsDDL reports whether the statement changes the schema rather than rows.
// DDL fans out to every node instead of a replica triple.
func (q *Query) IsDDL() bool {
	return q.Kind == KindCreateTable || q.Kind == KindDropTable
}

// IsWrite reports whether the statement mutates state. Writes return no
// rows and are eligible for hinted handoff.
func (q *Query) IsWrite() bool {
	return q.Kind != KindSelect
}

// Keys returns the (column, value) pairs that can route the query: the
// equality predicates of the WHERE clause, or the inserted values.
func (q *Query) Keys() []KeyValue {
	switch q.Kind {
	case KindInsert:
		keys := make([]KeyValue, 0, len(q.Row))
		for col, val := range q.Row {
			keys = append(keys, KeyValue{Column: col, Value: val})
		}
		return keys
	case KindSelect, KindUpdate, KindDelete:
		if q.Where == nil {
			return nil
		}
		return q.Where.EqualityPairs()
	default:
		return nil
	}
}

// SetColumn attaches an extra column to the statement: an assignment for
// INSERT/UPDATE, an extra projection for SELECT. The coordinator uses this
// to stamp the last_update column.
func (q *Query) SetColumn(col, val string) {
	switch q.Kind {
	case KindInsert, KindUpdate:
		if q.Row == nil {
			q.Row = make(map[string]string)
		}
		q.Row[col] = val
	case KindSelect:
		q.Columns = append(q.Columns, col)
	}
}
