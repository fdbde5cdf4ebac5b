package query

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ringdb/ringdb/internal/schema"
	"github.com/ringdb/ringdb/internal/storage"
)

// ErrUnknownColumn is returned when a projection names a column the schema
// does not declare.
var ErrUnknownColumn = errors.New("column does not exist")

// Process executes the query against the local table store. For SELECT it
// returns the projected rows (hasRows true, possibly empty); every other
// statement returns no rows.
func (q *Query) Process(cat *storage.Catalogue, keyspace string) (rows [][]string, hasRows bool, err error) {
	switch q.Kind {
	case KindCreateTable:
		return nil, false, cat.CreateTable(keyspace, q.Table, q.Schema)
	case KindDropTable:
		return nil, false, cat.DropTable(keyspace, q.Table)
	case KindSelect:
		rows, err := q.processSelect(cat, keyspace)
		return rows, err == nil, err
	case KindInsert:
		return nil, false, cat.Append(keyspace, q.Table, q.Row)
	case KindUpdate:
		s, err := cat.Schema(keyspace, q.Table)
		if err != nil {
			return nil, false, err
		}
		return nil, false, cat.Rewrite(keyspace, q.Table, func(row map[string]string) (map[string]string, bool, error) {
			matched, err := q.Where.Eval(row, s)
			if err != nil {
				return nil, false, err
			}
			if !matched {
				return row, true, nil
			}
			updated := make(map[string]string, len(row)+len(q.Row))
			for col, val := range row {
				updated[col] = val
			}
			for col, val := range q.Row {
				updated[col] = val
			}
			return updated, true, nil
		})
	case KindDelete:
		s, err := cat.Schema(keyspace, q.Table)
		if err != nil {
			return nil, false, err
		}
		return nil, false, cat.Rewrite(keyspace, q.Table, func(row map[string]string) (map[string]string, bool, error) {
			matched, err := q.Where.Eval(row, s)
			if err != nil {
				return nil, false, err
			}
			return row, !matched, nil
		})
	default:
		return nil, false, fmt.Errorf("unknown statement kind: %d", q.Kind)
	}
}

func (q *Query) processSelect(cat *storage.Catalogue, keyspace string) ([][]string, error) {
	s, err := cat.Schema(keyspace, q.Table)
	if err != nil {
		return nil, err
	}

	cols, err := ExpandProjection(q.Columns, s)
	if err != nil {
		return nil, err
	}

	var matched []map[string]string
	err = cat.Scan(keyspace, q.Table, func(row map[string]string) error {
		ok, err := q.Where.Eval(row, s)
		if err != nil {
			return err
		}
		if ok {
			matched = append(matched, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if q.OrderBy != nil {
		col := q.OrderBy.Column
		desc := q.OrderBy.Mode == Desc
		sort.SliceStable(matched, func(i, j int) bool {
			a, b := matched[i][col], matched[j][col]
			if desc {
				return a > b
			}
			return a < b
		})
	}

	out := make([][]string, 0, len(matched))
	for _, row := range matched {
		projected := make([]string, len(cols))
		for i, col := range cols {
			value, ok := row[col]
			if !ok {
				value = NullValue
			}
			projected[i] = value
		}
		out = append(out, projected)
	}
	return out, nil
}

// ExpandProjection resolves "*" to every schema column except the internal
// last_update column (which the coordinator appends separately), and
// validates that every requested column exists.
func ExpandProjection(cols []string, s *schema.Schema) ([]string, error) {
	out := make([]string, 0, len(cols))
	for _, col := range cols {
		if col == "*" {
			for _, c := range s.Columns {
				if c.Name != schema.LastUpdateColumn {
					out = append(out, c.Name)
				}
			}
			continue
		}
		if !s.HasColumn(col) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, col)
		}
		out = append(out, col)
	}
	return out, nil
}
