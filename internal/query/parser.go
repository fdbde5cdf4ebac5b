package query

import (
	"fmt"
	"strings"

	"github.com/ringdb/ringdb/internal/schema"
)

// Parse turns one CQL statement into its Query form. Supported statements:
//
//	SELECT <cols|*> FROM <table> WHERE <clause> [ORDER BY <col> [ASC|DESC]]
//	INSERT INTO <table> (<cols>) VALUES (<values>)
//	UPDATE <table> SET <col> = <value>, ... WHERE <clause>
//	DELETE FROM <table> WHERE <clause>
//	CREATE TABLE <table> (<col> <type>, ..., PRIMARY KEY (<k>, ...))
//	DROP TABLE <table>
func Parse(raw string) (*Query, error) {
	parts, err := splitStatement(raw)
	if err != nil {
		return nil, err
	}
	if len(parts) <= 2 {
		return nil, fmt.Errorf("invalid syntax")
	}

	var q *Query
	switch strings.ToUpper(parts[0]) {
	case "SELECT":
		q, err = parseSelect(parts[1:])
	case "INSERT":
		q, err = parseInsert(parts[1:])
	case "UPDATE":
		q, err = parseUpdate(parts[1:])
	case "DELETE":
		q, err = parseDelete(parts[1:])
	case "CREATE":
		q, err = parseCreateTable(parts[1:])
	case "DROP":
		q, err = parseDropTable(parts[1:])
	default:
		return nil, fmt.Errorf("invalid query: cannot recognize %q", parts[0])
	}
	if err != nil {
		return nil, err
	}
	q.Raw = raw
	return q, nil
}

func parseSelect(parts []string) (*Query, error) {
	from := -1
	for i, p := range parts {
		if strings.ToUpper(p) == "FROM" {
			from = i
			break
		}
	}
	if from < 0 {
		return nil, fmt.Errorf("no FROM keyword")
	}
	if from+1 >= len(parts) {
		return nil, fmt.Errorf("no table provided")
	}
	if from == 0 || parts[from+1] == "(" || parts[from+1] == ")" {
		return nil, fmt.Errorf("unexpected bracket")
	}
	for _, p := range parts[:from] {
		if p == "(" || p == ")" {
			return nil, fmt.Errorf("unexpected bracket")
		}
	}

	var cols []string
	if from == 1 && parts[0] == "*" {
		cols = []string{"*"}
	} else {
		var err error
		cols, err = columnList(parts[:from])
		if err != nil {
			return nil, err
		}
	}

	q := &Query{Kind: KindSelect, Table: parts[from+1], Columns: cols}

	rest := parts[from+2:]
	for len(rest) > 0 {
		switch strings.ToUpper(rest[0]) {
		case "WHERE":
			tokens, next := groupClauses(rest[1:], func(kw string) bool { return kw == "ORDER" })
			where, err := parseWhere(tokens)
			if err != nil {
				return nil, err
			}
			q.Where = where
			if next < 0 {
				rest = nil
			} else {
				rest = rest[1+next:]
			}
		case "ORDER":
			if len(rest) < 3 || strings.ToUpper(rest[1]) != "BY" {
				return nil, fmt.Errorf("ORDER should be followed by BY and a column")
			}
			order := &Order{Column: rest[2], Mode: Asc}
			if len(rest) > 3 {
				switch strings.ToUpper(rest[3]) {
				case "ASC":
					order.Mode = Asc
				case "DESC":
					order.Mode = Desc
				default:
					return nil, fmt.Errorf("invalid order mode: %q", rest[3])
				}
			}
			q.OrderBy = order
			rest = nil
		default:
			return nil, fmt.Errorf("unexpected keyword: %q", rest[0])
		}
	}

	if q.Where == nil {
		return nil, fmt.Errorf("SELECT requires a WHERE clause")
	}
	return q, nil
}

func parseInsert(parts []string) (*Query, error) {
	values := -1
	for i, p := range parts {
		if strings.ToUpper(p) == "VALUES" {
			values = i
			break
		}
	}
	if values < 0 {
		return nil, fmt.Errorf("no VALUES keyword")
	}
	if len(parts) < 9 ||
		strings.ToUpper(parts[0]) != "INTO" ||
		parts[2] != "(" ||
		parts[values-1] != ")" ||
		values+1 >= len(parts) || parts[values+1] != "(" ||
		parts[len(parts)-1] != ")" {
		return nil, fmt.Errorf("INSERT query should look like: INSERT INTO <table> (col) VALUES (value)")
	}

	cols, err := columnList(parts[3 : values-1])
	if err != nil {
		return nil, err
	}
	vals, err := columnList(parts[values+2 : len(parts)-1])
	if err != nil {
		return nil, err
	}
	if len(cols) != len(vals) {
		return nil, fmt.Errorf("INSERT has %d columns but %d values", len(cols), len(vals))
	}

	row := make(map[string]string, len(cols))
	for i, col := range cols {
		row[col] = vals[i]
	}
	return &Query{Kind: KindInsert, Table: parts[1], Row: row}, nil
}

func parseUpdate(parts []string) (*Query, error) {
	if len(parts) < 2 || strings.ToUpper(parts[1]) != "SET" {
		return nil, fmt.Errorf("UPDATE query should look like: UPDATE <table> SET <col> = <value> WHERE <clause>")
	}

	tokens, whereIdx := groupClauses(parts[2:], func(kw string) bool { return kw == "WHERE" })
	if whereIdx < 0 {
		return nil, fmt.Errorf("UPDATE requires a WHERE clause")
	}

	// Each grouped token before WHERE is one "<col> = <value>" assignment;
	// assignments arrive comma separated so a token may carry several.
	row := make(map[string]string)
	for _, token := range tokens {
		for _, assignment := range strings.Split(token, ",") {
			assignment = strings.TrimSpace(assignment)
			if assignment == "" {
				continue
			}
			cmp, err := parseComparison(assignment, false)
			if err != nil {
				return nil, err
			}
			if cmp.Op != CmpEq {
				return nil, fmt.Errorf("invalid assignment: %q", assignment)
			}
			row[cmp.Left] = cmp.Right
		}
	}
	if len(row) == 0 {
		return nil, fmt.Errorf("UPDATE has no assignments")
	}

	whereTokens, _ := groupClauses(parts[2+whereIdx+1:], nil)
	where, err := parseWhere(whereTokens)
	if err != nil {
		return nil, err
	}

	return &Query{Kind: KindUpdate, Table: parts[0], Row: row, Where: where}, nil
}

func parseDelete(parts []string) (*Query, error) {
	if len(parts) < 2 || strings.ToUpper(parts[0]) != "FROM" {
		return nil, fmt.Errorf("DELETE query should look like: DELETE FROM <table> WHERE <clause>")
	}
	if len(parts) < 4 || strings.ToUpper(parts[2]) != "WHERE" {
		return nil, fmt.Errorf("DELETE requires a WHERE clause")
	}

	tokens, _ := groupClauses(parts[3:], nil)
	where, err := parseWhere(tokens)
	if err != nil {
		return nil, err
	}
	return &Query{Kind: KindDelete, Table: parts[1], Where: where}, nil
}

func parseCreateTable(parts []string) (*Query, error) {
	primary := -1
	for i, p := range parts {
		if p == "PRIMARY" {
			primary = i
			break
		}
	}
	if len(parts) < 11 ||
		strings.ToUpper(parts[0]) != "TABLE" ||
		parts[2] != "(" ||
		primary < 0 ||
		primary+2 >= len(parts) ||
		parts[primary+1] != "KEY" ||
		parts[primary+2] != "(" {
		return nil, fmt.Errorf("CREATE TABLE query should look like: CREATE TABLE <table> (<col> <type>, ..., PRIMARY KEY (<col>, ...))")
	}

	s := &schema.Schema{}
	i := 3
	for i < primary {
		if i+1 >= primary {
			return nil, fmt.Errorf("invalid column definition")
		}
		name := strings.TrimSuffix(parts[i], ",")
		t, err := schema.ParseColumnType(strings.TrimSuffix(parts[i+1], ","))
		if err != nil {
			return nil, err
		}
		if s.HasColumn(name) {
			return nil, fmt.Errorf("duplicate column: %q", name)
		}
		s.Columns = append(s.Columns, schema.Column{Name: name, Type: t})
		i += 2
	}

	keys, err := columnList(parts[primary+3 : len(parts)-2])
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("PRIMARY KEY needs at least one column")
	}
	// The first primary-key column partitions; the rest cluster.
	s.PartitionKey = keys[:1]
	s.ClusteringKey = keys[1:]

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Query{Kind: KindCreateTable, Table: parts[1], Schema: s}, nil
}

func parseDropTable(parts []string) (*Query, error) {
	if len(parts) != 2 || strings.ToUpper(parts[0]) != "TABLE" {
		return nil, fmt.Errorf("DROP TABLE query should look like: DROP TABLE <table>")
	}
	return &Query{Kind: KindDropTable, Table: parts[1]}, nil
}
