package query

import (
	"fmt"
	"strings"
)

// keywords recognized by the tokenizer. Multi-word identifiers and literals
// are grouped between them.
var keywords = map[string]bool{
	"CREATE": true, "DROP": true, "TABLE": true, "SELECT": true,
	"INSERT": true, "UPDATE": true, "DELETE": true, "FROM": true,
	"WHERE": true, "AND": true, "OR": true, "SET": true, "INTO": true,
	"ORDER": true, "BY": true, "ASC": true, "DESC": true, "NOT": true,
}

func isComparisonToken(s string) bool {
	switch s {
	case "=", ">", "<", ">=", "<=", "(", ")":
		return true
	}
	return false
}

// splitStatement breaks the raw statement into whitespace-separated parts
// with parentheses isolated as their own parts. Fails on unbalanced
// parentheses.
func splitStatement(raw string) ([]string, error) {
	parts := strings.Fields(strings.ReplaceAll(raw, ";", ""))
	out := make([]string, 0, len(parts))
	open, closed := 0, 0

	for _, part := range parts {
		for strings.HasPrefix(part, "(") {
			out = append(out, "(")
			open++
			part = part[1:]
		}
		closing := 0
		for strings.HasSuffix(part, ")") {
			closing++
			part = part[:len(part)-1]
		}
		if part != "" {
			out = append(out, part)
		}
		for i := 0; i < closing; i++ {
			out = append(out, ")")
		}
		closed += closing
	}
	if open != closed {
		return nil, fmt.Errorf("parentheses mismatch")
	}
	return out, nil
}

// columnList parses a comma-separated list of names or values, joining
// multi-word entries with spaces and stripping single quotes.
func columnList(parts []string) ([]string, error) {
	var out []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, " "))
			current = nil
		}
	}

	for _, part := range parts {
		part = strings.ReplaceAll(part, "'", "")
		if keywords[strings.ToUpper(part)] || isComparisonToken(part) {
			return nil, fmt.Errorf("invalid name in list: %q", part)
		}
		switch {
		case strings.HasSuffix(part, ","):
			trimmed := strings.TrimSuffix(part, ",")
			if strings.Contains(trimmed, ",") {
				return nil, fmt.Errorf("invalid name in list: %q", part)
			}
			if trimmed != "" {
				current = append(current, trimmed)
			}
			flush()
		case strings.HasPrefix(part, ","):
			flush()
			trimmed := strings.TrimPrefix(part, ",")
			if strings.Contains(trimmed, ",") {
				return nil, fmt.Errorf("invalid name in list: %q", part)
			}
			if trimmed != "" {
				current = append(current, trimmed)
			}
		default:
			if part != "" {
				current = append(current, part)
			}
		}
	}
	flush()
	return out, nil
}

// groupClauses rewrites the parts of a WHERE tail into tokens the clause
// parser consumes: keywords and parentheses stand alone, everything between
// them is joined into a single comparison string with quotes stripped. It
// stops at the first keyword accepted by stop and returns its index, or -1.
func groupClauses(parts []string, stop func(string) bool) ([]string, int) {
	var tokens []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			tokens = append(tokens, strings.Join(current, " "))
			current = nil
		}
	}

	for idx, part := range parts {
		upper := strings.ToUpper(part)
		if keywords[upper] {
			flush()
			if stop != nil && stop(upper) {
				return tokens, idx
			}
			tokens = append(tokens, upper)
			continue
		}
		if part == "(" || part == ")" {
			flush()
			tokens = append(tokens, part)
			continue
		}
		current = append(current, strings.ReplaceAll(part, "'", ""))
	}
	flush()
	return tokens, -1
}
