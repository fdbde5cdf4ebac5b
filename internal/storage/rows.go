package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// NullLiteral marks an absent value inside a stored row.
const NullLiteral = "NULL"

// Scan streams every row of the table through the visitor as a
// column-name -> value map. Rows are read under the table's read lock.
func (c *Catalogue) Scan(keyspace, name string, visit func(row map[string]string) error) error {
	t, err := c.lookup(keyspace, name)
	if err != nil {
		return err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	f, err := os.Open(c.rowsPath(keyspace, name))
	if err != nil {
		return fmt.Errorf("failed to open row file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read row: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		if err := visit(row); err != nil {
			return err
		}
	}
}

// Append writes one row to the end of the table's row file. Every schema
// column is written, absent ones as NULL; present values are type-checked
// first. Runs under the table's write lock.
func (c *Catalogue) Append(keyspace, name string, row map[string]string) error {
	t, err := c.lookup(keyspace, name)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	record := make([]string, len(t.schema.Columns))
	for i, col := range t.schema.Columns {
		value, ok := row[col.Name]
		if !ok || value == NullLiteral {
			record[i] = NullLiteral
			continue
		}
		if err := col.Type.Check(value); err != nil {
			return err
		}
		record[i] = value
	}

	path := c.rowsPath(keyspace, name)
	if err := ensureTrailingNewline(path); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open row file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, strings.Join(record, ",")); err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}
	return nil
}

// Rewrite streams every row through the visitor into a temp file and
// atomically renames it over the original. The visitor returns the
// (possibly updated) row and whether to keep it; dropped rows are omitted
// from the rewritten file. Updated values are type-checked.
func (c *Catalogue) Rewrite(keyspace, name string, visit func(row map[string]string) (map[string]string, bool, error)) error {
	t, err := c.lookup(keyspace, name)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	path := c.rowsPath(keyspace, name)
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open row file: %w", err)
	}
	defer in.Close()

	tmpPath := path + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer out.Close()

	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if _, err := fmt.Fprintln(out, strings.Join(header, ",")); err != nil {
		return err
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read row: %w", err)
		}

		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}

		updated, keep, err := visit(row)
		if err != nil {
			return err
		}
		if !keep {
			continue
		}

		rewritten := make([]string, len(header))
		for i, col := range header {
			value, ok := updated[col]
			if !ok {
				value = NullLiteral
			}
			if value != NullLiteral {
				if err := t.schema.CheckValue(col, value); err != nil {
					return err
				}
			}
			rewritten[i] = value
		}
		if _, err := fmt.Fprintln(out, strings.Join(rewritten, ",")); err != nil {
			return err
		}
	}

	if err := out.Close(); err != nil {
		return err
	}
	// The rename is the commit point.
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace row file: %w", err)
	}
	return nil
}

// ensureTrailingNewline makes sure the row file ends with a newline before
// another row is appended.
func ensureTrailingNewline(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open row file: %w", err)
	}
	defer f.Close()

	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if end == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, end-1); err != nil {
		return err
	}
	if last[0] != '\n' {
		if _, err := f.Write([]byte("\n")); err != nil {
			return err
		}
	}
	return nil
}
