package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ringdb/ringdb/internal/schema"
)

const (
	schemaFileName = "table.schema"
	rowsFileName   = "table.csv"

	// hintsDirName lives under the data dir next to the keyspaces and must
	// not be mistaken for one.
	hintsDirName = "hints"
)

var (
	ErrKeyspaceExists   = errors.New("keyspace already exists")
	ErrKeyspaceNotFound = errors.New("keyspace does not exist")
	ErrTableExists      = errors.New("table already exists")
	ErrTableNotFound    = errors.New("table does not exist")
)

// table pairs a parsed schema with the lock serializing access to its row
// file.
type table struct {
	mu     sync.RWMutex
	schema *schema.Schema
}

// Catalogue is the in-memory view of every keyspace and table on this node,
// backed by the on-disk layout <dataDir>/<keyspace>/<table>/{table.schema,
// table.csv}. Lock ordering is always outer catalogue lock before a
// per-table lock.
type Catalogue struct {
	mu        sync.RWMutex
	dataDir   string
	keyspaces map[string]map[string]*table
}

// Open walks the node's data directory and loads every table schema found.
func Open(dataDir string) (*Catalogue, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	c := &Catalogue{
		dataDir:   dataDir,
		keyspaces: make(map[string]map[string]*table),
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list data directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == hintsDirName {
			continue
		}
		tables, err := loadKeyspace(filepath.Join(dataDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to load keyspace %s: %w", entry.Name(), err)
		}
		c.keyspaces[entry.Name()] = tables
	}
	return c, nil
}

func loadKeyspace(dir string) (map[string]*table, error) {
	tables := make(map[string]*table)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		f, err := os.Open(filepath.Join(dir, entry.Name(), schemaFileName))
		if err != nil {
			return nil, err
		}
		s, err := schema.Read(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", entry.Name(), err)
		}
		tables[entry.Name()] = &table{schema: s}
	}
	return tables, nil
}

// EnsureKeyspace creates the keyspace directory and options file when they
// do not exist yet, and registers the keyspace either way.
func (c *Catalogue) EnsureKeyspace(keyspace string, opts schema.Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.keyspaces[keyspace]; ok {
		return nil
	}

	dir := filepath.Join(c.dataDir, keyspace)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create keyspace: %w", err)
		}
		if err := opts.WriteFile(filepath.Join(dir, schema.OptionsFileName)); err != nil {
			return err
		}
	}
	c.keyspaces[keyspace] = make(map[string]*table)
	return nil
}

// KeyspaceOptions reads the persisted options of a keyspace.
func (c *Catalogue) KeyspaceOptions(keyspace string) (schema.Options, error) {
	c.mu.RLock()
	_, ok := c.keyspaces[keyspace]
	c.mu.RUnlock()
	if !ok {
		return schema.Options{}, ErrKeyspaceNotFound
	}
	return schema.ReadOptions(filepath.Join(c.dataDir, keyspace, schema.OptionsFileName))
}

// CreateTable persists the schema, creates the row file with its header and
// registers the table. Fails with ErrTableExists when the table directory is
// already present.
func (c *Catalogue) CreateTable(keyspace, name string, s *schema.Schema) error {
	if err := s.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tables, ok := c.keyspaces[keyspace]
	if !ok {
		return ErrKeyspaceNotFound
	}
	if _, ok := tables[name]; ok {
		return ErrTableExists
	}

	dir := filepath.Join(c.dataDir, keyspace, name)
	if _, err := os.Stat(dir); err == nil {
		return ErrTableExists
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create table directory: %w", err)
	}

	sf, err := os.Create(filepath.Join(dir, schemaFileName))
	if err != nil {
		return fmt.Errorf("failed to create schema file: %w", err)
	}
	if err := s.Write(sf); err != nil {
		sf.Close()
		return err
	}
	if err := sf.Close(); err != nil {
		return err
	}

	header := strings.Join(s.ColumnNames(), ",") + "\n"
	if err := os.WriteFile(filepath.Join(dir, rowsFileName), []byte(header), 0644); err != nil {
		return fmt.Errorf("failed to create row file: %w", err)
	}

	tables[name] = &table{schema: s.Clone()}
	return nil
}

// DropTable removes the table directory and the catalogue entry.
func (c *Catalogue) DropTable(keyspace, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tables, ok := c.keyspaces[keyspace]
	if !ok {
		return ErrKeyspaceNotFound
	}
	t, ok := tables[name]
	if !ok {
		return ErrTableNotFound
	}

	t.mu.Lock()
	err := os.RemoveAll(filepath.Join(c.dataDir, keyspace, name))
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to remove table: %w", err)
	}
	delete(tables, name)
	return nil
}

// Schema returns the schema of a table.
func (c *Catalogue) Schema(keyspace, name string) (*schema.Schema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tables, ok := c.keyspaces[keyspace]
	if !ok {
		return nil, ErrKeyspaceNotFound
	}
	t, ok := tables[name]
	if !ok {
		return nil, ErrTableNotFound
	}
	return t.schema.Clone(), nil
}

// Tables lists the tables of a keyspace in sorted order.
func (c *Catalogue) Tables(keyspace string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.keyspaces[keyspace]))
	for name := range c.keyspaces[keyspace] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Keyspaces lists the known keyspaces in sorted order.
func (c *Catalogue) Keyspaces() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.keyspaces))
	for name := range c.keyspaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// lookup fetches the table entry under the outer read lock.
func (c *Catalogue) lookup(keyspace, name string) (*table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tables, ok := c.keyspaces[keyspace]
	if !ok {
		return nil, ErrKeyspaceNotFound
	}
	t, ok := tables[name]
	if !ok {
		return nil, ErrTableNotFound
	}
	return t, nil
}

func (c *Catalogue) rowsPath(keyspace, name string) string {
	return filepath.Join(c.dataDir, keyspace, name, rowsFileName)
}
