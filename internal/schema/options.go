package schema

import (
	"encoding/json"
	"fmt"
	"os"
)

// OptionsFileName is the per-keyspace options file.
const OptionsFileName = "options.json"

// Replication holds the keyspace replication settings.
type Replication struct {
	Class             string `json:"class"`
	ReplicationFactor int    `json:"replication_factor"`
}

// Options are the persisted keyspace options.
type Options struct {
	DurableWrites bool        `json:"durable_writes"`
	Replication   Replication `json:"replication"`
}

// DefaultOptions returns the options a keyspace is bootstrapped with.
func DefaultOptions() Options {
	return Options{
		DurableWrites: true,
		Replication: Replication{
			Class:             "SimpleStrategy",
			ReplicationFactor: 3,
		},
	}
}

// ReadOptions loads a keyspace options file.
func ReadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("failed to read options: %w", err)
	}
	var o Options
	if err := json.Unmarshal(data, &o); err != nil {
		return Options{}, fmt.Errorf("failed to parse options: %w", err)
	}
	return o, nil
}

// WriteFile persists the options as JSON.
func (o Options) WriteFile(path string) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write options: %w", err)
	}
	return nil
}
