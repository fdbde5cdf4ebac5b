package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/ringdb/ringdb/pkg/types"
)

// ConfigFileName is the ring configuration file expected in the workspace root.
const ConfigFileName = "cassandra.json"

// Config holds the static ring configuration shared by every node in the
// cluster. The node list is the ring: token ranges must partition the signed
// 64-bit space and appear in ring order.
type Config struct {
	Nodes []types.Node `json:"nodes"`
}

// LoadFromFile loads and validates the ring configuration from a JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the ring is well formed.
func (c *Config) Validate() error {
	if len(c.Nodes) == 0 {
		return fmt.Errorf("at least one node is required")
	}

	for _, n := range c.Nodes {
		if n.IPAddress == "" {
			return fmt.Errorf("node is missing ip_address")
		}
		if n.Port <= 0 || n.Port > 65534 {
			return fmt.Errorf("invalid port for node %s: %d", n.IPAddress, n.Port)
		}
	}

	// Ranges must be listed in ring order and tile the whole signed space.
	if c.Nodes[0].TokenRange.Start != math.MinInt64 {
		return fmt.Errorf("first token range must start at %d", int64(math.MinInt64))
	}
	for i := 0; i < len(c.Nodes)-1; i++ {
		cur, next := c.Nodes[i].TokenRange, c.Nodes[i+1].TokenRange
		if cur.End == math.MaxInt64 {
			return fmt.Errorf("token range of node %s ends the space before the last node", c.Nodes[i].IPAddress)
		}
		if next.Start != cur.End+1 {
			return fmt.Errorf("token ranges of nodes %s and %s are not contiguous",
				c.Nodes[i].IPAddress, c.Nodes[i+1].IPAddress)
		}
	}
	if c.Nodes[len(c.Nodes)-1].TokenRange.End != math.MaxInt64 {
		return fmt.Errorf("last token range must end at %d", int64(math.MaxInt64))
	}

	return nil
}

// SelfNode returns the ring entry whose ip matches the startup argument.
func (c *Config) SelfNode(ip string) (types.Node, error) {
	for _, n := range c.Nodes {
		if n.IPAddress == ip {
			return n, nil
		}
	}
	return types.Node{}, fmt.Errorf("node %s not present in %s", ip, ConfigFileName)
}
