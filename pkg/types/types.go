package types

import "fmt"

// TokenRange is the closed interval of signed 64-bit hash values owned by a node.
type TokenRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Contains reports whether the hash falls inside the range.
func (r TokenRange) Contains(h int64) bool {
	return h >= r.Start && h <= r.End
}

// Node is one entry of the static ring configuration.
type Node struct {
	IPAddress  string     `json:"ip_address"`
	Port       int        `json:"port"`
	TokenRange TokenRange `json:"token_range"`
}

// Addr returns the client-facing address (host:port).
func (n Node) Addr() string {
	return fmt.Sprintf("%s:%d", n.IPAddress, n.Port)
}

// InternodeAddr returns the peer-facing address. Peers always listen on port+1.
func (n Node) InternodeAddr() string {
	return fmt.Sprintf("%s:%d", n.IPAddress, n.Port+1)
}

// Equal reports whether two nodes share the same identity (ip, port).
func (n Node) Equal(other Node) bool {
	return n.IPAddress == other.IPAddress && n.Port == other.Port
}

// ConsistencyLevel is the client-requested minimum number of replica
// acknowledgements, carried on the wire as a u16.
type ConsistencyLevel uint16

const (
	ConsistencyAny    ConsistencyLevel = 0x0000
	ConsistencyOne    ConsistencyLevel = 0x0001
	ConsistencyTwo    ConsistencyLevel = 0x0002
	ConsistencyThree  ConsistencyLevel = 0x0003
	ConsistencyQuorum ConsistencyLevel = 0x0004
	ConsistencyAll    ConsistencyLevel = 0x0005
)

func (cl ConsistencyLevel) String() string {
	switch cl {
	case ConsistencyAny:
		return "ANY"
	case ConsistencyOne:
		return "ONE"
	case ConsistencyTwo:
		return "TWO"
	case ConsistencyThree:
		return "THREE"
	case ConsistencyQuorum:
		return "QUORUM"
	case ConsistencyAll:
		return "ALL"
	default:
		return "unknown"
	}
}

// ConsistencyFromWire validates a u16 consistency code read off the wire.
func ConsistencyFromWire(v uint16) (ConsistencyLevel, error) {
	cl := ConsistencyLevel(v)
	switch cl {
	case ConsistencyAny, ConsistencyOne, ConsistencyTwo, ConsistencyThree,
		ConsistencyQuorum, ConsistencyAll:
		return cl, nil
	default:
		return 0, fmt.Errorf("invalid consistency level: 0x%04x", v)
	}
}

// ParseConsistency parses the textual form used in error frame extras.
func ParseConsistency(s string) (ConsistencyLevel, error) {
	switch s {
	case "ANY":
		return ConsistencyAny, nil
	case "ONE":
		return ConsistencyOne, nil
	case "TWO":
		return ConsistencyTwo, nil
	case "THREE":
		return ConsistencyThree, nil
	case "QUORUM":
		return ConsistencyQuorum, nil
	case "ALL":
		return ConsistencyAll, nil
	default:
		return 0, fmt.Errorf("invalid consistency level: %q", s)
	}
}

// Required returns the number of replica acknowledgements needed to satisfy
// the level given the replication factor.
func (cl ConsistencyLevel) Required(replicationFactor int) int {
	switch cl {
	case ConsistencyAny, ConsistencyOne:
		return 1
	case ConsistencyTwo:
		return 2
	case ConsistencyThree:
		return 3
	case ConsistencyQuorum:
		return replicationFactor/2 + 1
	case ConsistencyAll:
		return replicationFactor
	default:
		return replicationFactor
	}
}
