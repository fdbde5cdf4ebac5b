package internode

import (
	"fmt"
	"io"

	"github.com/ringdb/ringdb/internal/query"
	"github.com/ringdb/ringdb/internal/schema"
)

// QueryBody forwards one query to a replica. The keyspace travels with the
// query so the receiving node needs no implicit connection context.
type QueryBody struct {
	Keyspace string
	Query    *query.Query
}

func (b *QueryBody) encode(w io.Writer) error {
	if err := writeString(w, b.Keyspace); err != nil {
		return err
	}
	return encodeQuery(w, b.Query)
}

func (b *QueryBody) decode(r io.Reader) error {
	ks, err := readString(r)
	if err != nil {
		return err
	}
	q, err := decodeQuery(r)
	if err != nil {
		return err
	}
	b.Keyspace = ks
	b.Query = q
	return nil
}

// ResultBody carries a replica's answer. HasRows distinguishes a SELECT
// answer (possibly zero rows) from a write acknowledgement.
type ResultBody struct {
	HasRows bool
	Rows    [][]string
}

func (b *ResultBody) encode(w io.Writer) error {
	if err := writeBool(w, b.HasRows); err != nil {
		return err
	}
	if !b.HasRows {
		return nil
	}
	if err := writeUint32(w, uint32(len(b.Rows))); err != nil {
		return err
	}
	for _, row := range b.Rows {
		if err := writeStringSlice(w, row); err != nil {
			return err
		}
	}
	return nil
}

func (b *ResultBody) decode(r io.Reader) error {
	hasRows, err := readBool(r)
	if err != nil {
		return err
	}
	b.HasRows = hasRows
	if !hasRows {
		return nil
	}
	n, err := readCount(r)
	if err != nil {
		return err
	}
	b.Rows = make([][]string, 0, n)
	for i := 0; i < n; i++ {
		row, err := readStringSlice(r)
		if err != nil {
			return err
		}
		b.Rows = append(b.Rows, row)
	}
	return nil
}

// Peer is the gossip snapshot of one cluster member.
type Peer struct {
	ID            string
	IP            string
	Port          int
	LastHeartbeat uint64
	Alive         bool
}

func writePeer(w io.Writer, p Peer) error {
	if err := writeString(w, p.ID); err != nil {
		return err
	}
	if err := writeString(w, p.IP); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(p.Port)); err != nil {
		return err
	}
	if err := writeUint64(w, p.LastHeartbeat); err != nil {
		return err
	}
	return writeBool(w, p.Alive)
}

func readPeer(r io.Reader) (Peer, error) {
	var p Peer
	var err error
	if p.ID, err = readString(r); err != nil {
		return p, err
	}
	if p.IP, err = readString(r); err != nil {
		return p, err
	}
	port, err := readUint32(r)
	if err != nil {
		return p, err
	}
	p.Port = int(port)
	if p.LastHeartbeat, err = readUint64(r); err != nil {
		return p, err
	}
	p.Alive, err = readBool(r)
	return p, err
}

func writePeers(w io.Writer, peers []Peer) error {
	if err := writeUint32(w, uint32(len(peers))); err != nil {
		return err
	}
	for _, p := range peers {
		if err := writePeer(w, p); err != nil {
			return err
		}
	}
	return nil
}

func readPeers(r io.Reader) ([]Peer, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	peers := make([]Peer, 0, n)
	for i := 0; i < n; i++ {
		p, err := readPeer(r)
		if err != nil {
			return nil, err
		}
		peers = append(peers, p)
	}
	return peers, nil
}

// SynBody starts a gossip exchange: the sender's own state plus its view of
// the cluster.
type SynBody struct {
	Sender     string
	IP         string
	Port       int
	Heartbeat  uint64
	KnownPeers []Peer
}

func (b *SynBody) encode(w io.Writer) error {
	if err := writeString(w, b.Sender); err != nil {
		return err
	}
	if err := writeString(w, b.IP); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(b.Port)); err != nil {
		return err
	}
	if err := writeUint64(w, b.Heartbeat); err != nil {
		return err
	}
	return writePeers(w, b.KnownPeers)
}

func (b *SynBody) decode(r io.Reader) error {
	var err error
	if b.Sender, err = readString(r); err != nil {
		return err
	}
	if b.IP, err = readString(r); err != nil {
		return err
	}
	port, err := readUint32(r)
	if err != nil {
		return err
	}
	b.Port = int(port)
	if b.Heartbeat, err = readUint64(r); err != nil {
		return err
	}
	b.KnownPeers, err = readPeers(r)
	return err
}

// AckBody answers a SYN with the receiver's heartbeat and the peers the
// sender did not know about.
type AckBody struct {
	Heartbeat   uint64
	UpdatePeers []Peer
}

func (b *AckBody) encode(w io.Writer) error {
	if err := writeUint64(w, b.Heartbeat); err != nil {
		return err
	}
	return writePeers(w, b.UpdatePeers)
}

func (b *AckBody) decode(r io.Reader) error {
	var err error
	if b.Heartbeat, err = readUint64(r); err != nil {
		return err
	}
	b.UpdatePeers, err = readPeers(r)
	return err
}

// HintedBody replays the writes owed to a revived peer, in append order.
type HintedBody struct {
	Queries []QueryBody
}

func (b *HintedBody) encode(w io.Writer) error {
	if err := writeUint32(w, uint32(len(b.Queries))); err != nil {
		return err
	}
	for i := range b.Queries {
		if err := b.Queries[i].encode(w); err != nil {
			return err
		}
	}
	return nil
}

func (b *HintedBody) decode(r io.Reader) error {
	n, err := readCount(r)
	if err != nil {
		return err
	}
	b.Queries = make([]QueryBody, n)
	for i := 0; i < n; i++ {
		if err := b.Queries[i].decode(r); err != nil {
			return err
		}
	}
	return nil
}

// Query IR encoding. Optional parts are flagged with a presence byte; the
// WHERE tree is encoded recursively.

func encodeQuery(w io.Writer, q *query.Query) error {
	if err := writeByte(w, byte(q.Kind)); err != nil {
		return err
	}
	if err := writeString(w, q.Table); err != nil {
		return err
	}
	if err := writeString(w, q.Raw); err != nil {
		return err
	}

	if err := writeBool(w, q.Schema != nil); err != nil {
		return err
	}
	if q.Schema != nil {
		if err := encodeSchema(w, q.Schema); err != nil {
			return err
		}
	}

	if err := writeStringSlice(w, q.Columns); err != nil {
		return err
	}

	if err := writeBool(w, q.OrderBy != nil); err != nil {
		return err
	}
	if q.OrderBy != nil {
		if err := writeString(w, q.OrderBy.Column); err != nil {
			return err
		}
		if err := writeByte(w, byte(q.OrderBy.Mode)); err != nil {
			return err
		}
	}

	if err := writeStringMap(w, q.Row); err != nil {
		return err
	}

	return encodeWhere(w, q.Where)
}

func decodeQuery(r io.Reader) (*query.Query, error) {
	q := &query.Query{}

	kind, err := readByte(r)
	if err != nil {
		return nil, err
	}
	q.Kind = query.StatementKind(kind)

	if q.Table, err = readString(r); err != nil {
		return nil, err
	}
	if q.Raw, err = readString(r); err != nil {
		return nil, err
	}

	hasSchema, err := readBool(r)
	if err != nil {
		return nil, err
	}
	if hasSchema {
		if q.Schema, err = decodeSchema(r); err != nil {
			return nil, err
		}
	}

	if q.Columns, err = readStringSlice(r); err != nil {
		return nil, err
	}
	if len(q.Columns) == 0 {
		q.Columns = nil
	}

	hasOrder, err := readBool(r)
	if err != nil {
		return nil, err
	}
	if hasOrder {
		order := &query.Order{}
		if order.Column, err = readString(r); err != nil {
			return nil, err
		}
		mode, err := readByte(r)
		if err != nil {
			return nil, err
		}
		order.Mode = query.OrderMode(mode)
		q.OrderBy = order
	}

	row, err := readStringMap(r)
	if err != nil {
		return nil, err
	}
	if len(row) > 0 {
		q.Row = row
	}

	q.Where, err = decodeWhere(r)
	return q, err
}

func encodeSchema(w io.Writer, s *schema.Schema) error {
	if err := writeUint32(w, uint32(len(s.Columns))); err != nil {
		return err
	}
	for _, c := range s.Columns {
		if err := writeString(w, c.Name); err != nil {
			return err
		}
		if err := writeByte(w, byte(c.Type)); err != nil {
			return err
		}
	}
	if err := writeStringSlice(w, s.PartitionKey); err != nil {
		return err
	}
	return writeStringSlice(w, s.ClusteringKey)
}

func decodeSchema(r io.Reader) (*schema.Schema, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	s := &schema.Schema{Columns: make([]schema.Column, 0, n)}
	for i := 0; i < n; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		t, err := readByte(r)
		if err != nil {
			return nil, err
		}
		s.Columns = append(s.Columns, schema.Column{Name: name, Type: schema.ColumnType(t)})
	}
	if s.PartitionKey, err = readStringSlice(r); err != nil {
		return nil, err
	}
	s.ClusteringKey, err = readStringSlice(r)
	return s, err
}

const (
	whereNone byte = 0x00
	whereLeaf byte = 0x01
	whereTree byte = 0x02
)

func encodeWhere(w io.Writer, clause *query.WhereClause) error {
	if clause == nil {
		return writeByte(w, whereNone)
	}
	if clause.Cmp != nil {
		if err := writeByte(w, whereLeaf); err != nil {
			return err
		}
		if err := writeString(w, clause.Cmp.Left); err != nil {
			return err
		}
		if err := writeString(w, clause.Cmp.Right); err != nil {
			return err
		}
		if err := writeByte(w, byte(clause.Cmp.Op)); err != nil {
			return err
		}
		return writeBool(w, clause.Cmp.Negate)
	}
	if err := writeByte(w, whereTree); err != nil {
		return err
	}
	if err := writeByte(w, byte(clause.Op)); err != nil {
		return err
	}
	if err := encodeWhere(w, clause.Left); err != nil {
		return err
	}
	return encodeWhere(w, clause.Right)
}

func decodeWhere(r io.Reader) (*query.WhereClause, error) {
	tag, err := readByte(r)
	if err != nil {
		return nil, err
	}
	switch tag {
	case whereNone:
		return nil, nil
	case whereLeaf:
		cmp := &query.Comparison{}
		if cmp.Left, err = readString(r); err != nil {
			return nil, err
		}
		if cmp.Right, err = readString(r); err != nil {
			return nil, err
		}
		op, err := readByte(r)
		if err != nil {
			return nil, err
		}
		cmp.Op = query.CompareOp(op)
		if cmp.Negate, err = readBool(r); err != nil {
			return nil, err
		}
		return &query.WhereClause{Cmp: cmp}, nil
	case whereTree:
		op, err := readByte(r)
		if err != nil {
			return nil, err
		}
		left, err := decodeWhere(r)
		if err != nil {
			return nil, err
		}
		right, err := decodeWhere(r)
		if err != nil {
			return nil, err
		}
		return &query.WhereClause{Op: query.BoolOp(op), Left: left, Right: right}, nil
	default:
		return nil, fmt.Errorf("invalid where tag: 0x%02x", tag)
	}
}
