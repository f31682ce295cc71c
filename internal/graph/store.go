package graph

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/transition-cli/internal/db"
)

// Store merges batches into a graph. Merge must be atomic per batch.
type Store interface {
	Merge(ctx context.Context, b Batch) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[NodeRef]Node
	edges map[edgeKey]Edge
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nodes: make(map[NodeRef]Node), edges: make(map[edgeKey]Edge)}
}

func (m *MemoryStore) Merge(ctx context.Context, b Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range b.Nodes {
		if prev, ok := m.nodes[n.NodeRef]; ok {
			n.Properties = mergeProps(prev.Properties, n.Properties)
		}
		m.nodes[n.NodeRef] = n
	}
	for _, e := range b.Edges {
		k := e.key()
		if prev, ok := m.edges[k]; ok {
			e.Properties = mergeProps(prev.Properties, e.Properties)
		}
		m.edges[k] = e
	}
	return nil
}

// Node returns the node with the given label and ID.
func (m *MemoryStore) Node(label, id string) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[NodeRef{Label: label, ID: id}]
	return n, ok
}

// Edge returns the edge of type rel between from and to.
func (m *MemoryStore) Edge(rel string, from, to NodeRef) (Edge, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.edges[edgeKey{Rel: rel, From: from, To: to}]
	return e, ok
}

// Counts returns the number of distinct nodes and edges.
func (m *MemoryStore) Counts() (nodes, edges int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes), len(m.edges)
}

const (
	nodesTable = "graph.nodes"
	edgesTable = "graph.edges"
)

var (
	nodeUpsert = db.UpsertConfig{
		Table:        nodesTable,
		Columns:      []string{"label", "id", "properties", "updated_at"},
		ConflictKeys: []string{"label", "id"},
	}
	edgeUpsert = db.UpsertConfig{
		Table:        edgesTable,
		Columns:      []string{"rel", "src_label", "src_id", "dst_label", "dst_id", "properties", "updated_at"},
		ConflictKeys: []string{"rel", "src_label", "src_id", "dst_label", "dst_id"},
	}
)

// PostgresStore persists the graph in graph.nodes and graph.edges.
type PostgresStore struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgresStore wraps pool. Tables come from the store migrations.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

// Merge upserts the batch's nodes then edges in one transaction.
func (s *PostgresStore) Merge(ctx context.Context, b Batch) error {
	now := s.now().UTC()

	nodeRows := make([][]any, 0, len(b.Nodes))
	for _, n := range b.Nodes {
		props, err := marshalProps(n.Properties)
		if err != nil {
			return eris.Wrapf(err, "graph: marshal %s %s", n.Label, n.ID)
		}
		nodeRows = append(nodeRows, []any{n.Label, n.ID, props, now})
	}
	edgeRows := make([][]any, 0, len(b.Edges))
	for _, e := range b.Edges {
		props, err := marshalProps(e.Properties)
		if err != nil {
			return eris.Wrapf(err, "graph: marshal %s edge", e.Rel)
		}
		edgeRows = append(edgeRows, []any{e.Rel, e.From.Label, e.From.ID, e.To.Label, e.To.ID, props, now})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "graph: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := db.UpsertTx(ctx, tx, nodeUpsert, nodeRows); err != nil {
		return eris.Wrap(err, "graph: merge nodes")
	}
	if _, err := db.UpsertTx(ctx, tx, edgeUpsert, edgeRows); err != nil {
		return eris.Wrap(err, "graph: merge edges")
	}
	return eris.Wrap(tx.Commit(ctx), "graph: commit")
}

func marshalProps(p map[string]any) ([]byte, error) {
	if len(p) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}
