package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/rendis/flowlite/pkg/schema"
)

// Neo4jConfig holds the connection settings for a Neo4j backend.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// Neo4jStore implements Store on a Neo4j server through the Bolt driver.
// Identities live in an "id" property guarded by per-label uniqueness
// constraints.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jStore connects to Neo4j and verifies connectivity.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("open neo4j: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, classifyNeo4j("connect", err)
	}
	return &Neo4jStore{driver: driver, database: cfg.Database}, nil
}

// Close closes the driver and its connection pool.
func (s *Neo4jStore) Close() error {
	return s.driver.Close(context.Background())
}

// Migrate creates one uniqueness constraint on id per label.
func (s *Neo4jStore) Migrate(ctx context.Context) error {
	for _, label := range Labels {
		_, err := neo4j.ExecuteQuery(ctx, s.driver, cypherConstraint(label), nil,
			neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
		if err != nil {
			return classifyNeo4j("migrate "+label, err)
		}
	}
	return nil
}

func (s *Neo4jStore) Read(ctx context.Context, fn func(tx Tx) error) error {
	return s.run(ctx, neo4j.AccessModeRead, fn)
}

func (s *Neo4jStore) Write(ctx context.Context, fn func(tx Tx) error) error {
	return s.run(ctx, neo4j.AccessModeWrite, fn)
}

func (s *Neo4jStore) run(ctx context.Context, mode neo4j.AccessMode, fn func(tx Tx) error) (err error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
	defer session.Close(ctx)

	btx, err := session.BeginTransaction(ctx)
	if err != nil {
		return classifyNeo4j("begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = btx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = btx.Rollback(ctx)
		}
	}()

	if err = fn(&neo4jTx{tx: btx, readOnly: mode == neo4j.AccessModeRead}); err != nil {
		return classifyNeo4j("transaction", err)
	}
	if err = btx.Commit(ctx); err != nil {
		return classifyNeo4j("commit", err)
	}
	return nil
}

type neo4jTx struct {
	tx       neo4j.ExplicitTransaction
	readOnly bool
}

func (t *neo4jTx) CreateNode(ctx context.Context, label string, props Props) (*Node, error) {
	if t.readOnly {
		return nil, readOnlyErr("create node")
	}
	if err := checkIdent("label", label); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, err.Error())
	}
	p := compactProps(props)
	p["id"] = uuid.New().String()
	nodes, err := t.collect(ctx, "create "+kindOf(label), label,
		fmt.Sprintf("CREATE (n:%s) SET n = $props RETURN n", label), map[string]any{"props": map[string]any(p)})
	if err != nil {
		return nil, err
	}
	if len(nodes) != 1 {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "create %s: expected 1 node, got %d", kindOf(label), len(nodes))
	}
	return nodes[0], nil
}

func (t *neo4jTx) CreateRel(ctx context.Context, fromID, relType, toID string) error {
	if t.readOnly {
		return readOnlyErr("create relationship")
	}
	if err := checkIdent("relationship type", relType); err != nil {
		return schema.NewError(schema.ErrCodeStore, err.Error())
	}
	res, err := t.tx.Run(ctx, "MATCH (n) WHERE n.id IN $ids RETURN collect(n.id) AS ids",
		map[string]any{"ids": []any{fromID, toID}})
	if err != nil {
		return classifyNeo4j("create relationship", err)
	}
	rec, err := res.Single(ctx)
	if err != nil {
		return classifyNeo4j("create relationship", err)
	}
	raw, _ := rec.Get("ids")
	found, _ := strs(Props{"ids": raw}, "ids")
	for _, id := range []string{fromID, toID} {
		if !slices.Contains(found, id) {
			return schema.NotFound("node", id)
		}
	}

	cypher := fmt.Sprintf("MATCH (a {id: $from}) MATCH (b {id: $to}) MERGE (a)-[:%s]->(b)", relType)
	res, err = t.tx.Run(ctx, cypher, map[string]any{"from": fromID, "to": toID})
	if err != nil {
		return classifyNeo4j("create relationship", err)
	}
	if _, err := res.Consume(ctx); err != nil {
		return classifyNeo4j("create relationship", err)
	}
	return nil
}

func (t *neo4jTx) Node(ctx context.Context, label, id string) (*Node, error) {
	if err := checkIdent("label", label); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, err.Error())
	}
	nodes, err := t.collect(ctx, "get "+kindOf(label), label,
		fmt.Sprintf("MATCH (n:%s {id: $id}) RETURN n", label), map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, schema.NotFound(kindOf(label), id)
	}
	return nodes[0], nil
}

func (t *neo4jTx) Nodes(ctx context.Context, q Query) ([]*Node, error) {
	if err := q.validate(); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, err.Error())
	}
	cypher, params := cypherNodes(q)
	return t.collect(ctx, "list "+kindOf(q.Label), q.Label, cypher, params)
}

func (t *neo4jTx) Neighbors(ctx context.Context, m Match) ([]*Node, error) {
	if err := m.validate(); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, err.Error())
	}
	cypher, params := cypherNeighbors(m)
	return t.collect(ctx, "match "+m.Rel, m.Label, cypher, params)
}

func (t *neo4jTx) SetProps(ctx context.Context, label, id string, props Props) (*Node, error) {
	if t.readOnly {
		return nil, readOnlyErr("set props")
	}
	if err := checkIdent("label", label); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, err.Error())
	}
	patch := make(map[string]any, len(props))
	for k, v := range props {
		if k != "id" {
			patch[k] = v
		}
	}
	// SET += removes keys whose value is null.
	nodes, err := t.collect(ctx, "update "+kindOf(label), label,
		fmt.Sprintf("MATCH (n:%s {id: $id}) SET n += $props RETURN n", label),
		map[string]any{"id": id, "props": patch})
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, schema.NotFound(kindOf(label), id)
	}
	return nodes[0], nil
}

// collect runs a query whose records carry a node in column n.
func (t *neo4jTx) collect(ctx context.Context, op, label, cypher string, params map[string]any) ([]*Node, error) {
	res, err := t.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, classifyNeo4j(op, err)
	}
	var out []*Node
	for res.Next(ctx) {
		raw, ok := res.Record().Get("n")
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "%s: record without node", op)
		}
		dn, ok := raw.(neo4j.Node)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "%s: unexpected %T", op, raw)
		}
		out = append(out, fromNeo4jNode(label, dn))
	}
	if err := res.Err(); err != nil {
		return nil, classifyNeo4j(op, err)
	}
	return out, nil
}

func fromNeo4jNode(label string, dn neo4j.Node) *Node {
	props := make(Props, len(dn.Props))
	var id string
	for k, v := range dn.Props {
		if k == "id" {
			id, _ = v.(string)
			continue
		}
		props[k] = v
	}
	return &Node{ID: id, Label: label, Props: props}
}

// classifyNeo4j maps driver failures onto the store taxonomy.
func classifyNeo4j(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *schema.Error
	if errors.As(err, &se) {
		return err
	}
	if neo4j.IsRetryable(err) || neo4j.IsConnectivityError(err) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return schema.NewErrorf(schema.ErrCodeStoreUnavailable, "%s: %v", op, err).WithCause(err)
	}
	return schema.NewErrorf(schema.ErrCodeStore, "%s: %v", op, err).WithCause(err)
}
