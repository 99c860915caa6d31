package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/flowlite/pkg/schema"
)

// LibSQLStore implements Store on libSQL (embedded SQLite fork). Nodes and
// relationships are rows; node properties are a JSON document queried with
// json_extract.
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/flowlite.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	if err := runMigrations(ctx, s.db); err != nil {
		return classify("migrate", err)
	}
	return nil
}

// Read runs fn in a transaction that rejects mutations.
func (s *LibSQLStore) Read(ctx context.Context, fn func(tx Tx) error) error {
	return s.run(ctx, true, fn)
}

// Write runs fn in a read-write transaction.
func (s *LibSQLStore) Write(ctx context.Context, fn func(tx Tx) error) error {
	return s.run(ctx, false, fn)
}

func (s *LibSQLStore) run(ctx context.Context, readOnly bool, fn func(tx Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(&libsqlTx{tx: sqlTx, readOnly: readOnly}); err != nil {
		return classify("transaction", err)
	}
	if err = sqlTx.Commit(); err != nil {
		return classify("commit", err)
	}
	return nil
}

type libsqlTx struct {
	tx       *sql.Tx
	readOnly bool
}

func (t *libsqlTx) CreateNode(ctx context.Context, label string, props Props) (*Node, error) {
	if t.readOnly {
		return nil, readOnlyErr("create node")
	}
	if err := checkIdent("label", label); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, err.Error())
	}
	raw, err := json.Marshal(compactProps(props))
	if err != nil {
		return nil, fmt.Errorf("marshal %s props: %w", label, err)
	}
	id := uuid.New().String()
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO nodes (id, label, props) VALUES (?, ?, ?)`, id, label, string(raw),
	); err != nil {
		return nil, classify("create "+kindOf(label), err)
	}
	return decodeNode(id, label, string(raw))
}

func (t *libsqlTx) CreateRel(ctx context.Context, fromID, relType, toID string) error {
	if t.readOnly {
		return readOnlyErr("create relationship")
	}
	if err := checkIdent("relationship type", relType); err != nil {
		return schema.NewError(schema.ErrCodeStore, err.Error())
	}
	for _, id := range []string{fromID, toID} {
		var one int
		err := t.tx.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return schema.NotFound("node", id)
		}
		if err != nil {
			return classify("create relationship", err)
		}
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO relationships (from_id, type, to_id) VALUES (?, ?, ?)`,
		fromID, relType, toID,
	)
	if err != nil {
		return classify("create relationship", err)
	}
	return nil
}

func (t *libsqlTx) Node(ctx context.Context, label, id string) (*Node, error) {
	var raw string
	err := t.tx.QueryRowContext(ctx,
		`SELECT props FROM nodes WHERE id = ? AND label = ?`, id, label,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schema.NotFound(kindOf(label), id)
	}
	if err != nil {
		return nil, classify("get "+kindOf(label), err)
	}
	return decodeNode(id, label, raw)
}

func (t *libsqlTx) Nodes(ctx context.Context, q Query) ([]*Node, error) {
	if err := q.validate(); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, err.Error())
	}
	var b sqlBuilder
	b.WriteString(`SELECT n.id, n.label, n.props FROM nodes n WHERE n.label = ?`)
	b.args = append(b.args, q.Label)
	b.where(q.Where)
	b.order(q)
	return t.queryNodes(ctx, "list "+kindOf(q.Label), &b)
}

func (t *libsqlTx) Neighbors(ctx context.Context, m Match) ([]*Node, error) {
	if err := m.validate(); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, err.Error())
	}
	// (from, type, to) is the primary key, so a single hop cannot repeat a node.
	var b sqlBuilder
	switch m.Dir {
	case Incoming:
		b.WriteString(`SELECT n.id, n.label, n.props FROM relationships r JOIN nodes n ON n.id = r.from_id WHERE r.to_id = ?`)
	default:
		b.WriteString(`SELECT n.id, n.label, n.props FROM relationships r JOIN nodes n ON n.id = r.to_id WHERE r.from_id = ?`)
	}
	b.WriteString(` AND r.type = ? AND n.label = ?`)
	b.args = append(b.args, m.From, m.Rel, m.Label)
	b.where(m.Where)
	b.order(m.Query)
	return t.queryNodes(ctx, "match "+m.Rel, &b)
}

func (t *libsqlTx) SetProps(ctx context.Context, label, id string, props Props) (*Node, error) {
	if t.readOnly {
		return nil, readOnlyErr("set props")
	}
	n, err := t.Node(ctx, label, id)
	if err != nil {
		return nil, err
	}
	merged := mergeProps(n.Props, props)
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshal %s props: %w", label, err)
	}
	res, err := t.tx.ExecContext(ctx, `UPDATE nodes SET props = ? WHERE id = ?`, string(raw), id)
	if err != nil {
		return nil, classify("update "+kindOf(label), err)
	}
	if err := checkRowsAffected(res, kindOf(label), id); err != nil {
		return nil, err
	}
	return decodeNode(id, label, string(raw))
}

func (t *libsqlTx) queryNodes(ctx context.Context, op string, b *sqlBuilder) ([]*Node, error) {
	rows, err := t.tx.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []*Node
	for rows.Next() {
		var id, label, raw string
		if err := rows.Scan(&id, &label, &raw); err != nil {
			return nil, classify(op, err)
		}
		n, err := decodeNode(id, label, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

// sqlBuilder accumulates a SELECT over the nodes table aliased as n.
type sqlBuilder struct {
	strings.Builder
	args []any
}

func (b *sqlBuilder) where(preds []Predicate) {
	for _, p := range preds {
		col := jsonPath(p.Prop)
		switch {
		case p.Value == nil && p.Op == OpEq:
			fmt.Fprintf(b, ` AND %s IS NULL`, col)
		case p.Value == nil && p.Op == OpNe:
			fmt.Fprintf(b, ` AND %s IS NOT NULL`, col)
		case p.Op == OpIn:
			vs := p.Value.([]any)
			if len(vs) == 0 {
				b.WriteString(` AND 0`)
				continue
			}
			fmt.Fprintf(b, ` AND %s IN (%s)`, col, strings.TrimSuffix(strings.Repeat("?,", len(vs)), ","))
			for _, v := range vs {
				b.args = append(b.args, sqlValue(v))
			}
		default:
			fmt.Fprintf(b, ` AND %s %s ?`, col, p.Op)
			b.args = append(b.args, sqlValue(p.Value))
		}
	}
}

// order sorts by the requested property, then by insertion order.
func (b *sqlBuilder) order(q Query) {
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	if q.OrderBy != "" {
		fmt.Fprintf(b, ` ORDER BY %s %s, n.rowid %s`, jsonPath(q.OrderBy), dir, dir)
	} else {
		fmt.Fprintf(b, ` ORDER BY n.rowid %s`, dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(b, ` LIMIT %d`, q.Limit)
	}
}

func jsonPath(prop string) string {
	return fmt.Sprintf(`json_extract(n.props, '$.%s')`, prop)
}

// sqlValue maps Go values onto what json_extract yields for the same JSON.
func sqlValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

func decodeNode(id, label, raw string) (*Node, error) {
	props := Props{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &props); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "decode %s %s: %v", label, id, err).WithCause(err)
		}
	}
	return &Node{ID: id, Label: label, Props: props}, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify("rows affected", err)
	}
	if n == 0 {
		return schema.NotFound(kind, id)
	}
	return nil
}

// classify converts driver errors into the store taxonomy. Structured errors
// pass through untouched so callers see NOT_FOUND and friends as raised.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *schema.Error
	if errors.As(err, &se) {
		return err
	}
	if isTransient(err) {
		return schema.NewErrorf(schema.ErrCodeStoreUnavailable, "%s: %v", op, err).WithCause(err)
	}
	return schema.NewErrorf(schema.ErrCodeStore, "%s: %v", op, err).WithCause(err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"database is locked", "sqlite_busy", "database table is locked", "connection refused"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
