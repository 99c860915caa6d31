package store

import (
	"fmt"
	"strings"
)

// cypherBuilder renders Query and Match values into parameterised Cypher.
// Labels, relationship types and property names are validated identifiers;
// every value travels as a parameter.
type cypherBuilder struct {
	strings.Builder
	params map[string]any
}

func newCypherBuilder() *cypherBuilder {
	return &cypherBuilder{params: map[string]any{}}
}

func (b *cypherBuilder) param(v any) string {
	name := fmt.Sprintf("p%d", len(b.params))
	b.params[name] = v
	return "$" + name
}

func (b *cypherBuilder) where(preds []Predicate) {
	for i, p := range preds {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		switch {
		case p.Value == nil && p.Op == OpEq:
			fmt.Fprintf(b, "n.%s IS NULL", p.Prop)
		case p.Value == nil && p.Op == OpNe:
			fmt.Fprintf(b, "n.%s IS NOT NULL", p.Prop)
		default:
			fmt.Fprintf(b, "n.%s %s %s", p.Prop, p.Op, b.param(p.Value))
		}
	}
}

func (b *cypherBuilder) order(q Query) {
	if q.OrderBy != "" {
		dir := ""
		if q.Desc {
			dir = " DESC"
		}
		fmt.Fprintf(b, " ORDER BY n.%s%s", q.OrderBy, dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(b, " LIMIT %d", q.Limit)
	}
}

func cypherNodes(q Query) (string, map[string]any) {
	b := newCypherBuilder()
	fmt.Fprintf(b, "MATCH (n:%s)", q.Label)
	b.where(q.Where)
	b.WriteString(" RETURN n")
	b.order(q)
	return b.String(), b.params
}

func cypherNeighbors(m Match) (string, map[string]any) {
	b := newCypherBuilder()
	from := b.param(m.From)
	pattern := "(a)-[:%s]->(n:%s)"
	if m.Dir == Incoming {
		pattern = "(a)<-[:%s]-(n:%s)"
	}
	fmt.Fprintf(b, "MATCH (a {id: %s}) MATCH "+pattern, from, m.Rel, m.Label)
	b.where(m.Where)
	b.WriteString(" RETURN DISTINCT n")
	b.order(m.Query)
	return b.String(), b.params
}

func cypherConstraint(label string) string {
	return fmt.Sprintf("CREATE CONSTRAINT flowlite_%s_id IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE",
		strings.ToLower(label), label)
}
