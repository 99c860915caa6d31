package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlite/pkg/schema"
)

// runContract exercises the Store contract against any backend.
func runContract(t *testing.T, s Store) {
	t.Run("CreateAndGetNode", func(t *testing.T) { testCreateAndGetNode(t, s) })
	t.Run("NodeWrongLabel", func(t *testing.T) { testNodeWrongLabel(t, s) })
	t.Run("CreateRelIdempotent", func(t *testing.T) { testCreateRelIdempotent(t, s) })
	t.Run("CreateRelUnknownNode", func(t *testing.T) { testCreateRelUnknownNode(t, s) })
	t.Run("NeighborsDirection", func(t *testing.T) { testNeighborsDirection(t, s) })
	t.Run("NodesFilterOrderLimit", func(t *testing.T) { testNodesFilterOrderLimit(t, s) })
	t.Run("SetPropsMerge", func(t *testing.T) { testSetPropsMerge(t, s) })
	t.Run("SetPropsNotFound", func(t *testing.T) { testSetPropsNotFound(t, s) })
	t.Run("WriteRollsBack", func(t *testing.T) { testWriteRollsBack(t, s) })
	t.Run("ReadRejectsWrites", func(t *testing.T) { testReadRejectsWrites(t, s) })
}

func createNode(t *testing.T, s Store, label string, props Props) *Node {
	t.Helper()
	var n *Node
	require.NoError(t, s.Write(context.Background(), func(tx Tx) error {
		var err error
		n, err = tx.CreateNode(context.Background(), label, props)
		return err
	}))
	return n
}

func link(t *testing.T, s Store, from, rel, to string) {
	t.Helper()
	require.NoError(t, s.Write(context.Background(), func(tx Tx) error {
		return tx.CreateRel(context.Background(), from, rel, to)
	}))
}

func testCreateAndGetNode(t *testing.T, s Store) {
	ctx := context.Background()
	created := createNode(t, s, LabelDocument, Props{
		"title": "Handbook",
		"url":   nil,
		"tags":  []string{"hr", "intro"},
	})
	require.NotEmpty(t, created.ID)
	assert.Equal(t, LabelDocument, created.Label)
	_, hasURL := created.Props["url"]
	assert.False(t, hasURL, "nil props are not stored")

	var got *Node
	require.NoError(t, s.Read(ctx, func(tx Tx) error {
		var err error
		got, err = tx.Node(ctx, LabelDocument, created.ID)
		return err
	}))
	doc, err := DecodeDocument(got)
	require.NoError(t, err)
	assert.Equal(t, "Handbook", doc.Title)
	assert.Equal(t, []string{"hr", "intro"}, doc.Tags)
}

func testNodeWrongLabel(t *testing.T, s Store) {
	ctx := context.Background()
	n := createNode(t, s, LabelAgent, Props{"name": "Ana", "kind": "human"})

	err := s.Read(ctx, func(tx Tx) error {
		_, err := tx.Node(ctx, LabelStep, n.ID)
		return err
	})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
	assert.Contains(t, err.Error(), "step")
}

func testCreateRelIdempotent(t *testing.T, s Store) {
	ctx := context.Background()
	step := createNode(t, s, LabelStep, Props{"name": "Intro", "order": 1})
	doc := createNode(t, s, LabelDocument, Props{"title": "Guide"})

	link(t, s, step.ID, RelNeedsDoc, doc.ID)
	link(t, s, step.ID, RelNeedsDoc, doc.ID)

	var docs []*Node
	require.NoError(t, s.Read(ctx, func(tx Tx) error {
		var err error
		docs, err = tx.Neighbors(ctx, Match{From: step.ID, Rel: RelNeedsDoc, Query: Query{Label: LabelDocument}})
		return err
	}))
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)
}

func testCreateRelUnknownNode(t *testing.T, s Store) {
	ctx := context.Background()
	step := createNode(t, s, LabelStep, Props{"name": "Lonely", "order": 1})

	err := s.Write(ctx, func(tx Tx) error {
		return tx.CreateRel(ctx, step.ID, RelNeedsDoc, "missing-doc")
	})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func testNeighborsDirection(t *testing.T, s Store) {
	ctx := context.Background()
	wf := createNode(t, s, LabelWorkflow, Props{"name": "Directional"})
	a := createNode(t, s, LabelStep, Props{"name": "A", "order": 2})
	b := createNode(t, s, LabelStep, Props{"name": "B", "order": 1})
	link(t, s, wf.ID, RelHasStep, a.ID)
	link(t, s, wf.ID, RelHasStep, b.ID)

	require.NoError(t, s.Read(ctx, func(tx Tx) error {
		steps, err := tx.Neighbors(ctx, Match{
			From: wf.ID, Rel: RelHasStep,
			Query: Query{Label: LabelStep, OrderBy: "order"},
		})
		require.NoError(t, err)
		require.Len(t, steps, 2)
		assert.Equal(t, b.ID, steps[0].ID)
		assert.Equal(t, a.ID, steps[1].ID)

		owners, err := tx.Neighbors(ctx, Match{
			From: a.ID, Rel: RelHasStep, Dir: Incoming,
			Query: Query{Label: LabelWorkflow},
		})
		require.NoError(t, err)
		require.Len(t, owners, 1)
		assert.Equal(t, wf.ID, owners[0].ID)
		return nil
	}))
}

func testNodesFilterOrderLimit(t *testing.T, s Store) {
	ctx := context.Background()
	tag := "filter-" + t.Name()
	for i, status := range []string{"running", "completed", "running", "running"} {
		createNode(t, s, LabelWorkflowRun, Props{"workflow_id": tag, "status": status, "seq": i})
	}

	require.NoError(t, s.Read(ctx, func(tx Tx) error {
		running, err := tx.Nodes(ctx, Query{
			Label:   LabelWorkflowRun,
			Where:   []Predicate{Eq("workflow_id", tag), Eq("status", "running")},
			OrderBy: "seq",
			Desc:    true,
			Limit:   2,
		})
		require.NoError(t, err)
		require.Len(t, running, 2)
		s0, _ := intVal(running[0].Props["seq"])
		s1, _ := intVal(running[1].Props["seq"])
		assert.Equal(t, 3, s0)
		assert.Equal(t, 2, s1)

		either, err := tx.Nodes(ctx, Query{
			Label: LabelWorkflowRun,
			Where: []Predicate{Eq("workflow_id", tag), In("status", "completed", "cancelled")},
		})
		require.NoError(t, err)
		assert.Len(t, either, 1)

		notDone, err := tx.Nodes(ctx, Query{
			Label: LabelWorkflowRun,
			Where: []Predicate{Eq("workflow_id", tag), Ne("status", "completed")},
		})
		require.NoError(t, err)
		assert.Len(t, notDone, 3)
		return nil
	}))
}

func testSetPropsMerge(t *testing.T, s Store) {
	ctx := context.Background()
	n := createNode(t, s, LabelStepRun, Props{"status": "todo", "note": "first", "seq": 0})

	var updated *Node
	require.NoError(t, s.Write(ctx, func(tx Tx) error {
		var err error
		updated, err = tx.SetProps(ctx, LabelStepRun, n.ID, Props{"status": "done", "note": nil})
		return err
	}))
	assert.Equal(t, "done", updated.Props["status"])
	_, hasNote := updated.Props["note"]
	assert.False(t, hasNote)
	seq, ok := intVal(updated.Props["seq"])
	require.True(t, ok)
	assert.Equal(t, 0, seq)
}

func testSetPropsNotFound(t *testing.T, s Store) {
	ctx := context.Background()
	err := s.Write(ctx, func(tx Tx) error {
		_, err := tx.SetProps(ctx, LabelStepRun, "nope", Props{"status": "done"})
		return err
	})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func testWriteRollsBack(t *testing.T, s Store) {
	ctx := context.Background()
	boom := errors.New("boom")
	var id string
	err := s.Write(ctx, func(tx Tx) error {
		n, err := tx.CreateNode(ctx, LabelWorkflow, Props{"name": "Ghost"})
		if err != nil {
			return err
		}
		id = n.ID
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	require.NotEmpty(t, id)

	err = s.Read(ctx, func(tx Tx) error {
		_, err := tx.Node(ctx, LabelWorkflow, id)
		return err
	})
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func testReadRejectsWrites(t *testing.T, s Store) {
	ctx := context.Background()
	err := s.Read(ctx, func(tx Tx) error {
		_, err := tx.CreateNode(ctx, LabelWorkflow, Props{"name": "Nope"})
		return err
	})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeStore, schema.CodeOf(err))
}
