package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlite/pkg/schema"
)

// roundTrip pushes props through JSON the way the libSQL backend stores them.
func roundTrip(t *testing.T, label string, p Props) *Node {
	t.Helper()
	raw, err := json.Marshal(compactProps(p))
	require.NoError(t, err)
	n, err := decodeNode("id-1", label, string(raw))
	require.NoError(t, err)
	return n
}

func TestDecodeStepRun_NoteAndSnapshot(t *testing.T) {
	note := "waiting on laptop"
	sr := &schema.StepRun{
		RunID: "run-1", StepID: "step-1", Seq: 2,
		StepName: "Setup", StepOrder: 3,
		Status: schema.StepStatusInProgress, Note: &note,
	}
	got, err := DecodeStepRun(roundTrip(t, LabelStepRun, StepRunProps(sr)))
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, 2, got.Seq)
	assert.Equal(t, 3, got.StepOrder)
	assert.Equal(t, "Setup", got.StepName)
	assert.Equal(t, schema.StepStatusInProgress, got.Status)
	require.NotNil(t, got.Note)
	assert.Equal(t, note, *got.Note)

	sr.Note = nil
	got, err = DecodeStepRun(roundTrip(t, LabelStepRun, StepRunProps(sr)))
	require.NoError(t, err)
	assert.Nil(t, got.Note)
}

func TestDecodeRun_CompletedAt(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	done := started.Add(90 * time.Minute)
	r := &schema.WorkflowRun{WorkflowID: "wf", Status: schema.RunStatusCompleted, StartedAt: started, CompletedAt: &done}

	got, err := DecodeRun(roundTrip(t, LabelWorkflowRun, RunProps(r)))
	require.NoError(t, err)
	assert.True(t, started.Equal(got.StartedAt))
	require.NotNil(t, got.CompletedAt)
	assert.True(t, done.Equal(*got.CompletedAt))
}

func TestFormatTime_SortsAsString(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	times := []time.Time{
		base,
		base.Add(100 * time.Millisecond),
		base.Add(150 * time.Millisecond),
		base.Add(500 * time.Millisecond),
		base.Add(time.Second),
	}
	for i := 1; i < len(times); i++ {
		prev, cur := formatTime(times[i-1]), formatTime(times[i])
		assert.Less(t, prev, cur)
		assert.Len(t, cur, len(prev))
	}

	parsed, err := parseTime(formatTime(times[2]))
	require.NoError(t, err)
	assert.True(t, times[2].Equal(parsed))
}

func TestDecode_WrongLabel(t *testing.T) {
	_, err := DecodeStep(&Node{ID: "x", Label: LabelDocument, Props: Props{}})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeStore, schema.CodeOf(err))
}

func TestDecodeStep_RequiresIntegerOrder(t *testing.T) {
	_, err := DecodeStep(&Node{ID: "x", Label: LabelStep, Props: Props{"name": "a", "order": 1.5}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order")

	s, err := DecodeStep(&Node{ID: "x", Label: LabelStep, Props: Props{"name": "a", "order": int64(4)}})
	require.NoError(t, err)
	assert.Equal(t, 4, s.Order)
}

func TestDecodeAgent_LegacyKind(t *testing.T) {
	a, err := DecodeAgent(&Node{ID: "x", Label: LabelAgent, Props: Props{"name": "bot", "kind": "AI"}})
	require.NoError(t, err)
	assert.Equal(t, schema.AgentKindAutomated, a.Kind)
}

func TestMergeProps(t *testing.T) {
	base := Props{"a": 1, "b": "x"}
	got := mergeProps(base, Props{"b": nil, "c": true})
	assert.Equal(t, Props{"a": 1, "c": true}, got)
}
