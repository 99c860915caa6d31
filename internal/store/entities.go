package store

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rendis/flowlite/pkg/schema"
)

// Conversion between property bags and typed entities. Everything above this
// file works with pkg/schema types only.

func WorkflowProps(w *schema.Workflow) Props {
	return Props{"name": w.Name, "goal": nullStr(w.Goal)}
}

func DecodeWorkflow(n *Node) (*schema.Workflow, error) {
	if err := expectLabel(n, LabelWorkflow); err != nil {
		return nil, err
	}
	name, err := requiredString(n, "name")
	if err != nil {
		return nil, err
	}
	return &schema.Workflow{ID: n.ID, Name: name, Goal: str(n.Props, "goal")}, nil
}

func StepProps(s *schema.Step) Props {
	return Props{"name": s.Name, "order": s.Order, "description": nullStr(s.Description)}
}

func DecodeStep(n *Node) (*schema.Step, error) {
	if err := expectLabel(n, LabelStep); err != nil {
		return nil, err
	}
	name, err := requiredString(n, "name")
	if err != nil {
		return nil, err
	}
	order, err := requiredInt(n, "order")
	if err != nil {
		return nil, err
	}
	return &schema.Step{
		ID:          n.ID,
		Name:        name,
		Order:       order,
		Description: str(n.Props, "description"),
	}, nil
}

func DocumentProps(d *schema.Document) Props {
	p := Props{"title": d.Title, "url": nullStr(d.URL)}
	if len(d.Tags) > 0 {
		p["tags"] = d.Tags
	}
	return p
}

func DecodeDocument(n *Node) (*schema.Document, error) {
	if err := expectLabel(n, LabelDocument); err != nil {
		return nil, err
	}
	title, err := requiredString(n, "title")
	if err != nil {
		return nil, err
	}
	tags, err := strs(n.Props, "tags")
	if err != nil {
		return nil, decodeErr(n, "tags", err)
	}
	return &schema.Document{ID: n.ID, Title: title, URL: str(n.Props, "url"), Tags: tags}, nil
}

func AgentProps(a *schema.Agent) Props {
	return Props{"name": a.Name, "kind": string(a.Kind)}
}

func DecodeAgent(n *Node) (*schema.Agent, error) {
	if err := expectLabel(n, LabelAgent); err != nil {
		return nil, err
	}
	name, err := requiredString(n, "name")
	if err != nil {
		return nil, err
	}
	kind, err := schema.ParseAgentKind(str(n.Props, "kind"))
	if err != nil {
		return nil, decodeErr(n, "kind", err)
	}
	return &schema.Agent{ID: n.ID, Name: name, Kind: kind}, nil
}

func RunProps(r *schema.WorkflowRun) Props {
	p := Props{
		"workflow_id": r.WorkflowID,
		"status":      string(r.Status),
		"started_at":  formatTime(r.StartedAt),
	}
	if r.CompletedAt != nil {
		p["completed_at"] = formatTime(*r.CompletedAt)
	}
	return p
}

func DecodeRun(n *Node) (*schema.WorkflowRun, error) {
	if err := expectLabel(n, LabelWorkflowRun); err != nil {
		return nil, err
	}
	status, err := schema.ParseRunStatus(str(n.Props, "status"))
	if err != nil {
		return nil, decodeErr(n, "status", err)
	}
	started, err := parseTime(str(n.Props, "started_at"))
	if err != nil {
		return nil, decodeErr(n, "started_at", err)
	}
	r := &schema.WorkflowRun{
		ID:         n.ID,
		WorkflowID: str(n.Props, "workflow_id"),
		Status:     status,
		StartedAt:  started,
	}
	if v := str(n.Props, "completed_at"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return nil, decodeErr(n, "completed_at", err)
		}
		r.CompletedAt = &t
	}
	return r, nil
}

func StepRunProps(sr *schema.StepRun) Props {
	p := Props{
		"run_id":     sr.RunID,
		"step_id":    sr.StepID,
		"seq":        sr.Seq,
		"step_name":  sr.StepName,
		"step_order": sr.StepOrder,
		"status":     string(sr.Status),
		"note":       nil,
	}
	if sr.Note != nil {
		p["note"] = *sr.Note
	}
	return p
}

func DecodeStepRun(n *Node) (*schema.StepRun, error) {
	if err := expectLabel(n, LabelStepRun); err != nil {
		return nil, err
	}
	status, err := schema.ParseStepStatus(str(n.Props, "status"))
	if err != nil {
		return nil, decodeErr(n, "status", err)
	}
	seq, err := requiredInt(n, "seq")
	if err != nil {
		return nil, err
	}
	order, _ := intVal(n.Props["step_order"])
	sr := &schema.StepRun{
		ID:        n.ID,
		RunID:     str(n.Props, "run_id"),
		StepID:    str(n.Props, "step_id"),
		Seq:       seq,
		StepName:  str(n.Props, "step_name"),
		StepOrder: order,
		Status:    status,
	}
	if note, ok := n.Props["note"].(string); ok {
		sr.Note = &note
	}
	return sr, nil
}

// --- helpers ---

func expectLabel(n *Node, label string) error {
	if n == nil {
		return schema.NewErrorf(schema.ErrCodeStore, "decode %s: nil node", label)
	}
	if n.Label != label {
		return schema.NewErrorf(schema.ErrCodeStore, "decode %s: node %s has label %s", label, n.ID, n.Label)
	}
	return nil
}

func decodeErr(n *Node, prop string, cause error) error {
	return schema.NewErrorf(schema.ErrCodeStore, "decode %s %s: property %q: %v", n.Label, n.ID, prop, cause).
		WithCause(cause)
}

func requiredString(n *Node, key string) (string, error) {
	v := str(n.Props, key)
	if v == "" {
		return "", decodeErr(n, key, fmt.Errorf("missing"))
	}
	return v, nil
}

func requiredInt(n *Node, key string) (int, error) {
	v, ok := intVal(n.Props[key])
	if !ok {
		return 0, decodeErr(n, key, fmt.Errorf("expected integer, got %T", n.Props[key]))
	}
	return v, nil
}

func str(p Props, key string) string {
	v, _ := p[key].(string)
	return v
}

// intVal accepts the numeric shapes produced by encoding/json, libsql and bolt.
func intVal(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

func strs(p Props, key string) ([]string, error) {
	switch v := p[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("expected string element, got %T", e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", v)
	}
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// timeLayout keeps the fraction fixed-width so stored timestamps sort as
// strings in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
