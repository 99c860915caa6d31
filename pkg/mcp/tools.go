package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowlite/internal/diagram"
	"github.com/rendis/flowlite/internal/engine"
	"github.com/rendis/flowlite/pkg/schema"
)

// handleStartRun materializes a new run of a workflow.
func (s *FlowliteServer) handleStartRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}

	detail, runErr := s.tracker.StartRun(ctx, workflowID)
	if runErr != nil {
		return toolError("start run", runErr), nil
	}
	s.watchCaller(ctx, detail.Run.ID)
	return marshalResult(detail)
}

// handleAdvanceStep changes the status of a step run. A missing note clears
// the stored one.
func (s *FlowliteServer) handleAdvanceStep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stepRunID, err := req.RequireString("step_run_id")
	if err != nil {
		return mcp.NewToolResultError("step_run_id is required"), nil
	}
	status, err := req.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError("status is required"), nil
	}

	var note *string
	if v, ok := req.GetArguments()["note"].(string); ok {
		note = &v
	}

	sr, advErr := s.tracker.AdvanceStep(ctx, stepRunID, schema.StepStatus(status), note)
	if advErr != nil {
		return toolError("advance step", advErr), nil
	}
	return marshalResult(sr)
}

// handleCompleteRun runs the completion check on a run.
func (s *FlowliteServer) handleCompleteRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("run_id is required"), nil
	}

	res, compErr := s.tracker.TryCompleteRun(ctx, runID)
	if compErr != nil {
		return toolError("complete run", compErr), nil
	}
	return marshalResult(res)
}

// handleSuggestDocuments lists documents of the neighbouring steps.
func (s *FlowliteServer) handleSuggestDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stepID, err := req.RequireString("step_id")
	if err != nil {
		return mcp.NewToolResultError("step_id is required"), nil
	}

	docs, sugErr := s.tracker.SuggestDocuments(ctx, stepID, req.GetInt("limit", 0))
	if sugErr != nil {
		return toolError("suggest documents", sugErr), nil
	}
	return marshalResult(map[string]any{"step_id": stepID, "documents": docs})
}

// handleRunStatus returns a run with its step runs.
func (s *FlowliteServer) handleRunStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("run_id is required"), nil
	}

	detail, getErr := s.tracker.GetRun(ctx, runID)
	if getErr != nil {
		return toolError("run status", getErr), nil
	}
	return s.queryResult(ctx, req, detail)
}

// handleListRuns lists run summaries.
func (s *FlowliteServer) handleListRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := engine.RunQuery{
		WorkflowID: req.GetString("workflow_id", ""),
		Status:     schema.RunStatus(req.GetString("status", "")),
		Filter:     req.GetString("filter", ""),
		Limit:      req.GetInt("limit", 0),
	}

	runs, listErr := s.tracker.ListRuns(ctx, q)
	if listErr != nil {
		return toolError("list runs", listErr), nil
	}
	return s.queryResult(ctx, req, runs)
}

// handleImportTemplate validates and imports a template document.
func (s *FlowliteServer) handleImportTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tpl, ok := req.GetArguments()["template"]
	if !ok || tpl == nil {
		return mcp.NewToolResultError("template is required"), nil
	}
	raw, err := json.Marshal(tpl)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid template: %v", err)), nil
	}

	res, impErr := s.importer.ImportJSON(ctx, raw)
	if impErr != nil {
		return toolError("import template", impErr), nil
	}
	return marshalResult(res)
}

// handleDescribeWorkflow describes one workflow or lists all of them.
func (s *FlowliteServer) handleDescribeWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID := req.GetString("workflow_id", "")
	if workflowID == "" {
		wfs, err := s.catalog.ListWorkflows(ctx)
		if err != nil {
			return toolError("list workflows", err), nil
		}
		return marshalResult(map[string]any{"workflows": wfs})
	}

	detail, err := s.catalog.Describe(ctx, workflowID)
	if err != nil {
		return toolError("describe workflow", err), nil
	}
	return marshalResult(detail)
}

// handleWatchRun subscribes the calling session to a run's events.
func (s *FlowliteServer) handleWatchRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("run_id is required"), nil
	}
	if _, getErr := s.tracker.GetRun(ctx, runID); getErr != nil {
		return toolError("watch run", getErr), nil
	}
	watching := s.watchCaller(ctx, runID)
	return marshalResult(map[string]any{"run_id": runID, "watching": watching})
}

// handleDiagram draws a workflow, optionally overlaid with a run's progress.
func (s *FlowliteServer) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	if format != "ascii" && format != "mermaid" && format != "image" {
		return mcp.NewToolResultError("format must be ascii, mermaid, or image"), nil
	}

	workflowID := req.GetString("workflow_id", "")
	runID := req.GetString("run_id", "")
	if workflowID == "" && runID == "" {
		return mcp.NewToolResultError("at least one of workflow_id or run_id is required"), nil
	}

	var run *schema.RunDetail
	if runID != "" {
		run, err = s.tracker.GetRun(ctx, runID)
		if err != nil {
			return toolError("diagram", err), nil
		}
		if workflowID == "" {
			workflowID = run.Run.WorkflowID
		}
	}
	detail, err := s.catalog.Describe(ctx, workflowID)
	if err != nil {
		return toolError("diagram", err), nil
	}
	model, err := diagram.Build(detail, run)
	if err != nil {
		return toolError("diagram", err), nil
	}

	switch format {
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCII(model)), nil
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	default:
		png, imgErr := diagram.RenderImage(ctx, model, diagram.ImagePNG)
		if imgErr != nil {
			return toolError("diagram", imgErr), nil
		}
		return mcp.NewToolResultText(base64.StdEncoding.EncodeToString(png)), nil
	}
}

// handleSweep runs one completion sweep.
func (s *FlowliteServer) handleSweep(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.sweeper.SweepOnce(ctx)
	if err != nil {
		return toolError("sweep", err), nil
	}
	return marshalResult(res)
}

// --- Helpers ---

// watchCaller registers the calling session for run notifications. It
// reports false when the call has no session or no hub is configured.
func (s *FlowliteServer) watchCaller(ctx context.Context, runID string) bool {
	if s.hub == nil {
		return false
	}
	session := server.ClientSessionFromContext(ctx)
	if session == nil {
		return false
	}
	s.watches.Watch(runID, session.SessionID())
	return true
}

// queryResult applies the optional jq program in the "query" argument.
func (s *FlowliteServer) queryResult(ctx context.Context, req mcp.CallToolRequest, v any) (*mcp.CallToolResult, error) {
	program := req.GetString("query", "")
	if program == "" {
		return marshalResult(v)
	}
	out, err := s.jq.Query(ctx, program, v)
	if err != nil {
		return toolError("query", err), nil
	}
	if len(out) == 1 {
		return marshalResult(out[0])
	}
	return marshalResult(out)
}

// toolError renders err as a tool error result, keeping the [CODE] prefix of
// typed errors so agents can tell transient failures from final ones.
func toolError(op string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", op, err))
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
