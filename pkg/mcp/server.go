package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowlite/internal/catalog"
	"github.com/rendis/flowlite/internal/engine"
	"github.com/rendis/flowlite/internal/expressions"
	"github.com/rendis/flowlite/internal/scheduler"
	"github.com/rendis/flowlite/internal/streaming"
)

// ServerDeps holds the dependencies for creating a FlowliteServer.
type ServerDeps struct {
	Tracker  *engine.Tracker
	Catalog  *catalog.Reader
	Importer *catalog.Importer
	// Sweeper is optional; when set, flowlite.sweep is available.
	Sweeper *scheduler.Sweeper
	// Hub is optional; when set, watched runs push notifications.
	Hub     streaming.EventHub
	Logger  *slog.Logger
	Version string
}

// FlowliteServer wraps an MCP server with the tracker's tool handlers.
type FlowliteServer struct {
	tracker   *engine.Tracker
	catalog   *catalog.Reader
	importer  *catalog.Importer
	sweeper   *scheduler.Sweeper
	hub       streaming.EventHub
	jq        *expressions.GoJQEngine
	watches   *WatchRegistry
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewFlowliteServer creates a FlowliteServer with every tool registered.
func NewFlowliteServer(deps ServerDeps) *FlowliteServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &FlowliteServer{
		tracker:  deps.Tracker,
		catalog:  deps.Catalog,
		importer: deps.Importer,
		sweeper:  deps.Sweeper,
		hub:      deps.Hub,
		jq:       expressions.NewGoJQEngine(),
		watches:  NewWatchRegistry(),
		logger:   logger,
	}

	hooks := &server.Hooks{}
	hooks.AddOnUnregisterSession(func(_ context.Context, session server.ClientSession) {
		s.watches.Remove(session.SessionID())
	})

	mcpSrv := server.NewMCPServer(
		"flowlite",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithHooks(hooks),
		server.WithInstructions("FlowLite tracks executions of workflow templates. Use flowlite.describe_workflow to discover workflows, "+
			"flowlite.start_run to start a run, flowlite.advance_step to move a step run between todo, in_progress and done, "+
			"flowlite.complete_run to mark a run completed once every step is done, and flowlite.suggest_documents to find "+
			"documents needed by neighbouring steps."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin
// closes. With a hub configured, events for watched runs are forwarded to the
// watching sessions while serving.
func (s *FlowliteServer) Serve(ctx context.Context) error {
	if s.hub != nil {
		n := NewRunNotifier(s.mcpServer, s.watches, s.logger)
		stop, err := n.Forward(ctx, s.hub)
		if err != nil {
			return err
		}
		defer stop()
	}
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *FlowliteServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *FlowliteServer) tools() []server.ServerTool {
	tools := []server.ServerTool{
		{Tool: startRunTool(), Handler: s.handleStartRun},
		{Tool: advanceStepTool(), Handler: s.handleAdvanceStep},
		{Tool: completeRunTool(), Handler: s.handleCompleteRun},
		{Tool: suggestDocumentsTool(), Handler: s.handleSuggestDocuments},
		{Tool: runStatusTool(), Handler: s.handleRunStatus},
		{Tool: listRunsTool(), Handler: s.handleListRuns},
		{Tool: importTemplateTool(), Handler: s.handleImportTemplate},
		{Tool: describeWorkflowTool(), Handler: s.handleDescribeWorkflow},
		{Tool: watchRunTool(), Handler: s.handleWatchRun},
		{Tool: diagramTool(), Handler: s.handleDiagram},
	}
	if s.sweeper != nil {
		tools = append(tools, server.ServerTool{Tool: sweepTool(), Handler: s.handleSweep})
	}
	return tools
}

// --- Tool definitions ---

func startRunTool() mcp.Tool {
	return mcp.NewTool("flowlite.start_run",
		mcp.WithDescription("Start a run of a workflow, creating one todo step run per step"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to run")),
	)
}

func advanceStepTool() mcp.Tool {
	return mcp.NewTool("flowlite.advance_step",
		mcp.WithDescription("Set the status of a step run. Omitting note clears any existing note"),
		mcp.WithString("step_run_id", mcp.Required(), mcp.Description("ID of the step run")),
		mcp.WithString("status", mcp.Required(),
			mcp.Enum("todo", "in_progress", "done"),
			mcp.Description("New status"),
		),
		mcp.WithString("note", mcp.Description("Free-text note stored on the step run")),
	)
}

func completeRunTool() mcp.Tool {
	return mcp.NewTool("flowlite.complete_run",
		mcp.WithDescription("Mark a run completed if every step run is done. Safe to call repeatedly"),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("ID of the run")),
	)
}

func suggestDocumentsTool() mcp.Tool {
	return mcp.NewTool("flowlite.suggest_documents",
		mcp.WithDescription("List documents needed by the steps immediately before and after a step"),
		mcp.WithString("step_id", mcp.Required(), mcp.Description("ID of the template step")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of documents (default 5)")),
	)
}

func runStatusTool() mcp.Tool {
	return mcp.NewTool("flowlite.run_status",
		mcp.WithDescription("Get a run and its step runs in template order"),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("ID of the run")),
		mcp.WithString("query", mcp.Description("jq program applied to the result")),
	)
}

func listRunsTool() mcp.Tool {
	return mcp.NewTool("flowlite.list_runs",
		mcp.WithDescription("List runs with step counts, most recent first"),
		mcp.WithString("workflow_id", mcp.Description("Only runs of this workflow")),
		mcp.WithString("status", mcp.Enum("running", "completed"), mcp.Description("Only runs in this status")),
		mcp.WithString("filter", mcp.Description(`expr predicate over status, total, todo, in_progress, done, e.g. "done == total"`)),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs")),
		mcp.WithString("query", mcp.Description("jq program applied to the result")),
	)
}

func importTemplateTool() mcp.Tool {
	return mcp.NewTool("flowlite.import_template",
		mcp.WithDescription("Validate a workflow template and import it with its steps, documents and agents"),
		mcp.WithObject("template", mcp.Required(), mcp.Description("Template document: name, goal, steps, documents, agents")),
	)
}

func describeWorkflowTool() mcp.Tool {
	return mcp.NewTool("flowlite.describe_workflow",
		mcp.WithDescription("Describe a workflow with its ordered steps, documents and agents, or list workflows when no ID is given"),
		mcp.WithString("workflow_id", mcp.Description("ID of the workflow")),
	)
}

func watchRunTool() mcp.Tool {
	return mcp.NewTool("flowlite.watch_run",
		mcp.WithDescription("Receive notifications for lifecycle events of a run on this session"),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("ID of the run")),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("flowlite.diagram",
		mcp.WithDescription("Draw a workflow as ASCII art, a Mermaid flowchart or a base64-encoded PNG. With run_id, step runs are overlaid by status"),
		mcp.WithString("workflow_id", mcp.Description("Workflow to draw")),
		mcp.WithString("run_id", mcp.Description("Run to draw; its workflow is used when workflow_id is omitted")),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("ascii", "mermaid", "image"),
			mcp.Description("Output format: ascii (text), mermaid (flowchart syntax) or image (base64 PNG)"),
		),
	)
}

func sweepTool() mcp.Tool {
	return mcp.NewTool("flowlite.sweep",
		mcp.WithDescription("Check every running run once and complete those whose steps are all done"),
	)
}
