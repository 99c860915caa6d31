package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/flowlite/internal/diagram"
	"github.com/rendis/flowlite/internal/engine"
	"github.com/rendis/flowlite/pkg/mcp"
	"github.com/rendis/flowlite/pkg/schema"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				if a.sweeper != nil {
					if err := a.sweeper.Start(ctx); err != nil {
						return err
					}
					defer func() { _ = a.sweeper.Stop() }()
				}
				srv := mcp.NewFlowliteServer(mcp.ServerDeps{
					Tracker:  a.tracker,
					Catalog:  a.catalog,
					Importer: a.importer,
					Sweeper:  a.sweeper,
					Hub:      a.hub,
					Logger:   a.logger,
					Version:  version,
				})
				a.logger.Info("mcp server listening on stdio")
				return srv.Serve(ctx)
			})
		},
	}
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Validate and import a workflow template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.importer.ImportJSON(ctx, raw)
				if err != nil {
					return err
				}
				return c.printer(cmd).print(ctx, res)
			})
		},
	}
}

func (c *cli) workflowsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workflows",
		Short: "List workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				wfs, err := a.catalog.ListWorkflows(ctx)
				if err != nil {
					return err
				}
				return c.printer(cmd).print(ctx, wfs)
			})
		},
	}
}

func (c *cli) workflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Inspect workflow templates",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <workflow-id>",
		Short: "Show a workflow with its ordered steps, documents and agents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				detail, err := a.catalog.Describe(ctx, args[0])
				if err != nil {
					return err
				}
				return c.printer(cmd).print(ctx, detail)
			})
		},
	})
	return cmd
}

func (c *cli) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start and track workflow runs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "start <workflow-id>",
		Short: "Start a run of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				detail, err := a.tracker.StartRun(ctx, args[0])
				if err != nil {
					return err
				}
				return c.printer(cmd).print(ctx, detail)
			})
		},
	})

	advance := &cobra.Command{
		Use:   "advance <step-run-id> <status>",
		Short: "Set a step run's status (todo, in_progress, done); omitting --note clears the note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var note *string
			if cmd.Flags().Changed("note") {
				v, _ := cmd.Flags().GetString("note")
				note = &v
			}
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				sr, err := a.tracker.AdvanceStep(ctx, args[0], schema.StepStatus(args[1]), note)
				if err != nil {
					return err
				}
				return c.printer(cmd).print(ctx, sr)
			})
		},
	}
	advance.Flags().String("note", "", "note stored on the step run")
	cmd.AddCommand(advance)

	cmd.AddCommand(&cobra.Command{
		Use:   "complete <run-id>",
		Short: "Mark a run completed if every step run is done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.tracker.TryCompleteRun(ctx, args[0])
				if err != nil {
					return err
				}
				return c.printer(cmd).print(ctx, res)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and its step runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				detail, err := a.tracker.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				return c.printer(cmd).print(ctx, detail)
			})
		},
	})

	var q engine.RunQuery
	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List runs, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q.Status = schema.RunStatus(status)
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				runs, err := a.tracker.ListRuns(ctx, q)
				if err != nil {
					return err
				}
				return c.printer(cmd).print(ctx, runs)
			})
		},
	}
	list.Flags().StringVar(&q.WorkflowID, "workflow", "", "only runs of this workflow")
	list.Flags().StringVar(&status, "status", "", "only runs in this status (running, completed)")
	list.Flags().StringVar(&q.Filter, "filter", "", `expr predicate, e.g. "done == total"`)
	list.Flags().IntVar(&q.Limit, "limit", 0, "maximum number of runs")
	cmd.AddCommand(list)

	return cmd
}

func (c *cli) suggestCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "suggest <step-id>",
		Short: "Suggest documents needed by the neighbouring steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				docs, err := a.tracker.SuggestDocuments(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return c.printer(cmd).print(ctx, docs)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of documents (default suggest_limit)")
	return cmd
}

func (c *cli) diagramCmd() *cobra.Command {
	var runID, format, out string
	cmd := &cobra.Command{
		Use:   "diagram [workflow-id]",
		Short: "Draw a workflow as ascii, mermaid, png or svg, optionally overlaid with a run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var workflowID string
			if len(args) == 1 {
				workflowID = args[0]
			}
			if workflowID == "" && runID == "" {
				return schema.NewError(schema.ErrCodeValidation, "a workflow id or --run is required")
			}
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				var run *schema.RunDetail
				if runID != "" {
					var err error
					if run, err = a.tracker.GetRun(ctx, runID); err != nil {
						return err
					}
					if workflowID == "" {
						workflowID = run.Run.WorkflowID
					}
				}
				detail, err := a.catalog.Describe(ctx, workflowID)
				if err != nil {
					return err
				}
				model, err := diagram.Build(detail, run)
				if err != nil {
					return err
				}
				data, err := renderDiagram(ctx, model, format)
				if err != nil {
					return err
				}
				if out != "" {
					return os.WriteFile(out, data, 0o644)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "overlay the step runs of this run")
	cmd.Flags().StringVar(&format, "format", "ascii", "ascii, mermaid, png or svg")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to this file instead of stdout")
	return cmd
}

func renderDiagram(ctx context.Context, model *diagram.DiagramModel, format string) ([]byte, error) {
	switch format {
	case "ascii":
		return []byte(diagram.RenderASCII(model)), nil
	case "mermaid":
		return []byte(diagram.RenderMermaid(model)), nil
	default:
		return diagram.RenderImage(ctx, model, diagram.ImageFormat(format))
	}
}

func (c *cli) sweepCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Complete running runs whose steps are all done",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				if a.sweeper == nil {
					return fmt.Errorf("sweeping is disabled (sweep_schedule = %q)", sweepOff)
				}
				if once {
					res, err := a.sweeper.SweepOnce(ctx)
					if err != nil {
						return err
					}
					return c.printer(cmd).print(ctx, res)
				}
				if err := a.sweeper.Start(ctx); err != nil {
					return err
				}
				<-ctx.Done()
				return a.sweeper.Stop()
			})
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "sweep once and exit")
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the graph store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// openApp migrates on open.
			return c.withApp(cmd, func(_ context.Context, a *app) error {
				fmt.Fprintf(cmd.OutOrStdout(), "migrated %s store\n", a.cfg.Backend)
				return nil
			})
		},
	}
}
