package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// cli carries state shared by the command tree.
type cli struct {
	v          *viper.Viper
	configPath string
	query      string
	cfg        Config
}

func newRootCmd() *cobra.Command {
	c := &cli{v: newViper()}

	root := &cobra.Command{
		Use:           "flowlite",
		Short:         "Track executions of workflow templates over a graph store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := loadConfig(c.v, c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "settings file (default ~/.flowlite/settings.{yaml,json})")
	pf.StringVar(&c.query, "query", "", "jq program applied to JSON output")
	pf.String("backend", "", "graph store backend: libsql or neo4j")
	pf.String("db", "", "libsql database path")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")
	pf.String("nats-url", "", "publish lifecycle events to this NATS server")
	for key, flag := range map[string]string{
		"backend":    "backend",
		"db_path":    "db",
		"log_level":  "log-level",
		"log_format": "log-format",
		"nats_url":   "nats-url",
	} {
		_ = c.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(
		c.serveCmd(),
		c.importCmd(),
		c.workflowsCmd(),
		c.workflowCmd(),
		c.runCmd(),
		c.suggestCmd(),
		c.diagramCmd(),
		c.sweepCmd(),
		c.migrateCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the flowlite version",
			Run: func(cmd *cobra.Command, _ []string) {
				printVersion(cmd.OutOrStdout())
			},
		},
	)
	return root
}

// withApp opens the wired application for the duration of fn.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, c.cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func (c *cli) printer(cmd *cobra.Command) *printer {
	return newPrinter(cmd.OutOrStdout(), c.query)
}
