package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"allthatstax/internal/daemon"
	"allthatstax/internal/logging"
	"allthatstax/internal/workflow"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the fetch API over HTTP",
		Long: `Run the HTTP API that starts, follows and cancels fetch jobs and lists
the committed dataset. Only one server may run per log directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx, strings.TrimSpace(bind), cmd)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (defaults to paths.api_bind)")
	return cmd
}

func runServe(cmdCtx context.Context, ctx *commandContext, bind string, cmd *cobra.Command) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if bind != "" {
		cfg.Paths.APIBind = bind
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	runs, err := ctx.openHistory()
	if err != nil {
		return err
	}
	defer runs.Close()

	deps, err := workflow.BuildDependencies(cfg, logger, runs)
	if err != nil {
		return err
	}
	manager, err := workflow.NewManager(deps, logger)
	if err != nil {
		return err
	}
	defer manager.Close()

	d, err := daemon.New(cfg, manager, runs, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		return err
	}
	defer d.Stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", d.Addr())
	if cfg.Paths.APIToken == "" {
		logging.WarnWithContext(logger, "api token not set", "api_unauthenticated",
			logging.String(logging.FieldImpact, "any local process can start fetch jobs"),
			logging.String(logging.FieldErrorHint, "set paths.api_token or ALLTHATSTAX_API_TOKEN"),
		)
	}

	<-signalCtx.Done()
	logger.Info("allthatstax server shutting down")
	return nil
}
