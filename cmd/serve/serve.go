package serve

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"golang.org/x/sync/errgroup"

	"github.com/sig-0/bocrates/cmd/env"
	"github.com/sig-0/bocrates/cmd/setup"
	"github.com/sig-0/bocrates/config"
	"github.com/sig-0/bocrates/ingest"
	"github.com/sig-0/bocrates/server"
	"github.com/sig-0/bocrates/storage"
)

// serveCfg wraps the serve configuration
type serveCfg struct {
	flags *setup.ConfigFlags
}

// NewServeCmd creates the serve subcommand
func NewServeCmd() *ffcli.Command {
	cfg := &serveCfg{
		flags: setup.NewConfigFlags(),
	}

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg.flags.RegisterFlags(fs)

	cmd := &ffcli.Command{
		Name:       "serve",
		ShortUsage: "serve <subcommand> [flags]",
		LongHelp:   "Serves the bocrates backend, and ingests quotations periodically",
		FlagSet:    fs,
		Exec: func(_ context.Context, _ []string) error {
			return flag.ErrHelp
		},
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}

	cmd.Subcommands = []*ffcli.Command{
		newServeSQLCmd(cfg),
		newServeMemoryCmd(cfg),
	}

	return cmd
}

// run serves the query API, and runs the ingestion scheduler,
// until the process is interrupted
func run(
	ctx context.Context,
	cfg *config.Config,
	store storage.Storage,
	logger *slog.Logger,
) error {
	// Create the ingestion pipeline
	pipeline, err := setup.NewPipeline(cfg, store, logger)
	if err != nil {
		return err
	}

	defer setup.LogClose(logger, "notifier", pipeline)

	// Create the ingestion service
	scheduler := ingest.NewScheduler(ingest.WithLogger(logger))
	if err = scheduler.Register(ingest.Every(pipeline.Pipeline, pipeline.Interval)); err != nil {
		return err
	}

	// Create the server instance
	s, err := server.New(
		store,
		server.WithLogger(logger),
		server.WithConfig(cfg),
	)
	if err != nil {
		return err
	}

	runCtx, cancelFn := signal.NotifyContext(
		ctx,
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	defer cancelFn()

	group, gCtx := errgroup.WithContext(runCtx)

	// Start the HTTP server
	group.Go(func() error {
		return s.Serve(gCtx)
	})

	// Start the ingestion service
	group.Go(func() error {
		return scheduler.Start(gCtx)
	})

	return group.Wait()
}
