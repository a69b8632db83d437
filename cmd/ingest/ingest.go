package ingest

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sig-0/bocrates/cmd/env"
	"github.com/sig-0/bocrates/cmd/setup"
	"github.com/sig-0/bocrates/storage"
	"github.com/sig-0/bocrates/storage/memory"
	"github.com/sig-0/bocrates/storage/sql"
)

// ingestCfg wraps the ingest configuration
type ingestCfg struct {
	flags *setup.ConfigFlags
}

// NewIngestCmd creates the ingest subcommand
func NewIngestCmd() *ffcli.Command {
	cfg := &ingestCfg{
		flags: setup.NewConfigFlags(),
	}

	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	cfg.flags.RegisterFlags(fs)

	newCmd := func(name, help string, open storeFn) *ffcli.Command {
		sub := flag.NewFlagSet(name, flag.ExitOnError)
		cfg.flags.RegisterFlags(sub)

		return &ffcli.Command{
			Name:       name,
			ShortUsage: fmt.Sprintf("ingest %s [flags]", name),
			LongHelp:   help,
			FlagSet:    sub,
			Exec: func(ctx context.Context, _ []string) error {
				return cfg.exec(ctx, open)
			},
			Options: []ff.Option{
				// Allow using ENV variables
				ff.WithEnvVars(),
				ff.WithEnvVarPrefix(env.Prefix),
			},
		}
	}

	cmd := &ffcli.Command{
		Name:       "ingest",
		ShortUsage: "ingest <subcommand> [flags]",
		LongHelp:   "Runs a single ingestion, and prints its report",
		FlagSet:    fs,
		Exec: func(_ context.Context, _ []string) error {
			return flag.ErrHelp
		},
	}

	cmd.Subcommands = []*ffcli.Command{
		newCmd("sql", "Ingests the latest quotations into the SQL datastore", openSQL),
		newCmd("memory", "Fetches the latest quotations, without persisting them", openMemory),
	}

	return cmd
}

// storeFn opens the store for a single run
type storeFn func(context.Context, *slog.Logger) (storage.Storage, io.Closer, error)

type closerFn func()

func (fn closerFn) Close() error {
	fn()

	return nil
}

func openSQL(ctx context.Context, logger *slog.Logger) (storage.Storage, io.Closer, error) {
	pool, err := setup.OpenPool(ctx, logger)
	if err != nil {
		return nil, nil, err
	}

	return sql.NewStorage(pool), closerFn(pool.Close), nil
}

func openMemory(_ context.Context, _ *slog.Logger) (storage.Storage, io.Closer, error) {
	return memory.NewStorage(), closerFn(func() {}), nil
}

func (c *ingestCfg) exec(ctx context.Context, open storeFn) error {
	cfg, err := c.flags.Load()
	if err != nil {
		return err
	}

	// Logs go to stderr, the report goes to stdout
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Load .env
	if err := godotenv.Load(); err != nil {
		logger.Warn("unable to load .env file")
	}

	store, closer, err := open(ctx, logger)
	if err != nil {
		return err
	}

	defer setup.LogClose(logger, "store", closer)

	pipeline, err := setup.NewPipeline(cfg, store, logger)
	if err != nil {
		return err
	}

	defer setup.LogClose(logger, "notifier", pipeline)

	report, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	return encoder.Encode(report)
}
