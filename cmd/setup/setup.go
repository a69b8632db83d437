package setup

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sig-0/bocrates/cmd/env"
	"github.com/sig-0/bocrates/config"
	"github.com/sig-0/bocrates/ingest"
	"github.com/sig-0/bocrates/notify"
	"github.com/sig-0/bocrates/provider/boc"
	"github.com/sig-0/bocrates/storage"
)

var errMissingDSN = fmt.Errorf("missing %s", env.Prefix+env.DBURLSuffix)

// ConfigFlags are the config flags shared by the service commands
type ConfigFlags struct {
	Config *config.Config

	ConfigPath string
}

// NewConfigFlags creates config flags, starting from the defaults
func NewConfigFlags() *ConfigFlags {
	return &ConfigFlags{
		Config: config.DefaultConfig(),
	}
}

func (c *ConfigFlags) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(
		&c.Config.ListenAddress,
		"listen",
		config.DefaultListenAddress,
		"the IP:PORT URL for the server",
	)

	fs.StringVar(
		&c.ConfigPath,
		"config",
		"",
		"the path to the TOML configuration, if any",
	)
}

// Load reads the configuration file, if any, and validates the configuration
func (c *ConfigFlags) Load() (*config.Config, error) {
	if c.ConfigPath != "" {
		cfg, err := config.Read(c.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read config, %w", err)
		}

		c.Config = cfg
	}

	if err := config.ValidateConfig(c.Config); err != nil {
		return nil, fmt.Errorf("invalid configuration, %w", err)
	}

	return c.Config, nil
}

// OpenPool opens a Postgres pool using the DSN from the environment,
// and checks the DB is reachable
func OpenPool(ctx context.Context, logger *slog.Logger) (*pgxpool.Pool, error) {
	dsn := os.Getenv(env.Prefix + env.DBURLSuffix)
	if dsn == "" {
		return nil, errMissingDSN
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open DB pool: %w", err)
	}

	// Check DB reachability
	pingCtx, cancelPing := context.WithTimeout(ctx, time.Second*5)
	defer cancelPing()

	if err = pool.Ping(pingCtx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("unable to reach DB (ping): %w", err)
	}

	logger.Info("DB ping success")

	return pool, nil
}

// Pipeline is the configured ingestion pipeline, with its trigger interval
type Pipeline struct {
	*ingest.Pipeline

	closer   io.Closer
	Interval time.Duration
}

// Close releases the pipeline notifier, if any
func (p *Pipeline) Close() error {
	if p.closer == nil {
		return nil
	}

	return p.closer.Close()
}

// NewPipeline wires the Bank of China fetcher, the store and the configured notifier
func NewPipeline(cfg *config.Config, store storage.Storage, logger *slog.Logger) (*Pipeline, error) {
	fetcherCfg, err := cfg.Source.FetcherConfig()
	if err != nil {
		return nil, err
	}

	interval, err := cfg.Ingest.IntervalDuration()
	if err != nil {
		return nil, err
	}

	opts := []ingest.PipelineOption{
		ingest.WithPipelineLogger(logger),
	}

	if cfg.Ingest.IngestTimeFallback {
		opts = append(opts, ingest.WithIngestTimeFallback())
	}

	var closer io.Closer

	if k := cfg.Ingest.Kafka; k != nil {
		n, err := notify.NewKafkaNotifier(k.Brokers, k.Topic, notify.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("unable to create notifier: %w", err)
		}

		opts = append(opts, ingest.WithNotifier(n))
		closer = n
	} else {
		opts = append(opts, ingest.WithNotifier(notify.Noop{}))
	}

	return &Pipeline{
		Pipeline: ingest.NewPipeline(boc.NewFetcher(fetcherCfg), store, opts...),
		closer:   closer,
		Interval: interval,
	}, nil
}

// LogClose closes c, logging any failure
func LogClose(logger *slog.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Error(
			"unable to gracefully close "+name,
			"err", err,
		)
	}
}
