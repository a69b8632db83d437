package sql

import (
	"context"
	"flag"
	"time"

	"github.com/peterbourgon/ff/v3/ffcli"
)

const defaultTimeout = time.Minute

// sqlCfg wraps the sql configuration
type sqlCfg struct {
	timeout time.Duration
}

// NewSQLCmd creates the sql subcommand
func NewSQLCmd() *ffcli.Command {
	cfg := &sqlCfg{}

	fs := flag.NewFlagSet("sql", flag.ExitOnError)
	cfg.RegisterFlags(fs)

	cmd := &ffcli.Command{
		Name:       "sql",
		ShortUsage: "sql <subcommand> [flags] [<arg>...]",
		LongHelp:   "Runs the bocrates SQL suite",
		FlagSet:    fs,
		Exec: func(_ context.Context, _ []string) error {
			return flag.ErrHelp
		},
	}

	// Add the subcommands
	cmd.Subcommands = []*ffcli.Command{
		newMigrateCmd(cfg),
	}

	return cmd
}

func (c *sqlCfg) RegisterFlags(fs *flag.FlagSet) {
	fs.DurationVar(
		&c.timeout,
		"timeout",
		defaultTimeout,
		"the upper bound for connecting and running all migrations",
	)
}
