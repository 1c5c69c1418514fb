// Command stocktrack manages the portfolio ledger from the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"

	"github.com/google/subcommands"

	"stocktrack/internal/config"
	"stocktrack/internal/logging"
	"stocktrack/pkg/stocktrack"
)

// app carries what every subcommand needs. As a CLI it is short lived, so
// one instance per process is enough.
type app struct {
	dbPath   string
	logLevel string
	out      io.Writer
	errOut   io.Writer

	// open is replaced in tests.
	open func(a *app) (*stocktrack.Core, error)
}

func newApp(out, errOut io.Writer) *app {
	return &app{out: out, errOut: errOut, open: openCore}
}

func openCore(a *app) (*stocktrack.Core, error) {
	if a.dbPath != "" {
		config.SetRuntimeDBPath(a.dbPath)
	}
	level, ok := logging.ParseLevel(a.logLevel)
	if !ok {
		return nil, fmt.Errorf("invalid log level %q", a.logLevel)
	}
	logger, _, err := logging.NewLogger(logging.Options{Level: level})
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadUserConfig()
	if err != nil {
		return nil, err
	}
	dbPath, err := config.GetDBPath()
	if err != nil {
		return nil, err
	}
	return stocktrack.OpenWithOptions(stocktrack.Options{
		DBPath:             dbPath,
		Logger:             logger,
		CostBasisOrder:     stocktrack.CostBasisOrder(cfg.CostBasisOrder),
		TradingDaysPerYear: cfg.TradingDaysPerYear,
		QuoteCacheTTL:      cfg.QuoteCacheTTL(),
	})
}

// withCore opens the engine, runs fn and closes it, reporting errors on errOut.
func (a *app) withCore(fn func(*stocktrack.Core) error) subcommands.ExitStatus {
	core, err := a.open(a)
	if err != nil {
		fmt.Fprintf(a.errOut, "Error opening portfolio: %v\n", err)
		return subcommands.ExitFailure
	}
	defer func() {
		if err := core.Close(); err != nil {
			slog.Warn("failed to close portfolio", "err", err)
		}
	}()
	if err := fn(core); err != nil {
		fmt.Fprintf(a.errOut, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// Register the subcommands on c.
func (a *app) Register(c *subcommands.Commander) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(c.CommandsCommand(), "")

	c.Register(&addCmd{app: a}, "ledger")
	c.Register(&deleteCmd{app: a}, "ledger")
	c.Register(&holdingCmd{app: a}, "ledger")
	c.Register(&listCmd{app: a}, "ledger")

	c.Register(&summaryCmd{app: a}, "reports")
	c.Register(&backtestCmd{app: a}, "reports")

	c.Register(&watchCmd{app: a}, "lists")
}

// execute parses args as top level flags followed by a subcommand.
func execute(ctx context.Context, a *app, name string, args []string) subcommands.ExitStatus {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	fs.StringVar(&a.dbPath, "db", "", "SQLite database path (default from config)")
	fs.StringVar(&a.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")

	commander := subcommands.NewCommander(fs, name)
	commander.Output = a.out
	commander.Error = a.errOut
	a.Register(commander)

	if err := fs.Parse(args); err != nil {
		return subcommands.ExitUsageError
	}
	return commander.Execute(ctx)
}

func main() {
	a := newApp(os.Stdout, os.Stderr)
	os.Exit(int(execute(context.Background(), a, path.Base(os.Args[0]), os.Args[1:])))
}
