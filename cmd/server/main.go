package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"stocktrack/internal/api"
	"stocktrack/internal/config"
	"stocktrack/internal/logging"
	"stocktrack/pkg/stocktrack"
)

type serverFlags struct {
	dataDir  string
	dbPath   string
	host     string
	port     int
	logLevel string
	logDir   string
}

func parseFlags(args []string) (serverFlags, error) {
	var f serverFlags
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&f.dataDir, "data-dir", "", "Directory for the database and logs")
	fs.StringVar(&f.dbPath, "db", "", "SQLite database path (overrides -data-dir)")
	fs.StringVar(&f.host, "host", "127.0.0.1", "Host to bind the server to")
	fs.IntVar(&f.port, "port", 8000, "Port to run the server on")
	fs.StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	fs.StringVar(&f.logDir, "log-dir", "", "Directory for daily log files (default <data-dir>/logs)")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.port < 0 || f.port > 65535 {
		return f, fmt.Errorf("invalid port %d", f.port)
	}
	if _, ok := logging.ParseLevel(f.logLevel); !ok {
		return f, fmt.Errorf("invalid log level %q", f.logLevel)
	}
	return f, nil
}

// coreOptions maps the user config onto engine options.
func coreOptions(cfg config.UserConfig, dbPath string, logger *slog.Logger) stocktrack.Options {
	return stocktrack.Options{
		DBPath:             dbPath,
		Logger:             logger,
		CostBasisOrder:     stocktrack.CostBasisOrder(cfg.CostBasisOrder),
		TradingDaysPerYear: cfg.TradingDaysPerYear,
		QuoteCacheTTL:      cfg.QuoteCacheTTL(),
	}
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           middleware.Compress(5)(handler),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	return serve(ctx, args, nil)
}

// serve runs the API until ctx is canceled. ready, when non-nil, receives the
// bound address once the listener is open.
func serve(ctx context.Context, args []string, ready chan<- string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	if f.dataDir != "" {
		config.SetRuntimeDataDir(f.dataDir)
	}
	if f.dbPath != "" {
		config.SetRuntimeDBPath(f.dbPath)
	}

	dataDir, err := config.GetDataDir()
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	logDir := f.logDir
	if logDir == "" {
		logDir = filepath.Join(dataDir, "logs")
	}
	level, _ := logging.ParseLevel(f.logLevel)
	logger, logFile, err := logging.NewLogger(logging.Options{Dir: logDir, Level: level})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	cfg, err := config.LoadUserConfig()
	if err != nil {
		return err
	}
	dbPath, err := config.GetDBPath()
	if err != nil {
		return fmt.Errorf("resolve db path: %w", err)
	}
	core, err := stocktrack.OpenWithOptions(coreOptions(cfg, dbPath, logger))
	if err != nil {
		return fmt.Errorf("open core: %w", err)
	}
	defer func() {
		if err := core.Close(); err != nil {
			logger.Error("failed to close core", "err", err)
		}
	}()

	addr := net.JoinHostPort(f.host, strconv.Itoa(f.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	server := newServer(addr, api.NewRouter(core))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()
	logger.Info("server starting", "addr", ln.Addr().String(), "db", dbPath, "cost_basis_order", core.CostBasisOrder())
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
