package stocktrack

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// CostBasisOrder selects the order in which a holding's transactions are
// replayed when computing its metrics.
type CostBasisOrder string

const (
	// OrderInsertion replays transactions in the order they were entered.
	OrderInsertion CostBasisOrder = "insertion"
	// OrderDate replays transactions sorted by their trade date.
	OrderDate CostBasisOrder = "date"
)

const defaultTradingDaysPerYear = 240

// Options controls Core initialization.
type Options struct {
	DBPath string
	Logger *slog.Logger
	// Store replaces the SQLite key-value store. The database is still
	// opened for the operation log.
	Store              KVStore
	CostBasisOrder     CostBasisOrder
	TradingDaysPerYear int
	// Now overrides the clock used for default transaction dates and ids.
	Now func() time.Time

	QuoteCacheTTL      time.Duration
	QuoteFailThreshold int
	QuoteFailWindow    time.Duration
	QuoteCooldown      time.Duration
	HTTPTimeout        time.Duration
	HTTPClient         HTTPDoer
}

// Core provides access to the portfolio ledger and its companion stores.
type Core struct {
	db                 *sql.DB
	store              KVStore
	logger             *slog.Logger
	quotes             *quoteFetcher
	locks              *keyedMutex
	order              CostBasisOrder
	tradingDaysPerYear int
	now                func() time.Time
	dbPath             string
}

// Open initializes a Core using the provided database path.
func Open(dbPath string) (*Core, error) {
	return OpenWithOptions(Options{DBPath: dbPath})
}

// OpenWithOptions initializes a Core using the provided options.
func OpenWithOptions(opts Options) (*Core, error) {
	if opts.DBPath == "" {
		return nil, errors.New("db path is required")
	}
	order := opts.CostBasisOrder
	switch order {
	case "":
		order = OrderInsertion
	case OrderInsertion, OrderDate:
	default:
		return nil, fmt.Errorf("invalid cost basis order: %s", order)
	}
	cleanPath := filepath.Clean(opts.DBPath)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", cleanPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite performs best with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Warn("pragma busy_timeout failed", "err", err)
	}

	if err := initDatabase(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}

	store := opts.Store
	if store == nil {
		store = newSQLiteStore(db)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	qf := newQuoteFetcher(quoteFetcherOptions{
		Logger:        logger,
		CacheTTL:      defaultDuration(opts.QuoteCacheTTL, 30*time.Second),
		FailThreshold: defaultInt(opts.QuoteFailThreshold, 3),
		FailWindow:    defaultDuration(opts.QuoteFailWindow, 60*time.Second),
		Cooldown:      defaultDuration(opts.QuoteCooldown, 120*time.Second),
		HTTPTimeout:   defaultDuration(opts.HTTPTimeout, 15*time.Second),
		HTTPClient:    opts.HTTPClient,
		Now:           now,
	})

	return &Core{
		db:                 db,
		store:              store,
		logger:             logger,
		quotes:             qf,
		locks:              newKeyedMutex(),
		order:              order,
		tradingDaysPerYear: defaultInt(opts.TradingDaysPerYear, defaultTradingDaysPerYear),
		now:                now,
		dbPath:             cleanPath,
	}, nil
}

// Close releases database resources.
func (c *Core) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DBPath returns the underlying database path.
func (c *Core) DBPath() string {
	return c.dbPath
}

// Logger returns the logger the Core was opened with.
func (c *Core) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// CostBasisOrder returns the replay order used for holding metrics.
func (c *Core) CostBasisOrder() CostBasisOrder {
	return c.order
}

func (c *Core) nowMillis() int64 {
	return c.now().UnixMilli()
}

func defaultDuration(v time.Duration, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}

func defaultInt(v int, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
