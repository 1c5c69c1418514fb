package stocktrack

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestCore creates a Core backed by a temporary SQLite database.
// The caller should defer cleanup().
func setupTestCore(t *testing.T) (*Core, func()) {
	t.Helper()
	return setupTestCoreWithOptions(t, Options{})
}

func setupTestCoreWithOptions(t *testing.T, opts Options) (*Core, func()) {
	t.Helper()
	if opts.DBPath == "" {
		opts.DBPath = filepath.Join(t.TempDir(), "test.db")
	}
	if opts.Logger == nil {
		opts.Logger = testLogger()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	core, err := OpenWithOptions(opts)
	if err != nil {
		t.Fatalf("failed to open test core: %v", err)
	}
	return core, func() { core.Close() }
}

// testBuy adds a buy transaction and returns the updated holding.
func testBuy(t *testing.T, core *Core, symbol string, qty, price float64) *Holding {
	t.Helper()
	h, err := core.AddTransaction(context.Background(), AddTransactionRequest{
		Symbol:   symbol,
		Name:     symbol + " Inc",
		Market:   MarketUS,
		Type:     Buy,
		Quantity: qty,
		Price:    price,
	})
	if err != nil {
		t.Fatalf("failed to add buy transaction: %v", err)
	}
	return h
}

// testSell adds a sell transaction and returns the updated holding.
func testSell(t *testing.T, core *Core, symbol string, qty, price float64) *Holding {
	t.Helper()
	h, err := core.AddTransaction(context.Background(), AddTransactionRequest{
		Symbol:   symbol,
		Market:   MarketUS,
		Type:     Sell,
		Quantity: qty,
		Price:    price,
	})
	if err != nil {
		t.Fatalf("failed to add sell transaction: %v", err)
	}
	return h
}

func buy(qty, price float64) Transaction {
	return Transaction{Type: Buy, Quantity: qty, Price: price}
}

func sell(qty, price float64) Transaction {
	return Transaction{Type: Sell, Quantity: qty, Price: price}
}

func floatEquals(a, b, epsilon float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < epsilon
}

// assertFloatEquals fails the test if the floats are not approximately equal.
func assertFloatEquals(t *testing.T, got, want float64, msg string) {
	t.Helper()
	if !floatEquals(got, want, 1e-6) {
		t.Errorf("%s: got %.8f, want %.8f", msg, got, want)
	}
}

func assertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", msg, err)
	}
}

func assertErrorCode(t *testing.T, err error, code ErrorCode, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: expected %s error but got nil", msg, code)
	}
	if !IsErrorCode(err, code) {
		t.Fatalf("%s: expected %s error, got %v", msg, code, err)
	}
}

var errStoreDown = errors.New("store down")

// faultyStore wraps a KVStore and fails reads or writes on demand.
type faultyStore struct {
	KVStore
	failGet bool
	failSet bool
}

func (s *faultyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.failGet {
		return nil, false, errStoreDown
	}
	return s.KVStore.Get(ctx, key)
}

func (s *faultyStore) Set(ctx context.Context, key string, value []byte) error {
	if s.failSet {
		return errStoreDown
	}
	return s.KVStore.Set(ctx, key, value)
}

// memoryStore is an in-memory KVStore.
type memoryStore struct {
	data map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string][]byte{}}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte) error {
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	delete(s.data, key)
	return nil
}
