package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"stocktrack/internal/config"
	"stocktrack/pkg/stocktrack"
)

func TestParseFlags(t *testing.T) {
	f, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if f.host != "127.0.0.1" || f.port != 8000 || f.logLevel != "info" {
		t.Fatalf("unexpected defaults %+v", f)
	}

	f, err = parseFlags([]string{"-port", "9001", "-db", "/tmp/x.db", "-log-level", "debug"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if f.port != 9001 || f.dbPath != "/tmp/x.db" || f.logLevel != "debug" {
		t.Fatalf("unexpected flags %+v", f)
	}

	for _, args := range [][]string{
		{"-port", "70000"},
		{"-log-level", "loud"},
		{"-unknown"},
	} {
		if _, err := parseFlags(args); err == nil {
			t.Errorf("expected error for %v", args)
		}
	}
}

func TestCoreOptions(t *testing.T) {
	cfg := config.UserConfig{
		DBName:               "x.db",
		TradingDaysPerYear:   252,
		CostBasisOrder:       "date",
		QuoteCacheTTLSeconds: 10,
	}
	opts := coreOptions(cfg, "/data/x.db", slog.Default())
	if opts.DBPath != "/data/x.db" || opts.TradingDaysPerYear != 252 {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.CostBasisOrder != stocktrack.OrderDate || opts.QuoteCacheTTL != 10*time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestServeUntilCanceled(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvConfigDir, filepath.Join(dir, "config"))
	t.Setenv(config.EnvDataDir, "")
	t.Setenv(config.EnvDBPath, "")
	prev := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(prev)
		config.SetRuntimeDataDir("")
		config.SetRuntimeDBPath("")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, []string{"-port", "0", "-data-dir", dir, "-log-level", "error"}, ready)
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatalf("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response %d %v", resp.StatusCode, body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatalf("server did not shut down")
	}
}
