package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultPrefix    = "stocktrack"
	defaultRetention = 7
	fileDateLayout   = "2006-01-02"
)

const (
	EnvLogLevel  = "STOCKTRACK_LOG_LEVEL"
	EnvLogFormat = "STOCKTRACK_LOG_FORMAT"
)

// Options configures NewLogger.
type Options struct {
	// Dir receives the daily log files. Empty disables file output.
	Dir           string
	Prefix        string
	RetentionDays int
	Level         slog.Level
	// Format is "text" or "json". STOCKTRACK_LOG_FORMAT overrides it.
	Format string
	// Console defaults to os.Stderr.
	Console io.Writer
}

// RotatingFile is an io.Writer that starts a new file every day and removes
// files older than its retention window.
type RotatingFile struct {
	dir       string
	prefix    string
	retention int
	now       func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

// OpenRotatingFile creates dir if needed and opens today's log file.
func OpenRotatingFile(dir, prefix string, retentionDays int) (*RotatingFile, error) {
	return openRotatingFile(dir, prefix, retentionDays, time.Now)
}

func openRotatingFile(dir, prefix string, retentionDays int, now func() time.Time) (*RotatingFile, error) {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if retentionDays <= 0 {
		retentionDays = defaultRetention
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f := &RotatingFile{dir: dir, prefix: prefix, retention: retentionDays, now: now}
	if err := f.rotate(now()); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RotatingFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.rotate(f.now()); err != nil {
		return 0, err
	}
	return f.file.Write(p)
}

// Path returns the file currently written to.
func (f *RotatingFile) Path() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pathFor(f.day)
}

func (f *RotatingFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

func (f *RotatingFile) pathFor(day string) string {
	return filepath.Join(f.dir, f.prefix+"-"+day+".log")
}

func (f *RotatingFile) rotate(now time.Time) error {
	day := now.Format(fileDateLayout)
	if f.file != nil && day == f.day {
		return nil
	}
	file, err := os.OpenFile(f.pathFor(day), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if f.file != nil {
		_ = f.file.Close()
	}
	f.file = file
	f.day = day
	f.prune(now)
	return nil
}

func (f *RotatingFile) prune(now time.Time) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return
	}
	cutoff := now.AddDate(0, 0, -f.retention).Format(fileDateLayout)
	head := f.prefix + "-"
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, head) || !strings.HasSuffix(name, ".log") {
			continue
		}
		day := strings.TrimSuffix(strings.TrimPrefix(name, head), ".log")
		if _, err := time.Parse(fileDateLayout, day); err != nil {
			continue
		}
		// ISO dates sort lexically.
		if day < cutoff {
			_ = os.Remove(filepath.Join(f.dir, name))
		}
	}
}

// NewLogger builds the process logger, installs it as the slog default and
// returns a closer for the log file (nil when Dir is empty).
func NewLogger(opts Options) (*slog.Logger, io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	out := console
	var closer io.Closer
	if opts.Dir != "" {
		file, err := OpenRotatingFile(opts.Dir, opts.Prefix, opts.RetentionDays)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(console, file)
		closer = file
	}

	level := opts.Level
	if v := os.Getenv(EnvLogLevel); strings.TrimSpace(v) != "" {
		if parsed, ok := ParseLevel(v); ok {
			level = parsed
		}
	}
	format := opts.Format
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		format = v
	}

	logger := slog.New(newHandler(out, level, format)).With("service", defaultPrefix)
	slog.SetDefault(logger)
	return logger, closer, nil
}

// ParseLevel accepts debug, info, warn(ing), error or a numeric slog level.
func ParseLevel(value string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return slog.Level(n), true
	}
	return slog.LevelInfo, false
}

func newHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	options := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.NewJSONHandler(w, options)
	}
	return slog.NewTextHandler(w, options)
}
