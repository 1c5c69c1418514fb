package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	EnvConfigDir = "STOCKTRACK_CONFIG_DIR"
	EnvDataDir   = "STOCKTRACK_DATA_DIR"
	EnvDBPath    = "STOCKTRACK_DB_PATH"

	defaultDBName   = "stocktrack.db"
	configFileName  = "config.json"
	appDirName      = "StockTrack"
	appDirNameLower = "stocktrack"
)

// UserConfig is the persisted config.json.
type UserConfig struct {
	DBName               string `json:"db_name"`
	DataDir              string `json:"data_dir,omitempty"`
	TradingDaysPerYear   int    `json:"trading_days_per_year,omitempty"`
	CostBasisOrder       string `json:"cost_basis_order,omitempty"`
	QuoteCacheTTLSeconds int    `json:"quote_cache_ttl_seconds,omitempty"`
}

// QuoteCacheTTL returns the configured quote cache lifetime, or 0 for the
// engine default.
func (c UserConfig) QuoteCacheTTL() time.Duration {
	if c.QuoteCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.QuoteCacheTTLSeconds) * time.Second
}

// Validate rejects settings the engine would refuse at startup.
func (c UserConfig) Validate() error {
	if c.TradingDaysPerYear < 0 {
		return fmt.Errorf("trading_days_per_year must not be negative: %d", c.TradingDaysPerYear)
	}
	switch c.CostBasisOrder {
	case "", "insertion", "date":
	default:
		return fmt.Errorf("cost_basis_order must be insertion or date: %q", c.CostBasisOrder)
	}
	if c.QuoteCacheTTLSeconds < 0 {
		return fmt.Errorf("quote_cache_ttl_seconds must not be negative: %d", c.QuoteCacheTTLSeconds)
	}
	if strings.ContainsAny(c.DBName, `/\`) {
		return fmt.Errorf("db_name must be a file name: %q", c.DBName)
	}
	return nil
}

var (
	runtimeMu      sync.RWMutex
	runtimeDataDir string
	runtimeDBPath  string
)

// SetRuntimeDataDir overrides every other data dir source, typically from a flag.
func SetRuntimeDataDir(dir string) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	runtimeDataDir = dir
}

// SetRuntimeDBPath overrides every other database path source.
func SetRuntimeDBPath(path string) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	runtimeDBPath = path
}

func runtimeOverrides() (string, string) {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	return runtimeDataDir, runtimeDBPath
}

// AppConfigDir is where config.json lives, and the default data directory.
func AppConfigDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(EnvConfigDir)); dir != "" {
		return dir, nil
	}
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", appDirName), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appDirName), nil
		}
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return "", errors.Join(err, homeErr)
		}
		return filepath.Join(home, ".config", appDirNameLower), nil
	}
	return filepath.Join(configDir, appDirNameLower), nil
}

func configPath() (string, error) {
	dir, err := AppConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// LoadUserConfig reads config.json. A missing file yields defaults; a file
// that cannot be parsed is an error.
func LoadUserConfig() (UserConfig, error) {
	cfg := UserConfig{DBName: defaultDBName}
	path, err := configPath()
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return UserConfig{DBName: defaultDBName}, fmt.Errorf("parse %s: %w", path, err)
	}
	if strings.TrimSpace(cfg.DBName) == "" {
		cfg.DBName = defaultDBName
	}
	if err := cfg.Validate(); err != nil {
		return UserConfig{DBName: defaultDBName}, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

// SaveUserConfig writes cfg to config.json, creating the directory.
func SaveUserConfig(cfg UserConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// GetDataDir resolves the data directory: runtime override, then
// STOCKTRACK_DATA_DIR, then config.json, then AppConfigDir. The directory
// is created if missing.
func GetDataDir() (string, error) {
	dir, err := resolveDataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func resolveDataDir() (string, error) {
	if dir, _ := runtimeOverrides(); dir != "" {
		return dir, nil
	}
	if dir := strings.TrimSpace(os.Getenv(EnvDataDir)); dir != "" {
		return dir, nil
	}
	cfg, err := LoadUserConfig()
	if err != nil {
		return "", err
	}
	if cfg.DataDir != "" {
		return cfg.DataDir, nil
	}
	return AppConfigDir()
}

// GetDBPath resolves the SQLite path: runtime override, then
// STOCKTRACK_DB_PATH, then <data dir>/<db_name>.
func GetDBPath() (string, error) {
	if _, path := runtimeOverrides(); path != "" {
		return path, nil
	}
	if path := strings.TrimSpace(os.Getenv(EnvDBPath)); path != "" {
		return path, nil
	}
	cfg, err := LoadUserConfig()
	if err != nil {
		return "", err
	}
	dir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, cfg.DBName), nil
}
