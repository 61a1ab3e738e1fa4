// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Snapshot storage backends.
const (
	SnapshotBackendFS     = "fs"
	SnapshotBackendSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Data   DataConfig
	Client ClientConfig
	Server ServerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds local storage configuration.
type DataConfig struct {
	// Dir holds the device database and, on a server, its default storage paths.
	Dir string
}

// ClientConfig holds configuration for talking to a CineShelf server.
type ClientConfig struct {
	ServerURL        string
	BackupEndpoints  []string      // Empty means derived from ServerURL
	RestoreEndpoints []string      // Empty means derived from ServerURL
	RequestTimeout   time.Duration // Per endpoint attempt (default: 15s)
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port            string        // Server port (default: 8080)
	ReadTimeout     time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout    time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout     time.Duration // HTTP idle timeout (default: 60s)
	SnapshotDir     string        // Directory of the fs backend (default: {data}/snapshots)
	SnapshotBackend string        // fs or sqlite (default: fs)
	DBPath          string        // SQLite database (default: {data}/cineshelf.db)
	IndexPath       string        // Bleve index directory (default: {data}/search)
	CORSOrigins     []string      // Allowed origins (default: *)
	RateLimitRPS    float64       // Per-IP requests per second (default: 10)
	RateLimitBurst  int           // Per-IP burst (default: 20)
}

// Overrides are values given on the command line. Empty strings fall through to the
// environment, then the .env file, then defaults.
type Overrides struct {
	EnvFile         string
	DefaultLogLevel string // Used when neither a flag nor LOG_LEVEL sets the level

	Env              string
	LogLevel         string
	DataDir          string
	ServerURL        string
	BackupEndpoints  string
	RestoreEndpoints string
	RequestTimeout   string

	Port            string
	ReadTimeout     string
	WriteTimeout    string
	IdleTimeout     string
	SnapshotDir     string
	SnapshotBackend string
	DBPath          string
	CORSOrigins     string
	RateLimitRPS    string
	RateLimitBurst  string
}

// LoadConfig loads the server configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	var o Overrides

	flag.StringVar(&o.Env, "env", "", "Environment (development, staging, production)")
	flag.StringVar(&o.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&o.DataDir, "data-dir", "", "Base path for server data (default: ~/.cineshelf)")

	// Server flags
	flag.StringVar(&o.Port, "port", "", "Server port (default: 8080)")
	flag.StringVar(&o.ReadTimeout, "read-timeout", "", "HTTP read timeout (default: 15s)")
	flag.StringVar(&o.WriteTimeout, "write-timeout", "", "HTTP write timeout (default: 15s)")
	flag.StringVar(&o.IdleTimeout, "idle-timeout", "", "HTTP idle timeout (default: 60s)")

	// Storage flags
	flag.StringVar(&o.SnapshotDir, "snapshot-dir", "", "Directory for stored backups (default: {data-dir}/snapshots)")
	flag.StringVar(&o.SnapshotBackend, "snapshot-backend", "", "Backup storage backend: fs or sqlite (default: fs)")
	flag.StringVar(&o.DBPath, "db-path", "", "SQLite database path (default: {data-dir}/cineshelf.db)")

	// Access flags
	flag.StringVar(&o.CORSOrigins, "cors-origins", "", "Comma-separated allowed origins (default: *)")
	flag.StringVar(&o.RateLimitRPS, "rate-limit-rps", "", "Requests per second per client IP (default: 10)")
	flag.StringVar(&o.RateLimitBurst, "rate-limit-burst", "", "Request burst per client IP (default: 20)")

	flag.StringVar(&o.EnvFile, "env-file", ".env", "Path to .env file")

	flag.Parse()

	return Load(o)
}

// Load builds a Config from o, the environment, the .env file, and defaults.
func Load(o Overrides) (*Config, error) {
	envFile := o.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// Variables already in the environment win over the file.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	defaultLevel := o.DefaultLogLevel
	if defaultLevel == "" {
		defaultLevel = "info"
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(o.Env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(o.LogLevel, "LOG_LEVEL", defaultLevel),
		},
		Data: DataConfig{
			Dir: getConfigValue(o.DataDir, "CINESHELF_DATA_DIR", ""),
		},
		Client: ClientConfig{
			ServerURL:        strings.TrimRight(getConfigValue(o.ServerURL, "CINESHELF_SERVER_URL", "http://localhost:8080"), "/"),
			BackupEndpoints:  splitList(getConfigValue(o.BackupEndpoints, "CINESHELF_BACKUP_ENDPOINTS", "")),
			RestoreEndpoints: splitList(getConfigValue(o.RestoreEndpoints, "CINESHELF_RESTORE_ENDPOINTS", "")),
		},
		Server: ServerConfig{
			Port:            getConfigValue(o.Port, "SERVER_PORT", "8080"),
			SnapshotDir:     getConfigValue(o.SnapshotDir, "CINESHELF_SNAPSHOT_DIR", ""),
			SnapshotBackend: strings.ToLower(getConfigValue(o.SnapshotBackend, "CINESHELF_SNAPSHOT_BACKEND", SnapshotBackendFS)),
			DBPath:          getConfigValue(o.DBPath, "CINESHELF_DB_PATH", ""),
			CORSOrigins:     splitList(getConfigValue(o.CORSOrigins, "CINESHELF_CORS_ORIGINS", "*")),
		},
	}

	var err error
	if cfg.Server.RateLimitRPS, err = getFloatConfigValue(o.RateLimitRPS, "CINESHELF_RATE_LIMIT_RPS", 10); err != nil {
		return nil, err
	}
	if cfg.Server.RateLimitBurst, err = getIntConfigValue(o.RateLimitBurst, "CINESHELF_RATE_LIMIT_BURST", 20); err != nil {
		return nil, err
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Client.RequestTimeout, o.RequestTimeout, "CINESHELF_REQUEST_TIMEOUT", "15s"},
		{&cfg.Server.ReadTimeout, o.ReadTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, o.WriteTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, o.IdleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
	}
	for _, d := range durations {
		if *d.dst, err = getDurationConfigValue(d.flag, d.envKey, d.fallback); err != nil {
			return nil, err
		}
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.Dir == "" {
		return errors.New("data directory cannot be empty after expansion")
	}

	if err := validateURL(c.Client.ServerURL); err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	for _, endpoints := range [][]string{c.Client.BackupEndpoints, c.Client.RestoreEndpoints} {
		for _, e := range endpoints {
			if err := validateURL(e); err != nil {
				return fmt.Errorf("invalid endpoint %q: %w", e, err)
			}
		}
	}
	if c.Client.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}

	switch c.Server.SnapshotBackend {
	case SnapshotBackendFS, SnapshotBackendSQLite:
	default:
		return fmt.Errorf("invalid snapshot backend: %s (must be fs or sqlite)", c.Server.SnapshotBackend)
	}

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %s", c.Server.Port)
	}

	if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst <= 0 {
		return errors.New("rate limit rps and burst must be positive")
	}

	return nil
}

// validateURL accepts absolute http and https URLs.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandPaths resolves the data directory and the server paths derived from it.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	if c.Data.Dir, err = expandPath(c.Data.Dir, filepath.Join(homeDir, ".cineshelf")); err != nil {
		return err
	}
	if c.Server.SnapshotDir, err = expandPath(c.Server.SnapshotDir, filepath.Join(c.Data.Dir, "snapshots")); err != nil {
		return err
	}
	if c.Server.DBPath, err = expandPath(c.Server.DBPath, filepath.Join(c.Data.Dir, "cineshelf.db")); err != nil {
		return err
	}
	c.Server.IndexPath = filepath.Join(c.Data.Dir, "search")
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) (int, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return n, nil
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) (float64, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return f, nil
}

// getDurationConfigValue returns a duration from flag, env var, or default.
func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return d, nil
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
