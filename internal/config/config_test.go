package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Data:   DataConfig{Dir: "/some/path"},
		Client: ClientConfig{
			ServerURL:      "http://localhost:8080",
			RequestTimeout: 15 * time.Second,
		},
		Server: ServerConfig{
			Port:            "8080",
			SnapshotBackend: SnapshotBackendFS,
			RateLimitRPS:    10,
			RateLimitBurst:  20,
		},
	}
}

// clearEnv unsets every key Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENV", "LOG_LEVEL", "CINESHELF_DATA_DIR", "CINESHELF_SERVER_URL",
		"CINESHELF_BACKUP_ENDPOINTS", "CINESHELF_RESTORE_ENDPOINTS", "CINESHELF_REQUEST_TIMEOUT",
		"SERVER_PORT", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT", "SERVER_IDLE_TIMEOUT",
		"CINESHELF_SNAPSHOT_DIR", "CINESHELF_SNAPSHOT_BACKEND", "CINESHELF_DB_PATH",
		"CINESHELF_CORS_ORIGINS", "CINESHELF_RATE_LIMIT_RPS", "CINESHELF_RATE_LIMIT_BURST",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"DEBUG", true},  // case insensitive
		{"INFO", true},   // case insensitive
		{"trace", false}, // not supported
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logger.Level = tt.level

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.Data.Dir = "" }},
		{"server url without scheme", func(c *Config) { c.Client.ServerURL = "localhost:8080" }},
		{"server url ftp", func(c *Config) { c.Client.ServerURL = "ftp://example.com" }},
		{"bad backup endpoint", func(c *Config) { c.Client.BackupEndpoints = []string{"http://ok/backup", "nope"} }},
		{"bad restore endpoint", func(c *Config) { c.Client.RestoreEndpoints = []string{"http://"} }},
		{"zero timeout", func(c *Config) { c.Client.RequestTimeout = 0 }},
		{"unknown backend", func(c *Config) { c.Server.SnapshotBackend = "s3" }},
		{"port not numeric", func(c *Config) { c.Server.Port = "http" }},
		{"port out of range", func(c *Config) { c.Server.Port = "70000" }},
		{"zero rps", func(c *Config) { c.Server.RateLimitRPS = 0 }},
		{"zero burst", func(c *Config) { c.Server.RateLimitBurst = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(Overrides{EnvFile: filepath.Join(t.TempDir(), "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, filepath.Join(home, ".cineshelf"), cfg.Data.Dir)
	assert.Equal(t, "http://localhost:8080", cfg.Client.ServerURL)
	assert.Empty(t, cfg.Client.BackupEndpoints)
	assert.Equal(t, 15*time.Second, cfg.Client.RequestTimeout)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, SnapshotBackendFS, cfg.Server.SnapshotBackend)
	assert.Equal(t, filepath.Join(home, ".cineshelf", "snapshots"), cfg.Server.SnapshotDir)
	assert.Equal(t, filepath.Join(home, ".cineshelf", "cineshelf.db"), cfg.Server.DBPath)
	assert.Equal(t, filepath.Join(home, ".cineshelf", "search"), cfg.Server.IndexPath)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.InDelta(t, 10.0, cfg.Server.RateLimitRPS, 0.0001)
	assert.Equal(t, 20, cfg.Server.RateLimitBurst)
}

func TestLoad_DefaultLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(Overrides{EnvFile: "does-not-exist.env", DefaultLogLevel: "warn"})
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logger.Level)

	t.Setenv("LOG_LEVEL", "debug")
	cfg, err = Load(Overrides{EnvFile: "does-not-exist.env", DefaultLogLevel: "warn"})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"# local settings\n"+
			"SERVER_PORT=7000\n"+
			"LOG_LEVEL=debug\n"+
			"CINESHELF_SERVER_URL=\"http://file.example.com/\"\n"+
			"CINESHELF_SNAPSHOT_BACKEND=sqlite\n",
	), 0o600))

	// Environment beats the file.
	t.Setenv("SERVER_PORT", "7100")
	t.Setenv("CINESHELF_BACKUP_ENDPOINTS", "http://a.example.com/backup, ,http://b.example.com/backup")

	cfg, err := Load(Overrides{
		EnvFile:   envFile,
		ServerURL: "https://flag.example.com",
		DataDir:   filepath.Join(dir, "data"),
	})
	require.NoError(t, err)

	assert.Equal(t, "7100", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "https://flag.example.com", cfg.Client.ServerURL)
	assert.Equal(t, SnapshotBackendSQLite, cfg.Server.SnapshotBackend)
	assert.Equal(t, []string{"http://a.example.com/backup", "http://b.example.com/backup"}, cfg.Client.BackupEndpoints)
	assert.Equal(t, filepath.Join(dir, "data", "snapshots"), cfg.Server.SnapshotDir)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		o    Overrides
	}{
		{"duration", Overrides{RequestTimeout: "soon"}},
		{"read timeout", Overrides{ReadTimeout: "15"}},
		{"rps", Overrides{RateLimitRPS: "fast"}},
		{"burst", Overrides{RateLimitBurst: "1.5"}},
		{"backend", Overrides{SnapshotBackend: "s3"}},
		{"env", Overrides{Env: "test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("HOME", t.TempDir())
			tt.o.EnvFile = "does-not-exist.env"

			_, err := Load(tt.o)
			assert.Error(t, err)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/shelf", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "shelf"), got)

	got, err = expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)

	got, err = expandPath("/a/b/../c", "")
	require.NoError(t, err)
	assert.Equal(t, "/a/c", got)

	got, err = expandPath("relative", "")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a ,, b ,"))
}
