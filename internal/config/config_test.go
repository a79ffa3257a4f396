package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{"DATABASE_URL": "postgres://localhost/gradebook"}
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(MapLookup(baseEnv()))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Cache.DefaultTTL != 5*time.Minute {
		t.Errorf("Cache.DefaultTTL = %v, want %v", cfg.Cache.DefaultTTL, 5*time.Minute)
	}
	if cfg.Cache.MaxEntries != 0 {
		t.Errorf("Cache.MaxEntries = %d, want 0", cfg.Cache.MaxEntries)
	}
	if cfg.Fetch.MaxRetries != 3 || cfg.Fetch.RetryDelay != time.Second {
		t.Errorf("Fetch = %+v, want 3 retries at 1s", cfg.Fetch)
	}
	if cfg.Import.MaxConcurrent != 5 {
		t.Errorf("Import.MaxConcurrent = %d, want %d", cfg.Import.MaxConcurrent, 5)
	}
	if !cfg.Database.Migrate {
		t.Error("Database.Migrate = false, want true")
	}
	if cfg.Security.APIKeys != nil {
		t.Errorf("Security.APIKeys = %v, want nil", cfg.Security.APIKeys)
	}
	if !cfg.Rate.Enabled || cfg.Rate.RequestsPerMinute != 100 || cfg.Rate.ImportLimit != 10 {
		t.Errorf("Rate = %+v, want enabled at 100/min with 10 imports", cfg.Rate)
	}
}

func TestLoadFrom_OverrideDefaults(t *testing.T) {
	env := baseEnv()
	env["SERVER_PORT"] = "9090"
	env["CACHE_DEFAULT_TTL"] = "30s"
	env["FETCH_MAX_RETRIES"] = "0"
	env["API_KEYS"] = " key-a, ,key-b "
	env["REQUIRE_API_KEY"] = "true"
	env["LOG_LEVEL"] = "debug"

	cfg, err := LoadFrom(MapLookup(env))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Cache.DefaultTTL != 30*time.Second {
		t.Errorf("Cache.DefaultTTL = %v, want 30s", cfg.Cache.DefaultTTL)
	}
	if cfg.Fetch.MaxRetries != 0 {
		t.Errorf("Fetch.MaxRetries = %d, want 0", cfg.Fetch.MaxRetries)
	}
	if got := strings.Join(cfg.Security.APIKeys, "|"); got != "key-a|key-b" {
		t.Errorf("Security.APIKeys = %q, want key-a|key-b", got)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoadFrom_AltEnvVar(t *testing.T) {
	cfg, err := LoadFrom(MapLookup(map[string]string{"DB_URL": "postgres://localhost/alt"}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Database.URL != "postgres://localhost/alt" {
		t.Errorf("Database.URL = %q, want %q", cfg.Database.URL, "postgres://localhost/alt")
	}
}

func TestLoadFrom_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing database url",
			env:     map[string]string{},
			wantErr: "DATABASE_URL is not set",
		},
		{
			name:    "bad duration",
			env:     map[string]string{"DATABASE_URL": "x", "CACHE_DEFAULT_TTL": "soon"},
			wantErr: "invalid value for CACHE_DEFAULT_TTL",
		},
		{
			name:    "bad port",
			env:     map[string]string{"DATABASE_URL": "x", "SERVER_PORT": "70000"},
			wantErr: "SERVER_PORT (70000) must be 1-65535",
		},
		{
			name:    "auth without keys",
			env:     map[string]string{"DATABASE_URL": "x", "REQUIRE_API_KEY": "true"},
			wantErr: "API_KEYS is empty",
		},
		{
			name:    "bad id pattern",
			env:     map[string]string{"DATABASE_URL": "x", "IMPORT_STUDENT_ID_PATTERN": "("},
			wantErr: "IMPORT_STUDENT_ID_PATTERN",
		},
		{
			name:    "bad log format",
			env:     map[string]string{"DATABASE_URL": "x", "LOG_FORMAT": "xml"},
			wantErr: "LOG_FORMAT",
		},
		{
			name:    "zero rate limit",
			env:     map[string]string{"DATABASE_URL": "x", "RATE_LIMIT_REQUESTS_PER_MINUTE": "0"},
			wantErr: "RATE_LIMIT_REQUESTS_PER_MINUTE",
		},
		{
			name:    "min above max conns",
			env:     map[string]string{"DATABASE_URL": "x", "DB_MIN_CONNS": "20"},
			wantErr: "DB_MIN_CONNS (20)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(MapLookup(tt.env))
			if err == nil {
				t.Fatal("LoadFrom() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFrom_ReportsAllFieldErrors(t *testing.T) {
	_, err := LoadFrom(MapLookup(map[string]string{"SERVER_PORT": "abc"}))
	if err == nil {
		t.Fatal("LoadFrom() error = nil, want error")
	}
	for _, want := range []string{"DATABASE_URL", "SERVER_PORT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error = %q, want it to mention %s", err, want)
		}
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DATABASE_URL=postgres://dotenv/db\nIMPORT_MAX_ROWS=42\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IMPORT_MAX_ROWS", "7")
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL")

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("DATABASE_URL") })

	if cfg.Database.URL != "postgres://dotenv/db" {
		t.Errorf("Database.URL = %q, want value from .env", cfg.Database.URL)
	}
	if cfg.Import.MaxRows != 7 {
		t.Errorf("Import.MaxRows = %d, want 7 (process env wins)", cfg.Import.MaxRows)
	}
}

func TestServerConfig_Addr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"", 9000, ":9000"},
		{"::1", 80, "[::1]:80"},
	}
	for _, tt := range tests {
		c := ServerConfig{Host: tt.host, Port: tt.port}
		if got := c.Addr(); got != tt.want {
			t.Errorf("Addr() = %q, want %q", got, tt.want)
		}
	}
}

func TestConfig_StringMasksSecrets(t *testing.T) {
	env := baseEnv()
	env["DATABASE_URL"] = "postgres://user:secret@db/gradebook"
	env["API_KEYS"] = "topsecret"
	cfg, err := LoadFrom(MapLookup(env))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	s := cfg.String()
	if strings.Contains(s, "secret") {
		t.Errorf("String() leaks a secret: %s", s)
	}
}
