package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
)

// isolateEnv keeps stray .env files and LEXISYNC_* variables out of the test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"LEXISYNC_API_BASE_URL", "LEXISYNC_DATA_DIR", "LEXISYNC_RPC_ADDR", "LEXISYNC_RPC_SECRET",
		"LEXISYNC_HTTP_TIMEOUT", "LEXISYNC_PROBE_ADDR", "LEXISYNC_ALLOW_ANONYMOUS",
		"LEXISYNC_LOG_LEVEL", "LEXISYNC_LOG_FORMAT", "LEXISYNC_PROXY", "LEXISYNC_TOKEN_KEY",
		"LEXISYNC_LOG_FILE", "LEXISYNC_RPC_TIMEOUT",
	} {
		t.Setenv(name, "")
	}
	empty := filepath.Join(t.TempDir(), "empty.env")
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENV_FILE", empty)
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	isolateEnv(t)
	cfg, err := LoadFS(afero.NewMemMapFs(), "/etc/lexisync/config.yml")
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}
	if cfg.APIBaseURL != DefaultAPIBaseURL || cfg.RPCAddr != DefaultRPCAddr || cfg.HTTPTimeout != DefaultHTTPTimeout {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" || cfg.DataDir == "" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.RPCTimeout != 4*DefaultHTTPTimeout {
		t.Errorf("rpc timeout = %s", cfg.RPCTimeout)
	}
}

func TestRPCTimeout(t *testing.T) {
	tests := []struct {
		name string
		yml  string
		env  string
		want time.Duration
	}{
		{"follows http timeout", "http_timeout: 10s\n", "", 40 * time.Second},
		{"from file", "http_timeout: 10s\nrpc_timeout: 5m\n", "", 5 * time.Minute},
		{"from env", "rpc_timeout: 5m\n", "90s", 90 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			if tt.env != "" {
				t.Setenv("LEXISYNC_RPC_TIMEOUT", tt.env)
			}
			fs := afero.NewMemMapFs()
			if err := afero.WriteFile(fs, "/cfg.yml", []byte(tt.yml), 0o600); err != nil {
				t.Fatal(err)
			}
			cfg, err := LoadFS(fs, "/cfg.yml")
			if err != nil {
				t.Fatalf("LoadFS: %v", err)
			}
			if cfg.RPCTimeout != tt.want {
				t.Errorf("RPCTimeout = %s, want %s", cfg.RPCTimeout, tt.want)
			}
		})
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	isolateEnv(t)
	fs := afero.NewMemMapFs()
	yml := `
api_base_url: https://api.example.com/api/
rpc_secret: from-file
http_timeout: 10s
log:
  level: warn
  format: console
`
	if err := afero.WriteFile(fs, "/cfg.yml", []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LEXISYNC_RPC_SECRET", "from-env")
	t.Setenv("LEXISYNC_ALLOW_ANONYMOUS", "true")

	cfg, err := LoadFS(fs, "/cfg.yml")
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}
	if cfg.APIBaseURL != "https://api.example.com/api/" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.RPCSecret != "from-env" {
		t.Errorf("env must win over the file, got %q", cfg.RPCSecret)
	}
	if !cfg.AllowAnonymous || cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Log.Level != "warn" || cfg.Log.Format != "console" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoadEnvFile(t *testing.T) {
	isolateEnv(t)
	envFile := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(envFile, []byte("LEXISYNC_RPC_ADDR=127.0.0.1:9999\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENV_FILE", envFile)
	// godotenv never overrides a variable that is already set, even to "".
	os.Unsetenv("LEXISYNC_RPC_ADDR")

	cfg, err := LoadFS(afero.NewMemMapFs(), "")
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}
	if cfg.RPCAddr != "127.0.0.1:9999" {
		t.Errorf("RPCAddr = %q", cfg.RPCAddr)
	}
	os.Unsetenv("LEXISYNC_RPC_ADDR")
}

func TestLoadRejectsBadInput(t *testing.T) {
	isolateEnv(t)
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/bad.yml", []byte("log: [unterminated"), 0o600)
	if _, err := LoadFS(fs, "/bad.yml"); err == nil {
		t.Error("expected parse error")
	}
	_ = afero.WriteFile(fs, "/level.yml", []byte("log:\n  level: loud\n"), 0o600)
	if _, err := LoadFS(fs, "/level.yml"); err == nil {
		t.Error("expected validation error")
	}
	_ = afero.WriteFile(fs, "/key.yml", []byte("token_key: abcd\n"), 0o600)
	if _, err := LoadFS(fs, "/key.yml"); err == nil {
		t.Error("expected a short token key to be rejected")
	}
}

func TestLoadTokenKeyAndProxy(t *testing.T) {
	isolateEnv(t)
	key := "000102030405060708090a0b0c0d0e0f"
	t.Setenv("LEXISYNC_TOKEN_KEY", key)
	t.Setenv("LEXISYNC_PROXY", "socks5://127.0.0.1:1080")
	cfg, err := LoadFS(afero.NewMemMapFs(), "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TokenKey != key || cfg.Proxy != "socks5://127.0.0.1:1080" {
		t.Fatalf("cfg = %+v", cfg)
	}
}
