// Package config loads deployment settings for the daemon and CLI.
//
// Sources, lowest priority first:
//
//  1. compiled-in defaults
//  2. the YAML file (a missing file is not an error)
//  3. LEXISYNC_* environment variables, including those read from
//     ENV_FILE, or from .env.local and .env in the working directory
//
// Command-line flags are applied by the caller and win over all of these.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/lexipath/lexisync/pkg/credman/encryption"
)

const (
	DefaultAPIBaseURL  = "http://localhost:8080/api/"
	DefaultRPCAddr     = "127.0.0.1:4450"
	DefaultHTTPTimeout = 30 * time.Second
	DefaultProbeAddr   = "1.1.1.1:443"
	FileName           = "config.yml"
)

type Log struct {
	Level  string `yaml:"level" env:"LEXISYNC_LOG_LEVEL"`
	Format string `yaml:"format" env:"LEXISYNC_LOG_FORMAT"`
	// File receives the full JSON log. The terminal then only shows
	// warnings and errors.
	File string `yaml:"file" env:"LEXISYNC_LOG_FILE"`
}

type Config struct {
	APIBaseURL  string        `yaml:"api_base_url" env:"LEXISYNC_API_BASE_URL"`
	DataDir     string        `yaml:"data_dir" env:"LEXISYNC_DATA_DIR"`
	RPCAddr     string        `yaml:"rpc_addr" env:"LEXISYNC_RPC_ADDR"`
	RPCSecret   string        `yaml:"rpc_secret" env:"LEXISYNC_RPC_SECRET"`
	HTTPTimeout time.Duration `yaml:"http_timeout" env:"LEXISYNC_HTTP_TIMEOUT"`
	// RPCTimeout bounds one CLI call to the daemon. It has to cover a whole
	// retried backend fetch; the default is four backend timeouts.
	RPCTimeout time.Duration `yaml:"rpc_timeout" env:"LEXISYNC_RPC_TIMEOUT"`
	// ProbeAddr is dialed to decide whether the network constraint holds.
	ProbeAddr string `yaml:"probe_addr" env:"LEXISYNC_PROBE_ADDR"`
	// Proxy routes backend traffic through an http, https or socks5 proxy.
	Proxy string `yaml:"proxy" env:"LEXISYNC_PROXY"`
	// TokenKey is a hex AES key. When set, the token fallback file is
	// encrypted with it.
	TokenKey string `yaml:"token_key" env:"LEXISYNC_TOKEN_KEY"`
	// AllowAnonymous sends backend requests without a bearer token when
	// nobody is signed in, instead of failing them.
	AllowAnonymous bool `yaml:"allow_anonymous" env:"LEXISYNC_ALLOW_ANONYMOUS"`
	Log            Log  `yaml:"log"`
}

// DefaultDataDir is the per-user directory holding the database, the config
// file and the token fallback file.
func DefaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "lexisync")
	}
	return filepath.Join(dir, "lexisync")
}

// SetDefaults fills every zero field.
func (c *Config) SetDefaults() {
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if c.RPCAddr == "" {
		c.RPCAddr = DefaultRPCAddr
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.RPCTimeout <= 0 {
		c.RPCTimeout = 4 * c.HTTPTimeout
	}
	if c.ProbeAddr == "" {
		c.ProbeAddr = DefaultProbeAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("config: api_base_url is required")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: invalid log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: invalid log format %q", c.Log.Format)
	}
	if c.TokenKey != "" {
		if _, err := encryption.ParseKey(c.TokenKey); err != nil {
			return fmt.Errorf("config: token_key: %w", err)
		}
	}
	return nil
}

// Load reads path from the OS filesystem. See LoadFS.
func Load(path string) (*Config, error) {
	return LoadFS(afero.NewOsFs(), path)
}

// LoadFS reads the YAML file at path from fs, applies defaults and
// environment overrides, and validates the result.
func LoadFS(fs afero.Fs, path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	var cfg Config
	if path != "" {
		data, err := afero.ReadFile(fs, path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env.local: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// applyEnvOverrides sets every field tagged `env:"NAME"` whose variable is
// non-empty. Unparseable values are ignored.
func applyEnvOverrides(cfg any) {
	v := reflect.ValueOf(cfg)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	applyEnvToStruct(v)
}

func applyEnvToStruct(v reflect.Value) {
	if v.Kind() != reflect.Struct {
		return
	}
	t := v.Type()
	for i := range v.NumField() {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct {
			applyEnvToStruct(field)
			continue
		}
		name := t.Field(i).Tag.Get("env")
		if name == "" {
			continue
		}
		if val := os.Getenv(name); val != "" {
			setFieldFromString(field, val)
		}
	}
}

func setFieldFromString(field reflect.Value, val string) {
	switch field.Kind() {
	case reflect.String:
		field.SetString(val)
	case reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			if d, err := time.ParseDuration(val); err == nil {
				field.SetInt(int64(d))
			}
			return
		}
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			field.SetInt(i)
		}
	case reflect.Int:
		if i, err := strconv.Atoi(val); err == nil {
			field.SetInt(int64(i))
		}
	case reflect.Bool:
		if b, err := strconv.ParseBool(val); err == nil {
			field.SetBool(b)
		}
	}
}
