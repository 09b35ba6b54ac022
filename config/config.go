// Package config loads ledgerd configuration from an optional config file
// (yaml, toml or json) and LEDGER_* environment variables
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kjk/ledgerstore/appendstore"
	"github.com/kjk/ledgerstore/backend"
	"github.com/kjk/ledgerstore/ledger"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix = "LEDGER"

	DefaultAddr         = "localhost:8700"
	DefaultBackend      = backend.KindJournal
	DefaultDataDir      = "data"
	DefaultCompression  = "none"
	DefaultMaxValueSize = 64 * 1024
)

type Config struct {
	// http address for "serve", base url for client commands
	Addr string `mapstructure:"addr"`
	// if set, logs are written to daily files in this directory
	LogDir  string `mapstructure:"log_dir"`
	Verbose bool   `mapstructure:"verbose"`

	// none, zstd or brotli
	Compression  string `mapstructure:"compression"`
	PrettyJSON   bool   `mapstructure:"pretty_json"`
	MaxValueSize int    `mapstructure:"max_value_size"`

	Backend backend.Config `mapstructure:"backend"`
}

// viper only picks up env variables for keys it knows about,
// so every key needs a default
var defaults = map[string]any{
	"addr":                   DefaultAddr,
	"log_dir":                "",
	"verbose":                false,
	"compression":            DefaultCompression,
	"pretty_json":            false,
	"max_value_size":         DefaultMaxValueSize,
	"backend.kind":           DefaultBackend,
	"backend.data_dir":       DefaultDataDir,
	"backend.sync_write":     false,
	"backend.minio.endpoint": "",
	"backend.minio.access":   "",
	"backend.minio.secret":   "",
	"backend.minio.bucket":   "",
	"backend.minio.region":   "",
	"backend.minio.prefix":   "",
	"backend.minio.insecure": false,
}

// Load reads config from path (can be empty) and env variables.
// Env variables override values from the file e.g. LEDGER_BACKEND_KIND=sqlite
func Load(path string) (*Config, error) {
	v := viper.NewWithOptions(
		viper.KeyDelimiter("."),
		viper.EnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")),
	)
	v.SetEnvPrefix(DefaultEnvPrefix)
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is not set")
	}
	if _, err := appendstore.ParseCompression(c.Compression); err != nil {
		return err
	}
	if c.MaxValueSize < 0 {
		return fmt.Errorf("invalid max_value_size %d", c.MaxValueSize)
	}
	return c.Backend.Validate()
}

// LedgerOptions returns options for ledger.New
func (c *Config) LedgerOptions() (*ledger.Options, error) {
	comp, err := appendstore.ParseCompression(c.Compression)
	if err != nil {
		return nil, err
	}
	return &ledger.Options{
		Compression:  comp,
		PrettyJSON:   c.PrettyJSON,
		MaxValueSize: c.MaxValueSize,
	}, nil
}

// BaseURL returns url of the server for client commands
func (c *Config) BaseURL() string {
	if strings.HasPrefix(c.Addr, "http://") || strings.HasPrefix(c.Addr, "https://") {
		return c.Addr
	}
	return "http://" + c.Addr
}
