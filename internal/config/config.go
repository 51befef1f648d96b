// Package config loads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every ATTESTD_* setting.
type Config struct {
	ListenAddr string `env:"ATTESTD_LISTEN_ADDR" envDefault:":8080"`

	RPCEndpoint   string        `env:"ATTESTD_RPC_ENDPOINT"`
	PrivateKey    string        `env:"ATTESTD_WALLET_PRIVATE_KEY"`
	Network       string        `env:"ATTESTD_NETWORK"        envDefault:"sepolia"`
	EASAddress    string        `env:"ATTESTD_EAS_ADDRESS"`
	SchemaUID     string        `env:"ATTESTD_SCHEMA_UID"`
	SchemaVersion string        `env:"ATTESTD_SCHEMA_VERSION" envDefault:"v1"`
	SubmitTimeout time.Duration `env:"ATTESTD_SUBMIT_TIMEOUT" envDefault:"2m"`

	StoreDriver       string `env:"ATTESTD_STORE_DRIVER"        envDefault:"sqlite"`
	StoreDSN          string `env:"ATTESTD_STORE_DSN"           envDefault:"data/attestations.db"`
	StoreCollection   string `env:"ATTESTD_STORE_COLLECTION"    envDefault:"session_attestations"`
	QueryDefaultLimit int    `env:"ATTESTD_QUERY_DEFAULT_LIMIT" envDefault:"100"`
	QueryMaxLimit     int    `env:"ATTESTD_QUERY_MAX_LIMIT"     envDefault:"500"`
	IndexQueueSize    int    `env:"ATTESTD_INDEX_QUEUE_SIZE"    envDefault:"64"`

	JWTSecret string `env:"ATTESTD_API_JWT_SECRET"`

	OTelEndpoint string `env:"ATTESTD_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"ATTESTD_OTEL_ENABLED" envDefault:"true"`
}

// ParseEnv reads the process environment into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the optional dotenv files, then the environment. Variables
// already set in the environment win over the files.
func Load(dotenvFiles ...string) (Config, error) {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("ATTESTD_LISTEN_ADDR is empty")
	}
	if c.SubmitTimeout <= 0 {
		return errors.New("ATTESTD_SUBMIT_TIMEOUT must be positive")
	}
	if c.QueryDefaultLimit <= 0 || c.QueryMaxLimit <= 0 {
		return errors.New("query limits must be positive")
	}
	if c.QueryDefaultLimit > c.QueryMaxLimit {
		return fmt.Errorf("ATTESTD_QUERY_DEFAULT_LIMIT %d exceeds ATTESTD_QUERY_MAX_LIMIT %d", c.QueryDefaultLimit, c.QueryMaxLimit)
	}
	if c.IndexQueueSize <= 0 {
		return errors.New("ATTESTD_INDEX_QUEUE_SIZE must be positive")
	}
	return nil
}

// RegistryConfigured reports whether credentials for the registry were
// provided at all. Placeholder values are rejected later, when the client
// is opened.
func (c Config) RegistryConfigured() bool {
	return strings.TrimSpace(c.RPCEndpoint) != "" && strings.TrimSpace(c.PrivateKey) != ""
}
