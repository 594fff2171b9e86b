package config

import (
	"flag"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds the runtime configuration of the service.
// Values come from command line flags and are overridden by environment
// variables; a local .env file is loaded first when present.
type Config struct {
	ServerAddress   string `env:"SERVER_ADDRESS" envDefault:"localhost:8080"`
	BaseURL         string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	StorageType     string `env:"STORAGE_TYPE" envDefault:"memory"`
	FileStoragePath string `env:"FILE_STORAGE_PATH" envDefault:"links.jsonl"`
	DatabaseDSN     string `env:"DATABASE_DSN"`
	SQLitePath      string `env:"SQLITE_PATH" envDefault:"links.db"`
	SecretKey       string `env:"SECRET_KEY" envDefault:"supersecretkey"`
	TrustedSubnet   string `env:"TRUSTED_SUBNET"`
	EnableHTTPS     bool   `env:"ENABLE_HTTPS"`
}

// GetConfig parses flags and environment variables and returns the
// resulting configuration. Environment variables win over flags.
func GetConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{}

	flag.StringVar(&cfg.ServerAddress, "a", "localhost:8080", "server listen address")
	flag.StringVar(&cfg.BaseURL, "b", "http://localhost:8080", "base URL for produced short links")
	flag.StringVar(&cfg.StorageType, "s", "memory", "storage backend: memory, file, sqlite or postgres")
	flag.StringVar(&cfg.FileStoragePath, "f", "links.jsonl", "journal path for the file backend")
	flag.StringVar(&cfg.DatabaseDSN, "d", "", "postgres DSN")
	flag.StringVar(&cfg.SQLitePath, "q", "links.db", "database path for the sqlite backend")
	flag.StringVar(&cfg.TrustedSubnet, "t", "", "CIDR allowed to read internal stats")
	flag.BoolVar(&cfg.EnableHTTPS, "https", false, "serve TLS with autocert")
	flag.Parse()

	if err := env.Parse(cfg); err != nil {
		panic("cannot parse config from environment: " + err.Error())
	}

	return cfg
}
