package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "CHAINSCAPE"

type EthereumConfig struct {
	RPCURL string `mapstructure:"rpc_url"`
	// ChainID, when set, must match what the node reports.
	ChainID uint64 `mapstructure:"chain_id"`
}

type ExplorerConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type BatchConfig struct {
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
}

type RemoteConfig struct {
	MaxInFlight int64 `mapstructure:"max_in_flight"`
}

type ConfirmConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type WalletsConfig struct {
	CSVPath string `mapstructure:"csv_path"`
}

type DisperseConfig struct {
	Contract string `mapstructure:"contract"`
}

// Config holds everything the chainscape command needs.
type Config struct {
	Debug     bool           `mapstructure:"debug"`
	SentryDSN string         `mapstructure:"sentry_dsn"`
	Ethereum  EthereumConfig `mapstructure:"ethereum"`
	Explorer  ExplorerConfig `mapstructure:"explorer"`
	Batch     BatchConfig    `mapstructure:"batch"`
	Remote    RemoteConfig   `mapstructure:"remote"`
	Confirm   ConfirmConfig  `mapstructure:"confirm"`
	Wallets   WalletsConfig  `mapstructure:"wallets"`
	Disperse  DisperseConfig `mapstructure:"disperse"`
}

var keys = []string{
	"debug",
	"sentry_dsn",
	"ethereum.rpc_url",
	"ethereum.chain_id",
	"explorer.base_url",
	"explorer.api_key",
	"explorer.requests_per_second",
	"explorer.timeout",
	"batch.max_concurrency",
	"batch.retry_delay",
	"batch.max_attempts",
	"remote.max_in_flight",
	"confirm.poll_interval",
	"confirm.timeout",
	"wallets.csv_path",
	"disperse.contract",
}

// Load reads configFile (or config.yaml from . or config/ when empty), the
// .env files under envPath and CHAINSCAPE_* environment variables, in
// increasing order of precedence. A missing config file is not an error.
func Load(configFile string, envPath string) (*Config, error) {
	v := configureViper(configFile, envPath)

	v.SetDefault("debug", false)
	v.SetDefault("explorer.base_url", "https://api.etherscan.io/api")
	v.SetDefault("explorer.requests_per_second", 5)
	v.SetDefault("explorer.timeout", "10s")
	v.SetDefault("batch.max_concurrency", 0)
	v.SetDefault("batch.retry_delay", "1s")
	v.SetDefault("batch.max_attempts", 0)
	v.SetDefault("remote.max_in_flight", 0)
	v.SetDefault("confirm.poll_interval", "1s")
	v.SetDefault("confirm.timeout", "0s")
	v.SetDefault("wallets.csv_path", "wallets.csv")
	v.SetDefault("disperse.contract", "0xD152f549545093347A162Dce210e7293f1452150")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func configureViper(configFile string, envPath string) *viper.Viper {
	v := viper.New()
	loadEnv(envPath)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// nested keys are only unmarshalled from env when bound explicitly
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
	return v
}

// loadEnv applies .env then .env.local; later files override earlier ones.
func loadEnv(envPath string) {
	if envPath == "" {
		envPath = "."
	}
	for _, name := range []string{".env", ".env.local"} {
		_ = godotenv.Overload(filepath.Join(envPath, name))
	}
}
