// Package config loads service configuration from environment variables
// and an optional YAML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	HTTP         HTTPConfig       `mapstructure:"http"`
	Log          LogConfig        `mapstructure:"log"`
	Postgres     PostgresConfig   `mapstructure:"postgres"`
	ClickHouse   ClickHouseConfig `mapstructure:"clickhouse"`
	Ledger       ServiceConfig    `mapstructure:"ledger"`
	Vault        VaultConfig      `mapstructure:"vault"`
	Tokens       TokensConfig     `mapstructure:"tokens"`
	Lifecycle    LifecycleConfig  `mapstructure:"lifecycle"`
	Governance   GovernanceConfig `mapstructure:"governance"`
	AdminWallets []string         `mapstructure:"admin_wallets"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	WebhookToken    string        `mapstructure:"webhook_token"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// PostgresConfig configures the PostgreSQL connection.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ClickHouseConfig configures the ClickHouse connection.
type ClickHouseConfig struct {
	Addr     string `mapstructure:"addr"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// ServiceConfig configures one external HTTP service.
type ServiceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// VaultConfig configures the governance vault service.
type VaultConfig struct {
	ServiceConfig   `mapstructure:",squash"`
	TreasuryVaultID string `mapstructure:"treasury_vault_id"`
}

// TokensConfig configures the token service and its event feed.
type TokensConfig struct {
	ServiceConfig `mapstructure:",squash"`
	FeedURL       string `mapstructure:"feed_url"`
}

// LifecycleConfig holds lifecycle engine tunables.
type LifecycleConfig struct {
	TopHolderLimit   int     `mapstructure:"top_holder_limit"`
	MinHolderBalance float64 `mapstructure:"min_holder_balance"`
	MaxUpdateRetries int     `mapstructure:"max_update_retries"`
}

// GovernanceConfig holds governance engine and sweeper tunables.
type GovernanceConfig struct {
	MaxUpdateRetries int           `mapstructure:"max_update_retries"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	SweepWorkers     int           `mapstructure:"sweep_workers"`
}

// Load reads configuration from FRACPOOL_* environment variables and, when
// path is non-empty, a YAML file. Environment wins over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FRACPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 15*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("postgres.dsn", "postgres://localhost:5432/fracpool?sslmode=disable")
	v.SetDefault("clickhouse.addr", "localhost:9000")
	v.SetDefault("clickhouse.database", "fracpool")
	v.SetDefault("ledger.timeout", 30*time.Second)
	v.SetDefault("vault.timeout", 60*time.Second)
	v.SetDefault("tokens.timeout", 30*time.Second)
	v.SetDefault("lifecycle.top_holder_limit", 100)
	v.SetDefault("lifecycle.min_holder_balance", 1000.0)
	v.SetDefault("lifecycle.max_update_retries", 5)
	v.SetDefault("governance.max_update_retries", 5)
	v.SetDefault("governance.sweep_interval", time.Minute)
	v.SetDefault("governance.sweep_workers", 4)
}
