package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultToken is the development credential. It is public knowledge and
// must never guard a wallet holding real funds.
const DefaultToken = "dev-token"

type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Secrets SecretsConfig `mapstructure:"secrets"`
	Pricing PricingConfig `mapstructure:"pricing"`
	Risk    RiskConfig    `mapstructure:"risk"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

type APIConfig struct {
	Host           string  `mapstructure:"host"`
	Port           string  `mapstructure:"port"`
	Token          string  `mapstructure:"token"`
	RequireToken   bool    `mapstructure:"require_token"` // refuse to start on DefaultToken
	ReadOnly       bool    `mapstructure:"read_only"`
	RateLimitQPS   float64 `mapstructure:"rate_limit_qps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type LedgerConfig struct {
	URL               string `mapstructure:"url"`
	DialTimeoutMs     int    `mapstructure:"dial_timeout_ms"`
	RequestTimeoutMs  int    `mapstructure:"request_timeout_ms"`
	FinalityTimeoutMs int    `mapstructure:"finality_timeout_ms"`
	PollIntervalMs    int    `mapstructure:"poll_interval_ms"`
	LastLedgerOffset  uint32 `mapstructure:"last_ledger_offset"`
	MaxFeeDrops       uint64 `mapstructure:"max_fee_drops"`
}

type SecretsConfig struct {
	Path           string `mapstructure:"path"`
	KeyringService string `mapstructure:"keyring_service"`
}

type PricingConfig struct {
	USDPerXRP float64 `mapstructure:"usd_per_xrp"`
}

type RiskConfig struct {
	MaxPaymentDrops  uint64 `mapstructure:"max_payment_drops"` // 0 = unlimited
	MaxDailyDrops    uint64 `mapstructure:"max_daily_drops"`   // 0 = unlimited
	MaxDailyPayments int    `mapstructure:"max_daily_payments"`
}

type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	AuditListKey string `mapstructure:"audit_list_key"`
	AuditListMax int    `mapstructure:"audit_list_max"`
}

type AuditConfig struct {
	Dir string `mapstructure:"dir"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func (c LedgerConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMs) * time.Millisecond
}

func (c LedgerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

func (c LedgerConfig) FinalityTimeout() time.Duration {
	return time.Duration(c.FinalityTimeoutMs) * time.Millisecond
}

func (c LedgerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// PayTimeout bounds one payment end to end: the dial, four request round
// trips (account_info, fee, ledger_current, submit) and the finality wait.
func (c LedgerConfig) PayTimeout() time.Duration {
	return c.DialTimeout() + 4*c.RequestTimeout() + c.FinalityTimeout()
}

// Addr is the listen address for the gateway.
func (c APIConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// UsesDefaultToken reports whether the insecure development token is active.
func (c APIConfig) UsesDefaultToken() bool {
	return c.Token == DefaultToken
}

// Load reads config.yaml (if present) and WALLET_* environment variables,
// e.g. WALLET_API_PORT, WALLET_API_TOKEN, WALLET_LEDGER_URL.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.SetEnvPrefix("wallet")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	return FromViper(v)
}

// SetDefaults registers every key so AutomaticEnv can override it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.host", "127.0.0.1")
	v.SetDefault("api.port", "7373")
	v.SetDefault("api.token", DefaultToken)
	v.SetDefault("api.require_token", false)
	v.SetDefault("api.read_only", false)
	v.SetDefault("api.rate_limit_qps", 0)
	v.SetDefault("api.rate_limit_burst", 10)

	v.SetDefault("ledger.url", "wss://xrplcluster.com")
	v.SetDefault("ledger.dial_timeout_ms", 10000)
	v.SetDefault("ledger.request_timeout_ms", 15000)
	v.SetDefault("ledger.finality_timeout_ms", 60000)
	v.SetDefault("ledger.poll_interval_ms", 1000)
	v.SetDefault("ledger.last_ledger_offset", 20)
	v.SetDefault("ledger.max_fee_drops", 2000000)

	v.SetDefault("secrets.path", defaultSecretsPath())
	v.SetDefault("secrets.keyring_service", "UseXRP Wallet")

	v.SetDefault("pricing.usd_per_xrp", 1.40)

	v.SetDefault("risk.max_payment_drops", 0)
	v.SetDefault("risk.max_daily_drops", 0)
	v.SetDefault("risk.max_daily_payments", 0)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.audit_list_key", "agentwallet:audit")
	v.SetDefault("redis.audit_list_max", 10000)

	v.SetDefault("audit.dir", "./logs")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("log.level", "info")
}

func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if !isLoopback(c.API.Host) {
		return fmt.Errorf("api.host %q is not a loopback address", c.API.Host)
	}
	if strings.TrimSpace(c.API.Token) == "" {
		return fmt.Errorf("api.token must not be empty")
	}
	if c.API.RequireToken && c.API.UsesDefaultToken() {
		return fmt.Errorf("api.require_token is set but api.token is the development default")
	}
	if c.Ledger.URL == "" {
		return fmt.Errorf("ledger.url must not be empty")
	}
	if c.Ledger.FinalityTimeoutMs <= 0 {
		return fmt.Errorf("ledger.finality_timeout_ms must be positive")
	}
	if c.Secrets.Path == "" {
		return fmt.Errorf("secrets.path must not be empty")
	}
	return nil
}

// isLoopback accepts only IP literals. Names such as "localhost" resolve
// through the hosts file and may not stay on the loopback interface.
func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultSecretsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "usexrp-wallet", "secrets.json")
}
