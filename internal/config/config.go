package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"fastpay-ledger/internal/domain/loan"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	ModeRemote = "remote"
	ModeLocal  = "local"

	KVMemory = "memory"
	KVRedis  = "redis"
)

type LoanConfig struct {
	MinAmount    decimal.Decimal `yaml:"min_amount"`
	MaxAmount    decimal.Decimal `yaml:"max_amount"`
	MaxActive    int             `yaml:"max_active"`
	AnnualRate   decimal.Decimal `yaml:"annual_rate"`
	DaysPerMonth int             `yaml:"days_per_month"`
}

type Config struct {
	AppPort string `yaml:"app_port"`
	// Mode selects the ledger store: remote (row store) or local (KV snapshot).
	Mode string `yaml:"mode"`

	DBDriver   string `yaml:"db_driver"`
	SQLitePath string `yaml:"sqlite_path"`
	MySQLHost  string `yaml:"mysql_host"`
	MySQLPort  string `yaml:"mysql_port"`
	MySQLDB    string `yaml:"mysql_db"`
	MySQLUser  string `yaml:"mysql_user"`
	MySQLPass  string `yaml:"mysql_pass"`

	// RedisAddr empty disables every Redis-backed component.
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`

	KVBackend           string          `yaml:"kv_backend"`
	KVKey               string          `yaml:"kv_key"`
	KeyPrefix           string          `yaml:"key_prefix"`
	GuestUserID         string          `yaml:"guest_user_id"`
	GuestOpeningBalance decimal.Decimal `yaml:"guest_opening_balance"`
	GuestLatencyMs      int             `yaml:"guest_latency_ms"`

	IdempTTLSecs int `yaml:"idempotency_ttl_seconds"`

	LogLevel       string `yaml:"log_level"`
	LogDevelopment bool   `yaml:"log_development"`

	RatesAPIKey      string             `yaml:"rates_api_key"`
	RatesPrimaryURL  string             `yaml:"rates_primary_url"`
	RatesFallbackURL string             `yaml:"rates_fallback_url"`
	RatesBackupURL   string             `yaml:"rates_backup_url"`
	RatesTTLSecs     int                `yaml:"rates_ttl_seconds"`
	FallbackRates    map[string]float64 `yaml:"fallback_rates"`

	Loan LoanConfig `yaml:"loan"`
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func defaults() *Config {
	p := loan.DefaultPolicy()
	return &Config{
		AppPort:             "8080",
		Mode:                ModeRemote,
		DBDriver:            "mysql",
		SQLitePath:          "fastpay.db",
		MySQLHost:           "mysql",
		MySQLPort:           "3306",
		MySQLDB:             "fastpay",
		MySQLUser:           "fastpay",
		MySQLPass:           "fastpay",
		RedisAddr:           "redis:6379",
		KVBackend:           KVMemory,
		KVKey:               "guestAccount",
		KeyPrefix:           "fastpay:",
		GuestUserID:         "guest",
		GuestOpeningBalance: decimal.NewFromInt(1000),
		IdempTTLSecs:        300,
		LogLevel:            "info",
		RatesPrimaryURL:     "https://v6.exchangerate-api.com/v6",
		RatesFallbackURL:    "https://api.exchangerate.host/latest",
		RatesBackupURL:      "https://api.exchangerate-api.com/v4/latest",
		RatesTTLSecs:        3600,
		Loan: LoanConfig{
			MinAmount:    p.MinAmount,
			MaxAmount:    p.MaxAmount,
			MaxActive:    p.MaxActive,
			AnnualRate:   p.AnnualRate,
			DaysPerMonth: p.DaysPerMonth,
		},
	}
}

// Load starts from defaults, applies the YAML file named by CONFIG_FILE when
// set, then environment variables.
func Load() (*Config, error) {
	c := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, c); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	c.AppPort = getenv("APP_PORT", c.AppPort)
	c.Mode = getenv("LEDGER_MODE", c.Mode)
	c.DBDriver = getenv("DB_DRIVER", c.DBDriver)
	c.SQLitePath = getenv("SQLITE_PATH", c.SQLitePath)
	c.MySQLHost = getenv("MYSQL_HOST", c.MySQLHost)
	c.MySQLPort = getenv("MYSQL_PORT", c.MySQLPort)
	c.MySQLDB = getenv("MYSQL_DB", c.MySQLDB)
	c.MySQLUser = getenv("MYSQL_USER", c.MySQLUser)
	c.MySQLPass = getenv("MYSQL_PASS", c.MySQLPass)
	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.RedisDB = getenvInt("REDIS_DB", c.RedisDB)
	c.KVBackend = getenv("KV_BACKEND", c.KVBackend)
	c.KVKey = getenv("KV_KEY", c.KVKey)
	c.KeyPrefix = getenv("KEY_PREFIX", c.KeyPrefix)
	c.GuestUserID = getenv("GUEST_USER_ID", c.GuestUserID)
	c.GuestLatencyMs = getenvInt("GUEST_LATENCY_MS", c.GuestLatencyMs)
	c.IdempTTLSecs = getenvInt("IDEMPOTENCY_TTL_SECONDS", c.IdempTTLSecs)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.RatesAPIKey = getenv("RATES_API_KEY", c.RatesAPIKey)
	c.RatesTTLSecs = getenvInt("RATES_TTL_SECONDS", c.RatesTTLSecs)
	if v := os.Getenv("LOG_DEVELOPMENT"); v != "" {
		c.LogDevelopment, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("GUEST_OPENING_BALANCE"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid GUEST_OPENING_BALANCE %q: %w", v, err)
		}
		c.GuestOpeningBalance = d
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	switch c.Mode {
	case ModeRemote:
		if err := c.validateDB(); err != nil {
			return err
		}
	case ModeLocal:
		switch c.KVBackend {
		case KVMemory:
		case KVRedis:
			if c.RedisAddr == "" {
				return errors.New("KV_BACKEND=redis needs REDIS_ADDR")
			}
		default:
			return fmt.Errorf("unknown KV_BACKEND %q", c.KVBackend)
		}
		if c.GuestUserID == "" {
			return errors.New("missing GUEST_USER_ID")
		}
		if c.GuestOpeningBalance.IsNegative() {
			return errors.New("GUEST_OPENING_BALANCE cannot be negative")
		}
	default:
		return fmt.Errorf("unknown LEDGER_MODE %q", c.Mode)
	}

	l := c.Loan
	if !l.MinAmount.IsPositive() || l.MaxAmount.LessThan(l.MinAmount) {
		return errors.New("loan amount bounds must satisfy 0 < min <= max")
	}
	if l.MaxActive < 1 {
		return errors.New("loan max_active must be at least 1")
	}
	if l.AnnualRate.IsNegative() {
		return errors.New("loan annual_rate cannot be negative")
	}
	return nil
}

func (c *Config) validateDB() error {
	switch c.DBDriver {
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
		return nil
	case "mysql":
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
		return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
	}
	if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
		return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

// DSN is the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return c.SQLitePath
	}
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}

func (c *Config) Policy() loan.Policy {
	return loan.Policy{
		MinAmount:    c.Loan.MinAmount,
		MaxAmount:    c.Loan.MaxAmount,
		MaxActive:    c.Loan.MaxActive,
		AnnualRate:   c.Loan.AnnualRate,
		DaysPerMonth: c.Loan.DaysPerMonth,
	}
}
