package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config aggregates the settings of one onboarding run.
type Config struct {
	Bank    BankConfig
	Rates   RatesConfig
	Loan    LoanConfig
	Run     RunConfig
	Report  ReportConfig
	Metrics MetricsConfig
	Logging LoggingConfig
}

// BankConfig points at the banking web application under automation.
type BankConfig struct {
	BaseURL     string
	HTTPTimeout time.Duration
}

type RatesConfig struct {
	URL      string
	Timeout  time.Duration
	Fallback decimal.Decimal
}

type LoanConfig struct {
	Principal        decimal.Decimal
	DownPaymentRatio decimal.Decimal
	DefaultDeposit   decimal.Decimal
}

type RunConfig struct {
	Workers       int
	RecordTimeout time.Duration
}

type ReportConfig struct {
	InputPath  string
	OutputPath string
	Redact     bool
}

type MetricsConfig struct {
	File string
	Addr string
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level  string
	Format string // text|json
}

const (
	defaultBankBaseURL    = "https://parabank.parasoft.com/parabank/"
	defaultBankTimeout    = 10 * time.Second
	defaultRateURL        = "https://open.er-api.com/v6/latest/USD"
	defaultRateTimeout    = 10 * time.Second
	defaultRateFallback   = "0.86"
	defaultLoanPrincipal  = "10000"
	defaultDownPayment    = "0.20"
	defaultDeposit        = "100"
	defaultWorkers        = 1
	defaultInputPath      = "ParaBank users.csv"
	defaultOutputPath     = "Parabank_Report.xlsx"
	defaultLoggingLevel   = "info"
	defaultLoggingFormat  = "text"
	defaultDotEnvFilename = ".env"
)

// Load reads configuration from the environment, after merging an optional
// .env file, applying defaults.
func Load() (Config, error) {
	if err := godotenv.Load(defaultDotEnvFilename); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", defaultDotEnvFilename, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		Bank: BankConfig{
			BaseURL: valueOrDefault("BANK_BASE_URL", defaultBankBaseURL),
		},
		Rates: RatesConfig{
			URL: valueOrDefault("RATE_URL", defaultRateURL),
		},
		Report: ReportConfig{
			InputPath:  valueOrDefault("INPUT_PATH", defaultInputPath),
			OutputPath: valueOrDefault("OUTPUT_PATH", defaultOutputPath),
			Redact:     parseBoolWithDefault("REPORT_REDACT", true),
		},
		Metrics: MetricsConfig{
			File: os.Getenv("METRICS_FILE"),
			Addr: os.Getenv("METRICS_ADDR"),
		},
		Logging: LoggingConfig{
			Level:  valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format: valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
		},
	}

	if _, err := url.ParseRequestURI(cfg.Bank.BaseURL); err != nil {
		return Config{}, fmt.Errorf("invalid BANK_BASE_URL: %w", err)
	}
	if _, err := url.ParseRequestURI(cfg.Rates.URL); err != nil {
		return Config{}, fmt.Errorf("invalid RATE_URL: %w", err)
	}

	var err error
	if cfg.Bank.HTTPTimeout, err = parseDuration("BANK_HTTP_TIMEOUT", defaultBankTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Rates.Timeout, err = parseDuration("RATE_TIMEOUT", defaultRateTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Run.RecordTimeout, err = parseDuration("RECORD_TIMEOUT", 0); err != nil {
		return Config{}, err
	}
	if cfg.Rates.Fallback, err = parsePositiveDecimal("RATE_FALLBACK", defaultRateFallback); err != nil {
		return Config{}, err
	}
	if cfg.Loan.Principal, err = parsePositiveDecimal("LOAN_PRINCIPAL", defaultLoanPrincipal); err != nil {
		return Config{}, err
	}
	if cfg.Loan.DownPaymentRatio, err = parsePositiveDecimal("DOWN_PAYMENT_RATIO", defaultDownPayment); err != nil {
		return Config{}, err
	}
	if cfg.Loan.DefaultDeposit, err = parsePositiveDecimal("DEFAULT_DEPOSIT", defaultDeposit); err != nil {
		return Config{}, err
	}
	if cfg.Run.Workers, err = parseWorkers("WORKERS", defaultWorkers); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: negative duration %s", key, d)
	}
	return d, nil
}

func parsePositiveDecimal(key, fallback string) (decimal.Decimal, error) {
	raw := valueOrDefault(key, fallback)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s must be positive, got %s", key, raw)
	}
	return d, nil
}

func parseWorkers(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if n <= 0 {
			return 0, fmt.Errorf("%s must be at least 1, got %d", key, n)
		}
		return n, nil
	}
	return fallback, nil
}
