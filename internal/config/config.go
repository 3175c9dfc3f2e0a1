// Package config loads runtime configuration from an optional YAML file
// with environment variable overrides. Credentials only ever come from the
// file or the environment; nothing is hardcoded.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds shared runtime configuration for the resolver and its tools.
type Config struct {
	CarrierBaseURL string `yaml:"carrier_base_url"`
	CarrierAccount string `yaml:"carrier_account"`
	CarrierPass    string `yaml:"carrier_password"`
	EshopID        string `yaml:"eshop_id"`

	LedgerPath     string `yaml:"ledger_path"`
	FailureLogPath string `yaml:"failure_log_path"`
	PostgresDSN    string `yaml:"postgres_dsn"` // optional, replaces the file ledger

	ExceptionsDir string `yaml:"exceptions_dir"`

	RedisAddr     string `yaml:"redis_addr"` // optional, enables the shared intake source
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	IntakeKey     string `yaml:"intake_key"`

	OpsAddr string `yaml:"ops_addr"`
	DryRun  bool   `yaml:"dry_run"`

	S3Bucket        string `yaml:"s3_bucket"` // optional, enables archiving
	S3Region        string `yaml:"s3_region"`
	S3Endpoint      string `yaml:"s3_endpoint"`
	S3PathStyle     bool   `yaml:"s3_path_style"`
	S3Prefix        string `yaml:"s3_prefix"`
	ArchiveSchedule string `yaml:"archive_schedule"`

	// Duration fields are parsed from the *_Raw strings below.
	CarrierTimeout time.Duration `yaml:"-"`
	PassInterval   time.Duration `yaml:"-"`
	IdleInterval   time.Duration `yaml:"-"`
	ErrorInterval  time.Duration `yaml:"-"`
	RetryDelay     time.Duration `yaml:"-"`

	CarrierTimeoutRaw string `yaml:"carrier_timeout"`
	PassIntervalRaw   string `yaml:"pass_interval"`
	IdleIntervalRaw   string `yaml:"idle_interval"`
	ErrorIntervalRaw  string `yaml:"error_interval"`
	RetryDelayRaw     string `yaml:"retry_delay"`

	RetryAttempts int `yaml:"retry_attempts"`
	BatchSize     int `yaml:"batch_size"`
}

// Load reads the YAML file at path (CONFIG_PATH wins over the argument,
// a missing file is fine), applies environment overrides and defaults,
// then validates.
func Load(path string) (Config, error) {
	var cfg Config

	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		path = envPath
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	envOverride(&cfg.CarrierBaseURL, "CARRIER_BASE_URL")
	envOverride(&cfg.CarrierAccount, "CARRIER_ACCOUNT")
	envOverride(&cfg.CarrierPass, "CARRIER_PASSWORD")
	envOverride(&cfg.EshopID, "ESHOP_ID")
	envOverride(&cfg.LedgerPath, "LEDGER_PATH")
	envOverride(&cfg.FailureLogPath, "FAILURE_LOG_PATH")
	envOverride(&cfg.PostgresDSN, "POSTGRES_DSN")
	envOverride(&cfg.ExceptionsDir, "EXCEPTIONS_DIR")
	envOverride(&cfg.RedisAddr, "REDIS_ADDR")
	envOverride(&cfg.RedisPassword, "REDIS_PASSWORD")
	envOverrideInt(&cfg.RedisDB, "REDIS_DB")
	envOverride(&cfg.IntakeKey, "INTAKE_KEY")
	envOverride(&cfg.OpsAddr, "OPS_ADDR")
	envOverrideBool(&cfg.DryRun, "DRY_RUN")
	envOverride(&cfg.S3Bucket, "S3_BUCKET")
	envOverride(&cfg.S3Region, "S3_REGION")
	envOverride(&cfg.S3Endpoint, "S3_ENDPOINT")
	envOverrideBool(&cfg.S3PathStyle, "S3_PATH_STYLE")
	envOverride(&cfg.S3Prefix, "S3_PREFIX")
	envOverride(&cfg.ArchiveSchedule, "ARCHIVE_SCHEDULE")
	envOverride(&cfg.CarrierTimeoutRaw, "CARRIER_TIMEOUT")
	envOverride(&cfg.PassIntervalRaw, "PASS_INTERVAL")
	envOverride(&cfg.IdleIntervalRaw, "IDLE_INTERVAL")
	envOverride(&cfg.ErrorIntervalRaw, "ERROR_INTERVAL")
	envOverride(&cfg.RetryDelayRaw, "RETRY_DELAY")
	envOverrideInt(&cfg.RetryAttempts, "RETRY_ATTEMPTS")
	envOverrideInt(&cfg.BatchSize, "BATCH_SIZE")

	if cfg.LedgerPath == "" {
		cfg.LedgerPath = "./data/processed_tickets.json"
	}
	if cfg.FailureLogPath == "" {
		cfg.FailureLogPath = "./data/ledger_failures.log"
	}
	if cfg.ExceptionsDir == "" {
		cfg.ExceptionsDir = "./data/exceptions"
	}
	if cfg.IntakeKey == "" {
		cfg.IntakeKey = "tickets:intake"
	}
	if cfg.OpsAddr == "" {
		cfg.OpsAddr = ":8080"
	}
	if cfg.S3Region == "" {
		cfg.S3Region = "ap-northeast-1"
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 50
	}

	var err error
	if cfg.CarrierTimeout, err = parseDuration(cfg.CarrierTimeoutRaw, "carrier_timeout", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.PassInterval, err = parseDuration(cfg.PassIntervalRaw, "pass_interval", 5*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.IdleInterval, err = parseDuration(cfg.IdleIntervalRaw, "idle_interval", 10*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.ErrorInterval, err = parseDuration(cfg.ErrorIntervalRaw, "error_interval", time.Minute); err != nil {
		return cfg, err
	}
	if cfg.RetryDelay, err = parseDuration(cfg.RetryDelayRaw, "retry_delay", time.Second); err != nil {
		return cfg, err
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	required := map[string]string{
		"carrier_base_url": c.CarrierBaseURL,
		"carrier_account":  c.CarrierAccount,
		"carrier_password": c.CarrierPass,
		"eshop_id":         c.EshopID,
	}
	for _, name := range []string{"carrier_base_url", "carrier_account", "carrier_password", "eshop_id"} {
		if required[name] == "" {
			return fmt.Errorf("required config %q is not set (via config file or env)", name)
		}
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be >= 1, got %d", c.RetryAttempts)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be >= 1, got %d", c.BatchSize)
	}
	if c.S3Bucket != "" && c.ArchiveSchedule == "" {
		return fmt.Errorf("s3_bucket is set but archive_schedule is empty")
	}
	return nil
}

func parseDuration(raw, name string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", name, raw)
	}
	return d, nil
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err == nil {
			*field = parsed
		}
	}
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}
