package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultVaultMasterSecret is the development-only master secret. Production
// refuses to start with it.
const DefaultVaultMasterSecret = "ledgerbridge-dev-master-secret-do-not-use"

// Config is the decoded service configuration
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Redis         RedisConfig        `mapstructure:"redis"`
	Log           LogConfig          `mapstructure:"log"`
	HTTP          HTTPConfig         `mapstructure:"http"`
	Vault         VaultConfig        `mapstructure:"vault"`
	Queue         QueueConfig        `mapstructure:"queue"`
	Breaker       BreakerConfig      `mapstructure:"breaker"`
	Scheduler     SchedulerConfig    `mapstructure:"scheduler"`
	Telemetry     TelemetryConfig    `mapstructure:"telemetry"`
	Collaborators CollaboratorConfig `mapstructure:"collaborators"`
}

// LogConfig selects the zap level, encoder and sink
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or file path
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// IsProduction reports whether the app runs in production
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// DatabaseConfig describes the PostgreSQL connection and pool
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // in minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // in minutes
	MigrationsPath  string `mapstructure:"migrations_path"`
}

// RedisConfig holds Redis connection settings.
// When disabled the idempotency store falls back to process memory.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig tunes the HTTP server and its middleware
type HTTPConfig struct {
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes     int           `mapstructure:"max_header_bytes"`
	MaxBodySize        int64         `mapstructure:"max_body_size"`
	IdempotencyEnabled bool          `mapstructure:"idempotency_enabled"`
	IdempotencyTTL     time.Duration `mapstructure:"idempotency_ttl"`
	CORSAllowOrigins   []string      `mapstructure:"cors_allow_origins"`
	CORSAllowMethods   []string      `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders   []string      `mapstructure:"cors_allow_headers"`
	TrustedProxies     []string      `mapstructure:"trusted_proxies"`
}

// VaultConfig holds credential vault key-derivation settings
type VaultConfig struct {
	MasterSecret string `mapstructure:"master_secret"`
	Salt         string `mapstructure:"salt"`
	ScryptN      int    `mapstructure:"scrypt_n"`
	ScryptR      int    `mapstructure:"scrypt_r"`
	ScryptP      int    `mapstructure:"scrypt_p"`
}

// QueueConfig holds transfer queue defaults
type QueueConfig struct {
	PendingLimit            int `mapstructure:"pending_limit"`
	ApprovedLimit           int `mapstructure:"approved_limit"`
	ReviewMinutesPerEntry   int `mapstructure:"review_minutes_per_entry"`
	TransferSecondsPerEntry int `mapstructure:"transfer_seconds_per_entry"`
	CleanupRetentionDays    int `mapstructure:"cleanup_retention_days"`
}

// BreakerConfig holds the defaults for new circuit breakers
type BreakerConfig struct {
	Threshold  int           `mapstructure:"threshold"`
	ResetAfter time.Duration `mapstructure:"reset_after"`
}

// SchedulerConfig holds the transfer sweep scheduler settings
type SchedulerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	SweepTimeout    time.Duration `mapstructure:"sweep_timeout"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// TelemetryConfig controls OTLP export of traces and logs. Insecure and
// DBLogFullSQL are meant for development collectors only.
type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"` // host:port of the OTLP gRPC receiver
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	LogsEnabled       bool          `mapstructure:"logs_enabled"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"`
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

// CollaboratorConfig points at the external change-detection, entity-data
// and platform services. An empty URL disables the collaborator.
type CollaboratorConfig struct {
	ChangeDetectionURL string        `mapstructure:"change_detection_url"`
	EntityDataURL      string        `mapstructure:"entity_data_url"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	ProbeTimeout       time.Duration `mapstructure:"probe_timeout"`
}

// Load reads config.toml (if present) and LEDGERBRIDGE_* environment
// variables over the built-in defaults. Environment wins over the file,
// e.g. LEDGERBRIDGE_DATABASE_PASSWORD overrides database.password.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	for _, dir := range []string{".", "./backend", "/app"} {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("LEDGERBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key. Unmarshal only sees environment
// overrides for keys viper already knows, so keys without a meaningful
// default are registered with their zero value.
func setDefaults(v *viper.Viper) {
	defaults := map[string]any{
		"app.name": "ledgerbridge",
		"app.env":  "development",
		"app.port": "8080",

		"database.host":               "localhost",
		"database.port":               5432,
		"database.user":               "postgres",
		"database.password":           "",
		"database.dbname":             "ledgerbridge",
		"database.sslmode":            "disable",
		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  60,
		"database.conn_max_idle_time": 30,
		"database.migrations_path":    "migrations",

		"redis.enabled":  false,
		"redis.host":     "localhost",
		"redis.port":     6379,
		"redis.password": "",
		"redis.db":       0,

		"log.level":  "info",
		"log.format": "console",
		"log.output": "stdout",

		"http.read_timeout":        15 * time.Second,
		"http.write_timeout":       15 * time.Second,
		"http.idle_timeout":        time.Minute,
		"http.shutdown_timeout":    30 * time.Second,
		"http.max_header_bytes":    1 << 20,
		"http.max_body_size":       2 << 20,
		"http.idempotency_enabled": true,
		"http.idempotency_ttl":     24 * time.Hour,
		// no wildcard fallback: an empty list allows no cross-origin requests
		"http.cors_allow_origins": []string{},
		"http.cors_allow_methods": []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		"http.cors_allow_headers": []string{"Content-Type", "X-Request-ID", "X-Tenant-ID", "X-User-ID", "Idempotency-Key"},
		"http.trusted_proxies":    []string{},

		"vault.master_secret": DefaultVaultMasterSecret,
		"vault.salt":          "ledgerbridge-vault",
		"vault.scrypt_n":      32768,
		"vault.scrypt_r":      8,
		"vault.scrypt_p":      1,

		"queue.pending_limit":              50,
		"queue.approved_limit":             50,
		"queue.review_minutes_per_entry":   2,
		"queue.transfer_seconds_per_entry": 30,
		"queue.cleanup_retention_days":     30,

		"breaker.threshold":   5,
		"breaker.reset_after": time.Minute,

		"scheduler.enabled":          false,
		"scheduler.sweep_interval":   5 * time.Minute,
		"scheduler.sweep_timeout":    10 * time.Minute,
		"scheduler.cleanup_interval": 24 * time.Hour,

		"telemetry.enabled":                 false,
		"telemetry.collector_endpoint":      "localhost:4317",
		"telemetry.sampling_ratio":          1.0,
		"telemetry.service_name":            "ledgerbridge",
		"telemetry.insecure":                false,
		"telemetry.logs_enabled":            false,
		"telemetry.db_trace_enabled":        false,
		"telemetry.db_log_full_sql":         false,
		"telemetry.db_slow_query_threshold": 200 * time.Millisecond,

		"collaborators.change_detection_url": "",
		"collaborators.entity_data_url":      "",
		"collaborators.request_timeout":      30 * time.Second,
		"collaborators.probe_timeout":        10 * time.Second,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Breaker.Threshold < 1 {
		return fmt.Errorf("breaker.threshold must be at least 1")
	}
	if c.Breaker.ResetAfter < 0 {
		return fmt.Errorf("breaker.reset_after cannot be negative")
	}
	if c.Queue.PendingLimit < 0 || c.Queue.ApprovedLimit < 0 {
		return fmt.Errorf("queue limits cannot be negative")
	}
	if c.Queue.CleanupRetentionDays < 1 {
		return fmt.Errorf("queue.cleanup_retention_days must be at least 1")
	}
	if c.Scheduler.Enabled && c.Scheduler.SweepInterval < time.Second {
		return fmt.Errorf("scheduler.sweep_interval must be at least 1s")
	}

	if c.App.IsProduction() {
		if c.Vault.MasterSecret == DefaultVaultMasterSecret {
			return fmt.Errorf("vault.master_secret must be set in production")
		}
		if len(c.Vault.MasterSecret) < 32 {
			return fmt.Errorf("vault.master_secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if len(c.HTTP.CORSAllowOrigins) == 0 {
			return fmt.Errorf("http.cors_allow_origins must be set explicitly in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
