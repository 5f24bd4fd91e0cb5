package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// TenantPlaceholder is substituted with the tenant identifier in Tenancy.URLTemplate.
const TenantPlaceholder = "{tenant}"

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Tenancy   TenancyConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds the master database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// TenancyConfig holds settings for the per-tenant databases.
type TenancyConfig struct {
	// URLTemplate is a postgres URL containing TenantPlaceholder as the database name,
	// e.g. postgres://db:5432/{tenant}?sslmode=disable
	URLTemplate     string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	PoolNamePrefix  string

	UpdateSchemaOnStartup bool
	WarmPoolsOnStartup    bool
	WarmPoolConcurrency   int
	PoolOpenTimeout       time.Duration

	// ExemptPathPrefixes bypass tenant resolution entirely.
	ExemptPathPrefixes []string
	LookupCacheTTL     time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret                string
	AccessTokenExpiration time.Duration
	Issuer                string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	MetricsEnabled    bool    // Export pool metrics over OTLP
	LogsEnabled       bool    // Mirror zap records to the collector
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with POS_ prefix (e.g., POS_TENANCY_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper builds the configuration from an already populated viper instance.
// Environment overrides are enabled on v before values are read.
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Tenancy: TenancyConfig{
			URLTemplate:           v.GetString("tenancy.url_template"),
			User:                  v.GetString("tenancy.user"),
			Password:              v.GetString("tenancy.password"),
			MaxOpenConns:          v.GetInt("tenancy.max_open_conns"),
			MaxIdleConns:          v.GetInt("tenancy.max_idle_conns"),
			ConnMaxLifetime:       v.GetInt("tenancy.conn_max_lifetime"),
			ConnMaxIdleTime:       v.GetInt("tenancy.conn_max_idle_time"),
			PoolNamePrefix:        v.GetString("tenancy.pool_name_prefix"),
			UpdateSchemaOnStartup: v.GetBool("tenancy.update_schema_on_startup"),
			WarmPoolsOnStartup:    v.GetBool("tenancy.warm_pools_on_startup"),
			WarmPoolConcurrency:   v.GetInt("tenancy.warm_pool_concurrency"),
			PoolOpenTimeout:       v.GetDuration("tenancy.pool_open_timeout"),
			ExemptPathPrefixes:    v.GetStringSlice("tenancy.exempt_path_prefixes"),
			LookupCacheTTL:        v.GetDuration("tenancy.lookup_cache_ttl"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
			Issuer:                v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			RateLimitEnabled: v.GetBool("http.rate_limit_enabled"),
			RateLimitRPS:     v.GetFloat64("http.rate_limit_rps"),
			RateLimitBurst:   v.GetInt("http.rate_limit_burst"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "pos-backoffice"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "pos_master"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}

	// Tenant pools default to the master server with its credentials.
	if cfg.Tenancy.URLTemplate == "" {
		cfg.Tenancy.URLTemplate = fmt.Sprintf("postgres://%s:%d/%s?sslmode=%s",
			cfg.Database.Host, cfg.Database.Port, TenantPlaceholder, cfg.Database.SSLMode)
	}
	if cfg.Tenancy.User == "" {
		cfg.Tenancy.User = cfg.Database.User
		if cfg.Tenancy.Password == "" {
			cfg.Tenancy.Password = cfg.Database.Password
		}
	}
	if cfg.Tenancy.MaxOpenConns == 0 {
		cfg.Tenancy.MaxOpenConns = 10
	}
	if cfg.Tenancy.MaxIdleConns == 0 {
		cfg.Tenancy.MaxIdleConns = 2
	}
	if cfg.Tenancy.ConnMaxLifetime == 0 {
		cfg.Tenancy.ConnMaxLifetime = 30
	}
	if cfg.Tenancy.ConnMaxIdleTime == 0 {
		cfg.Tenancy.ConnMaxIdleTime = 10
	}
	if cfg.Tenancy.PoolNamePrefix == "" {
		cfg.Tenancy.PoolNamePrefix = "tenant-pool-"
	}
	if cfg.Tenancy.WarmPoolConcurrency == 0 {
		cfg.Tenancy.WarmPoolConcurrency = 4
	}
	if len(cfg.Tenancy.ExemptPathPrefixes) == 0 {
		cfg.Tenancy.ExemptPathPrefixes = []string{
			"/health",
			"/api/v1/admin",
			"/api/v1/onboarding",
			"/api/v1/system",
		}
	}
	if cfg.Tenancy.LookupCacheTTL == 0 {
		cfg.Tenancy.LookupCacheTTL = 5 * time.Minute
	}
	if cfg.Tenancy.PoolOpenTimeout == 0 {
		cfg.Tenancy.PoolOpenTimeout = 30 * time.Second
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = 15 * time.Minute
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "pos-backoffice"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// Administrative schema updates run synchronously.
		cfg.HTTP.WriteTimeout = 5 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 2 << 20 // 2MB
	}
	if cfg.HTTP.RateLimitRPS == 0 {
		cfg.HTTP.RateLimitRPS = 20
	}
	if cfg.HTTP.RateLimitBurst == 0 {
		cfg.HTTP.RateLimitBurst = 40
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
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

	if err := c.Tenancy.validate(); err != nil {
		return err
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Tenancy.Password == "" {
			return fmt.Errorf("tenancy.password is required in production")
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

func (t *TenancyConfig) validate() error {
	if !strings.Contains(t.URLTemplate, TenantPlaceholder) {
		return fmt.Errorf("tenancy.url_template must contain %s", TenantPlaceholder)
	}
	if _, err := url.Parse(strings.ReplaceAll(t.URLTemplate, TenantPlaceholder, "probe")); err != nil {
		return fmt.Errorf("tenancy.url_template is not a valid URL: %w", err)
	}
	if t.MaxOpenConns <= 0 {
		return fmt.Errorf("tenancy.max_open_conns must be positive")
	}
	if t.MaxIdleConns > t.MaxOpenConns {
		return fmt.Errorf("tenancy.max_idle_conns (%d) cannot exceed tenancy.max_open_conns (%d)",
			t.MaxIdleConns, t.MaxOpenConns)
	}
	for _, p := range t.ExemptPathPrefixes {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("tenancy.exempt_path_prefixes entry %q must start with /", p)
		}
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

// PoolName returns the observable name of a tenant's pool.
func (t *TenancyConfig) PoolName(tenantID string) string {
	return t.PoolNamePrefix + tenantID
}

// TenantDSN substitutes tenantID into the URL template and applies the shared
// tenant credentials. The pool name is sent as application_name so it shows
// up in pg_stat_activity.
func (t *TenancyConfig) TenantDSN(tenantID string) (string, error) {
	raw := strings.ReplaceAll(t.URLTemplate, TenantPlaceholder, url.PathEscape(tenantID))
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse tenant url template: %w", err)
	}
	if t.User != "" {
		u.User = url.UserPassword(t.User, t.Password)
	}
	q := u.Query()
	q.Set("application_name", t.PoolName(tenantID))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ConnMaxLifetimeDuration returns the tenant pool connection lifetime.
func (t *TenancyConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(t.ConnMaxLifetime) * time.Minute
}

// ConnMaxIdleTimeDuration returns the tenant pool idle timeout.
func (t *TenancyConfig) ConnMaxIdleTimeDuration() time.Duration {
	return time.Duration(t.ConnMaxIdleTime) * time.Minute
}
