package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the service configuration. Every key has an entry in defaults so
// that environment variables bind even when no config file mentions it.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Event     EventConfig     `mapstructure:"event"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug|info|warn|error
	Format string `mapstructure:"format"` // json|console
	Output string `mapstructure:"output"` // stdout, stderr or a file
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
}

// RedisConfig holds Redis connection settings. When disabled the service
// runs with in-process locks and idempotency keys, which is only correct for
// a single instance.
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// EventConfig holds outbox and consumer settings
type EventConfig struct {
	ProcessorEnabled    bool          `mapstructure:"processor_enabled"`
	BatchSize           int           `mapstructure:"batch_size"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	MaxRetries          int           `mapstructure:"max_retries"`
	BaseBackoff         time.Duration `mapstructure:"base_backoff"`
	CleanupEnabled      bool          `mapstructure:"cleanup_enabled"`
	CleanupRetention    time.Duration `mapstructure:"cleanup_retention"`
	IdempotencyTTL      time.Duration `mapstructure:"idempotency_ttl"`
	IdempotencyClaimTTL time.Duration `mapstructure:"idempotency_claim_ttl"`
}

type HTTPConfig struct {
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
	MaxBodySize    int64         `mapstructure:"max_body_size"`
	MaxUploadSize  int64         `mapstructure:"max_upload_size"`
	TrustedProxies []string      `mapstructure:"trusted_proxies"`
	HSTSMaxAge     time.Duration `mapstructure:"hsts_max_age"` // zero when TLS ends at the gateway
}

// WorkflowConfig holds the deployment defaults of partner settings and the
// order lock behaviour
type WorkflowConfig struct {
	DefaultRevisionLimit int           `mapstructure:"default_revision_limit"`
	InvoiceTrigger       string        `mapstructure:"invoice_trigger"` // never|on_delivered|manual_only
	InvoiceStatus        string        `mapstructure:"invoice_status"`  // draft|authorised
	Currency             string        `mapstructure:"currency"`
	TransitionWait       time.Duration `mapstructure:"transition_wait"`
	LedgerWait           time.Duration `mapstructure:"ledger_wait"`
	LockTTL              time.Duration `mapstructure:"lock_ttl"`
	UploadConcurrency    int           `mapstructure:"upload_concurrency"`
}

// StorageConfig holds S3-compatible object storage settings for deliverables
type StorageConfig struct {
	Driver          string        `mapstructure:"driver"` // s3|memory
	Endpoint        string        `mapstructure:"endpoint"`
	Region          string        `mapstructure:"region"`
	Bucket          string        `mapstructure:"bucket"`
	AccessKey       string        `mapstructure:"access_key"`
	SecretKey       string        `mapstructure:"secret_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	UsePathStyle    bool          `mapstructure:"use_path_style"`
	PublicURL       string        `mapstructure:"public_url"`
	PartSize        int64         `mapstructure:"part_size"`
	CreateBucket    bool          `mapstructure:"create_bucket"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
}

// PubSubConfig holds the realtime transport settings
type PubSubConfig struct {
	Driver         string        `mapstructure:"driver"` // mqtt|redis|log
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	Broker         string        `mapstructure:"broker"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	QoS            byte          `mapstructure:"qos"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// LedgerConfig holds the external accounting ledger API settings
type LedgerConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Token      string        `mapstructure:"token"`
	TenantID   string        `mapstructure:"tenant_id"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
	RetryWait  time.Duration `mapstructure:"retry_wait"`
}

// TelemetryConfig holds OpenTelemetry export settings. Insecure disables TLS
// to the collector and is meant for local stacks.
type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"`
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	MetricsEnabled    bool          `mapstructure:"metrics_enabled"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
	LogsEnabled       bool          `mapstructure:"logs_enabled"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"`
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

// DefaultRevisionLimit is the number of revision rounds a customer without an
// override gets when nothing else is configured
const DefaultRevisionLimit = 2

// defaults lists every key Load knows. A zero here is a real default, an
// explicit 0 from a file or the environment is kept as is.
var defaults = map[string]any{
	"app.name": "editdesk-backend",
	"app.env":  "development",
	"app.port": "8080",

	"http.read_timeout":     15 * time.Second,
	"http.write_timeout":    5 * time.Minute,
	"http.idle_timeout":     time.Minute,
	"http.max_header_bytes": 1 << 20,
	"http.max_body_size":    int64(1 << 20),
	"http.max_upload_size":  int64(2 << 30),
	"http.trusted_proxies":  []string{},
	"http.hsts_max_age":     time.Duration(0),

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "editdesk",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.enabled":    false,
	"redis.host":       "localhost",
	"redis.port":       6379,
	"redis.password":   "",
	"redis.db":         0,
	"redis.key_prefix": "editdesk:",

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"event.processor_enabled":     true,
	"event.batch_size":            100,
	"event.poll_interval":         5 * time.Second,
	"event.max_retries":           5,
	"event.base_backoff":          time.Second,
	"event.cleanup_enabled":       true,
	"event.cleanup_retention":     7 * 24 * time.Hour,
	"event.idempotency_ttl":       24 * time.Hour,
	"event.idempotency_claim_ttl": 5 * time.Minute,

	"workflow.default_revision_limit": DefaultRevisionLimit,
	"workflow.invoice_trigger":        "manual_only",
	"workflow.invoice_status":         "draft",
	"workflow.currency":               "USD",
	"workflow.transition_wait":        time.Duration(0), // fail fast on a busy order
	"workflow.ledger_wait":            2 * time.Second,
	"workflow.lock_ttl":               30 * time.Second,
	"workflow.upload_concurrency":     4,

	"storage.driver":           "s3",
	"storage.endpoint":         "",
	"storage.region":           "us-east-1",
	"storage.bucket":           "editdesk-deliverables",
	"storage.access_key":       "",
	"storage.secret_key":       "",
	"storage.use_ssl":          true,
	"storage.use_path_style":   false,
	"storage.public_url":       "",
	"storage.part_size":        int64(8 << 20),
	"storage.create_bucket":    false,
	"storage.download_timeout": 10 * time.Minute,

	"pubsub.driver":          "log",
	"pubsub.topic_prefix":    "editdesk",
	"pubsub.broker":          "tcp://localhost:1883",
	"pubsub.client_id":       "editdesk-backend",
	"pubsub.username":        "",
	"pubsub.password":        "",
	"pubsub.qos":             1,
	"pubsub.connect_timeout": 10 * time.Second,

	"ledger.base_url":    "",
	"ledger.token":       "",
	"ledger.tenant_id":   "",
	"ledger.timeout":     15 * time.Second,
	"ledger.retry_count": 2,
	"ledger.retry_wait":  500 * time.Millisecond,

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "editdesk-backend",
	"telemetry.insecure":                false,
	"telemetry.metrics_enabled":         false,
	"telemetry.metrics_interval":        time.Minute,
	"telemetry.logs_enabled":            false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
}

// Load reads the configuration. Later sources win:
//
//	built-in defaults
//	config.toml in the working directory or /app
//	.env, which never overrides variables already set
//	EDITDESK_* environment variables, e.g. EDITDESK_DATABASE_PASSWORD
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	var notFound viper.ConfigFileNotFoundError
	if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	v.SetEnvPrefix("EDITDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
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

	if c.Workflow.DefaultRevisionLimit < 0 {
		return fmt.Errorf("workflow.default_revision_limit cannot be negative")
	}
	switch c.Workflow.InvoiceTrigger {
	case "never", "on_delivered", "manual_only":
	default:
		return fmt.Errorf("workflow.invoice_trigger must be never, on_delivered or manual_only, got %q", c.Workflow.InvoiceTrigger)
	}
	if c.Workflow.InvoiceStatus != "draft" && c.Workflow.InvoiceStatus != "authorised" {
		return fmt.Errorf("workflow.invoice_status must be draft or authorised, got %q", c.Workflow.InvoiceStatus)
	}
	if c.Workflow.TransitionWait < 0 || c.Workflow.LedgerWait < 0 {
		return fmt.Errorf("workflow lock waits cannot be negative")
	}
	if c.Workflow.UploadConcurrency < 1 {
		return fmt.Errorf("workflow.upload_concurrency must be at least 1")
	}

	if c.Event.MaxRetries < 1 {
		return fmt.Errorf("event.max_retries must be at least 1")
	}
	if c.Event.IdempotencyTTL < c.Event.BaseBackoff*time.Duration(1<<uint(c.Event.MaxRetries)) {
		return fmt.Errorf("event.idempotency_ttl (%s) must outlive the outbox retry window", c.Event.IdempotencyTTL)
	}
	if c.Event.IdempotencyClaimTTL <= 0 {
		return fmt.Errorf("event.idempotency_claim_ttl must be positive")
	}

	switch c.Storage.Driver {
	case "s3", "memory":
	default:
		return fmt.Errorf("storage.driver must be s3 or memory, got %q", c.Storage.Driver)
	}
	switch c.PubSub.Driver {
	case "mqtt", "redis", "log":
	default:
		return fmt.Errorf("pubsub.driver must be mqtt, redis or log, got %q", c.PubSub.Driver)
	}
	if c.PubSub.Driver == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("pubsub.driver=redis requires redis.enabled=true")
	}
	if c.PubSub.QoS > 2 {
		return fmt.Errorf("pubsub.qos must be 0, 1 or 2")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if !c.Redis.Enabled {
			return fmt.Errorf("redis.enabled must be true in production (order locks must be shared across instances)")
		}
		if c.Storage.Driver == "memory" {
			return fmt.Errorf("storage.driver cannot be 'memory' in production")
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
