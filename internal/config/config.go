package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/seojin/mailflow/internal/provider"
	"github.com/seojin/mailflow/internal/queue"
	"github.com/seojin/mailflow/internal/workflow"
)

// Config holds all application configuration.
type Config struct {
	API      APIConfig       `mapstructure:"api"`
	Database DatabaseConfig  `mapstructure:"database"`
	Queue    queue.Config    `mapstructure:"queue"`
	Workflow workflow.Policy `mapstructure:"workflow"`
	Webhook  WebhookConfig   `mapstructure:"webhook"`
	Provider provider.Config `mapstructure:"provider"`
	Logging  LoggingConfig   `mapstructure:"logging"`
}

// APIConfig holds REST API server configuration.
type APIConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	PoolMin        int32         `mapstructure:"pool_min"`
	PoolMax        int32         `mapstructure:"pool_max"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// WebhookConfig holds inbound webhook verification configuration.
// Secrets lists the shared HMAC secrets accepted for signature
// verification; more than one entry allows zero-downtime rotation.
type WebhookConfig struct {
	Secrets         []string `mapstructure:"secrets"`
	SignatureHeader string   `mapstructure:"signature_header"`
	WebhookIDHeader string   `mapstructure:"webhook_id_header"`
	TenantHeader    string   `mapstructure:"tenant_header"`
	FallbackTenant  string   `mapstructure:"fallback_tenant"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Output    string `mapstructure:"output"`
	FilePath  string `mapstructure:"file_path"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	MaxFiles  int    `mapstructure:"max_files"`
	CWGroup   string `mapstructure:"cw_group"`
	CWStream  string `mapstructure:"cw_stream"`
	CWRegion  string `mapstructure:"cw_region"`
}

// Load reads configuration from the given config directory path.
// It looks for a file named "config.yaml" in that directory.
// Environment variables with prefix MAILFLOW_ override file values.
// For example, MAILFLOW_DATABASE_URL overrides database.url.
//
// A missing config file is not an error; defaults plus environment
// variables are enough to run.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.SetEnvPrefix("MAILFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", 15*time.Second)
	v.SetDefault("api.write_timeout", 15*time.Second)

	v.SetDefault("database.pool_min", 2)
	v.SetDefault("database.pool_max", 10)
	v.SetDefault("database.connect_timeout", 10*time.Second)

	qd := queue.DefaultConfig()
	v.SetDefault("queue.type", qd.Type)
	v.SetDefault("queue.redis_addr", qd.RedisAddr)
	v.SetDefault("queue.worker_count", qd.WorkerCount)
	v.SetDefault("queue.block_timeout", qd.BlockTimeout)
	v.SetDefault("queue.process_timeout", qd.ProcessTimeout)
	v.SetDefault("queue.shutdown_timeout", qd.ShutdownTimeout)
	v.SetDefault("queue.max_retries", qd.MaxRetries)

	pd := workflow.DefaultPolicy()
	v.SetDefault("workflow.max_attempts", pd.MaxAttempts)
	v.SetDefault("workflow.retry_interval", pd.RetryInterval)
	v.SetDefault("workflow.activity_timeout", pd.ActivityTimeout)
	v.SetDefault("workflow.heartbeat_interval", pd.HeartbeatInterval)
	v.SetDefault("workflow.approval_timeout", pd.ApprovalTimeout)

	v.SetDefault("webhook.signature_header", "Webhook-Signature")
	v.SetDefault("webhook.webhook_id_header", "Webhook-Id")
	v.SetDefault("webhook.tenant_header", "X-Tenant-Id")
	v.SetDefault("webhook.fallback_tenant", "default")

	v.SetDefault("provider.type", "stdout")
	v.SetDefault("provider.timeout", 30*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output", "stdout")
}
