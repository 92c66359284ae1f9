package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendMemory     = "memory"
	BackendClickHouse = "clickhouse"
	BackendKafka      = "kafka"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		// Collect publishes aggregated error logs to kafka.logs_topic.
		Collect bool `yaml:"collect"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Moex struct {
		BaseURL        string        `yaml:"base_url"`
		FetchTimeout   time.Duration `yaml:"fetch_timeout"`
		RateLimitRPS   float64       `yaml:"rate_limit_rps"`
		RateLimitBurst int           `yaml:"rate_limit_burst"`
		Breaker        struct {
			Enabled     bool          `yaml:"enabled"`
			MaxFailures uint32        `yaml:"max_failures"`
			OpenTimeout time.Duration `yaml:"open_timeout"`
		} `yaml:"breaker"`
	} `yaml:"moex"`
	Enrich struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"enrich"`
	Backend struct {
		Type string `yaml:"type"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers       []string `yaml:"brokers"`
		HoldingsTopic string   `yaml:"holdings_topic"`
		AuditTopic    string   `yaml:"audit_topic"`
		LogsTopic     string   `yaml:"logs_topic"`
		RequiredAcks  int      `yaml:"required_acks"`
		Compression   string   `yaml:"compression"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Signals struct {
		Enabled  bool          `yaml:"enabled"`
		BaseURL  string        `yaml:"base_url"`
		Timeout  time.Duration `yaml:"timeout"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"signals"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return Parse(b)
}

// Parse decodes YAML bytes, fills defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("MOEXPULL_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("MOEXPULL_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := getenv("MOEXPULL_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("MOEX_BASE_URL"); v != "" {
		c.Moex.BaseURL = v
	}
	if v := getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Moex.BaseURL == "" {
		c.Moex.BaseURL = "https://iss.moex.com/iss"
	}
	if c.Moex.FetchTimeout == 0 {
		c.Moex.FetchTimeout = 5 * time.Second
	}
	if c.Moex.RateLimitRPS == 0 {
		c.Moex.RateLimitRPS = 20
	}
	if c.Moex.RateLimitBurst == 0 {
		c.Moex.RateLimitBurst = 10
	}
	if c.Moex.Breaker.MaxFailures == 0 {
		c.Moex.Breaker.MaxFailures = 5
	}
	if c.Moex.Breaker.OpenTimeout == 0 {
		c.Moex.Breaker.OpenTimeout = 30 * time.Second
	}
	if c.Enrich.Concurrency == 0 {
		c.Enrich.Concurrency = 16
	}
	if c.Backend.Type == "" {
		c.Backend.Type = BackendMemory
	}
	if c.Kafka.HoldingsTopic == "" {
		c.Kafka.HoldingsTopic = "moexpull.holdings"
	}
	if c.Signals.BaseURL == "" {
		c.Signals.BaseURL = "https://ru.tradingview.com"
	}
	if c.Signals.Timeout == 0 {
		c.Signals.Timeout = 5 * time.Second
	}
	if c.Signals.CacheTTL == 0 {
		c.Signals.CacheTTL = 15 * time.Minute
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Backend.Type {
	case BackendMemory, BackendClickHouse, BackendKafka:
	default:
		return fmt.Errorf("backend.type must be 'memory', 'clickhouse' or 'kafka', got '%s'", c.Backend.Type)
	}
	if c.Backend.Type != BackendMemory && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for backend '%s'", c.Backend.Type)
	}
	if c.Backend.Type == BackendKafka && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty for backend 'kafka'")
	}
	if c.Log.Collect && (len(c.Kafka.Brokers) == 0 || c.Kafka.LogsTopic == "") {
		return fmt.Errorf("log.collect requires kafka.brokers and kafka.logs_topic")
	}
	if c.Moex.FetchTimeout < 0 {
		return fmt.Errorf("moex.fetch_timeout must be positive")
	}
	if c.Enrich.Concurrency < 1 {
		return fmt.Errorf("enrich.concurrency must be >= 1")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	return nil
}

// KafkaEnabled reports whether a producer should be built.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}
