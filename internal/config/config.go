// Package config loads ticketd configuration from a YAML file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Backend names accepted by the pluggable sections.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"

	KnowledgeKeyword = "keyword"
	KnowledgeChromem = "chromem"
	KnowledgeQdrant  = "qdrant"

	GeneratorTemplate = "template"
	GeneratorLLM      = "llm"

	NotifyLog   = "log"
	NotifyNATS  = "nats"
	NotifyKafka = "kafka"
)

// Config holds the complete ticketd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Temporal      TemporalConfig      `koanf:"temporal"`
	Store         StoreConfig         `koanf:"store"`
	Knowledge     KnowledgeConfig     `koanf:"knowledge"`
	Generator     GeneratorConfig     `koanf:"generator"`
	Notify        NotifyConfig        `koanf:"notify"`
	Status        StatusConfig        `koanf:"status"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ServerConfig holds HTTP ingress settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	RateLimit       float64  `koanf:"rate_limit"` // requests per second per client IP
	RateBurst       int      `koanf:"rate_burst"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TemporalConfig selects durable execution. When disabled, ticketd drives
// tickets in-process.
type TemporalConfig struct {
	Enabled   bool   `koanf:"enabled"`
	HostPort  string `koanf:"host_port"`
	Namespace string `koanf:"namespace"`
	TaskQueue string `koanf:"task_queue"`
}

// StoreConfig selects the idempotency record backend.
type StoreConfig struct {
	Backend       string   `koanf:"backend"`
	Path          string   `koanf:"path"`
	DSN           Secret   `koanf:"dsn"`
	RedisAddr     string   `koanf:"redis_addr"`
	RedisPassword Secret   `koanf:"redis_password"`
	RedisDB       int      `koanf:"redis_db"`
	RedisTTL      Duration `koanf:"redis_ttl"`
}

// KnowledgeConfig selects the knowledge searcher and its corpus.
type KnowledgeConfig struct {
	Backend          string `koanf:"backend"`
	CorpusPath       string `koanf:"corpus_path"`
	ChromemPath      string `koanf:"chromem_path"`
	ChromemCompress  bool   `koanf:"chromem_compress"`
	QdrantHost       string `koanf:"qdrant_host"`
	QdrantPort       int    `koanf:"qdrant_port"`
	QdrantCollection string `koanf:"qdrant_collection"`
	QdrantAPIKey     Secret `koanf:"qdrant_api_key"`
	QdrantTLS        bool   `koanf:"qdrant_tls"`
	Dimension        int    `koanf:"dimension"`
}

// GeneratorConfig selects how reply text is produced.
type GeneratorConfig struct {
	Backend  string `koanf:"backend"`
	Template string `koanf:"template"`
	BaseURL  string `koanf:"base_url"`
	Model    string `koanf:"model"`
	APIKey   Secret `koanf:"api_key"`
	Prompt   string `koanf:"prompt"`
}

// NotifyConfig selects the notification transport.
type NotifyConfig struct {
	Backend       string   `koanf:"backend"`
	NATSURL       string   `koanf:"nats_url"`
	SubjectPrefix string   `koanf:"subject_prefix"`
	KafkaBrokers  []string `koanf:"kafka_brokers"`
	KafkaTopic    string   `koanf:"kafka_topic"`
}

// StatusConfig configures the in-memory ticket status store.
type StatusConfig struct {
	// Strict rejects updates for tickets that were never registered.
	Strict bool `koanf:"strict"`
}

// ObservabilityConfig holds OpenTelemetry export settings.
type ObservabilityConfig struct {
	EnableTelemetry bool     `koanf:"enable_telemetry"`
	ServiceName     string   `koanf:"service_name"`
	Endpoint        string   `koanf:"endpoint"`
	Protocol        string   `koanf:"protocol"`
	Insecure        bool     `koanf:"insecure"`
	SampleRate      float64  `koanf:"sample_rate"`
	MetricsInterval Duration `koanf:"metrics_interval"`
}

// LoggingConfig overrides the logging defaults.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns a configuration that runs entirely in-process: memory
// store, keyword search over the bundled corpus, template replies and log
// notifications.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills zero-valued fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = 10
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = 20
	}

	if cfg.Temporal.HostPort == "" {
		cfg.Temporal.HostPort = "localhost:7233"
	}
	if cfg.Temporal.Namespace == "" {
		cfg.Temporal.Namespace = "default"
	}
	if cfg.Temporal.TaskQueue == "" {
		cfg.Temporal.TaskQueue = "ticket-processing"
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreMemory
	}
	if cfg.Store.Backend == StoreSQLite && cfg.Store.Path == "" {
		cfg.Store.Path = "ticketd.db"
	}
	if cfg.Store.RedisAddr == "" {
		cfg.Store.RedisAddr = "localhost:6379"
	}

	if cfg.Knowledge.Backend == "" {
		cfg.Knowledge.Backend = KnowledgeKeyword
	}
	if cfg.Knowledge.QdrantHost == "" {
		cfg.Knowledge.QdrantHost = "localhost"
	}
	if cfg.Knowledge.QdrantPort == 0 {
		cfg.Knowledge.QdrantPort = 6334
	}
	if cfg.Knowledge.QdrantCollection == "" {
		cfg.Knowledge.QdrantCollection = "ticketd_knowledge"
	}
	if cfg.Knowledge.Dimension == 0 {
		cfg.Knowledge.Dimension = 256
	}

	if cfg.Generator.Backend == "" {
		cfg.Generator.Backend = GeneratorTemplate
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = "gpt-4o-mini"
	}

	if cfg.Notify.Backend == "" {
		cfg.Notify.Backend = NotifyLog
	}
	if cfg.Notify.NATSURL == "" {
		cfg.Notify.NATSURL = "nats://localhost:4222"
	}
	if cfg.Notify.SubjectPrefix == "" {
		cfg.Notify.SubjectPrefix = "tickets.notify"
	}
	if cfg.Notify.KafkaTopic == "" {
		cfg.Notify.KafkaTopic = "ticket-notifications"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "ticketd"
	}
	if cfg.Observability.Endpoint == "" {
		cfg.Observability.Endpoint = "localhost:4317"
	}
	if cfg.Observability.Protocol == "" {
		cfg.Observability.Protocol = "grpc"
	}
	if cfg.Observability.SampleRate == 0 {
		cfg.Observability.SampleRate = 1.0
	}
	if cfg.Observability.MetricsInterval == 0 {
		cfg.Observability.MetricsInterval = Duration(15 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate reports every configuration problem it finds.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.http_port %d out of range 1-65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		errs = append(errs, errors.New("server.rate_limit and server.rate_burst cannot be negative"))
	}

	if c.Temporal.Enabled && c.Temporal.HostPort == "" {
		errs = append(errs, errors.New("temporal.host_port is required when temporal is enabled"))
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite backend"))
		}
	case StorePostgres:
		if !c.Store.DSN.IsSet() {
			errs = append(errs, errors.New("store.dsn is required for the postgres backend"))
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("store.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, unknownBackend("store.backend", c.Store.Backend, StoreMemory, StoreSQLite, StorePostgres, StoreRedis))
	}

	switch c.Knowledge.Backend {
	case KnowledgeKeyword, KnowledgeChromem:
	case KnowledgeQdrant:
		if c.Knowledge.QdrantPort < 1 || c.Knowledge.QdrantPort > 65535 {
			errs = append(errs, fmt.Errorf("knowledge.qdrant_port %d out of range", c.Knowledge.QdrantPort))
		}
	default:
		errs = append(errs, unknownBackend("knowledge.backend", c.Knowledge.Backend, KnowledgeKeyword, KnowledgeChromem, KnowledgeQdrant))
	}
	if c.Knowledge.Dimension < 1 {
		errs = append(errs, errors.New("knowledge.dimension must be positive"))
	}

	switch c.Generator.Backend {
	case GeneratorTemplate:
	case GeneratorLLM:
		if c.Generator.Model == "" {
			errs = append(errs, errors.New("generator.model is required for the llm backend"))
		}
	default:
		errs = append(errs, unknownBackend("generator.backend", c.Generator.Backend, GeneratorTemplate, GeneratorLLM))
	}

	switch c.Notify.Backend {
	case NotifyLog:
	case NotifyNATS:
		if c.Notify.NATSURL == "" {
			errs = append(errs, errors.New("notify.nats_url is required for the nats backend"))
		}
	case NotifyKafka:
		if len(c.Notify.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("notify.kafka_brokers is required for the kafka backend"))
		}
	default:
		errs = append(errs, unknownBackend("notify.backend", c.Notify.Backend, NotifyLog, NotifyNATS, NotifyKafka))
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		errs = append(errs, errors.New("observability.service_name is required when telemetry is enabled"))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

func unknownBackend(field, got string, allowed ...string) error {
	return fmt.Errorf("%s %q not one of %s", field, got, strings.Join(allowed, ", "))
}
