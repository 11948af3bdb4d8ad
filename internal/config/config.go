package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Service  string         `yaml:"service"`
	LogLevel string         `yaml:"log_level"`
	HTTP     HTTPConfig     `yaml:"http"`
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Events   EventsConfig   `yaml:"events"`
	Auth     AuthConfig     `yaml:"auth"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Engine   EngineConfig   `yaml:"engine"`
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	RateLimit       float64       `yaml:"rate_limit"` // requests per second per client, 0 disables
	Burst           int           `yaml:"burst"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver  string `yaml:"driver"` // postgres | memory
	Migrate bool   `yaml:"migrate"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

type RabbitMQConfig struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	User              string `yaml:"user"`
	Password          string `yaml:"password"`
	VHost             string `yaml:"vhost"`
	EventsExchange    string `yaml:"events_exchange"`
	SupplierQueue     string `yaml:"supplier_queue"`
	NotificationQueue string `yaml:"notification_queue"`
	Prefetch          int    `yaml:"prefetch"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RedisConfig struct {
	Addr           string        `yaml:"addr"` // empty keeps idempotency keys in process
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

type EventsConfig struct {
	Driver string `yaml:"driver"` // rabbitmq | kafka | none
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type TracingConfig struct {
	Endpoint string  `yaml:"endpoint"` // host:port of an OTLP/HTTP collector, empty disables
	Insecure bool    `yaml:"insecure"`
	Sampling float64 `yaml:"sampling"`
}

type EngineConfig struct {
	LockTimeout   time.Duration `yaml:"lock_timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInitial  time.Duration `yaml:"retry_initial"`
}

func Default() *Config {
	return &Config{
		Service:  "good-food",
		LogLevel: "info",
		HTTP:     HTTPConfig{Port: 8080, RateLimit: 50, Burst: 100, ShutdownTimeout: 5 * time.Second},
		Store:    StoreConfig{Driver: "postgres", Migrate: true},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "goodfood", Database: "goodfood", SSLMode: "disable", MaxConns: 10},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost", Port: 5672, User: "guest", Password: "guest", VHost: "/",
			EventsExchange: "good_food_events", SupplierQueue: "supplier_deliveries",
			NotificationQueue: "notifications", Prefetch: 10,
		},
		Kafka:   KafkaConfig{Topic: "good-food-events"},
		Redis:   RedisConfig{IdempotencyTTL: 24 * time.Hour},
		Events:  EventsConfig{Driver: "none"},
		Tracing: TracingConfig{Insecure: true, Sampling: 1},
		Engine:  EngineConfig{LockTimeout: 3 * time.Second, RetryAttempts: 3, RetryInitial: 50 * time.Millisecond},
	}
}

// LoadConfig reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	str("DB_HOST", &c.Database.Host)
	num("DB_PORT", &c.Database.Port)
	str("DB_USER", &c.Database.User)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_NAME", &c.Database.Database)
	str("RABBITMQ_HOST", &c.RabbitMQ.Host)
	num("RABBITMQ_PORT", &c.RabbitMQ.Port)
	str("RABBITMQ_USER", &c.RabbitMQ.User)
	str("RABBITMQ_PASSWORD", &c.RabbitMQ.Password)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("OTEL_ENDPOINT", &c.Tracing.Endpoint)
	str("STORE_DRIVER", &c.Store.Driver)
	str("EVENTS_DRIVER", &c.Events.Driver)
	num("HTTP_PORT", &c.HTTP.Port)
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = splitList(v)
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("store.driver %q: want postgres or memory", c.Store.Driver))
	}
	switch c.Events.Driver {
	case "none", "rabbitmq":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers is required when events.driver is kafka"))
		}
		if c.Kafka.Topic == "" {
			errs = append(errs, errors.New("kafka.topic is required when events.driver is kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("events.driver %q: want rabbitmq, kafka or none", c.Events.Driver))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}
	if c.Engine.LockTimeout <= 0 {
		errs = append(errs, errors.New("engine.lock_timeout must be positive"))
	}
	if c.Engine.RetryAttempts < 1 {
		errs = append(errs, errors.New("engine.retry_attempts must be at least 1"))
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
