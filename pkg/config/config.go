// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Sphinx, Postgres, Redis, Kafka, Search, Snippet, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Sphinx   SphinxConfig   `yaml:"sphinx"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Search   SearchConfig   `yaml:"search"`
	Snippet  SnippetConfig  `yaml:"snippet"`
	Breaker  BreakerConfig  `yaml:"breaker"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// SphinxConfig holds the searchd SphinxQL listener parameters. searchd
// speaks the MySQL wire protocol, usually on port 9306.
type SphinxConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DialTimeout     time.Duration `yaml:"dialTimeout"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// Addr returns host:port.
func (s SphinxConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig holds PostgreSQL connection parameters. PostgreSQL stores the
// original document text that snippets are built from.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexRotated    string `yaml:"indexRotated"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// SearchConfig controls index selection and page sizes of the HTTP search
// endpoint.
type SearchConfig struct {
	DefaultIndex    string        `yaml:"defaultIndex"`
	AllowedIndexes  []string      `yaml:"allowedIndexes"`
	AllowedFacets   []string      `yaml:"allowedFacets"`
	DefaultPageSize int           `yaml:"defaultPageSize"`
	MaxPageSize     int           `yaml:"maxPageSize"`
	Timeout         time.Duration `yaml:"timeout"`
}

// SnippetConfig describes where snippet source text lives and how the
// highlighted excerpts are built.
type SnippetConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Table       string   `yaml:"table"`
	IDColumn    string   `yaml:"idColumn"`
	HitIDColumn string   `yaml:"hitIdColumn"`
	Fields      []string `yaml:"fields"`
	BeforeMatch string   `yaml:"beforeMatch"`
	AfterMatch  string   `yaml:"afterMatch"`
	Limit       int      `yaml:"limit"`
	Around      int      `yaml:"around"`
}

// BreakerConfig controls the circuit breaker in front of searchd.
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failureThreshold"`
	ResetTimeout     time.Duration `yaml:"resetTimeout"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the search service cannot run with.
func (c *Config) Validate() error {
	if c.Search.DefaultIndex == "" {
		return fmt.Errorf("search.defaultIndex must be set")
	}
	if c.Search.DefaultPageSize <= 0 {
		return fmt.Errorf("search.defaultPageSize must be positive, got %d", c.Search.DefaultPageSize)
	}
	if c.Search.MaxPageSize < c.Search.DefaultPageSize {
		return fmt.Errorf("search.maxPageSize (%d) is below search.defaultPageSize (%d)",
			c.Search.MaxPageSize, c.Search.DefaultPageSize)
	}
	if c.Snippet.Enabled {
		if !c.Postgres.Enabled {
			return fmt.Errorf("snippet.enabled requires postgres.enabled")
		}
		if c.Snippet.Table == "" || len(c.Snippet.Fields) == 0 {
			return fmt.Errorf("snippet.table and snippet.fields must be set when snippets are enabled")
		}
	}
	return nil
}

// IndexAllowed reports whether index may be queried through the HTTP API.
func (s SearchConfig) IndexAllowed(index string) bool {
	if index == s.DefaultIndex {
		return true
	}
	for _, allowed := range s.AllowedIndexes {
		if allowed == index {
			return true
		}
	}
	return false
}

// FacetAllowed reports whether column may be requested as a facet over HTTP.
func (s SearchConfig) FacetAllowed(column string) bool {
	for _, allowed := range s.AllowedFacets {
		if allowed == column {
			return true
		}
	}
	return false
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Sphinx: SphinxConfig{
			Host:            "localhost",
			Port:            9306,
			DialTimeout:     5 * time.Second,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "articles",
			User:            "search",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "sphinx-search",
			Topics: KafkaTopics{
				IndexRotated:    "index-rotated",
				AnalyticsEvents: "search-analytics",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Search: SearchConfig{
			DefaultIndex:    "article_index",
			AllowedFacets:   []string{"author_id", "category_id"},
			DefaultPageSize: 20,
			MaxPageSize:     100,
			Timeout:         5 * time.Second,
		},
		Snippet: SnippetConfig{
			Table:       "articles",
			IDColumn:    "id",
			HitIDColumn: "id",
			Fields:      []string{"title", "content"},
			BeforeMatch: "<b>",
			AfterMatch:  "</b>",
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_SPHINX_HOST"); v != "" {
		cfg.Sphinx.Host = v
	}
	if v := os.Getenv("SP_SPHINX_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Sphinx.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_SEARCH_DEFAULT_INDEX"); v != "" {
		cfg.Search.DefaultIndex = v
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
