package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	domainconfig "github.com/artgluhovskiy/vertex-sub001/domain/config"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageDynamoDB = "dynamodb"
)

// Embedding providers
const (
	ProviderLocalHash = "local-hash"
	ProviderHTTP      = "http"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress   string        `yaml:"server_address" validate:"required"`
	Environment     string        `yaml:"environment" validate:"oneof=development staging production test"`
	ServiceName     string        `yaml:"service_name" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`

	// AWS configuration
	AWSRegion         string `yaml:"aws_region"`
	StorageBackend    string `yaml:"storage_backend" validate:"oneof=memory dynamodb"`
	DynamoDBTable     string `yaml:"dynamodb_table" validate:"required_if=StorageBackend dynamodb"`
	IndexName         string `yaml:"index_name"` // GSI1 - user-level queries
	EventBusName      string `yaml:"event_bus_name" validate:"required_if=EnableEventBridge true"`
	EnableEventBridge bool   `yaml:"enable_event_bridge"`

	// Lambda configuration
	IsLambda bool `yaml:"is_lambda"`

	// Embedding configuration
	EmbeddingProvider  string        `yaml:"embedding_provider" validate:"oneof=local-hash http"`
	EmbeddingBaseURL   string        `yaml:"embedding_base_url" validate:"required_if=EmbeddingProvider http,omitempty,url"`
	EmbeddingAPIKey    string        `yaml:"embedding_api_key"`
	EmbeddingTimeout   time.Duration `yaml:"embedding_timeout" validate:"gt=0"`
	EmbeddingModel     string        `yaml:"embedding_model"`
	EmbeddingDimension int           `yaml:"embedding_dimension" validate:"gte=0"`

	// Indexing
	AsyncIndexing     bool   `yaml:"async_indexing"`
	EventBufferSize   int64  `yaml:"event_buffer_size" validate:"gte=0"`
	IndexSnapshotPath string `yaml:"index_snapshot_path"`

	// Background jobs, cron expressions; empty disables the job
	OptimizeSchedule     string `yaml:"optimize_schedule"`
	SnapshotSchedule     string `yaml:"snapshot_schedule"`
	MetricsFlushSchedule string `yaml:"metrics_flush_schedule"`

	// Logging
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// Observability
	MetricsNamespace string  `yaml:"metrics_namespace" validate:"required"`
	EnableCloudWatch bool    `yaml:"enable_cloudwatch"`
	OTLPEndpoint     string  `yaml:"otlp_endpoint" validate:"required_if=EnableTracing true"`
	OTLPInsecure     bool    `yaml:"otlp_insecure"`
	TraceSampleRate  float64 `yaml:"trace_sample_rate" validate:"gte=0,lte=1"`

	// Feature flags
	EnableMetrics      bool     `yaml:"enable_metrics"`
	EnableTracing      bool     `yaml:"enable_tracing"`
	EnableCORS         bool     `yaml:"enable_cors"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

func defaultConfig() *Config {
	return &Config{
		ServerAddress:        ":8080",
		Environment:          "development",
		ServiceName:          "vertex",
		ShutdownTimeout:      30 * time.Second,
		AWSRegion:            "us-west-2",
		StorageBackend:       StorageMemory,
		DynamoDBTable:        "vertex",
		IndexName:            "GSI1",
		EventBusName:         "vertex-events",
		EmbeddingProvider:    ProviderLocalHash,
		EmbeddingTimeout:     30 * time.Second,
		EventBufferSize:      256,
		OptimizeSchedule:     "@every 5m",
		SnapshotSchedule:     "@every 15m",
		MetricsFlushSchedule: "@every 1m",
		LogLevel:             "info",
		MetricsNamespace:     "vertex",
		TraceSampleRate:      1.0,
		EnableMetrics:        true,
		EnableCORS:           true,
		CORSAllowedOrigins:   []string{"*"},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by CONFIG_FILE and environment variables, in that order.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvironment(cfg)

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func applyEnvironment(cfg *Config) {
	cfg.ServerAddress = getEnv("SERVER_ADDRESS", cfg.ServerAddress)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.ServiceName = getEnv("SERVICE_NAME", cfg.ServiceName)
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	cfg.AWSRegion = getEnv("AWS_REGION", cfg.AWSRegion)
	cfg.StorageBackend = getEnv("STORAGE_BACKEND", cfg.StorageBackend)
	cfg.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", cfg.DynamoDBTable))
	cfg.IndexName = getEnv("INDEX_NAME", cfg.IndexName)
	cfg.EventBusName = getEnv("EVENT_BUS_NAME", cfg.EventBusName)
	cfg.EnableEventBridge = getEnvBool("ENABLE_EVENT_BRIDGE", cfg.EnableEventBridge)

	// AWS_LAMBDA_FUNCTION_NAME is set by the Lambda runtime
	cfg.IsLambda = getEnvBool("IS_LAMBDA", cfg.IsLambda || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "")

	cfg.EmbeddingProvider = getEnv("EMBEDDING_PROVIDER", cfg.EmbeddingProvider)
	cfg.EmbeddingBaseURL = getEnv("EMBEDDING_BASE_URL", cfg.EmbeddingBaseURL)
	cfg.EmbeddingAPIKey = getEnv("EMBEDDING_API_KEY", cfg.EmbeddingAPIKey)
	cfg.EmbeddingTimeout = getEnvDuration("EMBEDDING_TIMEOUT", cfg.EmbeddingTimeout)
	cfg.EmbeddingModel = getEnv("EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.EmbeddingDimension = getEnvInt("EMBEDDING_DIMENSION", cfg.EmbeddingDimension)

	cfg.AsyncIndexing = getEnvBool("ASYNC_INDEXING", cfg.AsyncIndexing)
	cfg.EventBufferSize = int64(getEnvInt("EVENT_BUFFER_SIZE", int(cfg.EventBufferSize)))
	cfg.IndexSnapshotPath = getEnv("INDEX_SNAPSHOT_PATH", cfg.IndexSnapshotPath)

	cfg.OptimizeSchedule = getEnv("OPTIMIZE_SCHEDULE", cfg.OptimizeSchedule)
	cfg.SnapshotSchedule = getEnv("SNAPSHOT_SCHEDULE", cfg.SnapshotSchedule)
	cfg.MetricsFlushSchedule = getEnv("METRICS_FLUSH_SCHEDULE", cfg.MetricsFlushSchedule)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.MetricsNamespace = getEnv("METRICS_NAMESPACE", cfg.MetricsNamespace)
	cfg.EnableCloudWatch = getEnvBool("ENABLE_CLOUDWATCH", cfg.EnableCloudWatch)
	cfg.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.OTLPInsecure = getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", cfg.OTLPInsecure)
	cfg.TraceSampleRate = getEnvFloat("TRACE_SAMPLE_RATE", cfg.TraceSampleRate)

	cfg.EnableMetrics = getEnvBool("ENABLE_METRICS", cfg.EnableMetrics)
	cfg.EnableTracing = getEnvBool("ENABLE_TRACING", cfg.EnableTracing)
	cfg.EnableCORS = getEnvBool("ENABLE_CORS", cfg.EnableCORS)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORSAllowedOrigins = splitList(origins)
	}
}

// Validate checks struct constraints and the production-only requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.IsProduction() {
		if c.StorageBackend != StorageDynamoDB {
			return fmt.Errorf("STORAGE_BACKEND must be %q in production", StorageDynamoDB)
		}
		if c.EnableCORS && len(c.CORSAllowedOrigins) == 1 && c.CORSAllowedOrigins[0] == "*" {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS must be explicit in production")
		}
	}

	return c.Domain().Validate()
}

// Domain returns the domain rules for the environment with the embedding
// overrides applied.
func (c *Config) Domain() *domainconfig.DomainConfig {
	domain := domainconfig.LoadDomainConfig(c.Environment)
	if c.EmbeddingModel != "" {
		domain.Embedding.Model = c.EmbeddingModel
	}
	if c.EmbeddingDimension > 0 {
		domain.Embedding.Dimension = c.EmbeddingDimension
	}
	return domain
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("30s") or plain seconds ("30").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
