package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/practicehub/practicehub/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Maintenance   MaintenanceConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	PrimaryURL  string
	ReplicaURLs []string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// RedisConfig holds configuration for the mapping cache
type RedisConfig struct {
	Enabled    bool
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int

	// MappingTTL bounds how stale a cached organization->practice mapping
	// may get before it is re-read from the database.
	MappingTTL time.Duration
}

// MaintenanceConfig holds background job configuration
type MaintenanceConfig struct {
	Enabled                  bool
	HierarchyRefreshSchedule string
	AssignmentPruneSchedule  string
	AuditPurgeSchedule       string

	// AssignmentGrace keeps expired role assignments queryable for this
	// long before the pruner removes them.
	AssignmentGrace time.Duration

	// AuditRetention is how long audit events are kept.
	AuditRetention time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Maintenance:   loadMaintenanceConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("PRACTICEHUB_HOST", "0.0.0.0"),
		Port:            getEnv("PRACTICEHUB_PORT", "8080"),
		ReadTimeout:     getEnvDuration("PRACTICEHUB_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("PRACTICEHUB_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("PRACTICEHUB_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("PRACTICEHUB_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("PRACTICEHUB_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		PrimaryURL:  getEnv("PRACTICEHUB_POSTGRES_URL", ""),
		MaxConns:    getEnvInt("PRACTICEHUB_POSTGRES_MAX_CONNS", 25),
		MinConns:    getEnvInt("PRACTICEHUB_POSTGRES_MIN_CONNS", 5),
		Timeout:     getEnvDuration("PRACTICEHUB_POSTGRES_TIMEOUT", 5*time.Second),
		MaxLifetime: getEnvDuration("PRACTICEHUB_POSTGRES_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime: getEnvDuration("PRACTICEHUB_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
	}

	if replicaURLs := getEnv("PRACTICEHUB_POSTGRES_REPLICA_URLS", ""); replicaURLs != "" {
		for _, u := range strings.Split(replicaURLs, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.ReplicaURLs = append(cfg.ReplicaURLs, u)
			}
		}
	}

	return cfg
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:    getEnvBool("PRACTICEHUB_REDIS_ENABLED", false),
		URL:        getEnv("PRACTICEHUB_REDIS_URL", "redis://localhost:6379/0"),
		Password:   getEnv("PRACTICEHUB_REDIS_PASSWORD", ""),
		DB:         getEnvInt("PRACTICEHUB_REDIS_DB", -1),
		MaxRetries: getEnvInt("PRACTICEHUB_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("PRACTICEHUB_REDIS_POOL_SIZE", 10),
		MappingTTL: getEnvDuration("PRACTICEHUB_MAPPING_CACHE_TTL", 5*time.Minute),
	}
}

func loadMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		Enabled:                  getEnvBool("PRACTICEHUB_MAINTENANCE_ENABLED", true),
		HierarchyRefreshSchedule: getEnv("PRACTICEHUB_HIERARCHY_REFRESH_SCHEDULE", "*/5 * * * *"),
		AssignmentPruneSchedule:  getEnv("PRACTICEHUB_ASSIGNMENT_PRUNE_SCHEDULE", "20 0 * * *"),
		AuditPurgeSchedule:       getEnv("PRACTICEHUB_AUDIT_PURGE_SCHEDULE", "40 0 * * *"),
		AssignmentGrace:          getEnvDuration("PRACTICEHUB_ASSIGNMENT_GRACE", 30*24*time.Hour),
		AuditRetention:           getEnvDuration("PRACTICEHUB_AUDIT_RETENTION", 90*24*time.Hour),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("PRACTICEHUB_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("PRACTICEHUB_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("PRACTICEHUB_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("PRACTICEHUB_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("PRACTICEHUB_OTEL_SERVICE_NAME", "practicehub-authz"),
		OTelServiceVersion: getEnv("PRACTICEHUB_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("PRACTICEHUB_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.PrimaryURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("postgres max conns (%d) must be >= min conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required when redis is enabled")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
