package config

import (
	"os"
	"testing"
	"time"

	"github.com/practicehub/practicehub/pkg/observability"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	os.Setenv("TEST_DURATION", "45s")
	defer os.Unsetenv("TEST_DURATION")

	if got := getEnvDuration("TEST_DURATION", time.Minute); got != 45*time.Second {
		t.Errorf("getEnvDuration() = %v, want 45s", got)
	}
	if got := getEnvDuration("TEST_DURATION_MISSING", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration() default = %v, want 1m", got)
	}

	os.Setenv("TEST_DURATION_BAD", "not-a-duration")
	defer os.Unsetenv("TEST_DURATION_BAD")
	if got := getEnvDuration("TEST_DURATION_BAD", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration() with invalid value = %v, want default", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  observability.LogLevel
	}{
		{"debug", observability.DebugLevel},
		{"info", observability.InfoLevel},
		{"WARN", observability.WarnLevel},
		{"warning", observability.WarnLevel},
		{"error", observability.ErrorLevel},
		{"garbage", observability.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.input); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("fails without postgres URL", func(t *testing.T) {
		os.Unsetenv("PRACTICEHUB_POSTGRES_URL")
		if _, err := LoadConfig(); err == nil {
			t.Error("Expected error when postgres URL is missing")
		}
	})

	t.Run("loads with defaults", func(t *testing.T) {
		os.Setenv("PRACTICEHUB_POSTGRES_URL", "postgres://localhost/practicehub?sslmode=disable")
		defer os.Unsetenv("PRACTICEHUB_POSTGRES_URL")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}

		if cfg.Server.Port != "8080" {
			t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
		}
		if cfg.Server.HealthPort != "9090" {
			t.Errorf("Expected default health port 9090, got %s", cfg.Server.HealthPort)
		}
		if cfg.Maintenance.AssignmentGrace != 30*24*time.Hour {
			t.Errorf("Expected 30 day assignment grace, got %v", cfg.Maintenance.AssignmentGrace)
		}
		if cfg.Maintenance.AuditRetention != 90*24*time.Hour {
			t.Errorf("Expected 90 day audit retention, got %v", cfg.Maintenance.AuditRetention)
		}
	})

	t.Run("replica URLs are split and trimmed", func(t *testing.T) {
		os.Setenv("PRACTICEHUB_POSTGRES_URL", "postgres://primary/practicehub")
		os.Setenv("PRACTICEHUB_POSTGRES_REPLICA_URLS", "postgres://r1/db, postgres://r2/db ,")
		defer os.Unsetenv("PRACTICEHUB_POSTGRES_URL")
		defer os.Unsetenv("PRACTICEHUB_POSTGRES_REPLICA_URLS")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if len(cfg.Database.ReplicaURLs) != 2 {
			t.Fatalf("Expected 2 replica URLs, got %d", len(cfg.Database.ReplicaURLs))
		}
		if cfg.Database.ReplicaURLs[1] != "postgres://r2/db" {
			t.Errorf("Replica URL not trimmed: %q", cfg.Database.ReplicaURLs[1])
		}
	})
}

func TestConfigValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "8080", HealthPort: "9090"},
			Database: DatabaseConfig{
				PrimaryURL: "postgres://localhost/practicehub",
				MaxConns:   25,
				MinConns:   5,
			},
		}
	}

	t.Run("valid", func(t *testing.T) {
		if err := base().Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("same port for api and health", func(t *testing.T) {
		cfg := base()
		cfg.Server.HealthPort = cfg.Server.Port
		if err := cfg.Validate(); err == nil {
			t.Error("Expected error for colliding ports")
		}
	})

	t.Run("max conns below min conns", func(t *testing.T) {
		cfg := base()
		cfg.Database.MaxConns = 2
		if err := cfg.Validate(); err == nil {
			t.Error("Expected error for max < min conns")
		}
	})

	t.Run("redis enabled without URL", func(t *testing.T) {
		cfg := base()
		cfg.Redis.Enabled = true
		cfg.Redis.URL = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Expected error for enabled redis without URL")
		}
	})
}
