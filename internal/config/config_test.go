package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Fatalf("server port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Name != "rulify" || cfg.Database.SSLMode != "disable" {
		t.Fatalf("unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.Kafka.Enabled {
		t.Fatal("kafka must be disabled by default")
	}
	if cfg.Kafka.Topic != "metric-observations" || cfg.Kafka.GroupID != "rulify-engine" {
		t.Fatalf("unexpected kafka defaults: %+v", cfg.Kafka)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
	if !cfg.Monitoring.Enabled || cfg.Monitoring.MetricsPath != "/metrics" {
		t.Fatalf("unexpected monitoring defaults: %+v", cfg.Monitoring)
	}
	if cfg.Monitoring.Tracing.Enabled {
		t.Fatal("tracing must be disabled by default")
	}
	if cfg.Security.RateLimiting.Enabled {
		t.Fatal("rate limiting must be disabled by default")
	}
}

func TestLoadAppliesViperOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("server.port", 9090)
	viper.Set("log.level", "debug")
	viper.Set("kafka.enabled", true)

	cfg := Load()
	if cfg.Server.Port != 9090 {
		t.Fatalf("server port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level = %s, want debug", cfg.Log.Level)
	}
	if !cfg.Kafka.Enabled {
		t.Fatal("kafka.enabled override not applied")
	}
	// Untouched keys keep their defaults.
	if cfg.Database.Port != 5432 {
		t.Fatalf("database port = %d, want 5432", cfg.Database.Port)
	}
}
