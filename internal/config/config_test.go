package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTP.Port != "8080" {
		t.Errorf("HTTP.Port = %q, want 8080", cfg.HTTP.Port)
	}
	if cfg.ServiceArea.City != "Warsaw" || cfg.ServiceArea.DistrictDigit != '0' {
		t.Errorf("unexpected service area: %+v", cfg.ServiceArea)
	}
	if cfg.Tokens.AccessTTL != 10*time.Hour {
		t.Errorf("Tokens.AccessTTL = %v, want 10h", cfg.Tokens.AccessTTL)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_PORT", "6543")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("SERVICE_CITY", "Krakow")
	t.Setenv("SERVICE_DISTRICT_DIGIT", "3")
	t.Setenv("RESET_TOKEN_TTL", "15m")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://dashboard.example.com, https://kitchen.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DB.Port != 6543 {
		t.Errorf("DB.Port = %d, want 6543", cfg.DB.Port)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.ServiceArea.City != "Krakow" || cfg.ServiceArea.DistrictDigit != '3' {
		t.Errorf("unexpected service area: %+v", cfg.ServiceArea)
	}
	if cfg.Tokens.ResetTTL != 15*time.Minute {
		t.Errorf("Tokens.ResetTTL = %v, want 15m", cfg.Tokens.ResetTTL)
	}
	if len(cfg.HTTP.AllowedOrigins) != 2 || cfg.HTTP.AllowedOrigins[1] != "https://kitchen.example.com" {
		t.Errorf("HTTP.AllowedOrigins = %v", cfg.HTTP.AllowedOrigins)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"DB_PORT", "five"},
		{"SERVICE_DISTRICT_DIGIT", "01"},
		{"SERVICE_DISTRICT_DIGIT", "x"},
		{"ACCESS_TOKEN_TTL", "forever"},
		{"REFRESH_TOKEN_TTL", "-1h"},
		{"DLQ_REPLAY", "maybe"},
		{"DLQ_MAX_REPLAYS", "lots"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%q succeeded, want error", tt.key, tt.value)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	want := "host=db port=5432 user=u password=p dbname=n sslmode=disable"
	if got := c.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestLoadDLQSettings(t *testing.T) {
	t.Setenv("DLQ_REPLAY", "true")
	t.Setenv("DLQ_MAX_REPLAYS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.DLQ.Replay || cfg.DLQ.MaxReplays != 5 || cfg.DLQ.GroupID != "dlq-monitor-group" {
		t.Errorf("unexpected DLQ config: %+v", cfg.DLQ)
	}
}

func TestNewLogger(t *testing.T) {
	if got := NewLogger("debug").GetLevel(); got != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", got)
	}
	if got := NewLogger("loud").GetLevel(); got != logrus.InfoLevel {
		t.Errorf("level = %v, want info", got)
	}
}
