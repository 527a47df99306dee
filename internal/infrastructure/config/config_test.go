package config_test

import (
	"testing"
	"time"

	"github.com/cassiomorais/marketsettle/internal/infrastructure/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: config.DatabaseConfig{Host: "localhost", Port: 5432},
		Redis:    config.RedisConfig{Port: 6379},
		Settlement: config.SettlementConfig{
			FundFlow:          "collect",
			CallbackTimeout:   2 * time.Minute,
			ReconcileInterval: 30 * time.Second,
		},
		Worker: config.WorkerConfig{BatchSize: 10},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_BadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for port 0")
	}
}

func TestValidate_BadFundFlow(t *testing.T) {
	cfg := validConfig()
	cfg.Settlement.FundFlow = "sideways"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown fund flow")
	}
}

func TestValidate_MissingCallbackTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Settlement.CallbackTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero callback timeout")
	}
}

func TestDSNFormat(t *testing.T) {
	db := config.DatabaseConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", Database: "marketsettle", SSLMode: "disable",
	}
	want := "host=db port=5432 user=u password=p dbname=marketsettle sslmode=disable"
	if got := db.DatabaseDSN(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	r := config.RedisConfig{Host: "cache", Port: 6379}
	if got := r.RedisAddr(); got != "cache:6379" {
		t.Errorf("got %q", got)
	}
}
