package config

import (
	"testing"
	"time"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg := fromViper(newViper())

	if cfg.Port != "3000" {
		t.Errorf("port = %s", cfg.Port)
	}
	if cfg.DatabaseDriver != DriverPostgres {
		t.Errorf("driver = %s", cfg.DatabaseDriver)
	}
	if cfg.IsProduction() {
		t.Error("default environment should be development")
	}
	if !cfg.RequirePublishing {
		t.Error("callbacks should require publishing by default")
	}
	if cfg.Dispatch.Transport != TransportWebhook || cfg.Dispatch.Timeout != 30*time.Second {
		t.Errorf("dispatch = %+v", cfg.Dispatch)
	}
	if cfg.Sweep.Interval != time.Minute || cfg.Sweep.Concurrency != 10 {
		t.Errorf("sweep = %+v", cfg.Sweep)
	}
	if cfg.MediaFolder != "social-scheduler" {
		t.Errorf("media folder = %s", cfg.MediaFolder)
	}
}

func TestFromViper_Environment(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/posts.db")
	t.Setenv("WEBHOOK_SECRET", "hook")
	t.Setenv("DISPATCH_TRANSPORT", "AMQP")
	t.Setenv("DISPATCH_TIMEOUT", "5s")
	t.Setenv("SWEEP_INTERVAL", "0")
	t.Setenv("SWEEP_CONCURRENCY", "-3")
	t.Setenv("CALLBACK_REQUIRE_PUBLISHING", "false")
	t.Setenv("R2_PUBLIC_URL", "https://cdn.example.com/")

	cfg := fromViper(newViper())

	if !cfg.IsProduction() {
		t.Error("APP_ENV should be matched case-insensitively")
	}
	if cfg.DatabaseDriver != DriverSQLite || cfg.DatabaseDSN() != "/tmp/posts.db" {
		t.Errorf("driver = %s, dsn = %s", cfg.DatabaseDriver, cfg.DatabaseDSN())
	}
	if cfg.WebhookSecret != "hook" || cfg.Dispatch.Secret != "hook" {
		t.Errorf("webhook secret not applied to both directions: %+v", cfg)
	}
	if cfg.Dispatch.Transport != TransportAMQP || cfg.Dispatch.Timeout != 5*time.Second {
		t.Errorf("dispatch = %+v", cfg.Dispatch)
	}
	if cfg.Sweep.Interval != 0 {
		t.Errorf("interval = %v, want disabled", cfg.Sweep.Interval)
	}
	if cfg.Sweep.Concurrency != 10 {
		t.Errorf("concurrency = %d, want fallback 10", cfg.Sweep.Concurrency)
	}
	if cfg.RequirePublishing {
		t.Error("require publishing should be switchable off")
	}
	if cfg.R2.PublicURL != "https://cdn.example.com" {
		t.Errorf("public url = %s", cfg.R2.PublicURL)
	}
}

func TestFromViper_EmptySweepIntervalDisablesCron(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "")

	cfg := fromViper(newViper())
	if cfg.Sweep.Interval != 0 {
		t.Errorf("interval = %v, want disabled", cfg.Sweep.Interval)
	}
}

func TestDatabaseDSN_Postgres(t *testing.T) {
	cfg := &Config{DatabaseDriver: DriverPostgres, PostgresURI: "postgres://localhost/db", SQLitePath: "x.db"}
	if cfg.DatabaseDSN() != "postgres://localhost/db" {
		t.Errorf("dsn = %s", cfg.DatabaseDSN())
	}
}
