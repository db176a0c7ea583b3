package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	cfg := FromViper(newViper())

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("expected sqlite driver, got %q", cfg.Database.Driver)
	}
	if cfg.Storage.MaxContentLength != 32<<20 {
		t.Fatalf("expected 32MiB upload cap, got %d", cfg.Storage.MaxContentLength)
	}
	if cfg.Housekeeping.RetentionDays != 180 {
		t.Fatalf("expected 180 retention days, got %d", cfg.Housekeeping.RetentionDays)
	}
	if cfg.Cache.TTL != 24*time.Hour {
		t.Fatalf("expected 24h cache ttl, got %s", cfg.Cache.TTL)
	}
	if cfg.IsProduction() {
		t.Fatal("default profile must not be production")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "POSTGRES")
	t.Setenv("NOTIFY_DEV_RECIPIENTS", "a@example.com, ,b@example.com")
	t.Setenv("LOOKUP_CACHE_TTL", "90m")

	cfg := FromViper(newViper())
	if !cfg.IsProduction() {
		t.Fatalf("expected production profile, got %q", cfg.App.Env)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port override, got %q", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("expected lower-cased driver, got %q", cfg.Database.Driver)
	}
	if len(cfg.Mail.DevRecipients) != 2 || cfg.Mail.DevRecipients[1] != "b@example.com" {
		t.Fatalf("unexpected recipients: %#v", cfg.Mail.DevRecipients)
	}
	if cfg.Cache.TTL != 90*time.Minute {
		t.Fatalf("expected 90m ttl, got %s", cfg.Cache.TTL)
	}
}

func TestParseBypassUsers(t *testing.T) {
	users := parseBypassUsers("Tester@Test.com:$2a$10$abc, broken, other@test.com:")
	if len(users) != 1 {
		t.Fatalf("expected one valid entry, got %#v", users)
	}
	if users["tester@test.com"] != "$2a$10$abc" {
		t.Fatalf("unexpected hash: %q", users["tester@test.com"])
	}
}

func TestDatabaseURL(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5432, DBName: "training", SSLMode: "disable"}
	if got := d.URL(); got != "postgres://u:p@db:5432/training?sslmode=disable" {
		t.Fatalf("unexpected url %q", got)
	}
}
