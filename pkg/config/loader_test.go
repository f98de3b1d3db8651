package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sample struct {
	DB      DBConfig      `yaml:"db"`
	Session SessionConfig `yaml:"session"`
}

func TestLoadLayeredOverlayKeepsSiblings(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write("base.yaml", "db:\n  host: localhost\n  port: 5432\n  slow_query: 100ms\nsession:\n  secret: ${K}\n")
	write("staging.yaml", "db:\n  host: pg.internal\n")
	write("secrets.env", "K='abc'\n")
	t.Setenv("K", "from-process")

	var got sample
	if err := LoadLayered("staging", dir, &got); err != nil {
		t.Fatalf("LoadLayered() error = %v", err)
	}
	if got.DB.Host != "pg.internal" || got.DB.Port != 5432 || got.DB.SlowQuery != 100*time.Millisecond {
		t.Errorf("DB = %+v", got.DB)
	}
	if got.Session.Secret != "abc" {
		t.Errorf("Secret = %q, secrets.env should win over the environment", got.Session.Secret)
	}
}

func TestLoadLayeredMissingBase(t *testing.T) {
	var got sample
	if err := LoadLayered("local", t.TempDir(), &got); err == nil {
		t.Fatal("LoadLayered() error = nil, want missing base.yaml")
	}
}

func TestEnvOverridesIgnoreGarbage(t *testing.T) {
	cfg := DBConfig{Port: 5432}
	t.Setenv("DB_PORT", "not-a-port")
	t.Setenv("DB_HOST", "db")
	OverrideDBFromEnv(&cfg)
	if cfg.Port != 5432 || cfg.Host != "db" {
		t.Errorf("cfg = %+v", cfg)
	}

	s := SessionConfig{TTL: time.Hour}
	t.Setenv("SESSION_TTL", "90m")
	OverrideSessionFromEnv(&s)
	if s.TTL != 90*time.Minute {
		t.Errorf("TTL = %v", s.TTL)
	}
}
