package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Addr != ":8080" {
		t.Errorf("addr %q", c.Server.Addr)
	}
	if c.Storage.Driver != "memory" {
		t.Errorf("storage driver %q", c.Storage.Driver)
	}
	if c.Cache.Kind != "memory" {
		t.Errorf("cache kind %q", c.Cache.Kind)
	}
	if got := c.CacheTokenTTL(); got != 2*time.Minute {
		t.Errorf("cache token ttl %v", got)
	}
	if got := c.RateWindow(); got != time.Minute {
		t.Errorf("rate window %v", got)
	}
	if c.Rate.MaxRequests != 60 {
		t.Errorf("rate max %d", c.Rate.MaxRequests)
	}

	sc := c.ServerConfig()
	if sc.AccessTokenTTL != time.Hour {
		t.Errorf("access ttl %v", sc.AccessTokenTTL)
	}
	if sc.AuthCodeTTL != 10*time.Minute {
		t.Errorf("auth code ttl %v", sc.AuthCodeTTL)
	}
	if c.OAuth.RefreshTTLDays != 30 {
		t.Errorf("refresh ttl days %d", c.OAuth.RefreshTTLDays)
	}
	if sc.RefreshTokenTTL != 30*24*time.Hour {
		t.Errorf("refresh ttl %v", sc.RefreshTokenTTL)
	}
}

func TestRefreshTTLIsADayCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
oauth:
  refresh_ttl_days: 7
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := c.ServerConfig().RefreshTokenTTL; got != 7*24*time.Hour {
		t.Errorf("refresh ttl %v", got)
	}

	t.Setenv("OAUTH_REFRESH_TTL_DAYS", "2")
	c, err = Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := c.ServerConfig().RefreshTokenTTL; got != 48*time.Hour {
		t.Errorf("refresh ttl %v", got)
	}

	t.Setenv("OAUTH_REFRESH_TTL_DAYS", "-1")
	if _, err := Load(path); err == nil {
		t.Error("negative day count accepted")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
app:
  app_env: staging
server:
  addr: ":9000"
oauth:
  access_ttl: 30m
  default_scope: post
  scope_delimiter: " "
rate:
  enabled: true
  max_requests: 10
  window: 30s
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.App.Env != "staging" {
		t.Errorf("env %q", c.App.Env)
	}
	if c.Server.Addr != ":9000" {
		t.Errorf("addr %q", c.Server.Addr)
	}
	sc := c.ServerConfig()
	if sc.AccessTokenTTL != 30*time.Minute {
		t.Errorf("access ttl %v", sc.AccessTokenTTL)
	}
	if sc.DefaultScope != "post" || sc.ScopeDelimiter != " " {
		t.Errorf("scope config %q/%q", sc.DefaultScope, sc.ScopeDelimiter)
	}
	if !c.Rate.Enabled || c.Rate.MaxRequests != 10 || c.RateWindow() != 30*time.Second {
		t.Errorf("rate config %+v", c.Rate)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("OAUTH_DEFAULT_SCOPE", "usercp")
	t.Setenv("RATE_ENABLED", "true")
	t.Setenv("RATE_MAX_REQUESTS", "5")

	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Addr != ":7070" {
		t.Errorf("addr %q", c.Server.Addr)
	}
	if c.OAuth.DefaultScope != "usercp" {
		t.Errorf("default scope %q", c.OAuth.DefaultScope)
	}
	if !c.Rate.Enabled || c.Rate.MaxRequests != 5 {
		t.Errorf("rate %+v", c.Rate)
	}
}

func TestValidate(t *testing.T) {
	t.Run("postgres requires a dsn", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "postgres")
		if _, err := Load(""); err == nil {
			t.Error("expected an error")
		}
		t.Setenv("STORAGE_DSN", "postgres://localhost/littlejohn")
		if _, err := Load(""); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("redis cache requires an addr", func(t *testing.T) {
		t.Setenv("CACHE_KIND", "redis")
		if _, err := Load(""); err == nil {
			t.Error("expected an error")
		}
		t.Setenv("REDIS_ADDR", "localhost:6379")
		if _, err := Load(""); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("prod requires a login token secret", func(t *testing.T) {
		t.Setenv("APP_ENV", "prod")
		if _, err := Load(""); err == nil {
			t.Error("expected an error")
		}
		t.Setenv("AUTH_LOGIN_TOKEN_SECRET", "s")
		if _, err := Load(""); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("malformed duration is refused", func(t *testing.T) {
		t.Setenv("OAUTH_ACCESS_TTL", "soon")
		if _, err := Load(""); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("unknown storage driver is refused", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "sqlite")
		if _, err := Load(""); err == nil {
			t.Error("expected an error")
		}
	})
}
