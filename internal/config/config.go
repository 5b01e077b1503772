package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/littlejohn/internal/oauth2"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		// TokenTTL caps how long a validated access token stays cached.
		TokenTTL string `yaml:"token_ttl"`
	} `yaml:"cache"`

	OAuth struct {
		AccessTTL   string `yaml:"access_ttl"`
		AuthCodeTTL string `yaml:"auth_code_ttl"`
		// RefreshTTLDays is a whole-day count, not a duration string.
		RefreshTTLDays int    `yaml:"refresh_ttl_days"`
		DefaultScope   string `yaml:"default_scope"`
		ScopeDelimiter string `yaml:"scope_delimiter"`
		TokenParam     string `yaml:"token_param"`
	} `yaml:"oauth"`

	Auth struct {
		// LoginTokenSecret signs the short-lived tokens the authorize
		// endpoint accepts as proof of an authenticated owner.
		LoginTokenSecret string `yaml:"login_token_secret"`
		LoginTokenTTL    string `yaml:"login_token_ttl"`

		// DevUser backs the password grant when no external user store is
		// wired. Dev and test only.
		DevUser struct {
			ID           string `yaml:"id"`
			Username     string `yaml:"username"`
			PasswordHash string `yaml:"password_hash"`
		} `yaml:"dev_user"`

		// DevClient is seeded into the memory storage driver so a fresh dev
		// server has a usable client.
		DevClient struct {
			ID           string   `yaml:"id"`
			SecretHash   string   `yaml:"secret_hash"`
			RedirectURI  string   `yaml:"redirect_uri"`
			Confidential bool     `yaml:"confidential"`
			Scopes       []string `yaml:"scopes"`
		} `yaml:"dev_client"`
	} `yaml:"auth"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		MaxRequests int    `yaml:"max_requests"`
		Window      string `yaml:"window"`
	} `yaml:"rate"`

	Flags struct {
		Migrate bool `yaml:"migrate"`
	} `yaml:"flags"`
}

func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.TokenTTL == "" {
		c.Cache.TokenTTL = "2m"
	}
	if c.OAuth.AccessTTL == "" {
		c.OAuth.AccessTTL = "1h"
	}
	if c.OAuth.AuthCodeTTL == "" {
		c.OAuth.AuthCodeTTL = "10m"
	}
	if c.OAuth.RefreshTTLDays == 0 {
		c.OAuth.RefreshTTLDays = 30
	}
	if c.Auth.LoginTokenTTL == "" {
		c.Auth.LoginTokenTTL = "5m"
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 60
	}

	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks duration strings and cross-field constraints.
func (c *Config) Validate() error {
	for _, d := range []string{
		c.Cache.TokenTTL, c.OAuth.AccessTTL, c.OAuth.AuthCodeTTL,
		c.Auth.LoginTokenTTL, c.Rate.Window,
	} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return err
		}
	}
	if c.OAuth.RefreshTTLDays < 0 {
		return errors.New("config: oauth.refresh_ttl_days must not be negative")
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return errors.New("config: storage.dsn is required for the postgres driver")
		}
	default:
		return errors.New("config: unknown storage driver " + c.Storage.Driver)
	}
	if c.Cache.Kind == "redis" && c.Cache.Redis.Addr == "" {
		return errors.New("config: cache.redis.addr is required for the redis cache")
	}
	if strings.EqualFold(c.App.Env, "prod") && c.Auth.LoginTokenSecret == "" {
		return errors.New("config: auth.login_token_secret is required in prod")
	}
	return nil
}

// ServerConfig maps the duration strings onto the protocol configuration.
// Call after Validate: malformed durations fall back to defaults here.
func (c *Config) ServerConfig() oauth2.Config {
	parse := func(s string) time.Duration {
		d, _ := time.ParseDuration(s)
		return d
	}
	return oauth2.Config{
		AccessTokenTTL:  parse(c.OAuth.AccessTTL),
		AuthCodeTTL:     parse(c.OAuth.AuthCodeTTL),
		RefreshTokenTTL: time.Duration(c.OAuth.RefreshTTLDays) * 24 * time.Hour,
		DefaultScope:    c.OAuth.DefaultScope,
		ScopeDelimiter:  c.OAuth.ScopeDelimiter,
		TokenParam:      c.OAuth.TokenParam,
	}
}

// CacheTokenTTL returns the parsed access-token cache cap.
func (c *Config) CacheTokenTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.TokenTTL)
	return d
}

// RateWindow returns the parsed rate-limit window.
func (c *Config) RateWindow() time.Duration {
	d, _ := time.ParseDuration(c.Rate.Window)
	return d
}

// LoginTokenTTL returns the parsed login-token lifetime.
func (c *Config) LoginTokenTTL() time.Duration {
	d, _ := time.ParseDuration(c.Auth.LoginTokenTTL)
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// applyEnvOverrides lets the environment win over the YAML file.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}

	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvStr("CACHE_TOKEN_TTL"); ok {
		c.Cache.TokenTTL = v
	}

	if v, ok := getEnvStr("OAUTH_ACCESS_TTL"); ok {
		c.OAuth.AccessTTL = v
	}
	if v, ok := getEnvStr("OAUTH_AUTH_CODE_TTL"); ok {
		c.OAuth.AuthCodeTTL = v
	}
	if v, ok := getEnvInt("OAUTH_REFRESH_TTL_DAYS"); ok {
		c.OAuth.RefreshTTLDays = v
	}
	if v, ok := getEnvStr("OAUTH_DEFAULT_SCOPE"); ok {
		c.OAuth.DefaultScope = v
	}
	if v, ok := getEnvStr("OAUTH_SCOPE_DELIMITER"); ok {
		c.OAuth.ScopeDelimiter = v
	}
	if v, ok := getEnvStr("OAUTH_TOKEN_PARAM"); ok {
		c.OAuth.TokenParam = v
	}

	if v, ok := getEnvStr("AUTH_LOGIN_TOKEN_SECRET"); ok {
		c.Auth.LoginTokenSecret = v
	}
	if v, ok := getEnvStr("AUTH_LOGIN_TOKEN_TTL"); ok {
		c.Auth.LoginTokenTTL = v
	}
	if v, ok := getEnvStr("AUTH_DEV_USER_ID"); ok {
		c.Auth.DevUser.ID = v
	}
	if v, ok := getEnvStr("AUTH_DEV_USER_USERNAME"); ok {
		c.Auth.DevUser.Username = v
	}
	if v, ok := getEnvStr("AUTH_DEV_USER_PASSWORD_HASH"); ok {
		c.Auth.DevUser.PasswordHash = v
	}
	if v, ok := getEnvStr("AUTH_DEV_CLIENT_ID"); ok {
		c.Auth.DevClient.ID = v
	}
	if v, ok := getEnvStr("AUTH_DEV_CLIENT_SECRET_HASH"); ok {
		c.Auth.DevClient.SecretHash = v
	}
	if v, ok := getEnvStr("AUTH_DEV_CLIENT_REDIRECT_URI"); ok {
		c.Auth.DevClient.RedirectURI = v
	}
	if v, ok := getEnvBool("AUTH_DEV_CLIENT_CONFIDENTIAL"); ok {
		c.Auth.DevClient.Confidential = v
	}
	if v, ok := getEnvStr("AUTH_DEV_CLIENT_SCOPES"); ok {
		c.Auth.DevClient.Scopes = strings.Split(v, ",")
	}

	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}
	if v, ok := getEnvStr("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}

	if v, ok := getEnvBool("FLAGS_MIGRATE"); ok {
		c.Flags.Migrate = v
	}
}
