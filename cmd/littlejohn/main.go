package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/littlejohn/internal/authn"
	"github.com/dropDatabas3/littlejohn/internal/cache"
	"github.com/dropDatabas3/littlejohn/internal/config"
	httpserver "github.com/dropDatabas3/littlejohn/internal/http"
	"github.com/dropDatabas3/littlejohn/internal/metrics"
	"github.com/dropDatabas3/littlejohn/internal/oauth2"
	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
	"github.com/dropDatabas3/littlejohn/internal/rate"
	"github.com/dropDatabas3/littlejohn/internal/security/logintoken"
	"github.com/dropDatabas3/littlejohn/internal/security/password"
	"github.com/dropDatabas3/littlejohn/internal/store/cached"
	"github.com/dropDatabas3/littlejohn/internal/store/memory"
	"github.com/dropDatabas3/littlejohn/internal/store/pg"
	pgmigrations "github.com/dropDatabas3/littlejohn/migrations/postgres"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string

	root := &cobra.Command{
		Use:   "littlejohn",
		Short: "OAuth2 authorization and resource server",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("CONFIG_PATH"), "path to config.yaml")

	root.AddCommand(serveCmd(&cfgPath))
	root.AddCommand(migrateCmd(&cfgPath))
	root.AddCommand(secretHashCmd())
	root.AddCommand(loginTokenCmd(&cfgPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}

			logger.Init(logger.Config{
				Env:         cfg.App.Env,
				Level:       os.Getenv("LOG_LEVEL"),
				ServiceName: "littlejohn",
			})
			defer func() { _ = logger.Sync() }()

			if err := metrics.Register(nil); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			storage, cleanup, err := buildStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			srv := oauth2.NewServer(cfg.ServerConfig(), storage)
			srv.RegisterGrant(oauth2.NewAuthorizationCodeGrant())
			srv.RegisterGrant(oauth2.NewClientCredentialsGrant())
			srv.RegisterGrant(oauth2.NewRefreshTokenGrant())
			srv.RegisterGrant(oauth2.NewPasswordGrant(buildAuthenticator(cfg)))

			handler := httpserver.NewRouter(httpserver.RouterDeps{
				Server:      srv,
				Limiter:     buildLimiter(cfg),
				LoginSecret: []byte(cfg.Auth.LoginTokenSecret),
			})

			return httpserver.Serve(ctx, cfg.Server.Addr, handler)
		},
	}
}

func migrateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply postgres schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != "postgres" {
				return fmt.Errorf("migrate requires the postgres storage driver, got %q", cfg.Storage.Driver)
			}

			logger.Init(logger.Config{Env: cfg.App.Env, Level: os.Getenv("LOG_LEVEL")})
			defer func() { _ = logger.Sync() }()

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			pool, err := pg.Connect(ctx, cfg.Storage.DSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			return pg.RunMigrations(ctx, pool, pgmigrations.FS)
		},
	}
}

func secretHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "secret-hash <plaintext>",
		Short: "Hash a client secret or user password for storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			phc, err := password.Hash(password.Default, args[0])
			if err != nil {
				return err
			}
			fmt.Println(phc)
			return nil
		},
	}
}

func loginTokenCmd(cfgPath *string) *cobra.Command {
	var ownerType string
	c := &cobra.Command{
		Use:   "login-token <owner-id>",
		Short: "Sign a login token for the authorize endpoint (dev)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			tok, err := logintoken.Sign(
				[]byte(cfg.Auth.LoginTokenSecret), ownerType, args[0], cfg.LoginTokenTTL())
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	c.Flags().StringVar(&ownerType, "owner-type", "user", "owner type: user|client")
	return c
}

func buildStorage(ctx context.Context, cfg *config.Config) (oauth2.Storage, func(), error) {
	var (
		storage oauth2.Storage
		cleanup = func() {}
	)

	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := pg.Connect(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, err
		}
		cleanup = pool.Close
		if cfg.Flags.Migrate {
			if err := pg.RunMigrations(ctx, pool, pgmigrations.FS); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		storage = pg.New(pool)
	default:
		mem := memory.New()
		if dc := cfg.Auth.DevClient; dc.ID != "" {
			mem.SaveClient(&oauth2.Client{
				ID:           dc.ID,
				SecretHash:   dc.SecretHash,
				RedirectURI:  dc.RedirectURI,
				Confidential: dc.Confidential,
				Scopes:       dc.Scopes,
			})
		}
		storage = mem
	}

	c, err := cache.New(cache.Config{
		Driver:   cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return cached.Wrap(storage, c, cfg.CacheTokenTTL()), cleanup, nil
}

func buildLimiter(cfg *config.Config) rate.Limiter {
	if !cfg.Rate.Enabled || cfg.Cache.Redis.Addr == "" {
		return rate.Noop{}
	}
	client := rdb.NewClient(&rdb.Options{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
	return rate.NewRedisLimiter(client, "rl:", cfg.Rate.MaxRequests, cfg.RateWindow())
}

func buildAuthenticator(cfg *config.Config) *authn.Static {
	du := cfg.Auth.DevUser
	if du.Username == "" {
		return authn.NewStatic()
	}
	return authn.NewStatic(authn.User{
		ID:           du.ID,
		Username:     du.Username,
		PasswordHash: du.PasswordHash,
	})
}
