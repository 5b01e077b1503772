package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/littlejohn/internal/http/controllers/api"
	oauthctl "github.com/dropDatabas3/littlejohn/internal/http/controllers/oauth"
	"github.com/dropDatabas3/littlejohn/internal/http/middlewares"
	"github.com/dropDatabas3/littlejohn/internal/oauth2"
	"github.com/dropDatabas3/littlejohn/internal/rate"
)

// RouterDeps carries everything the router wires together.
type RouterDeps struct {
	Server      *oauth2.AuthorizationServer
	Limiter     rate.Limiter
	LoginSecret []byte
}

// tokenEndpointMaxBytes caps the token endpoint form body.
const tokenEndpointMaxBytes = 64 << 10

// NewRouter builds the HTTP surface: the two protocol endpoints, a sample
// protected resource, health, and metrics.
func NewRouter(d RouterDeps) http.Handler {
	token := oauthctl.NewTokenController(d.Server)
	authorize := oauthctl.NewAuthorizeController(d.Server, d.LoginSecret)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middlewares.WithRequestID())
	r.Use(middlewares.WithLogging())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Method(http.MethodPost, "/oauth/token", middlewares.ChainFunc(
		token.Token,
		middlewares.WithMaxBytes(tokenEndpointMaxBytes),
		middlewares.WithRateLimit(d.Limiter),
	))

	r.Get("/oauth/authorize", authorize.Authorize)
	r.Post("/oauth/authorize", authorize.Decide)

	r.Group(func(r chi.Router) {
		r.Use(middlewares.WithBearerToken(d.Server))
		r.With(middlewares.RequireScope(oauth2.ScopeRead)).
			Get("/api/me", api.Me)
	})

	return r
}
