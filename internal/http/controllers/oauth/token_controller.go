// Package oauth holds the controllers for the protocol endpoints.
package oauth

import (
	"net/http"
	"time"

	httperrors "github.com/dropDatabas3/littlejohn/internal/http/errors"
	"github.com/dropDatabas3/littlejohn/internal/metrics"
	"github.com/dropDatabas3/littlejohn/internal/oauth2"
	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
)

// TokenController handles POST /oauth/token.
type TokenController struct {
	srv *oauth2.AuthorizationServer
}

func NewTokenController(srv *oauth2.AuthorizationServer) *TokenController {
	return &TokenController{srv: srv}
}

func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.token"))
	start := time.Now()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteOAuthError(w, r,
			oauth2.NewError(oauth2.KindInvalidRequest, "only POST is allowed"), "")
		return
	}

	if err := r.ParseForm(); err != nil {
		log.Warn("failed to parse form", logger.Err(err))
		httperrors.WriteOAuthError(w, r,
			oauth2.NewError(oauth2.KindInvalidRequest, "invalid form data"), "")
		return
	}

	req := oauth2.TokenRequestFromValues(r.PostForm)
	resp, err := c.srv.IssueAccessToken(ctx, req)
	metrics.TokenRequestDuration.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		e := oauth2.AsError(err)
		metrics.GrantFailures.WithLabelValues(req.GrantType, string(e.Kind)).Inc()
		httperrors.WriteOAuthError(w, r, e, "")
		return
	}

	metrics.TokensIssued.WithLabelValues(req.GrantType).Inc()

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	httperrors.WriteJSON(w, http.StatusOK, resp)
}
