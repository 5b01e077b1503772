package oauth2

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
)

// ResourceServer validates bearer tokens on protected requests. One instance
// serves exactly one request: the token is extracted at most once and the
// result is reused for every scope check on that request.
type ResourceServer struct {
	srv    *AuthorizationServer
	parsed bool
	token  *AccessToken
}

// NewResourceServer builds a validator bound to the server's storage and
// configuration. Callers create one per incoming request.
func NewResourceServer(srv *AuthorizationServer) *ResourceServer {
	return &ResourceServer{srv: srv}
}

// ParseRequest extracts and looks up the bearer token carried by r. A
// request that carries no token, an unknown token, or whose lookup fails is
// treated as anonymous and yields nil. Expiry is not checked here; an
// expired token is still returned so ValidateRequest can name the failure.
//
// Calling ParseRequest twice on the same instance is a programming error and
// panics.
func (rs *ResourceServer) ParseRequest(r *http.Request) *AccessToken {
	if rs.parsed {
		panic("oauth2: request already parsed")
	}
	rs.parsed = true

	raw := rs.bearerToken(r)
	if raw == "" {
		return nil
	}

	ctx := r.Context()
	tok, err := rs.srv.Storage().Stores().AccessTokens.Get(ctx, raw)
	if err != nil {
		rs.logParseFailure(ctx, err)
		return nil
	}
	rs.token = tok
	return tok
}

// Token returns the result of ParseRequest, or nil when the request was
// anonymous or not yet parsed.
func (rs *ResourceServer) Token() *AccessToken { return rs.token }

// ValidateRequest requires an unexpired token granting every scope in
// required. It parses the request on first use.
func (rs *ResourceServer) ValidateRequest(r *http.Request, required ...string) (*AccessToken, error) {
	if !rs.parsed {
		rs.ParseRequest(r)
	}
	if rs.token == nil {
		return nil, NewError(KindAccessDenied, "an access token is required")
	}
	if rs.token.Expired(time.Now()) {
		return nil, NewError(KindExpiredToken, "the access token has expired")
	}
	for _, id := range required {
		if !rs.token.Scopes.Has(id) {
			return nil, NewError(KindInsufficientScope, "the access token does not grant scope "+id)
		}
	}
	return rs.token, nil
}

// bearerToken pulls the token from the Authorization header, falling back to
// the configured request parameter.
func (rs *ResourceServer) bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], TokenTypeBearer) {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.FormValue(rs.srv.Config().TokenParam)
}

func (rs *ResourceServer) logParseFailure(ctx context.Context, err error) {
	log := logger.From(ctx).With(logger.Op("oauth2.resource.parse"))
	if err == nil {
		return
	}
	// Unknown tokens are routine; anything else is worth a look.
	if errors.Is(err, ErrNotFound) {
		log.Debug("bearer token not found", logger.Err(err))
		return
	}
	log.Warn("bearer token lookup failed", logger.Err(err))
}
