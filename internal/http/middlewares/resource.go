package middlewares

import (
	"context"
	"net/http"

	httperrors "github.com/dropDatabas3/littlejohn/internal/http/errors"
	"github.com/dropDatabas3/littlejohn/internal/metrics"
	"github.com/dropDatabas3/littlejohn/internal/oauth2"
	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
)

type resourceServerKey struct{}

// WithBearerToken builds one token validator per request and parses the
// bearer token exactly once. Requests without a valid token continue as
// anonymous; scope enforcement happens in RequireScope.
func WithBearerToken(srv *oauth2.AuthorizationServer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rs := oauth2.NewResourceServer(srv)
			rs.ParseRequest(r)

			ctx := context.WithValue(r.Context(), resourceServerKey{}, rs)
			if tok := rs.Token(); tok != nil {
				reqLog := logger.From(ctx).With(
					logger.ClientID(tok.ClientID),
					logger.OwnerID(tok.OwnerID),
				)
				ctx = logger.ToContext(ctx, reqLog)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessTokenFrom returns the token parsed for this request, nil when the
// request is anonymous or WithBearerToken did not run.
func AccessTokenFrom(ctx context.Context) *oauth2.AccessToken {
	if rs, ok := ctx.Value(resourceServerKey{}).(*oauth2.ResourceServer); ok {
		return rs.Token()
	}
	return nil
}

// RequireScope refuses requests whose token does not grant every listed
// scope. WithBearerToken must run first.
func RequireScope(scopes ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rs, ok := r.Context().Value(resourceServerKey{}).(*oauth2.ResourceServer)
			if !ok {
				httperrors.WriteOAuthError(w, r, oauth2.NewError(oauth2.KindServerError, "token validation is not configured"), "")
				return
			}
			if _, err := rs.ValidateRequest(r, scopes...); err != nil {
				e := oauth2.AsError(err)
				metrics.ResourceRequests.WithLabelValues(string(e.Kind)).Inc()
				httperrors.WriteOAuthError(w, r, e, "")
				return
			}
			metrics.ResourceRequests.WithLabelValues("ok").Inc()
			next.ServeHTTP(w, r)
		})
	}
}
