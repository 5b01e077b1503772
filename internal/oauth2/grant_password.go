package oauth2

import (
	"context"

	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
)

// Authenticator verifies resource-owner credentials for the password grant.
// The host injects the implementation; the server never sees password
// mechanics beyond this call.
type Authenticator interface {
	// VerifyCredentials returns the owner id when the pair is valid. A
	// non-nil error signals an infrastructure failure, not a bad password.
	VerifyCredentials(ctx context.Context, username, password string) (ownerID string, ok bool, err error)
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(ctx context.Context, username, password string) (string, bool, error)

func (f AuthenticatorFunc) VerifyCredentials(ctx context.Context, username, password string) (string, bool, error) {
	return f(ctx, username, password)
}

// PasswordGrant implements the resource-owner credentials flow.
type PasswordGrant struct {
	baseGrant
	authn Authenticator
}

func NewPasswordGrant(authn Authenticator) *PasswordGrant {
	return &PasswordGrant{authn: authn}
}

func (g *PasswordGrant) GrantType() string { return GrantPassword }

func (g *PasswordGrant) Grant(ctx context.Context, st Stores, req TokenRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Op("oauth2.grant.password"))

	client, err := validateClient(ctx, st, req)
	if err != nil {
		return nil, err
	}
	if req.Username == "" {
		return nil, invalidRequest("username")
	}
	if req.Password == "" {
		return nil, invalidRequest("password")
	}
	if g.authn == nil {
		return nil, NewError(KindServerError, "no credential verifier configured")
	}

	ownerID, ok, err := g.authn.VerifyCredentials(ctx, req.Username, req.Password)
	if err != nil {
		return nil, ServerError(err)
	}
	if !ok {
		log.Warn("credential verification failed", logger.ClientID(client.ID))
		return nil, NewError(KindAccessDenied, "the resource owner could not be authenticated")
	}

	cfg := g.srv.Config()
	scopes, err := ResolveScopes(ctx, st.Scopes, req.Scope, cfg.ScopeDelimiter, cfg.DefaultScope)
	if err != nil {
		return nil, ServerError(err)
	}

	return g.srv.issueTokens(ctx, st, OwnerUser, ownerID, client.ID, scopes, true)
}
