package oauth2

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
)

// RefreshTokenGrant reissues an access token from a refresh token, rotating
// the refresh token in the process. The granted scope set is never wider
// than the original grant.
type RefreshTokenGrant struct {
	baseGrant
}

func NewRefreshTokenGrant() *RefreshTokenGrant {
	return &RefreshTokenGrant{}
}

func (g *RefreshTokenGrant) GrantType() string { return GrantRefreshToken }

func (g *RefreshTokenGrant) Grant(ctx context.Context, st Stores, req TokenRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Op("oauth2.grant.refresh"))

	client, err := validateClient(ctx, st, req)
	if err != nil {
		return nil, err
	}
	if req.RefreshToken == "" {
		return nil, invalidRequest("refresh_token")
	}

	rt, err := st.RefreshTokens.Get(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("refresh token not found", logger.ClientID(client.ID))
			return nil, NewError(KindInvalidGrant, "refresh token is invalid")
		}
		return nil, ServerError(err)
	}
	if rt.ClientID != client.ID {
		return nil, NewError(KindInvalidGrant, "refresh token was issued to another client")
	}
	if rt.Expired(time.Now()) {
		return nil, NewError(KindInvalidGrant, "refresh token has expired")
	}

	orig, err := st.RefreshTokens.Access(ctx, rt)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewError(KindInvalidGrant, "refresh token no longer renews a known grant")
		}
		return nil, ServerError(err)
	}

	scopes, err := g.reissueScopes(ctx, st, orig, req.Scope)
	if err != nil {
		return nil, err
	}

	// Rotate: the old pair goes away before the new one is written, all
	// inside the issuance transaction.
	if err := st.RefreshTokens.RevokeAccess(ctx, rt); err != nil {
		return nil, ServerError(err)
	}
	if err := st.RefreshTokens.Delete(ctx, rt.Token); err != nil {
		return nil, ServerError(err)
	}

	return g.srv.issueTokens(ctx, st, orig.OwnerType, orig.OwnerID, client.ID, scopes, true)
}

// reissueScopes resolves the scope set for the new token. An omitted scope
// parameter reissues the original set; a requested set must be a subset of
// it.
func (g *RefreshTokenGrant) reissueScopes(ctx context.Context, st Stores, orig *AccessToken, raw string) (ScopeSet, error) {
	if raw == "" {
		return orig.Scopes, nil
	}

	cfg := g.srv.Config()
	requested, err := ResolveScopes(ctx, st.Scopes, raw, cfg.ScopeDelimiter, cfg.DefaultScope)
	if err != nil {
		return nil, ServerError(err)
	}
	if !requested.SubsetOf(orig.Scopes) {
		return nil, NewError(KindInvalidScope, "requested scopes exceed the original grant")
	}
	return requested, nil
}
