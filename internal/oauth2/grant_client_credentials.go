package oauth2

import (
	"context"
	"strings"
)

// ClientCredentialsGrant issues machine-to-machine tokens with no owner
// context: the client itself is the owner.
type ClientCredentialsGrant struct {
	baseGrant
}

func NewClientCredentialsGrant() *ClientCredentialsGrant {
	return &ClientCredentialsGrant{}
}

func (g *ClientCredentialsGrant) GrantType() string { return GrantClientCredentials }

func (g *ClientCredentialsGrant) Grant(ctx context.Context, st Stores, req TokenRequest) (*TokenResponse, error) {
	client, err := validateClient(ctx, st, req)
	if err != nil {
		return nil, err
	}

	scopes, err := g.resolveScopes(ctx, st, client, req.Scope)
	if err != nil {
		return nil, err
	}

	// No refresh token: the client can always re-authenticate.
	return g.srv.issueTokens(ctx, st, OwnerClient, client.ID, client.ID, scopes, false)
}

// resolveScopes grants the intersection of the requested scopes and the
// client's default set. An omitted scope parameter grants the defaults.
func (g *ClientCredentialsGrant) resolveScopes(ctx context.Context, st Stores, client *Client, raw string) (ScopeSet, error) {
	cfg := g.srv.Config()

	defaults := client.Scopes
	if len(defaults) == 0 {
		defaults = []string{cfg.DefaultScope}
	}
	defaultSet, err := ResolveScopes(ctx, st.Scopes, strings.Join(defaults, cfg.ScopeDelimiter), cfg.ScopeDelimiter, cfg.DefaultScope)
	if err != nil {
		return nil, ServerError(err)
	}

	if raw == "" {
		return defaultSet, nil
	}

	requested, err := ResolveScopes(ctx, st.Scopes, raw, cfg.ScopeDelimiter, cfg.DefaultScope)
	if err != nil {
		return nil, ServerError(err)
	}
	granted := requested.Intersect(defaultSet)
	if len(granted) == 0 {
		return nil, NewError(KindInvalidScope, "requested scopes are not permitted for this client")
	}
	return granted, nil
}
