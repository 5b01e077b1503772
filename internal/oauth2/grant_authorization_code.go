package oauth2

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
	tokens "github.com/dropDatabas3/littlejohn/internal/security/token"
)

// AuthorizationCodeGrant implements the three-phase authorization-code flow:
// authorize pre-flight, code grant, and code exchange.
type AuthorizationCodeGrant struct {
	baseGrant
}

func NewAuthorizationCodeGrant() *AuthorizationCodeGrant {
	return &AuthorizationCodeGrant{}
}

func (g *AuthorizationCodeGrant) GrantType() string { return GrantAuthorizationCode }

// CheckAuthorizeParams validates an authorize request. Errors raised before
// the redirect URI is validated reject outright; later ones are
// redirect-eligible. No code is generated here.
func (g *AuthorizationCodeGrant) CheckAuthorizeParams(ctx context.Context, st Stores, req AuthorizeRequest) (*AuthorizeParams, error) {
	if req.ClientID == "" {
		return nil, invalidRequest("client_id")
	}
	if req.RedirectURI == "" {
		return nil, invalidRequest("redirect_uri")
	}

	client, err := st.Clients.Get(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewError(KindInvalidClient, "client is invalid")
		}
		return nil, ServerError(err)
	}

	// Exact match only. A redirect URI we cannot trust is never redirected to.
	if client.RedirectURI != req.RedirectURI {
		return nil, NewError(KindInvalidRequest, "redirect_uri does not match the registered value")
	}

	if req.ResponseType != "code" {
		return nil, invalidRequest("response_type").WithRedirect(req.RedirectURI)
	}

	cfg := g.srv.Config()
	scopes, err := ResolveScopes(ctx, st.Scopes, req.Scope, cfg.ScopeDelimiter, cfg.DefaultScope)
	if err != nil {
		return nil, ServerError(err)
	}

	return &AuthorizeParams{
		Client:      client,
		Scopes:      scopes,
		RedirectURI: req.RedirectURI,
		State:       req.State,
	}, nil
}

// NewAuthorizeRequest persists the session and the single-use code for the
// authenticated owner and returns the redirect target.
func (g *AuthorizationCodeGrant) NewAuthorizeRequest(ctx context.Context, st Stores, ownerType OwnerType, ownerID string, params *AuthorizeParams) (string, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		OwnerType: ownerType,
		OwnerID:   ownerID,
		ClientID:  params.Client.ID,
		Scopes:    params.Scopes,
	}
	if err := st.Sessions.Create(ctx, sess); err != nil {
		return "", ServerError(err)
	}

	code, err := tokens.GenerateOpaqueToken(opaqueTokenBytes)
	if err != nil {
		return "", ServerError(err)
	}
	ac := &AuthCode{
		Code:        code,
		ExpiresAt:   time.Now().Add(g.srv.Config().AuthCodeTTL),
		RedirectURI: params.RedirectURI,
		Scopes:      params.Scopes,
		OwnerType:   ownerType,
		OwnerID:     ownerID,
		ClientID:    params.Client.ID,
		SessionID:   sess.ID,
	}
	if err := st.AuthCodes.Create(ctx, ac); err != nil {
		return "", ServerError(err)
	}

	loc := addQuery(params.RedirectURI, "code", code)
	if params.State != "" {
		loc = addQuery(loc, "state", params.State)
	}
	return loc, nil
}

// Grant exchanges a code for tokens. The code is invalidated before the
// access token is created so a crash mid-exchange can never leave it usable
// twice; both writes sit inside the issuance transaction.
func (g *AuthorizationCodeGrant) Grant(ctx context.Context, st Stores, req TokenRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Op("oauth2.grant.authcode"))

	client, err := validateClient(ctx, st, req)
	if err != nil {
		return nil, err
	}
	if req.Code == "" {
		return nil, invalidRequest("code")
	}
	if req.RedirectURI == "" {
		return nil, invalidRequest("redirect_uri")
	}

	ac, err := st.AuthCodes.Get(ctx, req.Code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("authorization code not found", logger.ClientID(client.ID))
			return nil, NewError(KindInvalidGrant, "authorization code is invalid")
		}
		return nil, ServerError(err)
	}
	if ac.ClientID != client.ID {
		return nil, NewError(KindInvalidGrant, "authorization code was issued to another client")
	}
	if ac.Expired(time.Now()) {
		return nil, NewError(KindInvalidGrant, "authorization code has expired")
	}
	if ac.RedirectURI != req.RedirectURI {
		return nil, NewError(KindInvalidGrant, "redirect_uri does not match the authorization request")
	}

	// The session created at authorize time must still back every scope the
	// code carries.
	for _, sc := range ac.Scopes {
		ok, err := st.Sessions.HasScope(ctx, ac.SessionID, sc.ID)
		if err != nil {
			return nil, ServerError(err)
		}
		if !ok {
			return nil, NewError(KindInvalidGrant, "authorization code scope is no longer granted")
		}
	}

	if err := st.AuthCodes.Delete(ctx, ac.Code); err != nil {
		return nil, ServerError(err)
	}

	return g.srv.issueTokens(ctx, st, ac.OwnerType, ac.OwnerID, client.ID, ac.Scopes, true)
}
