package oauth2

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
	tokens "github.com/dropDatabas3/littlejohn/internal/security/token"
)

// Wire values of the supported grant types.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"
	GrantRefreshToken      = "refresh_token"
)

// TokenTypeBearer is the only token type the server issues.
const TokenTypeBearer = "Bearer"

const opaqueTokenBytes = 32

// Config holds the server's issuance parameters. It is read-only after
// construction and safe for concurrent use.
type Config struct {
	AccessTokenTTL  time.Duration
	AuthCodeTTL     time.Duration
	RefreshTokenTTL time.Duration

	// DefaultScope is applied when a request omits the scope parameter
	// entirely.
	DefaultScope string

	// ScopeDelimiter separates scope identifiers in wire format.
	ScopeDelimiter string

	// TokenParam is the query/form parameter the resource server falls back
	// to when no Authorization header is present.
	TokenParam string
}

func (c Config) withDefaults() Config {
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = time.Hour
	}
	if c.AuthCodeTTL <= 0 {
		c.AuthCodeTTL = 10 * time.Minute
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.DefaultScope == "" {
		c.DefaultScope = ScopeRead
	}
	if c.ScopeDelimiter == "" {
		c.ScopeDelimiter = ","
	}
	if c.TokenParam == "" {
		c.TokenParam = "oauth_token"
	}
	return c
}

// GrantHandler is one grant-type state machine. Grant runs inside the
// issuance transaction; any returned error rolls back its writes.
type GrantHandler interface {
	GrantType() string
	Grant(ctx context.Context, st Stores, req TokenRequest) (*TokenResponse, error)

	setServer(s *AuthorizationServer)
}

// baseGrant gives every handler access to the server's config and helpers.
type baseGrant struct {
	srv *AuthorizationServer
}

func (g *baseGrant) setServer(s *AuthorizationServer) { g.srv = s }

// AuthorizationServer owns the issuance configuration, the registered grant
// handlers, and the storage boundary. Build one at startup and share it
// across requests.
type AuthorizationServer struct {
	cfg    Config
	store  Storage
	grants map[string]GrantHandler
	log    *zap.Logger
}

// NewServer builds a server around the given storage. Grant handlers are
// registered separately with RegisterGrant.
func NewServer(cfg Config, store Storage) *AuthorizationServer {
	return &AuthorizationServer{
		cfg:    cfg.withDefaults(),
		store:  store,
		grants: make(map[string]GrantHandler),
		log:    logger.Named("oauth2"),
	}
}

// Config returns the effective configuration after defaults.
func (s *AuthorizationServer) Config() Config { return s.cfg }

// Storage returns the server's persistence boundary.
func (s *AuthorizationServer) Storage() Storage { return s.store }

// RegisterGrant wires a grant handler into the dispatch table.
func (s *AuthorizationServer) RegisterGrant(h GrantHandler) {
	h.setServer(s)
	s.grants[h.GrantType()] = h
}

// IssueAccessToken identifies the grant type, dispatches to the matching
// handler, and returns the token response. The whole exchange runs in one
// transaction: on any protocol error every write is rolled back.
func (s *AuthorizationServer) IssueAccessToken(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if req.GrantType == "" {
		return nil, invalidRequest("grant_type")
	}
	h, ok := s.grants[req.GrantType]
	if !ok {
		return nil, NewError(KindUnsupportedGrantType, "grant type is not supported: "+req.GrantType)
	}

	var resp *TokenResponse
	err := s.store.RunInTx(ctx, func(ctx context.Context, st Stores) error {
		r, err := h.Grant(ctx, st, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, AsError(err)
	}

	s.log.Info("access token issued",
		logger.GrantType(req.GrantType),
		logger.ClientID(req.ClientID),
		logger.Scope(resp.Scope),
	)
	return resp, nil
}

// CheckAuthorizeParams runs the authorization-code pre-flight: it validates
// client, redirect URI, response type, and scopes, without writing anything.
func (s *AuthorizationServer) CheckAuthorizeParams(ctx context.Context, req AuthorizeRequest) (*AuthorizeParams, error) {
	g, err := s.authCodeGrant()
	if err != nil {
		return nil, err
	}
	params, err := g.CheckAuthorizeParams(ctx, s.store.Stores(), req)
	if err != nil {
		return nil, AsError(err)
	}
	return params, nil
}

// NewAuthorizeRequest persists a session and an authorization code for the
// authenticated owner and returns the redirect target carrying the code.
func (s *AuthorizationServer) NewAuthorizeRequest(ctx context.Context, ownerType OwnerType, ownerID string, params *AuthorizeParams) (string, error) {
	g, err := s.authCodeGrant()
	if err != nil {
		return "", err
	}
	var loc string
	err = s.store.RunInTx(ctx, func(ctx context.Context, st Stores) error {
		l, err := g.NewAuthorizeRequest(ctx, st, ownerType, ownerID, params)
		if err != nil {
			return err
		}
		loc = l
		return nil
	})
	if err != nil {
		return "", AsError(err)
	}

	s.log.Info("authorization code granted",
		logger.ClientID(params.Client.ID),
		logger.OwnerID(ownerID),
	)
	return loc, nil
}

func (s *AuthorizationServer) authCodeGrant() (*AuthorizationCodeGrant, error) {
	g, ok := s.grants[GrantAuthorizationCode].(*AuthorizationCodeGrant)
	if !ok {
		return nil, NewError(KindUnsupportedGrantType, "authorization_code grant is not registered")
	}
	return g, nil
}

// issueTokens creates and persists an access token (and optionally a refresh
// token) for the given owner and builds the response. expires_in always
// equals the configured TTL.
func (s *AuthorizationServer) issueTokens(ctx context.Context, st Stores, ownerType OwnerType, ownerID, clientID string, scopes ScopeSet, withRefresh bool) (*TokenResponse, error) {
	now := time.Now()

	raw, err := tokens.GenerateOpaqueToken(opaqueTokenBytes)
	if err != nil {
		return nil, ServerError(err)
	}
	at := &AccessToken{
		Token:     raw,
		ExpiresAt: now.Add(s.cfg.AccessTokenTTL),
		Scopes:    scopes,
		OwnerType: ownerType,
		OwnerID:   ownerID,
		ClientID:  clientID,
	}
	if err := st.AccessTokens.Create(ctx, at); err != nil {
		return nil, ServerError(err)
	}

	resp := &TokenResponse{
		AccessToken: at.Token,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int64(s.cfg.AccessTokenTTL / time.Second),
		Scope:       scopes.Join(s.cfg.ScopeDelimiter),
	}

	if withRefresh {
		rawRT, err := tokens.GenerateOpaqueToken(opaqueTokenBytes)
		if err != nil {
			return nil, ServerError(err)
		}
		rt := &RefreshToken{
			Token:     rawRT,
			ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
			AccessRef: at.Token,
			ClientID:  clientID,
		}
		if err := st.RefreshTokens.Create(ctx, rt); err != nil {
			return nil, ServerError(err)
		}
		resp.RefreshToken = rt.Token
	}

	return resp, nil
}

// validateClient authenticates the requesting client for confidential
// grant phases.
func validateClient(ctx context.Context, st Stores, req TokenRequest) (*Client, error) {
	if req.ClientID == "" {
		return nil, invalidRequest("client_id")
	}
	client, err := st.Clients.GetWithSecret(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewError(KindInvalidClient, "client authentication failed")
		}
		return nil, ServerError(err)
	}
	return client, nil
}
