package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/littlejohn/internal/oauth2"
	"github.com/dropDatabas3/littlejohn/internal/security/password"
	tokens "github.com/dropDatabas3/littlejohn/internal/security/token"
)

type clientRepo struct{ q querier }

func (r *clientRepo) Get(ctx context.Context, clientID string) (*oauth2.Client, error) {
	const query = `
		SELECT id, secret_hash, redirect_uri, user_id, confidential, scopes
		FROM oauth_client WHERE id = $1
	`
	var c oauth2.Client
	err := r.q.QueryRow(ctx, query, clientID).Scan(
		&c.ID, &c.SecretHash, &c.RedirectURI, &c.UserID, &c.Confidential, &c.Scopes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oauth2.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *clientRepo) GetWithSecret(ctx context.Context, clientID, clientSecret string) (*oauth2.Client, error) {
	c, err := r.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if c.SecretHash == "" {
		if clientSecret != "" {
			return nil, oauth2.ErrNotFound
		}
		return c, nil
	}
	if !password.Verify(clientSecret, c.SecretHash) {
		return nil, oauth2.ErrNotFound
	}
	return c, nil
}

type accessTokenRepo struct {
	q      querier
	scopes *oauth2.ScopeCatalog
}

func (r *accessTokenRepo) Create(ctx context.Context, t *oauth2.AccessToken) error {
	const query = `
		INSERT INTO oauth_access_token (token_hash, expires_at, scopes, owner_type, owner_id, client_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	_, err := r.q.Exec(ctx, query,
		tokens.SHA256Base64URL(t.Token), t.ExpiresAt, t.Scopes.IDs(),
		string(t.OwnerType), t.OwnerID, t.ClientID,
	)
	return err
}

// Get resolves the raw token only. The stored digest is not a credential;
// presenting it must fail exactly like any unknown token.
func (r *accessTokenRepo) Get(ctx context.Context, token string) (*oauth2.AccessToken, error) {
	t, err := getAccessByHash(ctx, r.q, r.scopes, tokens.SHA256Base64URL(token))
	if err != nil {
		return nil, err
	}
	t.Token = token
	return t, nil
}

func (r *accessTokenRepo) Delete(ctx context.Context, token string) error {
	const query = `DELETE FROM oauth_access_token WHERE token_hash = $1`
	_, err := r.q.Exec(ctx, query, tokens.SHA256Base64URL(token))
	return err
}

// getAccessByHash is the shared digest lookup behind the raw-token Get and
// the refresh-token reference resolution. Token is left empty; callers that
// hold the raw token fill it in.
func getAccessByHash(ctx context.Context, q querier, scopes *oauth2.ScopeCatalog, hash string) (*oauth2.AccessToken, error) {
	const query = `
		SELECT expires_at, scopes, owner_type, owner_id, client_id
		FROM oauth_access_token WHERE token_hash = $1
	`
	var (
		t         oauth2.AccessToken
		ids       []string
		ownerType string
	)
	err := q.QueryRow(ctx, query, hash).Scan(
		&t.ExpiresAt, &ids, &ownerType, &t.OwnerID, &t.ClientID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oauth2.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.OwnerType = oauth2.OwnerType(ownerType)
	t.Scopes = scopeSetFromIDs(ctx, scopes, ids)
	return &t, nil
}

type refreshTokenRepo struct {
	q      querier
	scopes *oauth2.ScopeCatalog
}

func (r *refreshTokenRepo) Create(ctx context.Context, t *oauth2.RefreshToken) error {
	const query = `
		INSERT INTO oauth_refresh_token (token_hash, expires_at, access_token_hash, client_id, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	_, err := r.q.Exec(ctx, query,
		tokens.SHA256Base64URL(t.Token), t.ExpiresAt,
		tokens.SHA256Base64URL(t.AccessRef), t.ClientID,
	)
	return err
}

// Get returns the refresh token with AccessRef set to the referenced digest.
func (r *refreshTokenRepo) Get(ctx context.Context, token string) (*oauth2.RefreshToken, error) {
	const query = `
		SELECT expires_at, access_token_hash, client_id
		FROM oauth_refresh_token WHERE token_hash = $1
	`
	var t oauth2.RefreshToken
	err := r.q.QueryRow(ctx, query, tokens.SHA256Base64URL(token)).Scan(
		&t.ExpiresAt, &t.AccessRef, &t.ClientID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oauth2.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Token = token
	return &t, nil
}

func (r *refreshTokenRepo) Delete(ctx context.Context, token string) error {
	const query = `DELETE FROM oauth_refresh_token WHERE token_hash = $1`
	_, err := r.q.Exec(ctx, query, tokens.SHA256Base64URL(token))
	return err
}

// Access resolves t.AccessRef, which here is already the stored digest.
func (r *refreshTokenRepo) Access(ctx context.Context, t *oauth2.RefreshToken) (*oauth2.AccessToken, error) {
	return getAccessByHash(ctx, r.q, r.scopes, t.AccessRef)
}

func (r *refreshTokenRepo) RevokeAccess(ctx context.Context, t *oauth2.RefreshToken) error {
	const query = `DELETE FROM oauth_access_token WHERE token_hash = $1`
	_, err := r.q.Exec(ctx, query, t.AccessRef)
	return err
}

type authCodeRepo struct {
	q      querier
	scopes *oauth2.ScopeCatalog
}

func (r *authCodeRepo) Create(ctx context.Context, c *oauth2.AuthCode) error {
	const query = `
		INSERT INTO oauth_auth_code (code_hash, expires_at, redirect_uri, scopes, owner_type, owner_id, client_id, session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`
	_, err := r.q.Exec(ctx, query,
		tokens.SHA256Base64URL(c.Code), c.ExpiresAt, c.RedirectURI, c.Scopes.IDs(),
		string(c.OwnerType), c.OwnerID, c.ClientID, c.SessionID,
	)
	return err
}

func (r *authCodeRepo) Get(ctx context.Context, code string) (*oauth2.AuthCode, error) {
	const query = `
		SELECT expires_at, redirect_uri, scopes, owner_type, owner_id, client_id, session_id
		FROM oauth_auth_code WHERE code_hash = $1
	`
	var (
		c         oauth2.AuthCode
		ids       []string
		ownerType string
	)
	err := r.q.QueryRow(ctx, query, tokens.SHA256Base64URL(code)).Scan(
		&c.ExpiresAt, &c.RedirectURI, &ids, &ownerType, &c.OwnerID, &c.ClientID, &c.SessionID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oauth2.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Code = code
	c.OwnerType = oauth2.OwnerType(ownerType)
	c.Scopes = scopeSetFromIDs(ctx, r.scopes, ids)
	return &c, nil
}

func (r *authCodeRepo) Delete(ctx context.Context, code string) error {
	const query = `DELETE FROM oauth_auth_code WHERE code_hash = $1`
	_, err := r.q.Exec(ctx, query, tokens.SHA256Base64URL(code))
	return err
}

type sessionRepo struct {
	q      querier
	scopes *oauth2.ScopeCatalog
}

func (r *sessionRepo) Create(ctx context.Context, s *oauth2.Session) error {
	const query = `
		INSERT INTO oauth_session (id, owner_type, owner_id, client_id, scopes, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := r.q.Exec(ctx, query,
		s.ID, string(s.OwnerType), s.OwnerID, s.ClientID, s.Scopes.IDs(),
	)
	return err
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*oauth2.Session, error) {
	const query = `
		SELECT owner_type, owner_id, client_id, scopes
		FROM oauth_session WHERE id = $1
	`
	var (
		s         oauth2.Session
		ids       []string
		ownerType string
	)
	err := r.q.QueryRow(ctx, query, id).Scan(&ownerType, &s.OwnerID, &s.ClientID, &ids)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oauth2.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.ID = id
	s.OwnerType = oauth2.OwnerType(ownerType)
	s.Scopes = scopeSetFromIDs(ctx, r.scopes, ids)
	return &s, nil
}

func (r *sessionRepo) HasScope(ctx context.Context, sessionID, scopeID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM oauth_session WHERE id = $1 AND $2 = ANY(scopes)
		)
	`
	var ok bool
	if err := r.q.QueryRow(ctx, query, sessionID, scopeID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
