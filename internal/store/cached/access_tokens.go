// Package cached decorates a storage adapter with a read cache for access
// tokens, the hottest lookup on the resource side. Other record types go
// straight through.
package cached

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dropDatabas3/littlejohn/internal/cache"
	"github.com/dropDatabas3/littlejohn/internal/oauth2"
	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
	tokens "github.com/dropDatabas3/littlejohn/internal/security/token"
)

// Storage wraps an oauth2.Storage with an access-token read cache.
type Storage struct {
	inner oauth2.Storage
	c     cache.Client
	ttl   time.Duration
}

func Wrap(inner oauth2.Storage, c cache.Client, ttl time.Duration) *Storage {
	return &Storage{inner: inner, c: c, ttl: ttl}
}

func (s *Storage) Stores() oauth2.Stores {
	st := s.inner.Stores()
	st.AccessTokens = &cachedReads{inner: st.AccessTokens, c: s.c, ttl: s.ttl}
	st.RefreshTokens = &refreshEvicting{inner: st.RefreshTokens, c: s.c}
	return st
}

// RunInTx delegates to the inner storage. Transactional stores bypass the
// read cache: nothing staged may become visible before commit. Deletes and
// revocations still invalidate, so a rotated token cannot outlive its row.
func (s *Storage) RunInTx(ctx context.Context, fn func(ctx context.Context, st oauth2.Stores) error) error {
	return s.inner.RunInTx(ctx, func(ctx context.Context, st oauth2.Stores) error {
		st.AccessTokens = &invalidateOnly{inner: st.AccessTokens, c: s.c}
		st.RefreshTokens = &refreshEvicting{inner: st.RefreshTokens, c: s.c}
		return fn(ctx, st)
	})
}

// record is the cached shape. The raw token never enters the cache; the key
// carries its digest and the caller already holds the token string.
type record struct {
	ExpiresAt time.Time `json:"expires_at"`
	ScopeIDs  []string  `json:"scope_ids"`
	OwnerType string    `json:"owner_type"`
	OwnerID   string    `json:"owner_id"`
	ClientID  string    `json:"client_id"`
}

func cacheKey(token string) string {
	return "at:" + tokens.SHA256Base64URL(token)
}

var catalog = oauth2.NewScopeCatalog()

type cachedReads struct {
	inner oauth2.AccessTokenStorage
	c     cache.Client
	ttl   time.Duration
}

func (s *cachedReads) Create(ctx context.Context, t *oauth2.AccessToken) error {
	return s.inner.Create(ctx, t)
}

func (s *cachedReads) Get(ctx context.Context, token string) (*oauth2.AccessToken, error) {
	if raw, err := s.c.Get(ctx, cacheKey(token)); err == nil {
		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err == nil {
			return s.fromRecord(ctx, token, rec), nil
		}
	} else if !errors.Is(err, cache.ErrNotFound) {
		logger.From(ctx).Warn("access token cache read failed", logger.Err(err))
	}

	t, err := s.inner.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	s.store(ctx, token, t)
	return t, nil
}

func (s *cachedReads) Delete(ctx context.Context, token string) error {
	if err := s.c.Delete(ctx, cacheKey(token)); err != nil {
		logger.From(ctx).Warn("access token cache invalidation failed", logger.Err(err))
	}
	return s.inner.Delete(ctx, token)
}

func (s *cachedReads) store(ctx context.Context, token string, t *oauth2.AccessToken) {
	rec := record{
		ExpiresAt: t.ExpiresAt,
		ScopeIDs:  t.Scopes.IDs(),
		OwnerType: string(t.OwnerType),
		OwnerID:   t.OwnerID,
		ClientID:  t.ClientID,
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}

	// Never cache past the token's own expiry.
	ttl := s.ttl
	if until := time.Until(t.ExpiresAt); until < ttl {
		ttl = until
	}
	if ttl <= 0 {
		return
	}
	if err := s.c.Set(ctx, cacheKey(token), string(raw), ttl); err != nil {
		logger.From(ctx).Warn("access token cache write failed", logger.Err(err))
	}
}

func (s *cachedReads) fromRecord(ctx context.Context, token string, rec record) *oauth2.AccessToken {
	var scopes oauth2.ScopeSet
	for _, id := range rec.ScopeIDs {
		if sc, err := catalog.Get(ctx, id); err == nil {
			scopes = append(scopes, *sc)
		}
	}
	return &oauth2.AccessToken{
		Token:     token,
		ExpiresAt: rec.ExpiresAt,
		Scopes:    scopes,
		OwnerType: oauth2.OwnerType(rec.OwnerType),
		OwnerID:   rec.OwnerID,
		ClientID:  rec.ClientID,
	}
}

// invalidateOnly serves transactional stores: reads and writes hit the inner
// store, deletes also evict the cache entry.
type invalidateOnly struct {
	inner oauth2.AccessTokenStorage
	c     cache.Client
}

func (s *invalidateOnly) Create(ctx context.Context, t *oauth2.AccessToken) error {
	return s.inner.Create(ctx, t)
}

func (s *invalidateOnly) Get(ctx context.Context, token string) (*oauth2.AccessToken, error) {
	return s.inner.Get(ctx, token)
}

func (s *invalidateOnly) Delete(ctx context.Context, token string) error {
	if err := s.c.Delete(ctx, cacheKey(token)); err != nil {
		logger.From(ctx).Warn("access token cache invalidation failed", logger.Err(err))
	}
	return s.inner.Delete(ctx, token)
}

// refreshEvicting passes refresh-token operations through and keeps the
// access-token cache honest on revocation. AccessRef is driver defined: it is
// the raw token for adapters that store in the clear and the digest for
// adapters that hash at rest, so both candidate cache keys are evicted.
type refreshEvicting struct {
	inner oauth2.RefreshTokenStorage
	c     cache.Client
}

func (s *refreshEvicting) Create(ctx context.Context, t *oauth2.RefreshToken) error {
	return s.inner.Create(ctx, t)
}

func (s *refreshEvicting) Get(ctx context.Context, token string) (*oauth2.RefreshToken, error) {
	return s.inner.Get(ctx, token)
}

func (s *refreshEvicting) Delete(ctx context.Context, token string) error {
	return s.inner.Delete(ctx, token)
}

func (s *refreshEvicting) Access(ctx context.Context, t *oauth2.RefreshToken) (*oauth2.AccessToken, error) {
	return s.inner.Access(ctx, t)
}

func (s *refreshEvicting) RevokeAccess(ctx context.Context, t *oauth2.RefreshToken) error {
	for _, key := range []string{cacheKey(t.AccessRef), "at:" + t.AccessRef} {
		if err := s.c.Delete(ctx, key); err != nil {
			logger.From(ctx).Warn("access token cache invalidation failed", logger.Err(err))
		}
	}
	return s.inner.RevokeAccess(ctx, t)
}
