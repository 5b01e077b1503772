package cached

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/littlejohn/internal/cache"
	"github.com/dropDatabas3/littlejohn/internal/oauth2"
	tokens "github.com/dropDatabas3/littlejohn/internal/security/token"
)

// hashingStore mimics an at-rest-hashing adapter: rows are keyed by the
// token digest and refresh rows reference their access token by that digest,
// like the postgres adapter does.
type hashingStore struct {
	access  map[string]oauth2.AccessToken
	refresh map[string]oauth2.RefreshToken
}

func newHashingStore() *hashingStore {
	return &hashingStore{
		access:  make(map[string]oauth2.AccessToken),
		refresh: make(map[string]oauth2.RefreshToken),
	}
}

func (s *hashingStore) Stores() oauth2.Stores {
	return oauth2.Stores{
		AccessTokens:  hashingAccess{s},
		RefreshTokens: hashingRefresh{s},
	}
}

func (s *hashingStore) RunInTx(ctx context.Context, fn func(ctx context.Context, st oauth2.Stores) error) error {
	return fn(ctx, s.Stores())
}

type hashingAccess struct{ s *hashingStore }

func (h hashingAccess) Create(ctx context.Context, t *oauth2.AccessToken) error {
	cp := *t
	cp.Token = ""
	h.s.access[tokens.SHA256Base64URL(t.Token)] = cp
	return nil
}

func (h hashingAccess) Get(ctx context.Context, token string) (*oauth2.AccessToken, error) {
	cp, ok := h.s.access[tokens.SHA256Base64URL(token)]
	if !ok {
		return nil, oauth2.ErrNotFound
	}
	cp.Token = token
	return &cp, nil
}

func (h hashingAccess) Delete(ctx context.Context, token string) error {
	delete(h.s.access, tokens.SHA256Base64URL(token))
	return nil
}

type hashingRefresh struct{ s *hashingStore }

func (h hashingRefresh) Create(ctx context.Context, t *oauth2.RefreshToken) error {
	cp := *t
	cp.Token = ""
	cp.AccessRef = tokens.SHA256Base64URL(t.AccessRef)
	h.s.refresh[tokens.SHA256Base64URL(t.Token)] = cp
	return nil
}

func (h hashingRefresh) Get(ctx context.Context, token string) (*oauth2.RefreshToken, error) {
	cp, ok := h.s.refresh[tokens.SHA256Base64URL(token)]
	if !ok {
		return nil, oauth2.ErrNotFound
	}
	cp.Token = token
	return &cp, nil
}

func (h hashingRefresh) Delete(ctx context.Context, token string) error {
	delete(h.s.refresh, tokens.SHA256Base64URL(token))
	return nil
}

func (h hashingRefresh) Access(ctx context.Context, t *oauth2.RefreshToken) (*oauth2.AccessToken, error) {
	cp, ok := h.s.access[t.AccessRef]
	if !ok {
		return nil, oauth2.ErrNotFound
	}
	return &cp, nil
}

func (h hashingRefresh) RevokeAccess(ctx context.Context, t *oauth2.RefreshToken) error {
	delete(h.s.access, t.AccessRef)
	return nil
}

func newHashedFixture(t *testing.T) (*Storage, *hashingStore, cache.Client) {
	t.Helper()
	c, err := cache.New(cache.Config{Driver: "memory"})
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	inner := newHashingStore()
	ctx := context.Background()
	err = inner.Stores().AccessTokens.Create(ctx, &oauth2.AccessToken{
		Token:     "raw-access",
		ExpiresAt: time.Now().Add(time.Hour),
		OwnerType: oauth2.OwnerUser,
		OwnerID:   "u1",
		ClientID:  "app",
	})
	if err != nil {
		t.Fatalf("seed access: %v", err)
	}
	err = inner.Stores().RefreshTokens.Create(ctx, &oauth2.RefreshToken{
		Token:     "raw-refresh",
		ExpiresAt: time.Now().Add(24 * time.Hour),
		AccessRef: "raw-access",
		ClientID:  "app",
	})
	if err != nil {
		t.Fatalf("seed refresh: %v", err)
	}
	return Wrap(inner, c, time.Minute), inner, c
}

// The digest a hashing adapter keeps at rest is bookkeeping, not a
// credential. Presenting it as a bearer token must fail like any unknown
// token, with or without a cached entry for the real one.
func TestStoredDigestDoesNotAuthenticate(t *testing.T) {
	ctx := context.Background()
	st, _, _ := newHashedFixture(t)
	ats := st.Stores().AccessTokens

	digest := tokens.SHA256Base64URL("raw-access")
	if _, err := ats.Get(ctx, digest); !errors.Is(err, oauth2.ErrNotFound) {
		t.Errorf("at-rest digest resolved: %v", err)
	}

	if _, err := ats.Get(ctx, "raw-access"); err != nil {
		t.Fatalf("raw token rejected: %v", err)
	}
	// the warm cache entry must not change the answer for the digest
	if _, err := ats.Get(ctx, digest); !errors.Is(err, oauth2.ErrNotFound) {
		t.Errorf("at-rest digest resolved from cache: %v", err)
	}
}

// Rotation revokes through the refresh token's own reference, which under a
// hashing adapter is the digest. The cached entry for the raw token must go
// with the row.
func TestRevokeAccessEvictsHashedEntry(t *testing.T) {
	ctx := context.Background()
	st, _, _ := newHashedFixture(t)

	if _, err := st.Stores().AccessTokens.Get(ctx, "raw-access"); err != nil {
		t.Fatalf("warm: %v", err)
	}

	err := st.RunInTx(ctx, func(ctx context.Context, s oauth2.Stores) error {
		rt, err := s.RefreshTokens.Get(ctx, "raw-refresh")
		if err != nil {
			return err
		}
		if err := s.RefreshTokens.RevokeAccess(ctx, rt); err != nil {
			return err
		}
		return s.RefreshTokens.Delete(ctx, rt.Token)
	})
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, err := st.Stores().AccessTokens.Get(ctx, "raw-access"); !errors.Is(err, oauth2.ErrNotFound) {
		t.Errorf("revoked token still validates: %v", err)
	}
}

// Same rotation against the clear-text memory driver, where AccessRef is the
// raw token itself. Both reference shapes must evict.
func TestRevokeAccessEvictsRawEntry(t *testing.T) {
	ctx := context.Background()
	st, inner, _ := newCached(t)
	seed(t, inner, "tok")
	err := inner.Stores().RefreshTokens.Create(ctx, &oauth2.RefreshToken{
		Token:     "ref",
		ExpiresAt: time.Now().Add(24 * time.Hour),
		AccessRef: "tok",
		ClientID:  "app",
	})
	if err != nil {
		t.Fatalf("seed refresh: %v", err)
	}

	if _, err := st.Stores().AccessTokens.Get(ctx, "tok"); err != nil {
		t.Fatalf("warm: %v", err)
	}

	err = st.RunInTx(ctx, func(ctx context.Context, s oauth2.Stores) error {
		rt, err := s.RefreshTokens.Get(ctx, "ref")
		if err != nil {
			return err
		}
		return s.RefreshTokens.RevokeAccess(ctx, rt)
	})
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, err := st.Stores().AccessTokens.Get(ctx, "tok"); !errors.Is(err, oauth2.ErrNotFound) {
		t.Errorf("revoked token still validates: %v", err)
	}
}
