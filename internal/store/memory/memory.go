// Package memory is an in-process storage adapter. It backs tests and the
// dev server; production deployments use the postgres adapter.
package memory

import (
	"context"
	"sync"

	"github.com/dropDatabas3/littlejohn/internal/oauth2"
	"github.com/dropDatabas3/littlejohn/internal/security/password"
)

// tables holds every record set. A transaction stages writes on a clone and
// the commit swaps the clone in.
type tables struct {
	clients       map[string]*oauth2.Client
	accessTokens  map[string]*oauth2.AccessToken
	refreshTokens map[string]*oauth2.RefreshToken
	authCodes     map[string]*oauth2.AuthCode
	sessions      map[string]*oauth2.Session
}

func newTables() *tables {
	return &tables{
		clients:       map[string]*oauth2.Client{},
		accessTokens:  map[string]*oauth2.AccessToken{},
		refreshTokens: map[string]*oauth2.RefreshToken{},
		authCodes:     map[string]*oauth2.AuthCode{},
		sessions:      map[string]*oauth2.Session{},
	}
}

func (t *tables) clone() *tables {
	cp := newTables()
	for k, v := range t.clients {
		cp.clients[k] = v
	}
	for k, v := range t.accessTokens {
		cp.accessTokens[k] = v
	}
	for k, v := range t.refreshTokens {
		cp.refreshTokens[k] = v
	}
	for k, v := range t.authCodes {
		cp.authCodes[k] = v
	}
	for k, v := range t.sessions {
		cp.sessions[k] = v
	}
	return cp
}

// Store implements oauth2.Storage over process memory.
type Store struct {
	mu     sync.RWMutex
	tb     *tables
	scopes *oauth2.ScopeCatalog
}

func New() *Store {
	return &Store{
		tb:     newTables(),
		scopes: oauth2.NewScopeCatalog(),
	}
}

// SaveClient registers or replaces a client. Used by dev seeding and tests.
func (s *Store) SaveClient(c *oauth2.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.tb.clients[c.ID] = &cp
}

func (s *Store) Stores() oauth2.Stores {
	h := handle{mu: &s.mu, tb: func() *tables { return s.tb }}
	return storesFor(h, s.scopes)
}

// RunInTx runs fn against a staged clone under the write lock. A nil return
// swaps the clone in; any error discards it.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, st oauth2.Stores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.tb.clone()
	h := handle{tb: func() *tables { return staged }}
	if err := fn(ctx, storesFor(h, s.scopes)); err != nil {
		return err
	}
	s.tb = staged
	return nil
}

// handle gives the record stores a locked view of the current tables. Inside
// a transaction mu is nil: the write lock is already held and the tables
// func returns the staged clone.
type handle struct {
	mu *sync.RWMutex
	tb func() *tables
}

func (h handle) rlock() func() {
	if h.mu == nil {
		return func() {}
	}
	h.mu.RLock()
	return h.mu.RUnlock
}

func (h handle) wlock() func() {
	if h.mu == nil {
		return func() {}
	}
	h.mu.Lock()
	return h.mu.Unlock
}

func storesFor(h handle, scopes *oauth2.ScopeCatalog) oauth2.Stores {
	return oauth2.Stores{
		Clients:       clientStore{h},
		AccessTokens:  accessTokenStore{h},
		RefreshTokens: refreshTokenStore{h},
		AuthCodes:     authCodeStore{h},
		Scopes:        scopes,
		Sessions:      sessionStore{h},
	}
}

type clientStore struct{ h handle }

func (s clientStore) Get(ctx context.Context, clientID string) (*oauth2.Client, error) {
	defer s.h.rlock()()
	c, ok := s.h.tb().clients[clientID]
	if !ok {
		return nil, oauth2.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s clientStore) GetWithSecret(ctx context.Context, clientID, clientSecret string) (*oauth2.Client, error) {
	c, err := s.Get(ctx, clientID)
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

type accessTokenStore struct{ h handle }

func (s accessTokenStore) Create(ctx context.Context, t *oauth2.AccessToken) error {
	defer s.h.wlock()()
	cp := *t
	s.h.tb().accessTokens[t.Token] = &cp
	return nil
}

func (s accessTokenStore) Get(ctx context.Context, token string) (*oauth2.AccessToken, error) {
	defer s.h.rlock()()
	t, ok := s.h.tb().accessTokens[token]
	if !ok {
		return nil, oauth2.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s accessTokenStore) Delete(ctx context.Context, token string) error {
	defer s.h.wlock()()
	delete(s.h.tb().accessTokens, token)
	return nil
}

type refreshTokenStore struct{ h handle }

func (s refreshTokenStore) Create(ctx context.Context, t *oauth2.RefreshToken) error {
	defer s.h.wlock()()
	cp := *t
	s.h.tb().refreshTokens[t.Token] = &cp
	return nil
}

func (s refreshTokenStore) Get(ctx context.Context, token string) (*oauth2.RefreshToken, error) {
	defer s.h.rlock()()
	t, ok := s.h.tb().refreshTokens[token]
	if !ok {
		return nil, oauth2.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s refreshTokenStore) Delete(ctx context.Context, token string) error {
	defer s.h.wlock()()
	delete(s.h.tb().refreshTokens, token)
	return nil
}

// Access resolves the referenced access token. The memory driver stores raw
// tokens, so AccessRef is the map key directly.
func (s refreshTokenStore) Access(ctx context.Context, t *oauth2.RefreshToken) (*oauth2.AccessToken, error) {
	defer s.h.rlock()()
	at, ok := s.h.tb().accessTokens[t.AccessRef]
	if !ok {
		return nil, oauth2.ErrNotFound
	}
	cp := *at
	return &cp, nil
}

func (s refreshTokenStore) RevokeAccess(ctx context.Context, t *oauth2.RefreshToken) error {
	defer s.h.wlock()()
	delete(s.h.tb().accessTokens, t.AccessRef)
	return nil
}

type authCodeStore struct{ h handle }

func (s authCodeStore) Create(ctx context.Context, c *oauth2.AuthCode) error {
	defer s.h.wlock()()
	cp := *c
	s.h.tb().authCodes[c.Code] = &cp
	return nil
}

func (s authCodeStore) Get(ctx context.Context, code string) (*oauth2.AuthCode, error) {
	defer s.h.rlock()()
	c, ok := s.h.tb().authCodes[code]
	if !ok {
		return nil, oauth2.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s authCodeStore) Delete(ctx context.Context, code string) error {
	defer s.h.wlock()()
	delete(s.h.tb().authCodes, code)
	return nil
}

type sessionStore struct{ h handle }

func (s sessionStore) Create(ctx context.Context, sess *oauth2.Session) error {
	defer s.h.wlock()()
	cp := *sess
	s.h.tb().sessions[sess.ID] = &cp
	return nil
}

func (s sessionStore) Get(ctx context.Context, id string) (*oauth2.Session, error) {
	defer s.h.rlock()()
	sess, ok := s.h.tb().sessions[id]
	if !ok {
		return nil, oauth2.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s sessionStore) HasScope(ctx context.Context, sessionID, scopeID string) (bool, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return sess.Scopes.Has(scopeID), nil
}
