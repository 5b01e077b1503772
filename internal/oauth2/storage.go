package oauth2

import "context"

// Storage contracts. Implementations are host-specific; the server only
// depends on these interfaces. All adapters return ErrNotFound for missing
// records.

// ClientStorage resolves registered clients.
type ClientStorage interface {
	// Get fetches a client by id without authenticating it. Used for
	// redirect-URI lookup during the authorize phase.
	Get(ctx context.Context, clientID string) (*Client, error)

	// GetWithSecret fetches a client and checks its credentials.
	// Confidential clients must present their secret; public clients are
	// accepted with an empty one. A failed check is ErrNotFound.
	GetWithSecret(ctx context.Context, clientID, clientSecret string) (*Client, error)
}

// AccessTokenStorage persists access tokens keyed by token string. Get and
// Delete accept the raw token only; at-rest digests must never authenticate.
type AccessTokenStorage interface {
	Create(ctx context.Context, t *AccessToken) error
	Get(ctx context.Context, token string) (*AccessToken, error)
	Delete(ctx context.Context, token string) error
}

// RefreshTokenStorage persists refresh tokens keyed by token string.
// Delete supports single-use rotation.
type RefreshTokenStorage interface {
	Create(ctx context.Context, t *RefreshToken) error
	Get(ctx context.Context, token string) (*RefreshToken, error)
	Delete(ctx context.Context, token string) error

	// Access resolves the access token t renews. t must have been loaded
	// through Get so its AccessRef carries the adapter's own reference.
	Access(ctx context.Context, t *RefreshToken) (*AccessToken, error)

	// RevokeAccess deletes the access token t renews.
	RevokeAccess(ctx context.Context, t *RefreshToken) error
}

// AuthCodeStorage persists authorization codes. Delete on exchange enforces
// single use.
type AuthCodeStorage interface {
	Create(ctx context.Context, c *AuthCode) error
	Get(ctx context.Context, code string) (*AuthCode, error)
	Delete(ctx context.Context, code string) error
}

// ScopeStorage backs the fixed scope catalog.
type ScopeStorage interface {
	Get(ctx context.Context, id string) (*Scope, error)
}

// SessionStorage persists owner/client/scope associations.
type SessionStorage interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	HasScope(ctx context.Context, sessionID, scopeID string) (bool, error)
}

// Stores bundles the six adapters a grant handler works against.
type Stores struct {
	Clients       ClientStorage
	AccessTokens  AccessTokenStorage
	RefreshTokens RefreshTokenStorage
	AuthCodes     AuthCodeStorage
	Scopes        ScopeStorage
	Sessions      SessionStorage
}

// Storage is the persistence boundary the server drives. Token issuance runs
// inside RunInTx: every write of a grant either commits once or rolls back
// entirely, so no partial token state is ever visible.
type Storage interface {
	// Stores returns a non-transactional view for read paths (authorize
	// pre-flight, resource-side token lookup).
	Stores() Stores

	// RunInTx executes fn against transaction-scoped stores. A non-nil
	// error from fn rolls back all writes and is returned unchanged.
	RunInTx(ctx context.Context, fn func(ctx context.Context, st Stores) error) error
}
