package oauth2

import "time"

// OwnerType distinguishes who a token or session was issued on behalf of.
type OwnerType string

const (
	OwnerUser   OwnerType = "user"
	OwnerClient OwnerType = "client"
)

// Client is a registered API consumer. Clients are created and managed by the
// host application; the server only reads them.
type Client struct {
	ID string

	// SecretHash is an argon2id PHC string. Empty for public clients.
	SecretHash string

	// RedirectURI is the single registered redirect target. Authorization
	// requests must match it exactly.
	RedirectURI string

	// UserID is the owning user, when the client belongs to one.
	UserID string

	// Confidential clients must authenticate with their secret on every
	// token request.
	Confidential bool

	// Scopes is the client's default scope set, used by the
	// client_credentials grant.
	Scopes []string
}

// AccessToken authorizes API requests on behalf of its owner within a scope
// set.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
	Scopes    ScopeSet
	OwnerType OwnerType
	OwnerID   string
	ClientID  string
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *AccessToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// RefreshToken can be exchanged for a new access token without
// re-authentication. It references the access token it may renew.
type RefreshToken struct {
	Token     string
	ExpiresAt time.Time

	// AccessRef is the driver-defined reference to the access token this
	// refresh token renews. Adapters that hash tokens at rest keep the
	// digest here; resolve it through RefreshTokenStorage, never by passing
	// it to AccessTokenStorage.
	AccessRef string

	ClientID string
}

// Expired reports whether the refresh token is past its expiry.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// AuthCode is a single-use, short-lived code produced by the authorize step
// and exchanged for tokens. It is bound to the redirect URI it was issued
// for and destroyed on first successful exchange.
type AuthCode struct {
	Code        string
	ExpiresAt   time.Time
	RedirectURI string
	Scopes      ScopeSet
	OwnerType   OwnerType
	OwnerID     string
	ClientID    string
	SessionID   string
}

// Expired reports whether the code is past its expiry.
func (c *AuthCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Session links an authorization grant to a specific owner/client pairing.
// One is created when an authorization-code flow begins and consumed when the
// code is exchanged.
type Session struct {
	ID        string
	OwnerType OwnerType
	OwnerID   string
	ClientID  string
	Scopes    ScopeSet
}
