// Package authn provides resource-owner credential verification for the
// password grant. The static verifier covers dev and test setups; a real
// deployment plugs the host user store in through the same interface.
package authn

import (
	"context"

	"github.com/dropDatabas3/littlejohn/internal/security/password"
)

// User is a statically configured resource owner.
type User struct {
	ID           string
	Username     string
	PasswordHash string // argon2id PHC string
}

// Static verifies credentials against a fixed user list.
type Static struct {
	byUsername map[string]User
}

func NewStatic(users ...User) *Static {
	m := make(map[string]User, len(users))
	for _, u := range users {
		if u.Username != "" {
			m[u.Username] = u
		}
	}
	return &Static{byUsername: m}
}

// VerifyCredentials implements the password-grant authenticator contract.
func (s *Static) VerifyCredentials(ctx context.Context, username, plaintext string) (string, bool, error) {
	u, ok := s.byUsername[username]
	if !ok {
		return "", false, nil
	}
	if !password.Verify(plaintext, u.PasswordHash) {
		return "", false, nil
	}
	return u.ID, true, nil
}
