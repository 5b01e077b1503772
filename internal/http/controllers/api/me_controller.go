// Package api holds sample protected-resource controllers.
package api

import (
	"net/http"

	httperrors "github.com/dropDatabas3/littlejohn/internal/http/errors"
	"github.com/dropDatabas3/littlejohn/internal/http/middlewares"
)

type meView struct {
	OwnerType string   `json:"owner_type"`
	OwnerID   string   `json:"owner_id"`
	ClientID  string   `json:"client_id"`
	Scopes    []string `json:"scopes"`
}

// Me returns the identity behind the bearer token.
// GET /api/me, requires the read scope.
func Me(w http.ResponseWriter, r *http.Request) {
	tok := middlewares.AccessTokenFrom(r.Context())
	if tok == nil {
		// RequireScope runs first; an anonymous request never reaches here.
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, meView{
		OwnerType: string(tok.OwnerType),
		OwnerID:   tok.OwnerID,
		ClientID:  tok.ClientID,
		Scopes:    tok.Scopes.IDs(),
	})
}
