package oauth

import (
	"net/http"

	httperrors "github.com/dropDatabas3/littlejohn/internal/http/errors"
	"github.com/dropDatabas3/littlejohn/internal/oauth2"
	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
	"github.com/dropDatabas3/littlejohn/internal/security/logintoken"
)

// AuthorizeController handles the authorize endpoint. The host application
// owns login and the consent page; this controller validates the request on
// GET and turns the owner's decision into a code on POST.
type AuthorizeController struct {
	srv         *oauth2.AuthorizationServer
	loginSecret []byte
}

func NewAuthorizeController(srv *oauth2.AuthorizationServer, loginSecret []byte) *AuthorizeController {
	return &AuthorizeController{srv: srv, loginSecret: loginSecret}
}

// consentView is what the host consent page needs to render.
type consentView struct {
	ClientID    string         `json:"client_id"`
	RedirectURI string         `json:"redirect_uri"`
	Scopes      []oauth2.Scope `json:"scopes"`
	State       string         `json:"state,omitempty"`
}

// Authorize validates the request and describes the pending consent.
// GET /oauth/authorize
func (c *AuthorizeController) Authorize(w http.ResponseWriter, r *http.Request) {
	req := oauth2.AuthorizeRequestFromValues(r.URL.Query())

	params, err := c.srv.CheckAuthorizeParams(r.Context(), req)
	if err != nil {
		httperrors.WriteOAuthError(w, r, oauth2.AsError(err), req.State)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, consentView{
		ClientID:    params.Client.ID,
		RedirectURI: params.RedirectURI,
		Scopes:      params.Scopes,
		State:       params.State,
	})
}

// Decide turns the owner's consent decision into a redirect: a code on
// accept, an access_denied error on anything else. The owner is identified
// by the login token the host session layer issued.
// POST /oauth/authorize
func (c *AuthorizeController) Decide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.authorize"))

	if err := r.ParseForm(); err != nil {
		log.Warn("failed to parse form", logger.Err(err))
		httperrors.WriteOAuthError(w, r,
			oauth2.NewError(oauth2.KindInvalidRequest, "invalid form data"), "")
		return
	}

	req := oauth2.AuthorizeRequestFromValues(r.PostForm)
	params, err := c.srv.CheckAuthorizeParams(ctx, req)
	if err != nil {
		httperrors.WriteOAuthError(w, r, oauth2.AsError(err), req.State)
		return
	}

	ownerType, ownerID, err := logintoken.Parse(c.loginSecret, r.PostForm.Get("login_token"))
	if err != nil {
		httperrors.WriteOAuthError(w, r,
			oauth2.NewError(oauth2.KindAccessDenied, "the resource owner is not authenticated"), req.State)
		return
	}

	if r.PostForm.Get("decision") != "accept" {
		e := oauth2.NewError(oauth2.KindAccessDenied, "the resource owner denied the request").
			WithRedirect(params.RedirectURI)
		httperrors.WriteOAuthError(w, r, e, params.State)
		return
	}

	loc, err := c.srv.NewAuthorizeRequest(ctx, oauth2.OwnerType(ownerType), ownerID, params)
	if err != nil {
		httperrors.WriteOAuthError(w, r, oauth2.AsError(err), params.State)
		return
	}
	http.Redirect(w, r, loc, http.StatusFound)
}
