package oauth2

import (
	"net/url"
	"strings"
)

// TokenRequest carries the form-encoded parameters of a token endpoint
// request.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Scope        string
	RedirectURI  string
	Code         string
	Username     string
	Password     string
	RefreshToken string
}

// TokenRequestFromValues builds a TokenRequest from parsed form values,
// trimming whitespace.
func TokenRequestFromValues(v url.Values) TokenRequest {
	get := func(k string) string { return strings.TrimSpace(v.Get(k)) }
	return TokenRequest{
		GrantType:    get("grant_type"),
		ClientID:     get("client_id"),
		ClientSecret: get("client_secret"),
		Scope:        get("scope"),
		RedirectURI:  get("redirect_uri"),
		Code:         get("code"),
		Username:     get("username"),
		Password:     get("password"),
		RefreshToken: get("refresh_token"),
	}
}

// TokenResponse is the token endpoint success payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// AuthorizeRequest carries the query parameters of an authorize endpoint
// request.
type AuthorizeRequest struct {
	ResponseType string
	ClientID     string
	RedirectURI  string
	Scope        string
	State        string
}

// AuthorizeRequestFromValues builds an AuthorizeRequest from query values,
// trimming whitespace.
func AuthorizeRequestFromValues(v url.Values) AuthorizeRequest {
	get := func(k string) string { return strings.TrimSpace(v.Get(k)) }
	return AuthorizeRequest{
		ResponseType: get("response_type"),
		ClientID:     get("client_id"),
		RedirectURI:  get("redirect_uri"),
		Scope:        get("scope"),
		State:        get("state"),
	}
}

// AuthorizeParams is the validated bundle produced by the authorize
// pre-flight and consumed by NewAuthorizeRequest.
type AuthorizeParams struct {
	Client      *Client
	Scopes      ScopeSet
	RedirectURI string
	State       string
}

// addQuery appends a query parameter to a URL that may already carry one.
func addQuery(u, k, v string) string {
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + url.QueryEscape(k) + "=" + url.QueryEscape(v)
}
