package oauth2_test

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/littlejohn/internal/oauth2"
	"github.com/dropDatabas3/littlejohn/internal/security/password"
	"github.com/dropDatabas3/littlejohn/internal/store/memory"
)

// light argon2 params keep hashing cheap in tests
var testParams = password.Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 32}

var (
	hashOnce   sync.Once
	secretHash string
)

func testSecretHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		h, err := password.Hash(testParams, "s3cret")
		if err != nil {
			t.Fatalf("hashing: %v", err)
		}
		secretHash = h
	})
	return secretHash
}

func newTestServer(t *testing.T) (*oauth2.AuthorizationServer, *memory.Store) {
	t.Helper()
	st := memory.New()
	st.SaveClient(&oauth2.Client{
		ID:           "app",
		SecretHash:   testSecretHash(t),
		RedirectURI:  "https://app.example/cb",
		Confidential: true,
		Scopes:       []string{"read", "post"},
	})
	st.SaveClient(&oauth2.Client{
		ID:           "other",
		SecretHash:   testSecretHash(t),
		RedirectURI:  "https://other.example/cb",
		Confidential: true,
	})

	srv := oauth2.NewServer(oauth2.Config{}, st)
	srv.RegisterGrant(oauth2.NewAuthorizationCodeGrant())
	srv.RegisterGrant(oauth2.NewClientCredentialsGrant())
	srv.RegisterGrant(oauth2.NewRefreshTokenGrant())
	srv.RegisterGrant(oauth2.NewPasswordGrant(oauth2.AuthenticatorFunc(
		func(ctx context.Context, username, pw string) (string, bool, error) {
			if username == "alice" && pw == "wonder" {
				return "u1", true, nil
			}
			return "", false, nil
		})))
	return srv, st
}

func wantKind(t *testing.T, err error, kind oauth2.ErrorKind) *oauth2.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil error", kind)
	}
	e := oauth2.AsError(err)
	if e.Kind != kind {
		t.Fatalf("kind %s (%s), want %s", e.Kind, e.Description, kind)
	}
	return e
}

func TestIssueAccessTokenDispatch(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	_, err := srv.IssueAccessToken(ctx, oauth2.TokenRequest{})
	wantKind(t, err, oauth2.KindInvalidRequest)

	_, err = srv.IssueAccessToken(ctx, oauth2.TokenRequest{GrantType: "implicit"})
	wantKind(t, err, oauth2.KindUnsupportedGrantType)
}

func TestClientCredentialsGrant(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	t.Run("omitted scope grants the client defaults", func(t *testing.T) {
		resp, err := srv.IssueAccessToken(ctx, oauth2.TokenRequest{
			GrantType: oauth2.GrantClientCredentials, ClientID: "app", ClientSecret: "s3cret",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Scope != "read,post" {
			t.Errorf("scope %q, want read,post", resp.Scope)
		}
		if resp.TokenType != "Bearer" {
			t.Errorf("token_type %q", resp.TokenType)
		}
		if resp.ExpiresIn != 3600 {
			t.Errorf("expires_in %d, want 3600", resp.ExpiresIn)
		}
		if resp.RefreshToken != "" {
			t.Error("client_credentials must not issue a refresh token")
		}
	})

	t.Run("requested scope is clamped to the defaults", func(t *testing.T) {
		resp, err := srv.IssueAccessToken(ctx, oauth2.TokenRequest{
			GrantType: oauth2.GrantClientCredentials, ClientID: "app", ClientSecret: "s3cret",
			Scope: "post,admincp",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Scope != "post" {
			t.Errorf("scope %q, want post", resp.Scope)
		}
	})

	t.Run("disjoint request is refused", func(t *testing.T) {
		_, err := srv.IssueAccessToken(ctx, oauth2.TokenRequest{
			GrantType: oauth2.GrantClientCredentials, ClientID: "app", ClientSecret: "s3cret",
			Scope: "admincp",
		})
		wantKind(t, err, oauth2.KindInvalidScope)
	})

	t.Run("wrong secret is invalid_client", func(t *testing.T) {
		_, err := srv.IssueAccessToken(ctx, oauth2.TokenRequest{
			GrantType: oauth2.GrantClientCredentials, ClientID: "app", ClientSecret: "nope",
		})
		wantKind(t, err, oauth2.KindInvalidClient)
	})

	t.Run("unknown client is invalid_client", func(t *testing.T) {
		_, err := srv.IssueAccessToken(ctx, oauth2.TokenRequest{
			GrantType: oauth2.GrantClientCredentials, ClientID: "ghost", ClientSecret: "s3cret",
		})
		wantKind(t, err, oauth2.KindInvalidClient)
	})
}

// writeCounting counts token writes made inside transactions, so a test can
// show a refused grant persisted nothing.
type writeCounting struct {
	inner  oauth2.Storage
	writes *int
}

func (s *writeCounting) Stores() oauth2.Stores { return s.inner.Stores() }

func (s *writeCounting) RunInTx(ctx context.Context, fn func(ctx context.Context, st oauth2.Stores) error) error {
	return s.inner.RunInTx(ctx, func(ctx context.Context, st oauth2.Stores) error {
		st.AccessTokens = &countingAccess{st.AccessTokens, s.writes}
		st.RefreshTokens = &countingRefresh{st.RefreshTokens, s.writes}
		return fn(ctx, st)
	})
}

type countingAccess struct {
	oauth2.AccessTokenStorage
	n *int
}

func (c *countingAccess) Create(ctx context.Context, t *oauth2.AccessToken) error {
	*c.n++
	return c.AccessTokenStorage.Create(ctx, t)
}

type countingRefresh struct {
	oauth2.RefreshTokenStorage
	n *int
}

func (c *countingRefresh) Create(ctx context.Context, t *oauth2.RefreshToken) error {
	*c.n++
	return c.RefreshTokenStorage.Create(ctx, t)
}

func TestPasswordGrant(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	t.Run("valid credentials issue a token pair", func(t *testing.T) {
		resp, err := srv.IssueAccessToken(ctx, oauth2.TokenRequest{
			GrantType: oauth2.GrantPassword, ClientID: "app", ClientSecret: "s3cret",
			Username: "alice", Password: "wonder", Scope: "read,post",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.RefreshToken == "" {
			t.Error("password grant issues a refresh token")
		}

		tok, err := st.Stores().AccessTokens.Get(ctx, resp.AccessToken)
		if err != nil {
			t.Fatalf("token not persisted: %v", err)
		}
		if tok.OwnerType != oauth2.OwnerUser || tok.OwnerID != "u1" {
			t.Errorf("owner %s/%s, want user/u1", tok.OwnerType, tok.OwnerID)
		}
	})

	t.Run("bad credentials are access_denied and write nothing", func(t *testing.T) {
		var writes int
		counted := oauth2.NewServer(oauth2.Config{}, &writeCounting{inner: st, writes: &writes})
		counted.RegisterGrant(oauth2.NewPasswordGrant(oauth2.AuthenticatorFunc(
			func(ctx context.Context, username, pw string) (string, bool, error) {
				return "", false, nil
			})))

		_, err := counted.IssueAccessToken(ctx, oauth2.TokenRequest{
			GrantType: oauth2.GrantPassword, ClientID: "app", ClientSecret: "s3cret",
			Username: "alice", Password: "wrong",
		})
		wantKind(t, err, oauth2.KindAccessDenied)
		if writes != 0 {
			t.Errorf("refused grant persisted %d token write(s)", writes)
		}
	})

	t.Run("missing username is invalid_request", func(t *testing.T) {
		_, err := srv.IssueAccessToken(ctx, oauth2.TokenRequest{
			GrantType: oauth2.GrantPassword, ClientID: "app", ClientSecret: "s3cret",
			Password: "wonder",
		})
		wantKind(t, err, oauth2.KindInvalidRequest)
	})
}

func authorizeCode(t *testing.T, srv *oauth2.AuthorizationServer, scope string) string {
	t.Helper()
	ctx := context.Background()
	params, err := srv.CheckAuthorizeParams(ctx, oauth2.AuthorizeRequest{
		ResponseType: "code", ClientID: "app",
		RedirectURI: "https://app.example/cb", Scope: scope, State: "xyz",
	})
	if err != nil {
		t.Fatalf("check authorize: %v", err)
	}
	loc, err := srv.NewAuthorizeRequest(ctx, oauth2.OwnerUser, "u1", params)
	if err != nil {
		t.Fatalf("new authorize request: %v", err)
	}

	u, err := url.Parse(loc)
	if err != nil {
		t.Fatalf("redirect target: %v", err)
	}
	if got := u.Query().Get("state"); got != "xyz" {
		t.Fatalf("state %q, want xyz", got)
	}
	code := u.Query().Get("code")
	if code == "" {
		t.Fatal("redirect target carries no code")
	}
	return code
}

func TestAuthorizationCodeFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	code := authorizeCode(t, srv, "read,post")

	resp, err := srv.IssueAccessToken(ctx, oauth2.TokenRequest{
		GrantType: oauth2.GrantAuthorizationCode, ClientID: "app", ClientSecret: "s3cret",
		Code: code, RedirectURI: "https://app.example/cb",
	})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if resp.Scope != "read,post" {
		t.Errorf("scope %q, want read,post", resp.Scope)
	}
	if resp.RefreshToken == "" {
		t.Error("code exchange issues a refresh token")
	}

	t.Run("codes are single use", func(t *testing.T) {
		_, err := srv.IssueAccessToken(ctx, oauth2.TokenRequest{
			GrantType: oauth2.GrantAuthorizationCode, ClientID: "app", ClientSecret: "s3cret",
			Code: code, RedirectURI: "https://app.example/cb",
		})
		wantKind(t, err, oauth2.KindInvalidGrant)
	})
}

func TestAuthorizationCodeGrantRejections(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	t.Run("redirect mismatch on exchange", func(t *testing.T) {
		code := authorizeCode(t, srv, "read")
		_, err := srv.IssueAccessToken(ctx, oauth2.TokenRequest{
			GrantType: oauth2.GrantAuthorizationCode, ClientID: "app", ClientSecret: "s3cret",
			Code: code, RedirectURI: "https://evil.example/cb",
		})
		wantKind(t, err, oauth2.KindInvalidGrant)
	})

	t.Run("code issued to another client", func(t *testing.T) {
		code := authorizeCode(t, srv, "read")
		_, err := srv.IssueAccessToken(ctx, oauth2.TokenRequest{
			GrantType: oauth2.GrantAuthorizationCode, ClientID: "other", ClientSecret: "s3cret",
			Code: code, RedirectURI: "https://other.example/cb",
		})
		wantKind(t, err, oauth2.KindInvalidGrant)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := srv.IssueAccessToken(ctx, oauth2.TokenRequest{
			GrantType: oauth2.GrantAuthorizationCode, ClientID: "app", ClientSecret: "s3cret",
			Code: "nope", RedirectURI: "https://app.example/cb",
		})
		wantKind(t, err, oauth2.KindInvalidGrant)
	})
}

func TestCheckAuthorizeParams(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	t.Run("missing client_id", func(t *testing.T) {
		_, err := srv.CheckAuthorizeParams(ctx, oauth2.AuthorizeRequest{
			ResponseType: "code", RedirectURI: "https://app.example/cb",
		})
		e := wantKind(t, err, oauth2.KindInvalidRequest)
		if e.ShouldRedirect() {
			t.Error("pre-validation errors must not redirect")
		}
	})

	t.Run("unknown client", func(t *testing.T) {
		_, err := srv.CheckAuthorizeParams(ctx, oauth2.AuthorizeRequest{
			ResponseType: "code", ClientID: "ghost", RedirectURI: "https://app.example/cb",
		})
		wantKind(t, err, oauth2.KindInvalidClient)
	})

	t.Run("redirect mismatch never redirects", func(t *testing.T) {
		_, err := srv.CheckAuthorizeParams(ctx, oauth2.AuthorizeRequest{
			ResponseType: "code", ClientID: "app", RedirectURI: "https://evil.example/cb",
		})
		e := wantKind(t, err, oauth2.KindInvalidRequest)
		if e.ShouldRedirect() {
			t.Error("an untrusted redirect_uri must never be redirected to")
		}
	})

	t.Run("wrong response_type redirects", func(t *testing.T) {
		_, err := srv.CheckAuthorizeParams(ctx, oauth2.AuthorizeRequest{
			ResponseType: "token", ClientID: "app", RedirectURI: "https://app.example/cb",
		})
		e := wantKind(t, err, oauth2.KindInvalidRequest)
		if !e.ShouldRedirect() {
			t.Error("post-validation errors are redirect-eligible")
		}
	})

	t.Run("unknown scopes drop to default", func(t *testing.T) {
		params, err := srv.CheckAuthorizeParams(ctx, oauth2.AuthorizeRequest{
			ResponseType: "code", ClientID: "app",
			RedirectURI: "https://app.example/cb", Scope: "",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := params.Scopes.Join(","); got != "read" {
			t.Errorf("scope %q, want read", got)
		}
	})
}

func TestRefreshTokenGrant(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	issue := func(t *testing.T) *oauth2.TokenResponse {
		t.Helper()
		resp, err := srv.IssueAccessToken(ctx, oauth2.TokenRequest{
			GrantType: oauth2.GrantPassword, ClientID: "app", ClientSecret: "s3cret",
			Username: "alice", Password: "wonder", Scope: "read,post",
		})
		if err != nil {
			t.Fatalf("seed grant: %v", err)
		}
		return resp
	}

	t.Run("rotation replaces the pair", func(t *testing.T) {
		first := issue(t)

		resp, err := srv.IssueAccessToken(ctx, oauth2.TokenRequest{
			GrantType: oauth2.GrantRefreshToken, ClientID: "app", ClientSecret: "s3cret",
			RefreshToken: first.RefreshToken,
		})
		if err != nil {
			t.Fatalf("refresh: %v", err)
		}
		if resp.AccessToken == first.AccessToken {
			t.Error("a fresh access token is issued")
		}
		if resp.RefreshToken == "" || resp.RefreshToken == first.RefreshToken {
			t.Error("the refresh token rotates")
		}
		if resp.Scope != "read,post" {
			t.Errorf("scope %q, want the original set", resp.Scope)
		}

		stores := st.Stores()
		if _, err := stores.AccessTokens.Get(ctx, first.AccessToken); err != oauth2.ErrNotFound {
			t.Error("the old access token is revoked")
		}
		if _, err := stores.RefreshTokens.Get(ctx, first.RefreshToken); err != oauth2.ErrNotFound {
			t.Error("the old refresh token is revoked")
		}

		_, err = srv.IssueAccessToken(ctx, oauth2.TokenRequest{
			GrantType: oauth2.GrantRefreshToken, ClientID: "app", ClientSecret: "s3cret",
			RefreshToken: first.RefreshToken,
		})
		wantKind(t, err, oauth2.KindInvalidGrant)
	})

	t.Run("narrowing the scope is allowed", func(t *testing.T) {
		first := issue(t)
		resp, err := srv.IssueAccessToken(ctx, oauth2.TokenRequest{
			GrantType: oauth2.GrantRefreshToken, ClientID: "app", ClientSecret: "s3cret",
			RefreshToken: first.RefreshToken, Scope: "read",
		})
		if err != nil {
			t.Fatalf("refresh: %v", err)
		}
		if resp.Scope != "read" {
			t.Errorf("scope %q, want read", resp.Scope)
		}
	})

	t.Run("widening the scope is invalid_scope", func(t *testing.T) {
		first := issue(t)
		_, err := srv.IssueAccessToken(ctx, oauth2.TokenRequest{
			GrantType: oauth2.GrantRefreshToken, ClientID: "app", ClientSecret: "s3cret",
			RefreshToken: first.RefreshToken, Scope: "read,usercp",
		})
		wantKind(t, err, oauth2.KindInvalidScope)

		// the refused exchange must not have consumed the token
		if _, err := st.Stores().RefreshTokens.Get(ctx, first.RefreshToken); err != nil {
			t.Error("a refused refresh leaves the token usable")
		}
	})

	t.Run("foreign client is invalid_grant", func(t *testing.T) {
		first := issue(t)
		_, err := srv.IssueAccessToken(ctx, oauth2.TokenRequest{
			GrantType: oauth2.GrantRefreshToken, ClientID: "other", ClientSecret: "s3cret",
			RefreshToken: first.RefreshToken,
		})
		wantKind(t, err, oauth2.KindInvalidGrant)
	})

	t.Run("missing refresh_token is invalid_request", func(t *testing.T) {
		_, err := srv.IssueAccessToken(ctx, oauth2.TokenRequest{
			GrantType: oauth2.GrantRefreshToken, ClientID: "app", ClientSecret: "s3cret",
		})
		wantKind(t, err, oauth2.KindInvalidRequest)
	})
}

func TestAccessTokenExpiry(t *testing.T) {
	tok := &oauth2.AccessToken{ExpiresAt: time.Now().Add(time.Minute)}
	if tok.Expired(time.Now()) {
		t.Error("a future expiry is not expired")
	}
	if !tok.Expired(tok.ExpiresAt) {
		t.Error("the expiry instant itself counts as expired")
	}
}

func TestScopeJoinUsesConfiguredDelimiter(t *testing.T) {
	st := memory.New()
	st.SaveClient(&oauth2.Client{ID: "pub", Scopes: []string{"read", "post"}})

	srv := oauth2.NewServer(oauth2.Config{ScopeDelimiter: " "}, st)
	srv.RegisterGrant(oauth2.NewClientCredentialsGrant())

	resp, err := srv.IssueAccessToken(context.Background(), oauth2.TokenRequest{
		GrantType: oauth2.GrantClientCredentials, ClientID: "pub",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resp.Scope, " ") {
		t.Errorf("scope %q should use the space delimiter", resp.Scope)
	}
}
