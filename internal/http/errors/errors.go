// Package errors renders protocol errors the way RFC 6749 prescribes:
// JSON bodies for token and resource failures, query-string redirects for
// authorize failures raised after the redirect URI was validated.
package errors

import (
	"encoding/json"
	"net/http"
	"net/url"

	"go.uber.org/zap/zapcore"

	"github.com/dropDatabas3/littlejohn/internal/oauth2"
	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
)

type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
	Trace            string `json:"trace,omitempty"`
}

// debugMode reports whether the process runs with debug logging, which also
// switches error payloads to carry the call trace.
func debugMode() bool {
	return logger.L().Core().Enabled(zapcore.DebugLevel)
}

// WriteOAuthError replies with e. Redirect-eligible errors 302 back to the
// client with error and state in the query; everything else gets a JSON body
// with no-store headers. Failures are logged at error level for 5xx, and at
// debug level otherwise so routine refusals stay out of production logs.
func WriteOAuthError(w http.ResponseWriter, r *http.Request, e *oauth2.Error, state string) {
	log := logger.From(r.Context()).With(logger.ErrorKind(string(e.Kind)))
	if e.Status >= http.StatusInternalServerError {
		log.Error("request failed", logger.Err(e))
	} else {
		log.Debug("request refused", logger.Err(e))
	}

	if e.ShouldRedirect() {
		redirectError(w, r, e, state)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	if e.Kind == oauth2.KindInvalidClient {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth", error="invalid_client"`)
	}
	body := oauthError{
		Error:            string(e.Kind),
		ErrorDescription: e.Description,
		RequestID:        w.Header().Get("X-Request-ID"),
	}
	if debugMode() {
		body.Trace = e.Trace()
	}
	WriteJSON(w, e.Status, body)
}

func redirectError(w http.ResponseWriter, r *http.Request, e *oauth2.Error, state string) {
	u, err := url.Parse(e.RedirectURI)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, oauthError{
			Error:            string(oauth2.KindInvalidRequest),
			ErrorDescription: "invalid redirect uri",
		})
		return
	}
	q := u.Query()
	q.Set("error", string(e.Kind))
	if e.Description != "" {
		q.Set("error_description", e.Description)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// WriteJSON writes a standard JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
