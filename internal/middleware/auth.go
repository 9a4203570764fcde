package middleware

import (
	"net/http"

	"github.com/rs/zerolog"
)

// AccessTokenCookie is the cookie the chat backend reads the session from.
const AccessTokenCookie = "access_token"

type authTransport struct {
	next  http.RoundTripper
	token string
	log   zerolog.Logger
}

// Authenticate wraps next so every request carries the access token, both
// as a bearer header and as the session cookie. A nil next means
// http.DefaultTransport.
func Authenticate(next http.RoundTripper, token string, log zerolog.Logger) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if token == "" {
		return next
	}
	return &authTransport{next: next, token: token, log: log}
}

func (t *authTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	req := r.Clone(r.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	if _, err := req.Cookie(AccessTokenCookie); err != nil {
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: t.token})
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		t.log.Warn().Str("path", req.URL.Path).Msg("access token rejected")
	case http.StatusForbidden:
		t.log.Warn().Str("path", req.URL.Path).Msg("access token lacks permission")
	}
	return resp, nil
}
