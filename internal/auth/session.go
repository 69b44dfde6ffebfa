package auth

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	// ErrMissingCredential is returned when the client id or secret is empty.
	ErrMissingCredential = errors.New("client_id or client_secret missing")
)

// Credential is the client id/secret pair exchanged for a Session.
type Credential struct {
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
}

// Session is a bearer token obtained from the identity provider.
// Generation increases every time the provider re-exchanges the credential,
// so two sessions compare unequal after a refresh.
type Session struct {
	AccessToken string
	TokenType   string
	Expiry      time.Time
	Generation  int
}

// Valid reports whether the session carries a token. Expiry is not checked:
// callers detect it reactively from a 401.
func (s Session) Valid() bool {
	return s.AccessToken != ""
}

// Authorize sets the Authorization header on req.
func (s Session) Authorize(req *http.Request) {
	typ := s.TokenType
	if typ == "" {
		typ = "Bearer"
	}
	req.Header.Set("Authorization", typ+" "+s.AccessToken)
}

// CredentialProvider yields sessions and owns the refresh policy.
type CredentialProvider interface {
	// Session returns the current session, exchanging the credential if none exists yet.
	Session(ctx context.Context) (Session, error)
	// Refresh always re-exchanges the credential.
	Refresh(ctx context.Context) (Session, error)
}
