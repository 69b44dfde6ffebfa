package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTokenServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q, want client_credentials", got)
		}
		if got := r.PostForm.Get("client_id"); got != "id" {
			t.Errorf("client_id = %q, want id", got)
		}
		if got := r.PostForm.Get("client_secret"); got != "secret" {
			t.Errorf("client_secret = %q, want secret", got)
		}

		n := atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"Bearer","expires_in":600}`, n)
	}))
}

func TestNewClientCredentials_MissingKeys(t *testing.T) {
	tests := []Credential{
		{ClientID: "", ClientSecret: "secret"},
		{ClientID: "id", ClientSecret: ""},
		{},
	}
	for _, cred := range tests {
		if _, err := NewClientCredentials(cred, "", nil); !errors.Is(err, ErrMissingCredential) {
			t.Errorf("NewClientCredentials(%+v) error = %v, want ErrMissingCredential", cred, err)
		}
	}
}

func TestClientCredentials_SessionCachesToken(t *testing.T) {
	var calls int32
	srv := newTokenServer(t, &calls)
	defer srv.Close()

	p, err := NewClientCredentials(Credential{ClientID: "id", ClientSecret: "secret"}, srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := p.Session(context.Background())
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	second, err := p.Session(context.Background())
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}

	if first != second {
		t.Errorf("expected cached session, got %+v then %+v", first, second)
	}
	if calls != 1 {
		t.Errorf("expected 1 token exchange, got %d", calls)
	}
	if first.AccessToken != "token-1" || first.TokenType != "Bearer" {
		t.Errorf("unexpected session %+v", first)
	}
}

func TestClientCredentials_RefreshChangesSession(t *testing.T) {
	var calls int32
	srv := newTokenServer(t, &calls)
	defer srv.Close()

	p, err := NewClientCredentials(Credential{ClientID: "id", ClientSecret: "secret"}, srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := p.Session(context.Background())
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	refreshed, err := p.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if refreshed == first {
		t.Fatal("expected refreshed session to differ")
	}
	if refreshed.Generation != first.Generation+1 {
		t.Errorf("generation = %d, want %d", refreshed.Generation, first.Generation+1)
	}
	if refreshed.AccessToken != "token-2" {
		t.Errorf("access token = %q, want token-2", refreshed.AccessToken)
	}
}

func TestClientCredentials_RefreshError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := NewClientCredentials(Credential{ClientID: "id", ClientSecret: "secret"}, srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Refresh(context.Background()); err == nil {
		t.Fatal("expected error from rejected token exchange")
	}
}

func TestSessionAuthorize(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	Session{AccessToken: "abc"}.Authorize(req)
	if got := req.Header.Get("Authorization"); got != "Bearer abc" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer abc")
	}
}
