package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenURL is the Copernicus Data Space identity provider token endpoint.
const DefaultTokenURL = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"

// ClientCredentials implements CredentialProvider with the OAuth2
// client-credentials grant.
type ClientCredentials struct {
	cfg    clientcredentials.Config
	client *http.Client

	mu      sync.Mutex
	current Session
	gen     int
}

// NewClientCredentials builds a provider for cred against tokenURL.
// client is used for the token exchange; nil means http.DefaultClient.
func NewClientCredentials(cred Credential, tokenURL string, client *http.Client) (*ClientCredentials, error) {
	if cred.ClientID == "" || cred.ClientSecret == "" {
		return nil, ErrMissingCredential
	}
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	return &ClientCredentials{
		cfg: clientcredentials.Config{
			ClientID:     cred.ClientID,
			ClientSecret: cred.ClientSecret,
			TokenURL:     tokenURL,
			// The identity provider expects the client id in the form body.
			AuthStyle: oauth2.AuthStyleInParams,
		},
		client: client,
	}, nil
}

// Session returns the cached session, exchanging the credential on first use.
func (c *ClientCredentials) Session(ctx context.Context) (Session, error) {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()

	if cur.Valid() {
		return cur, nil
	}
	return c.Refresh(ctx)
}

// Refresh exchanges the credential for a new token.
func (c *ClientCredentials) Refresh(ctx context.Context) (Session, error) {
	if c.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)
	}

	tok, err := c.cfg.Token(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("token exchange: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.current = Session{
		AccessToken: tok.AccessToken,
		TokenType:   tok.Type(),
		Expiry:      tok.Expiry,
		Generation:  c.gen,
	}
	return c.current, nil
}
