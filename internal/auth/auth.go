// Package auth obtains bearer tokens from the identity provider guarding the
// file vault, and builds authorized file requests from them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	synchttp "github.com/ligustah/csvsync/internal/http"
)

// Common errors.
var (
	ErrRejected   = errors.New("auth: credentials rejected")
	ErrEmptyToken = errors.New("auth: empty access token")
)

// Options configures the Authenticator.
type Options struct {
	// TokenURL is the OAuth2 token endpoint, e.g. a Keycloak realm's
	// /protocol/openid-connect/token.
	TokenURL string

	ClientID     string
	ClientSecret string

	// Username and Password select the resource-owner password grant.
	// When Username is empty the client credentials grant is used.
	Username string
	Password string

	Scopes []string
}

// Authenticator fetches one access token per call.
type Authenticator struct {
	opts   Options
	client *http.Client
}

// New returns an Authenticator that talks to the token endpoint through
// client. A nil client uses http.DefaultClient.
func New(opts Options, client *http.Client) *Authenticator {
	if client == nil {
		client = http.DefaultClient
	}
	return &Authenticator{opts: opts, client: client}
}

// Token authenticates and returns the access token.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)

	var (
		tok *oauth2.Token
		err error
	)
	if a.opts.Username != "" {
		cfg := oauth2.Config{
			ClientID:     a.opts.ClientID,
			ClientSecret: a.opts.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: a.opts.TokenURL},
			Scopes:       a.opts.Scopes,
		}
		tok, err = cfg.PasswordCredentialsToken(ctx, a.opts.Username, a.opts.Password)
	} else {
		cfg := clientcredentials.Config{
			ClientID:     a.opts.ClientID,
			ClientSecret: a.opts.ClientSecret,
			TokenURL:     a.opts.TokenURL,
			Scopes:       a.opts.Scopes,
		}
		tok, err = cfg.Token(ctx)
	}
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return "", fmt.Errorf("%w: %w", ErrRejected, err)
		}
		return "", fmt.Errorf("request token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", ErrEmptyToken
	}
	return tok.AccessToken, nil
}

// FileRequest builds the request descriptor for downloading url with token.
func FileRequest(url, token string) synchttp.Request {
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+token)
	h.Set("Accept", "text/csv")
	return synchttp.Request{URL: url, Header: h}
}
