package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/yapay-ai/garmin-downloader/pkg/model"
	"golang.org/x/oauth2"
)

// Credentials are the user's Garmin Connect login details.
type Credentials struct {
	Email    string
	Password string
}

// Authenticator exchanges credentials for a session token.
type Authenticator struct {
	config *oauth2.Config
	client *http.Client
}

// NewAuthenticator creates an authenticator that posts a password grant to tokenURL.
// A nil client falls back to http.DefaultClient.
func NewAuthenticator(tokenURL, clientID string, client *http.Client) *Authenticator {
	if client == nil {
		client = http.DefaultClient
	}
	return &Authenticator{
		config: NewOAuthConfig(tokenURL, clientID),
		client: client,
	}
}

// Login performs the exchange. Any failure is an *model.AuthenticationError.
func (a *Authenticator) Login(ctx context.Context, creds Credentials) (*oauth2.Token, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, &model.AuthenticationError{Err: errors.New("email and password are required")}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)
	tok, err := a.config.PasswordCredentialsToken(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, &model.AuthenticationError{Err: fmt.Errorf("exchange credentials: %w", err)}
	}
	return tok, nil
}
