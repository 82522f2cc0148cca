package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/yapay-ai/garmin-downloader/pkg/model"
	"golang.org/x/oauth2"
)

const (
	// TokenDirEnv overrides the configured token directory.
	TokenDirEnv = "GARMINTOKENS"

	// DefaultTokenDir is where tokens live when nothing else is configured.
	DefaultTokenDir = "~/.garth"

	tokenFile = "oauth2_token.json"
)

// Session is an authenticated capability to call Garmin Connect.
// It is built once per process and passed explicitly to whoever needs it.
type Session struct {
	source oauth2.TokenSource
	client *http.Client
}

// New wraps an existing token without any way to renew it. The returned
// client attaches the token as a bearer header on every request and gives
// up after timeout.
func New(ctx context.Context, token *oauth2.Token, timeout time.Duration) *Session {
	return newSession(ctx, oauth2.StaticTokenSource(token), timeout)
}

func newSession(ctx context.Context, src oauth2.TokenSource, timeout time.Duration) *Session {
	client := oauth2.NewClient(ctx, src)
	client.Timeout = timeout
	return &Session{source: src, client: client}
}

// Load reads the persisted token from dir and builds a session from it.
// When conf is non-nil and the token carries a refresh token, an expired
// access token is renewed through conf's token endpoint and every renewed
// token is written back to dir. A missing token, or an expired one that
// cannot be renewed, is reported as *model.AuthenticationError.
func Load(ctx context.Context, dir string, conf *oauth2.Config, timeout time.Duration) (*Session, error) {
	tok, err := ReadToken(dir)
	if err != nil {
		return nil, err
	}
	if conf == nil || tok.RefreshToken == "" {
		if !tok.Valid() {
			return nil, &model.AuthenticationError{Err: model.ErrTokenExpired}
		}
		return New(ctx, tok, timeout), nil
	}

	// Token requests made by the refresher share the API timeout.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout})
	src := &persistingSource{
		dir:  dir,
		base: oauth2.ReuseTokenSource(tok, conf.TokenSource(ctx, tok)),
		last: tok.AccessToken,
	}

	// Renew up front so a dead refresh token fails before any export starts.
	if _, err := src.Token(); err != nil {
		return nil, err
	}
	return newSession(ctx, src, timeout), nil
}

// Client returns the authenticated HTTP client.
func (s *Session) Client() *http.Client { return s.client }

// Token returns the current token, renewing it first when it has expired
// and the session can refresh.
func (s *Session) Token() (*oauth2.Token, error) {
	return s.source.Token()
}

// persistingSource saves every newly issued token to dir.
type persistingSource struct {
	dir  string
	base oauth2.TokenSource

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, &model.AuthenticationError{Err: fmt.Errorf("%w: refresh failed: %w", model.ErrTokenExpired, err)}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if err := SaveToken(p.dir, tok); err != nil {
			return nil, fmt.Errorf("persist refreshed token: %w", err)
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}

// NewOAuthConfig describes the Garmin SSO token endpoint used both for
// the password exchange and for refreshing.
func NewOAuthConfig(tokenURL, clientID string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: clientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// ResolveDir picks the token directory: the GARMINTOKENS environment
// variable wins, then configured, then DefaultTokenDir. A leading "~" is
// expanded to the user's home directory.
func ResolveDir(configured string) (string, error) {
	dir := os.Getenv(TokenDirEnv)
	if dir == "" {
		dir = configured
	}
	if dir == "" {
		dir = DefaultTokenDir
	}
	return expandHome(dir)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// storedToken is the on-disk token layout. It accepts both an RFC 3339
// expiry and the epoch-seconds expires_at written by garth.
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	ExpiresAt    int64     `json:"expires_at,omitempty"`
}

// ReadToken loads the token file from dir.
func ReadToken(dir string) (*oauth2.Token, error) {
	data, err := os.ReadFile(filepath.Join(dir, tokenFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, &model.AuthenticationError{Err: model.ErrNoToken}
	}
	if err != nil {
		return nil, &model.AuthenticationError{Err: fmt.Errorf("read token: %w", err)}
	}

	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, &model.AuthenticationError{Err: fmt.Errorf("parse token: %w", err)}
	}
	if st.AccessToken == "" {
		return nil, &model.AuthenticationError{Err: model.ErrNoToken}
	}

	tok := &oauth2.Token{
		AccessToken:  st.AccessToken,
		TokenType:    st.TokenType,
		RefreshToken: st.RefreshToken,
		Expiry:       st.Expiry,
	}
	if tok.Expiry.IsZero() && st.ExpiresAt > 0 {
		tok.Expiry = time.Unix(st.ExpiresAt, 0)
	}
	return tok, nil
}

// SaveToken persists tok to dir with owner-only permissions.
func SaveToken(dir string, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return errors.New("save token: empty access token")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}

	st := storedToken{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if !tok.Expiry.IsZero() {
		st.ExpiresAt = tok.Expiry.Unix()
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	path := filepath.Join(dir, tokenFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}
