package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yapay-ai/garmin-downloader/pkg/model"
	"github.com/yapay-ai/garmin-downloader/pkg/session"
	"golang.org/x/oauth2"
)

func TestSaveAndReadToken(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tokens")
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)

	err := session.SaveToken(dir, &oauth2.Token{
		AccessToken:  "abc",
		TokenType:    "Bearer",
		RefreshToken: "refresh",
		Expiry:       expiry,
	})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "oauth2_token.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err := session.ReadToken(dir)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok.AccessToken)
	assert.Equal(t, "refresh", tok.RefreshToken)
	assert.True(t, expiry.Equal(tok.Expiry))
}

func TestReadToken_GarthLayout(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`{"access_token": "garth-token", "token_type": "Bearer", "expires_in": 3600, "expires_at": 4102444800}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "oauth2_token.json"), data, 0o600))

	tok, err := session.ReadToken(dir)
	require.NoError(t, err)
	assert.Equal(t, "garth-token", tok.AccessToken)
	assert.Equal(t, int64(4102444800), tok.Expiry.Unix())
}

func TestReadToken_Missing(t *testing.T) {
	_, err := session.ReadToken(t.TempDir())
	require.Error(t, err)

	var authErr *model.AuthenticationError
	assert.True(t, errors.As(err, &authErr))
	assert.ErrorIs(t, err, model.ErrNoToken)
}

func TestReadToken_Invalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "oauth2_token.json"), []byte("{not json"), 0o600))

	_, err := session.ReadToken(dir)
	var authErr *model.AuthenticationError
	assert.True(t, errors.As(err, &authErr))
}

func TestLoad_Expired(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, session.SaveToken(dir, &oauth2.Token{
		AccessToken: "old",
		Expiry:      time.Now().Add(-time.Hour),
	}))

	_, err := session.Load(context.Background(), dir, nil, time.Second)
	assert.ErrorIs(t, err, model.ErrTokenExpired)
}

func TestLoad_ExpiredWithoutRefreshToken(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, session.SaveToken(dir, &oauth2.Token{
		AccessToken: "old",
		Expiry:      time.Now().Add(-time.Minute),
	}))

	conf := session.NewOAuthConfig("http://127.0.0.1:0/token", "gdl")
	_, err := session.Load(context.Background(), dir, conf, time.Second)

	var authErr *model.AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.ErrorIs(t, err, model.ErrTokenExpired)
}

// tokenServer answers refresh_token grants with the given access token.
func tokenServer(t *testing.T, accessToken string, calls *int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "still-valid", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "gdl", r.PostForm.Get("client_id"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": accessToken,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestLoad_RefreshesExpiredToken(t *testing.T) {
	var calls int
	server := tokenServer(t, "fresh", &calls)

	var auth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	dir := t.TempDir()
	require.NoError(t, session.SaveToken(dir, &oauth2.Token{
		AccessToken:  "old",
		TokenType:    "Bearer",
		RefreshToken: "still-valid",
		Expiry:       time.Now().Add(-time.Minute),
	}))

	s, err := session.Load(context.Background(), dir, session.NewOAuthConfig(server.URL, "gdl"), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
	assert.True(t, tok.Expiry.After(time.Now()))

	stored, err := session.ReadToken(dir)
	require.NoError(t, err)
	assert.Equal(t, "fresh", stored.AccessToken)
	assert.Equal(t, "still-valid", stored.RefreshToken)

	resp, err := s.Client().Get(api.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Bearer fresh", auth)
	assert.Equal(t, 1, calls)
}

func TestLoad_ValidTokenIsNotRefreshed(t *testing.T) {
	var calls int
	server := tokenServer(t, "unused", &calls)

	dir := t.TempDir()
	require.NoError(t, session.SaveToken(dir, &oauth2.Token{
		AccessToken:  "current",
		RefreshToken: "still-valid",
		Expiry:       time.Now().Add(time.Hour),
	}))

	s, err := session.Load(context.Background(), dir, session.NewOAuthConfig(server.URL, "gdl"), 5*time.Second)
	require.NoError(t, err)

	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "current", tok.AccessToken)
	assert.Equal(t, 0, calls)
}

func TestLoad_RefreshRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "invalid_grant"}`))
	}))
	defer server.Close()

	dir := t.TempDir()
	require.NoError(t, session.SaveToken(dir, &oauth2.Token{
		AccessToken:  "old",
		RefreshToken: "revoked",
		Expiry:       time.Now().Add(-time.Minute),
	}))

	_, err := session.Load(context.Background(), dir, session.NewOAuthConfig(server.URL, "gdl"), 5*time.Second)
	var authErr *model.AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.ErrorIs(t, err, model.ErrTokenExpired)

	stored, err := session.ReadToken(dir)
	require.NoError(t, err)
	assert.Equal(t, "old", stored.AccessToken)
}

func TestSession_AttachesBearerToken(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dir := t.TempDir()
	require.NoError(t, session.SaveToken(dir, &oauth2.Token{AccessToken: "abc", TokenType: "Bearer"}))

	s, err := session.Load(context.Background(), dir, nil, 5*time.Second)
	require.NoError(t, err)

	resp, err := s.Client().Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Bearer abc", auth)
}

func TestResolveDir(t *testing.T) {
	t.Setenv(session.TokenDirEnv, "/tmp/env-tokens")
	dir, err := session.ResolveDir("/tmp/configured")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env-tokens", dir)

	t.Setenv(session.TokenDirEnv, "")
	dir, err = session.ResolveDir("/tmp/configured")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/configured", dir)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	dir, err = session.ResolveDir("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".garth"), dir)
}

func TestAuthenticator_Login(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "me@example.com", r.PostForm.Get("username"))
		assert.Equal(t, "secret", r.PostForm.Get("password"))
		assert.Equal(t, "gdl", r.PostForm.Get("client_id"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "new-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer server.Close()

	a := session.NewAuthenticator(server.URL, "gdl", server.Client())
	tok, err := a.Login(context.Background(), session.Credentials{Email: "me@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "new-token", tok.AccessToken)
	assert.False(t, tok.Expiry.IsZero())
}

func TestAuthenticator_Login_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "invalid_grant"}`))
	}))
	defer server.Close()

	a := session.NewAuthenticator(server.URL, "gdl", server.Client())
	_, err := a.Login(context.Background(), session.Credentials{Email: "me@example.com", Password: "wrong"})

	var authErr *model.AuthenticationError
	assert.True(t, errors.As(err, &authErr))
}

func TestAuthenticator_Login_MissingCredentials(t *testing.T) {
	a := session.NewAuthenticator("http://127.0.0.1:0", "gdl", nil)
	_, err := a.Login(context.Background(), session.Credentials{Email: "me@example.com"})
	assert.Error(t, err)
}
