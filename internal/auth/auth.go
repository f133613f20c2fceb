// Package auth manages the signed-in session: signup/signin against
// the backend, the persisted bearer token, and the current-user
// signal the rest of the client consumes.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskflow/internal/config"
)

// User is the signed-in account as the server describes it.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// tokenResponse is the server's token grant.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// credentials is what gets persisted to token.json.
type credentials struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

// Session is the auth collaborator: it owns the token file and
// answers "who is signed in" for the cache, the bridge, and the CLI.
type Session struct {
	baseURL    string
	tokenPath  string
	httpClient *http.Client

	creds *credentials
}

// NewSession loads any persisted credentials from the taskflow home
// dir. A missing or unreadable token file just means signed out.
func NewSession(cfg config.Config) (*Session, error) {
	home, err := cfg.HomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve taskflow home: %w", err)
	}

	s := &Session{
		baseURL:   strings.TrimRight(cfg.API.BaseURL, "/"),
		tokenPath: filepath.Join(home, "token.json"),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.API.TimeoutMS) * time.Millisecond,
		},
	}
	s.loadCredentials()
	return s, nil
}

func (s *Session) loadCredentials() {
	data, err := os.ReadFile(s.tokenPath)
	if err != nil {
		return
	}
	var creds credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return
	}
	if strings.TrimSpace(creds.AccessToken) == "" {
		return
	}
	s.creds = &creds
}

// Token returns the current bearer token, or "" when signed out.
func (s *Session) Token() string {
	if s.creds == nil {
		return ""
	}
	return s.creds.AccessToken
}

// User returns the signed-in user.
func (s *Session) User() (User, bool) {
	if s.creds == nil {
		return User{}, false
	}
	return s.creds.User, true
}

// UserID returns the opaque user id the core operates on.
func (s *Session) UserID() string {
	if s.creds == nil {
		return ""
	}
	return s.creds.User.ID
}

// Authenticated reports whether a usable session exists. The token's
// exp claim is checked locally so an obviously expired token reads as
// signed out before the server says 401.
func (s *Session) Authenticated() bool {
	if s.creds == nil {
		return false
	}
	return !tokenExpired(s.creds.AccessToken)
}

// tokenExpired inspects the exp claim without verifying the
// signature; verification is the server's job.
func tokenExpired(token string) bool {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		// Not a JWT we can read; let the server decide.
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}

// SignUp registers a new account and signs in.
func (s *Session) SignUp(ctx context.Context, email, password, name string) (User, error) {
	body := map[string]string{"email": email, "password": password}
	if strings.TrimSpace(name) != "" {
		body["name"] = name
	}
	return s.authenticate(ctx, "/api/v1/auth/signup", body)
}

// SignIn exchanges email/password for a token and persists it.
func (s *Session) SignIn(ctx context.Context, email, password string) (User, error) {
	return s.authenticate(ctx, "/api/v1/auth/signin", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (s *Session) authenticate(ctx context.Context, path string, body map[string]string) (User, error) {
	var grant tokenResponse
	if err := s.post(ctx, path, body, "", &grant); err != nil {
		return User{}, err
	}
	if strings.TrimSpace(grant.AccessToken) == "" {
		return User{}, fmt.Errorf("server returned no access token")
	}

	// The token grant does not include the user record; fetch it so
	// the session knows its own user id.
	var user User
	if err := s.get(ctx, "/api/v1/auth/me", grant.AccessToken, &user); err != nil {
		return User{}, fmt.Errorf("fetch signed-in user: %w", err)
	}

	creds := credentials{AccessToken: grant.AccessToken, User: user}
	if err := s.saveCredentials(creds); err != nil {
		return User{}, err
	}
	s.creds = &creds
	return user, nil
}

// SignOut discards the persisted credentials. Outstanding requests
// are not cancelled; they settle against a dead session.
func (s *Session) SignOut() error {
	s.creds = nil
	if err := os.Remove(s.tokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

func (s *Session) saveCredentials(creds credentials) error {
	if err := os.MkdirAll(filepath.Dir(s.tokenPath), 0o755); err != nil {
		return fmt.Errorf("create taskflow home: %w", err)
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := os.WriteFile(s.tokenPath, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

func (s *Session) post(ctx context.Context, path string, body any, token string, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.roundTrip(req, out)
}

func (s *Session) get(ctx context.Context, path, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.roundTrip(req, out)
}

func (s *Session) roundTrip(req *http.Request, out any) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(data, &eb) == nil && eb.Detail != "" {
			return fmt.Errorf("%s (status=%d)", eb.Detail, resp.StatusCode)
		}
		return fmt.Errorf("request failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
