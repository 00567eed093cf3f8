package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/unifinance/funding-radar/internal/models"
)

var (
	ErrNoSession       = errors.New("no active session")
	ErrProfileNotFound = errors.New("profile not found")
)

// Config locates the external identity/profile service. RedirectBase is
// environment dependent: the local dev origin during development and the
// public site origin in production, with a fixed /auth/callback path.
type Config struct {
	BaseURL      string // e.g. https://project.supabase.co
	AnonKey      string
	RedirectBase string // e.g. http://localhost:5173 or https://app.unifinance.co.uk
}

// Client is a thin HTTP client for a GoTrue-style auth service and its
// PostgREST profile endpoint. It holds no session state; tokens travel
// with each call.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Session is the token pair plus its owner, as returned by the auth service.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	User         User   `json:"user"`
}

// User is the subset of the auth service's user record we care about.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type authError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Msg         string `json:"msg"`
}

func (e authError) message() string {
	switch {
	case e.Description != "":
		return e.Description
	case e.Msg != "":
		return e.Msg
	case e.Error != "":
		return e.Error
	}
	return "unknown auth error"
}

// SignUp registers an email/password account. First and last name travel as
// user metadata so the downstream profile trigger can pick them up.
func (c *Client) SignUp(ctx context.Context, email, password, firstName, lastName string) (*Session, error) {
	payload := map[string]any{
		"email":    email,
		"password": password,
		"data": map[string]string{
			"first_name": firstName,
			"last_name":  lastName,
		},
	}
	var session Session
	if err := c.post(ctx, "/auth/v1/signup", payload, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SignIn exchanges email/password credentials for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	payload := map[string]string{"email": email, "password": password}
	var session Session
	if err := c.post(ctx, "/auth/v1/token?grant_type=password", payload, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// RefreshSession exchanges a refresh token for a fresh session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	payload := map[string]string{"refresh_token": refreshToken}
	var session Session
	if err := c.post(ctx, "/auth/v1/token?grant_type=refresh_token", payload, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetUser resolves an access token to its user, validating the token with
// the auth service in the process.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, accessToken)

	var user User
	if err := c.do(req, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, ErrNoSession
	}
	return &user, nil
}

// EstablishSession validates an access/refresh token pair mined from a
// redirect URL and returns the session it represents, refreshing when the
// access token has already expired.
func (c *Client) EstablishSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	user, err := c.GetUser(ctx, accessToken)
	if err == nil {
		return &Session{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			TokenType:    "bearer",
			User:         *user,
		}, nil
	}
	if refreshToken == "" {
		return nil, err
	}
	return c.RefreshSession(ctx, refreshToken)
}

// OAuthURL builds the external authorize URL for the given provider. The
// redirect target follows the configured deployment origin.
func (c *Client) OAuthURL(provider string) string {
	redirect := strings.TrimRight(c.cfg.RedirectBase, "/") + "/auth/callback"
	q := url.Values{}
	q.Set("provider", provider)
	q.Set("redirect_to", redirect)
	return c.cfg.BaseURL + "/auth/v1/authorize?" + q.Encode()
}

// GetProfile fetches the user's profile record from the profile endpoint.
func (c *Client) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/profiles?user_id=eq.%s&limit=1", c.cfg.BaseURL, url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, "")

	var rows []models.UserProfile
	if err := c.do(req, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrProfileNotFound
	}
	return &rows[0], nil
}

// ProfileExists implements ProfileStore.
func (c *Client) ProfileExists(ctx context.Context, userID string) (bool, error) {
	_, err := c.GetProfile(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req, "")
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) setHeaders(req *http.Request, accessToken string) {
	req.Header.Set("apikey", c.cfg.AnonKey)
	if accessToken == "" {
		accessToken = c.cfg.AnonKey
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth service request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading auth response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr authError
		if json.Unmarshal(data, &apiErr) == nil {
			return fmt.Errorf("auth service: %s (status %d)", apiErr.message(), resp.StatusCode)
		}
		return fmt.Errorf("auth service: status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding auth response: %w", err)
	}
	return nil
}
