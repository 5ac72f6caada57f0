// Package provider is the wire client for the remote identity provider. It
// models the provider's observable contract only: account verbs on the
// identity endpoint and the refresh grant on the token endpoint.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shuttertrack/shuttertrack/internal/config"
	"go.uber.org/zap"
)

// APIError is an explicit rejection from the provider, carrying the
// provider's error code (EMAIL_EXISTS, INVALID_PASSWORD, ...). Transport
// failures are returned as plain wrapped errors, never as APIError.
type APIError struct {
	StatusCode int
	Code       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider rejected request: %s (status %d)", e.Code, e.StatusCode)
}

// Tokens is the identity payload common to sign-up, sign-in, federation and
// refresh responses.
type Tokens struct {
	LocalID      string
	Email        string
	DisplayName  string
	IDToken      string
	RefreshToken string
}

// AccountInfo is what the lookup endpoint reports about a live token.
type AccountInfo struct {
	LocalID       string
	Email         string
	DisplayName   string
	EmailVerified bool
}

// Client talks to the identity provider's REST endpoints.
type Client struct {
	httpClient   *http.Client
	apiKey       string
	identityBase string
	tokenBase    string
	log          *zap.Logger
}

// NewClient creates a provider client from configuration.
func NewClient(cfg *config.ProviderConfig, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		apiKey:       cfg.APIKey,
		identityBase: strings.TrimRight(cfg.IdentityBaseURL, "/"),
		tokenBase:    strings.TrimRight(cfg.TokenBaseURL, "/"),
		log:          log,
	}
}

type accountResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}

// SignUp creates a password account.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Tokens, error) {
	var resp accountResponse
	err := c.postAccounts(ctx, "signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return tokensFromAccount(resp), nil
}

// SignIn exchanges email+password for tokens.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Tokens, error) {
	var resp accountResponse
	err := c.postAccounts(ctx, "signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return tokensFromAccount(resp), nil
}

// SignInWithIdp exchanges a third-party identity token for this system's own
// tokens via the provider's federation endpoint.
func (c *Client) SignInWithIdp(ctx context.Context, externalIDToken, requestURI string) (*Tokens, error) {
	if requestURI == "" {
		requestURI = "http://localhost"
	}
	var resp accountResponse
	err := c.postAccounts(ctx, "signInWithIdp", map[string]any{
		"postBody":          "id_token=" + url.QueryEscape(externalIDToken) + "&providerId=google.com",
		"requestUri":        requestURI,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return tokensFromAccount(resp), nil
}

// Lookup asks the provider whether idToken is still good and returns the
// account it belongs to.
func (c *Client) Lookup(ctx context.Context, idToken string) (*AccountInfo, error) {
	var resp struct {
		Users []struct {
			LocalID       string `json:"localId"`
			Email         string `json:"email"`
			DisplayName   string `json:"displayName"`
			EmailVerified bool   `json:"emailVerified"`
		} `json:"users"`
	}
	if err := c.postAccounts(ctx, "lookup", map[string]any{"idToken": idToken}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, &APIError{StatusCode: http.StatusBadRequest, Code: "USER_NOT_FOUND"}
	}
	user := resp.Users[0]
	return &AccountInfo{
		LocalID:       user.LocalID,
		Email:         user.Email,
		DisplayName:   user.DisplayName,
		EmailVerified: user.EmailVerified,
	}, nil
}

// Refresh exchanges a refresh token through the token-refresh grant.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	endpoint := fmt.Sprintf("%s/v1/token?key=%s", c.tokenBase, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.execute(req)
	if err != nil {
		return nil, err
	}

	var resp struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		UserID       string `json:"user_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}
	return &Tokens{
		LocalID:      resp.UserID,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}

// UpdateProfile sets the display name on the provider-side account.
func (c *Client) UpdateProfile(ctx context.Context, idToken, displayName string) error {
	var resp struct{}
	return c.postAccounts(ctx, "update", map[string]any{
		"idToken":           idToken,
		"displayName":       displayName,
		"returnSecureToken": false,
	}, &resp)
}

// SendEmailVerification asks the provider to mail a verification link.
func (c *Client) SendEmailVerification(ctx context.Context, idToken string) error {
	var resp struct{}
	return c.postAccounts(ctx, "sendOobCode", map[string]any{
		"requestType": "VERIFY_EMAIL",
		"idToken":     idToken,
	}, &resp)
}

// SendPasswordReset asks the provider to mail a password-reset link.
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	var resp struct{}
	return c.postAccounts(ctx, "sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, &resp)
}

func tokensFromAccount(resp accountResponse) *Tokens {
	return &Tokens{
		LocalID:      resp.LocalID,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
	}
}

func (c *Client) postAccounts(ctx context.Context, verb string, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", verb, err)
	}

	endpoint := fmt.Sprintf("%s/v1/accounts:%s?key=%s", c.identityBase, verb, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", verb, err)
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, err := c.execute(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w", verb, err)
	}
	return nil
}

// execute runs the request and returns the body, turning non-2xx responses
// into APIError with the provider's error code.
func (c *Client) execute(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.log.Warn("failed to close response body", zap.Error(closeErr))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: decodeErrorCode(body)}
	}
	return body, nil
}

func decodeErrorCode(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error.Message == "" {
		return "UNKNOWN_ERROR"
	}
	// Codes may carry a trailing detail, e.g. "WEAK_PASSWORD : ...".
	code := payload.Error.Message
	if idx := strings.IndexAny(code, " :"); idx > 0 {
		code = code[:idx]
	}
	return code
}
