// Package remote is the wire client for the cloud entity store: one REST
// collection per entity kind, scoped by the signed-in user's id.
package remote

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
	"github.com/shuttertrack/shuttertrack/internal/session"
	"go.uber.org/zap"
)

// TokenSource supplies the identity scoping remote calls: the user id that
// namespaces the collections and the bearer token that authorizes them.
type TokenSource interface {
	Identity() (userID, idToken string, err error)
}

// SessionTokenSource reads the identity from the persisted session.
type SessionTokenSource struct {
	Store *session.Store
}

func (s *SessionTokenSource) Identity() (string, string, error) {
	cred, err := s.Store.Load()
	if err != nil {
		return "", "", err
	}
	if !cred.IsAuthenticated() {
		return "", "", fmt.Errorf("not signed in")
	}
	return cred.LocalID, cred.IDToken, nil
}

// Client talks to the remote entity store.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
	log        *zap.Logger
}

// NewClient creates a remote entity client from configuration.
func NewClient(cfg *config.ProviderConfig, tokens TokenSource, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.DataBaseURL, "/"),
		tokens:     tokens,
		log:        log,
	}
}

// doRequest builds, authorizes and executes one collection request, returning
// the response body. Non-2xx responses become errors carrying the status.
func (c *Client) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	userID, idToken, err := c.tokens.Identity()
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	endpoint := fmt.Sprintf("%s/users/%s%s", c.baseURL, url.PathEscape(userID), path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+idToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.log.Warn("failed to close response body", zap.Error(closeErr))
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("remote store returned status %d for %s %s", resp.StatusCode, method, path)
	}
	return respBody, nil
}

// createResponse is the provider's answer to a POST: the assigned id.
type createResponse struct {
	ID string `json:"id"`
}

func decodeCreateResponse(body []byte) (string, error) {
	var resp createResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create response missing id")
	}
	return resp.ID, nil
}
