// Package secrets exchanges machine-identity credentials for short-lived
// session tokens at the secret store's authentication endpoint.
//
// The orchestrator never fetches secrets itself. It only obtains the
// session token; the secrets client inside the container uses it at start
// time to pull the scoped secret set and export it into the process
// environment.
package secrets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/artpar/pushdock/internal/core/domain"
)

// loginPath is Infisical's universal-auth login endpoint.
const loginPath = "/api/v1/auth/universal-auth/login"

// Authenticator is the contract the deploy engine consumes.
type Authenticator interface {
	// SessionToken returns a session token for the given secrets
	// configuration, reusing a cached one when available.
	SessionToken(ctx context.Context, cfg *domain.SecretsConfig) (string, error)
}

// Client authenticates machine identities against an Infisical-compatible
// endpoint and caches the resulting session tokens in memory.
type Client struct {
	http   *http.Client
	cache  *TokenCache
	logger *slog.Logger
}

var _ Authenticator = (*Client)(nil)

// NewClient creates a secrets auth client. timeout bounds each login call.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http:   &http.Client{Timeout: timeout},
		cache:  NewTokenCache(),
		logger: logger,
	}
}

type loginRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

// SessionToken exchanges cfg's machine identity for a session token,
// consulting the process-lifetime cache first. Tokens are keyed by
// (client identity, endpoint).
func (c *Client) SessionToken(ctx context.Context, cfg *domain.SecretsConfig) (string, error) {
	if tok, ok := c.cache.Get(cfg.ClientID, cfg.SiteURL); ok {
		c.logger.Debug("reusing cached session token", "client_id", cfg.ClientID)
		return tok, nil
	}

	body, err := json.Marshal(loginRequest{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	})
	if err != nil {
		return "", fmt.Errorf("encode login request: %w", err)
	}

	url := strings.TrimSuffix(cfg.SiteURL, "/") + loginPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("secrets auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Body is discarded: error payloads from the auth endpoint can
		// echo identity details.
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("secrets auth failed with status %d", resp.StatusCode)
	}

	var loginResp loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if loginResp.AccessToken == "" {
		return "", fmt.Errorf("secrets auth returned empty token")
	}

	c.cache.Put(cfg.ClientID, cfg.SiteURL, loginResp.AccessToken)
	return loginResp.AccessToken, nil
}
