// Package platform talks to the identity/licensing backend: bearer token
// issuance and user registration.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"capture/internal"
	"capture/internal/config"
)

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.PlatformTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.PlatformRateRPS),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type registerResponse struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// Token exchanges the publishing credentials for a short-lived bearer token.
func (c *Client) Token(ctx context.Context) (string, error) {
	if strings.TrimSpace(c.cfg.PublishingID) == "" || strings.TrimSpace(c.cfg.ProductKey) == "" {
		return "", internal.NewError(internal.KindNotInitialized, "missing PUBLISHING_ID or PRODUCT_KEY")
	}

	payload := map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     c.cfg.PublishingID,
		"client_secret": c.cfg.ProductKey,
		"scope":         "account:provider",
	}
	body, err := c.postJSON(ctx, "auth/token", "", payload)
	if err != nil {
		return "", err
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", internal.Errorf(internal.KindNetwork, "malformed token response: %v", err)
	}
	if resp.AccessToken == "" {
		return "", internal.NewError(internal.KindNetwork, "token response carried no access token")
	}
	return resp.AccessToken, nil
}

// RegisterUser creates the licensing record for a user id and returns the
// license identifier. Registration is idempotent on the backend.
func (c *Client) RegisterUser(ctx context.Context, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", internal.NewError(internal.KindNoCredentials, "user id is required")
	}

	token, err := c.Token(ctx)
	if err != nil {
		return "", err
	}

	payload := map[string]string{
		"id":    userID,
		"terms": c.cfg.LicenseTerms,
	}
	body, err := c.postJSON(ctx, "provider/user", token, payload)
	if err != nil {
		return "", err
	}

	var resp registerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", internal.Errorf(internal.KindNetwork, "malformed register response: %v", err)
	}
	if resp.ID == "" {
		return "", internal.NewError(internal.KindNetwork, "register response carried no id")
	}
	return resp.ID, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint, bearer string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(c.cfg.PlatformBaseURL, "/") + "/" + endpoint

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("platform status %d", resp.StatusCode)
				continue
			}
			return nil, internal.Errorf(internal.KindNetwork, "platform api error: status=%d body=%s", resp.StatusCode, string(body))
		}
		return body, nil
	}

	if lastErr == nil {
		lastErr = errors.New("platform request failed")
	}
	return nil, internal.AsError(lastErr, internal.KindNetwork)
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
