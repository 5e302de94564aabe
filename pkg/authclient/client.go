package authclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Skotchmaster/shop_auth/pkg/autherr"
	"github.com/Skotchmaster/shop_auth/pkg/logging"
)

// Client talks to the auth service over HTTP. It satisfies the Sessions
// interface of pkg/middleware/auth, so other services can guard routes with
// the same interceptor.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(authServiceURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(authServiceURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	AccessExp   int64  `json:"access_exp"`
}

type ValidateResponse struct {
	Valid bool `json:"valid"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) RotateAccessToken(ctx context.Context, refreshToken string) (string, error) {
	var result RefreshResponse
	if err := c.post(ctx, "/refresh", "", refreshToken, &result); err != nil {
		return "", err
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("refresh: empty access token in response")
	}
	return result.AccessToken, nil
}

// ValidateTokenPair answers false on any transport or server error.
func (c *Client) ValidateTokenPair(ctx context.Context, accessToken, refreshToken string) bool {
	var result ValidateResponse
	if err := c.post(ctx, "/validate", accessToken, refreshToken, &result); err != nil {
		logging.FromContext(ctx).Warn("validate_pair_failed", "error", err)
		return false
	}
	return result.Valid
}

func (c *Client) post(ctx context.Context, path, accessToken, refreshToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	req.Header.Set("Refresh-Token", refreshToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if sentinel := autherr.FromCode(body.Error); sentinel != nil {
			return fmt.Errorf("%s: %w", path, sentinel)
		}
		return fmt.Errorf("%s failed with status: %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
