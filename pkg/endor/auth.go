package endor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Credentials identifies a caller against the API. Either Token is set
// directly, or Key and Secret are exchanged for a token on first use.
// Credentials are passed explicitly; nothing in this package keeps
// process-wide auth state.
type Credentials struct {
	Token  string
	Key    string
	Secret string
}

type authRequest struct {
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

type authResponse struct {
	Token string `json:"token"`
}

// Resolve returns a bearer token for the credentials, exchanging the API
// key pair when no token was supplied.
func (c Credentials) Resolve(ctx context.Context, httpClient *http.Client, baseURL string) (string, error) {
	if c.Token != "" {
		return c.Token, nil
	}
	if c.Key == "" || c.Secret == "" {
		return "", fmt.Errorf("either a token or both API credentials key and secret must be set")
	}

	body, err := json.Marshal(authRequest{Key: c.Key, Secret: c.Secret})
	if err != nil {
		return "", fmt.Errorf("encoding auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/auth/api-key", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("exchanging API key for token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("token exchange failed: status %d: %s", resp.StatusCode, payload)
	}

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if auth.Token == "" {
		return "", fmt.Errorf("no token in auth response")
	}
	return auth.Token, nil
}
