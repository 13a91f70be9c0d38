package commands

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/podium-chat/podium/internal/cli/credentials"
)

// apiClient is a thin HTTP client for the command API. It decodes the
// response envelope and surfaces API errors as plain Go errors.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// apiError is a decoded error envelope from the server.
type apiError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *apiError       `json:"error,omitempty"`
}

func newClient(serverURL, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(serverURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// newClientFromCredentials builds a client from the stored session.
func newClientFromCredentials() (*apiClient, error) {
	store, err := credentials.NewStore()
	if err != nil {
		return nil, err
	}
	ctx, err := store.GetCurrentContext()
	if err != nil {
		return nil, err
	}
	if ctx.IsExpired() {
		return nil, fmt.Errorf("session expired - run 'podium login' again")
	}
	return newClient(ctx.ServerURL, ctx.Token), nil
}

// call performs an API request and decodes the data payload into out
// (which may be nil).
func (c *apiClient) call(method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach server at %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("invalid response from server (status %d): %w", resp.StatusCode, err)
	}
	if !env.OK {
		if env.Error != nil {
			return env.Error
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// tokenExpiry extracts the exp claim from a JWT without verifying the
// signature. The client only uses it to warn before the server would
// reject the token anyway.
func tokenExpiry(token string) time.Time {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp == 0 {
		return time.Time{}
	}
	return time.Unix(claims.Exp, 0)
}
