package chat

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

	"taskflow/internal/api"
	"taskflow/internal/config"
)

// Client sends chat turns to the per-user agent endpoint.
type Client struct {
	baseURL    string
	token      api.TokenFunc
	httpClient *http.Client
}

func NewClient(cfg config.APIConfig, token api.TokenFunc) *Client {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts one utterance for the given user and returns the agent's
// reply. One round trip, no retries; the bridge decides how failures
// surface.
func (c *Client) Send(ctx context.Context, userID string, req SendRequest) (SendResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return SendResponse{}, fmt.Errorf("user id is empty")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return SendResponse{}, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/api/"+url.PathEscape(userID)+"/chat",
		bytes.NewReader(body),
	)
	if err != nil {
		return SendResponse{}, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != nil {
		if tok := c.token(); tok != "" {
			httpReq.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return SendResponse{}, fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return SendResponse{}, fmt.Errorf("chat request failed: status=%d (read error: %v)", resp.StatusCode, readErr)
		}
		return SendResponse{}, fmt.Errorf("chat request failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return SendResponse{}, fmt.Errorf("read chat response: %w", err)
	}

	var out SendResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return SendResponse{}, fmt.Errorf("parse chat response: %w", err)
	}
	return out, nil
}
