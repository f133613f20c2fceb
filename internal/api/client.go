// Package api implements the HTTP client for the TaskFlow task service.
// Every operation is exactly one round trip; failures are classified
// but never retried here; the cache layer decides what to do with them.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"taskflow/internal/config"
	"taskflow/internal/task"
)

// TokenFunc supplies the current bearer token. It is called per
// request so a re-login mid-session picks up the new token.
type TokenFunc func() string

type Client struct {
	baseURL    string
	token      TokenFunc
	httpClient *http.Client
}

func NewClient(cfg config.APIConfig, token TokenFunc) *Client {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// List returns one page of the caller's tasks matching the filter.
func (c *Client) List(ctx context.Context, filter task.ListFilter) (task.Page, error) {
	query := url.Values{}
	if filter.Completed != nil {
		query.Set("completed", strconv.FormatBool(*filter.Completed))
	}
	if filter.Priority != "" {
		query.Set("priority", filter.Priority)
	}
	if filter.TagID > 0 {
		query.Set("tag_id", strconv.Itoa(filter.TagID))
	}
	if strings.TrimSpace(filter.Search) != "" {
		query.Set("search", strings.TrimSpace(filter.Search))
	}
	if filter.SortBy != "" {
		query.Set("sort_by", filter.SortBy)
	}
	if filter.SortOrder != "" {
		query.Set("sort_order", filter.SortOrder)
	}
	if filter.Page > 0 {
		query.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.PerPage > 0 {
		query.Set("per_page", strconv.Itoa(filter.PerPage))
	}

	path := "/api/v1/tasks"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var page task.Page
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return task.Page{}, err
	}
	return page, nil
}

// Get returns a single task by id.
func (c *Client) Get(ctx context.Context, id int) (task.Task, error) {
	var t task.Task
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+strconv.Itoa(id), nil, &t); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// Create creates a task and returns the server's record, with the
// assigned id and timestamps.
func (c *Client) Create(ctx context.Context, input task.CreateInput) (task.Task, error) {
	if err := input.Validate(); err != nil {
		return task.Task{}, &Error{Kind: KindValidation, Detail: err.Error(), Err: err}
	}
	if input.Priority == "" {
		input.Priority = task.PriorityMedium
	}

	var t task.Task
	if err := c.do(ctx, http.MethodPost, "/api/v1/tasks", input, &t); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// Update applies a partial update and returns the full updated record.
func (c *Client) Update(ctx context.Context, id int, patch task.Patch) (task.Task, error) {
	if patch.IsZero() {
		return task.Task{}, &Error{Kind: KindValidation, Detail: "empty patch"}
	}

	var t task.Task
	if err := c.do(ctx, http.MethodPut, "/api/v1/tasks/"+strconv.Itoa(id), patch, &t); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// ToggleComplete flips the completion flag server-side and returns
// the updated record.
func (c *Client) ToggleComplete(ctx context.Context, id int) (task.Task, error) {
	var t task.Task
	if err := c.do(ctx, http.MethodPatch, "/api/v1/tasks/"+strconv.Itoa(id)+"/complete", nil, &t); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// Delete removes a task. A 404 means it is already gone or not owned
// by the caller.
func (c *Client) Delete(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/tasks/"+strconv.Itoa(id), nil, nil)
}

// errorBody is the server's error response shape.
type errorBody struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s %s request: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Detail: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Detail: "read response", Err: err}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindNetwork, Detail: "parse response", Err: err}
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, readErr := io.ReadAll(resp.Body)
	detail := ""
	if readErr == nil {
		var eb errorBody
		if err := json.Unmarshal(data, &eb); err == nil && eb.Detail != "" {
			detail = eb.Detail
		} else {
			detail = strings.TrimSpace(string(data))
		}
	}
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	return &Error{
		Kind:   statusKind(resp.StatusCode),
		Status: resp.StatusCode,
		Detail: detail,
	}
}
