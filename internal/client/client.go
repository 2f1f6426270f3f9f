package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/BuzzLyutic/todo-sync/internal/model"
)

// ResourcePath is the fixed collection path on the API server.
const ResourcePath = "todos"

// FetchError is returned when the server answers with a non-2xx status.
type FetchError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// CreateRequest is the body of POST /todos.
type CreateRequest struct {
	Title     string         `json:"title"`
	Completed bool           `json:"completed"`
	Priority  model.Priority `json:"priority"`
	DueDate   *model.Date    `json:"due_date,omitempty"`
}

// ReplaceRequest is the body of PUT /todos/{id}.
type ReplaceRequest struct {
	ID        int64          `json:"id"`
	Title     string         `json:"title"`
	Completed bool           `json:"completed"`
	Priority  model.Priority `json:"priority"`
}

type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a client for the API rooted at baseURL. A nil httpClient means
// http.DefaultClient, which has no timeout.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: u, http: httpClient}, nil
}

func (c *Client) List(ctx context.Context) ([]model.Todo, error) {
	var todos []model.Todo
	if err := c.do(ctx, "list todos", http.MethodGet, c.collectionURL(), nil, nil, &todos); err != nil {
		return nil, err
	}
	return todos, nil
}

// Create posts a new record. Every call carries a fresh Idempotency-Key.
// Mutations only look at the status code; the response body is not read.
func (c *Client) Create(ctx context.Context, req CreateRequest) error {
	headers := http.Header{"Idempotency-Key": []string{uuid.NewString()}}
	return c.do(ctx, "create todo", http.MethodPost, c.collectionURL(), headers, req, nil)
}

func (c *Client) SetCompleted(ctx context.Context, id int64, completed bool) error {
	return c.do(ctx, "toggle todo", http.MethodPatch, c.itemURL(id), nil, model.TodoPatch{Completed: &completed}, nil)
}

func (c *Client) Replace(ctx context.Context, req ReplaceRequest) error {
	return c.do(ctx, "update todo", http.MethodPut, c.itemURL(req.ID), nil, req, nil)
}

// DeleteCompleted sends a bodyless DELETE on the collection.
func (c *Client) DeleteCompleted(ctx context.Context) error {
	return c.do(ctx, "delete completed todos", http.MethodDelete, c.collectionURL(), nil, nil, nil)
}

func (c *Client) Stats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats
	err := c.do(ctx, "todo stats", http.MethodGet, c.base.JoinPath(ResourcePath, "stats").String(), nil, nil, &stats)
	return stats, err
}

func (c *Client) collectionURL() string {
	return c.base.JoinPath(ResourcePath).String()
}

func (c *Client) itemURL(id int64) string {
	return c.base.JoinPath(ResourcePath, strconv.FormatInt(id, 10)).String()
}

func (c *Client) do(ctx context.Context, op, method, target string, headers http.Header, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &FetchError{Op: op, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(raw))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
