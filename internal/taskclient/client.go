package taskclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tomlord1122/task-backend/internal/realtime"
	"github.com/Tomlord1122/task-backend/internal/service"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// ListOptions are the listing query parameters; zero values are omitted.
type ListOptions struct {
	Status    string
	SortBy    string
	SortOrder string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// Client talks to the task API on behalf of one user and keeps Cache current.
type Client struct {
	base  *url.URL
	http  *http.Client
	log   *zap.Logger
	cache *Cache

	mu    sync.RWMutex
	token string
}

func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", base.Scheme)
	}
	c := &Client{
		base:  base,
		http:  &http.Client{Timeout: 30 * time.Second},
		log:   zap.NewNop(),
		cache: NewCache(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Cache() *Cache { return c.cache }

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

type authEnvelope struct {
	User      service.UserResponse `json:"user"`
	Token     string               `json:"token"`
	ExpiresAt time.Time            `json:"expiresAt"`
}

// Register creates an account and keeps its credential for later calls.
func (c *Client) Register(ctx context.Context, req service.RegisterRequest) (*service.UserResponse, error) {
	var out authEnvelope
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &out); err != nil {
		return nil, err
	}
	c.setToken(out.Token)
	return &out.User, nil
}

// Login authenticates and keeps the credential for later calls.
func (c *Client) Login(ctx context.Context, req service.LoginRequest) (*service.UserResponse, error) {
	var out authEnvelope
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &out); err != nil {
		return nil, err
	}
	c.setToken(out.Token)
	return &out.User, nil
}

// Logout drops the credential and clears the cache.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	c.setToken("")
	c.cache.Clear()
	return err
}

func (c *Client) Me(ctx context.Context) (*service.UserResponse, error) {
	var out struct {
		User service.UserResponse `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) List(ctx context.Context, opts ListOptions) ([]service.TaskResponse, error) {
	q := url.Values{}
	for k, v := range map[string]string{"status": opts.Status, "sortBy": opts.SortBy, "sortOrder": opts.SortOrder} {
		if v != "" {
			q.Set(k, v)
		}
	}
	path := "/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	c.cache.Pending()
	var out struct {
		Tasks []service.TaskResponse `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		c.cache.Reject(err)
		return nil, err
	}
	c.cache.FetchedAll(out.Tasks)
	return out.Tasks, nil
}

func (c *Client) Create(ctx context.Context, req service.CreateTaskRequest) (*service.TaskResponse, error) {
	c.cache.Pending()
	task, err := c.taskCall(ctx, http.MethodPost, "/tasks", req)
	if err != nil {
		c.cache.Reject(err)
		return nil, err
	}
	c.cache.Created(*task)
	return task, nil
}

func (c *Client) Get(ctx context.Context, id string) (*service.TaskResponse, error) {
	c.cache.Pending()
	task, err := c.taskCall(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil)
	if err != nil {
		c.cache.Reject(err)
		return nil, err
	}
	c.cache.Fetched(*task)
	return task, nil
}

func (c *Client) Update(ctx context.Context, id string, req service.UpdateTaskRequest) (*service.TaskResponse, error) {
	c.cache.Pending()
	task, err := c.taskCall(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id), req)
	if err != nil {
		c.cache.Reject(err)
		return nil, err
	}
	c.cache.Updated(*task)
	return task, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	c.cache.Pending()
	var out struct {
		TaskID string `json:"taskId"`
	}
	if err := c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, &out); err != nil {
		c.cache.Reject(err)
		return err
	}
	c.cache.Deleted(out.TaskID)
	return nil
}

func (c *Client) taskCall(ctx context.Context, method, path string, body any) (*service.TaskResponse, error) {
	var out struct {
		Task service.TaskResponse `json:"task"`
	}
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out.Task, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var msg struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&msg) == nil && msg.Message != "" {
			apiErr.Message = msg.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Subscribe opens the live event stream, applies every event to the cache
// and then hands it to handle (which may be nil). It blocks until ctx is done
// or the connection fails; cancellation returns nil.
func (c *Client) Subscribe(ctx context.Context, handle func(realtime.Event)) error {
	wsURL := *c.base
	wsURL.Scheme = "ws"
	if c.base.Scheme == "https" {
		wsURL.Scheme = "wss"
	}
	wsURL.Path += "/socket"

	header := http.Header{}
	if tok := c.Token(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), header)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return &APIError{Status: resp.StatusCode, Message: "websocket handshake failed"}
		}
		return fmt.Errorf("dial %s: %w", wsURL.Redacted(), err)
	}
	_ = resp.Body.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()
	defer conn.Close()

	for {
		var ev realtime.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				c.log.Info("event stream closed", zap.Int("code", closeErr.Code), zap.String("reason", closeErr.Text))
			}
			return fmt.Errorf("read event: %w", err)
		}
		c.cache.Apply(ev)
		if handle != nil {
			handle(ev)
		}
	}
}
