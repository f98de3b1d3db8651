package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"taskboard/internal/model"
	"taskboard/internal/stats"
	"taskboard/pkg/circuitbreaker"
	"taskboard/pkg/metrics"
	"taskboard/pkg/trace"
)

const (
	sessionCookie = "session"
	userIDCookie  = "user_id"
)

// APIError is a non-2xx answer from the server. It unwraps to the matching
// model error so callers can use errors.Is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("taskboard api: %d %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return model.ErrValidation
	case http.StatusUnauthorized:
		return model.ErrUnauthenticated
	case http.StatusNotFound:
		return model.ErrNotFound
	}
	return nil
}

// TaskInput is the body of create and update calls.
type TaskInput struct {
	ID          int64              `json:"id,omitempty"`
	Title       string             `json:"title"`
	Date        string             `json:"date,omitempty"`
	Status      model.Status       `json:"status,omitempty"`
	Important   bool               `json:"important"`
	Notes       string             `json:"notes,omitempty"`
	Links       []model.Link       `json:"links,omitempty"`
	Attachments []model.Attachment `json:"attachments,omitempty"`
}

// InputFrom turns a task back into an update body.
func InputFrom(t model.Task) TaskInput {
	t = t.Clone()
	return TaskInput{
		ID:          t.ID,
		Title:       t.Title,
		Date:        t.Date.Format(time.RFC3339Nano),
		Status:      t.Status,
		Important:   t.Important,
		Notes:       t.Notes,
		Links:       t.Links,
		Attachments: t.Attachments,
	}
}

type Summary struct {
	Stats  stats.Stats    `json:"stats"`
	Series []stats.Bucket `json:"series"`
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Client talks to the taskboard HTTP API. Session cookies live in its jar.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	cbCfg   circuitbreaker.Config
	cb      *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithBreaker(cfg circuitbreaker.Config) Option {
	return func(c *Client) { c.cbCfg = cfg }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 10 * time.Second},
		cbCfg:   circuitbreaker.DefaultConfig(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.http.Jar = jar
	}

	// only transport errors and 5xx count against the breaker
	if c.cbCfg.IsFailure == nil {
		c.cbCfg.IsFailure = isServerFailure
	}
	if c.cbCfg.OnStateChange == nil {
		c.cbCfg.OnStateChange = func(from, to circuitbreaker.State) {
			c.logger.Warn("API circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
	}
	c.cb = circuitbreaker.New(c.cbCfg)
	return c, nil
}

func isServerFailure(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled)
}

// Session returns the session token and user id currently held in the jar.
func (c *Client) Session() (token, userID string) {
	for _, ck := range c.http.Jar.Cookies(c.baseURL) {
		switch ck.Name {
		case sessionCookie:
			token = ck.Value
		case userIDCookie:
			userID = ck.Value
		}
	}
	return token, userID
}

// SetSession restores a session saved from an earlier run.
func (c *Client) SetSession(token, userID string) {
	c.http.Jar.SetCookies(c.baseURL, []*http.Cookie{
		{Name: sessionCookie, Value: token, Path: "/"},
		{Name: userIDCookie, Value: userID, Path: "/"},
	})
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return c.cb.Execute(func() error {
		start := time.Now()
		err := c.roundTrip(ctx, method, path, query, body, out)

		status := "success"
		var apiErr *APIError
		switch {
		case errors.As(err, &apiErr):
			status = strconv.Itoa(apiErr.Status)
		case err != nil:
			status = "error"
		}
		metrics.RecordClientCall(method+" "+path, status, time.Since(start))
		return err
	})
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// propagate trace_id
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.HeaderName, traceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env envelope
		_ = json.Unmarshal(raw, &env)
		if env.Message == "" {
			env.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

type userResponse struct {
	envelope
	User *model.PublicUser `json:"user"`
}

func (c *Client) Signup(ctx context.Context, name, email, password string) (*model.PublicUser, error) {
	var resp userResponse
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/signup", nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*model.PublicUser, error) {
	var resp userResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}

// Me returns the signed-in user, or model.ErrUnauthenticated.
func (c *Client) Me(ctx context.Context) (*model.PublicUser, error) {
	var resp userResponse
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.User == nil {
		return nil, model.ErrUnauthenticated
	}
	return resp.User, nil
}

type tasksResponse struct {
	envelope
	Tasks []model.Task `json:"tasks"`
}

type taskResponse struct {
	envelope
	Task *model.Task `json:"task"`
}

// ListTasks fetches the caller's tasks. view may be empty for all of them.
func (c *Client) ListTasks(ctx context.Context, view string) ([]model.Task, error) {
	q := url.Values{}
	if view != "" {
		q.Set("view", view)
	}
	var resp tasksResponse
	if err := c.do(ctx, http.MethodGet, "/tasks", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

func (c *Client) CreateTask(ctx context.Context, in TaskInput) (*model.Task, error) {
	in.ID = 0
	var resp taskResponse
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, in, &resp); err != nil {
		return nil, err
	}
	return resp.Task, nil
}

func (c *Client) UpdateTask(ctx context.Context, in TaskInput) (*model.Task, error) {
	var resp taskResponse
	if err := c.do(ctx, http.MethodPut, "/tasks", nil, in, &resp); err != nil {
		return nil, err
	}
	return resp.Task, nil
}

func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	q := url.Values{"id": {strconv.FormatInt(id, 10)}}
	return c.do(ctx, http.MethodDelete, "/tasks", q, nil, nil)
}

func (c *Client) ToggleImportant(ctx context.Context, id int64) (*model.Task, error) {
	q := url.Values{"id": {strconv.FormatInt(id, 10)}}
	var resp taskResponse
	if err := c.do(ctx, http.MethodPost, "/tasks/important", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Task, nil
}

// Stats fetches counts and the completed series. Zero windows and an empty
// granularity leave the server defaults in place.
func (c *Client) Stats(ctx context.Context, granularity string, windows int) (*Summary, error) {
	q := url.Values{}
	if granularity != "" {
		q.Set("granularity", granularity)
	}
	if windows > 0 {
		q.Set("windows", strconv.Itoa(windows))
	}
	var resp Summary
	if err := c.do(ctx, http.MethodGet, "/tasks/stats", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
