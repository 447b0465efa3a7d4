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
	"strings"
	"time"
)

const (
	defaultTimeout = 10 * time.Second
	refreshPath    = "/v1/auth/refresh"
)

// Client talks to the API on behalf of one session.
type Client struct {
	baseURL     string
	session     *SessionStore
	coordinator *Coordinator
	http        *http.Client
	onLogout    func()
}

type options struct {
	session   *SessionStore
	transport http.RoundTripper
	timeout   time.Duration
	onLogout  func()
}

type Option func(*options)

// WithSession shares an existing store, e.g. one restored from disk.
func WithSession(s *SessionStore) Option { return func(o *options) { o.session = s } }

// WithTransport sets the transport under the pipeline and under renewal.
func WithTransport(rt http.RoundTripper) Option { return func(o *options) { o.transport = rt } }

// WithTimeout applies to every call, renewal included.
func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithLogoutHook is called whenever the session is torn down: on explicit
// Logout, on a failed renewal and when a 401 arrives with no refresh token.
func WithLogoutHook(fn func()) Option { return func(o *options) { o.onLogout = fn } }

func New(baseURL string, opts ...Option) *Client {
	o := options{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.session == nil {
		o.session = NewSessionStore()
	}
	if o.transport == nil {
		o.transport = http.DefaultTransport
	}
	baseURL = strings.TrimRight(baseURL, "/")

	plain := &http.Client{Transport: o.transport, Timeout: o.timeout}
	coord := NewCoordinator(o.session, plain, baseURL+refreshPath, o.onLogout)
	return &Client{
		baseURL:     baseURL,
		session:     o.session,
		coordinator: coord,
		onLogout:    o.onLogout,
		http: &http.Client{
			Transport: &Pipeline{Base: o.transport, Session: o.session, Coordinator: coord},
			Timeout:   o.timeout,
		},
	}
}

func (c *Client) Session() *SessionStore { return c.session }

// Do sends req through the pipeline.  A body without GetBody is buffered
// so it can be replayed after a renewal.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		data, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("buffer request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(data))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
		req.ContentLength = int64(len(data))
	}
	return c.http.Do(req)
}

// call marshals in, sends it and decodes a 2xx body into out.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(resp)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) authenticate(ctx context.Context, path string, in any) (*Subject, error) {
	var out authResponse
	if err := c.call(ctx, http.MethodPost, path, in, &out); err != nil {
		return nil, err
	}
	subject := out.User.subject()
	c.session.SetAuth(subject, out.AccessToken, out.RefreshToken)
	return &subject, nil
}

// Register creates an account and logs it in.
func (c *Client) Register(ctx context.Context, email, password, name string) (*Subject, error) {
	return c.authenticate(ctx, "/v1/auth/register", map[string]string{
		"email": email, "password": password, "name": name,
	})
}

func (c *Client) Login(ctx context.Context, email, password string) (*Subject, error) {
	return c.authenticate(ctx, "/v1/auth/login", map[string]string{
		"email": email, "password": password,
	})
}

// Logout revokes the refresh token on the server when there is one, then
// clears the session and fires the logout hook whatever the server said.
func (c *Client) Logout(ctx context.Context) error {
	var err error
	if refresh := c.session.refreshToken(); refresh != "" {
		err = c.call(ctx, http.MethodPost, "/v1/auth/logout", refreshRequest{RefreshToken: refresh}, nil)
	}
	c.session.Logout()
	if c.onLogout != nil {
		c.onLogout()
	}
	return err
}

func (c *Client) Me(ctx context.Context) (*Subject, error) {
	var out struct {
		User userResponse `json:"user"`
	}
	if err := c.call(ctx, http.MethodGet, "/v1/auth/me", nil, &out); err != nil {
		return nil, err
	}
	subject := out.User.subject()
	return &subject, nil
}

// ListBoards returns one page of the caller's owned and shared boards.
// Zero page or limit lets the server choose.
func (c *Client) ListBoards(ctx context.Context, page, limit int) (*BoardPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/boards"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out BoardPage
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateBoard(ctx context.Context, in BoardInput) (*Board, error) {
	var out Board
	if err := c.call(ctx, http.MethodPost, "/v1/boards", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetBoard(ctx context.Context, boardID string) (*BoardDetail, error) {
	var out BoardDetail
	if err := c.call(ctx, http.MethodGet, "/v1/boards/"+url.PathEscape(boardID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateBoard(ctx context.Context, boardID string, patch BoardPatch) (*Board, error) {
	var out Board
	if err := c.call(ctx, http.MethodPatch, "/v1/boards/"+url.PathEscape(boardID), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteBoard(ctx context.Context, boardID string) error {
	return c.call(ctx, http.MethodDelete, "/v1/boards/"+url.PathEscape(boardID), nil, nil)
}

// AddMember grants an existing user a role on the board.  role is "admin"
// or "member"; empty means member.
func (c *Client) AddMember(ctx context.Context, boardID, email, role string) (*Member, error) {
	var out Member
	in := map[string]string{"email": email, "role": role}
	if err := c.call(ctx, http.MethodPost, "/v1/boards/"+url.PathEscape(boardID)+"/members", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
