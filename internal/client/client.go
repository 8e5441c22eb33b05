// Package client talks to the favorites API and keeps a local copy of the
// caller's favorites.
//
//	Client → one HTTP request per call, typed errors
//	Reduce → pure (State, Action) → State transitions
//	Store  → runs Client calls and feeds the results through Reduce
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/sakif/book-favorites/internal/model"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int    // HTTP status code
	Code    string // machine-readable "error" field, e.g. "not_found"
	Message string // human-readable "message" field
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("favorites api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("favorites api: %d %s", e.Status, e.Message)
}

// Client is a thin HTTP client for the favorites API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	token      string
}

// WithHTTPClient sets the underlying HTTP client. Its transport is reused
// when a token is also given.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithToken attaches "Authorization: Bearer <token>" to every request.
func WithToken(token string) Option {
	return func(o *clientOptions) { o.token = token }
}

// New creates a Client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	o := clientOptions{httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(&o)
	}

	hc := o.httpClient
	if o.token != "" {
		// oauth2.NewClient builds on the transport of the client stored
		// under oauth2.HTTPClient in ctx.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, hc)
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: o.token,
			TokenType:   "Bearer",
		}))
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
	}
}

type messageResponse struct {
	Message string `json:"message"`
	Comment string `json:"comment,omitempty"`
}

// Login exchanges a username and password for an access token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/login", body, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// List returns the caller's favorites joined with the catalog.
func (c *Client) List(ctx context.Context) ([]model.FavoriteView, error) {
	views := []model.FavoriteView{}
	if err := c.do(ctx, http.MethodGet, "/api/favorites", nil, &views); err != nil {
		return nil, err
	}
	return views, nil
}

// Add adds bookID to the caller's favorites. Adding a book that is already
// a favorite succeeds and leaves its comment unchanged.
func (c *Client) Add(ctx context.Context, bookID, comment string) error {
	body := map[string]string{"bookId": bookID, "comment": comment}
	return c.do(ctx, http.MethodPost, "/api/favorites", body, &messageResponse{})
}

// Remove removes bookID from the caller's favorites.
func (c *Client) Remove(ctx context.Context, bookID string) error {
	return c.do(ctx, http.MethodDelete, "/api/favorites/"+url.PathEscape(bookID), nil, &messageResponse{})
}

// UpdateComment replaces the comment on an existing favorite and returns
// the comment the server stored.
func (c *Client) UpdateComment(ctx context.Context, bookID, comment string) (string, error) {
	var resp messageResponse
	body := map[string]string{"comment": comment}
	path := "/api/favorites/" + url.PathEscape(bookID) + "/comment"
	if err := c.do(ctx, http.MethodPatch, path, body, &resp); err != nil {
		return "", err
	}
	return resp.Comment, nil
}

// do sends one JSON request and decodes a 2xx body into out. Anything
// else becomes an *APIError.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("client: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e) == nil {
			apiErr.Code = e.Error
			apiErr.Message = e.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decoding %s %s: %w", method, path, err)
	}
	return nil
}
