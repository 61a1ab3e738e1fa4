// Package metadata is the client side of the server's shared title catalog. Devices use it
// to look titles up by name, search them, and publish titles they resolved.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cineshelfapp/cineshelf/internal/domain"
	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
)

// Client provides access to the shared title catalog of a CineShelf server.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates a client for the server at baseURL.
// Requests are paced at 5 per second with a burst of 10.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		rateLimiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 10),
		logger:      logger,
	}
}

// SearchHit is one result of Search.
type SearchHit struct {
	ExternalID string   `json:"externalId"`
	Name       string   `json:"name"`
	Director   string   `json:"director,omitempty"`
	Year       int      `json:"year,omitempty"`
	Rating     float64  `json:"rating,omitempty"`
	Genres     []string `json:"genres,omitempty"`
	Score      float64  `json:"score"`
}

type searchResponse struct {
	Total uint64      `json:"total"`
	Hits  []SearchHit `json:"hits"`
}

// SaveResult is the server's answer to Save.
type SaveResult struct {
	Title   domain.Title `json:"title"`
	Created bool         `json:"created"`
}

// apiError is the body of a failed request.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Lookup returns the title whose name matches name case-insensitively.
func (c *Client) Lookup(ctx context.Context, name string) (*domain.Title, error) {
	var t domain.Title
	q := url.Values{"name": {name}}
	if err := c.do(ctx, http.MethodGet, "/api/v1/titles/lookup", q, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Get returns the title with the given external id.
func (c *Client) Get(ctx context.Context, externalID string) (*domain.Title, error) {
	var t domain.Title
	if err := c.do(ctx, http.MethodGet, "/api/v1/titles/"+url.PathEscape(externalID), nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Search runs a full-text query and returns at most limit hits.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out searchResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/titles/search", q, nil, &out); err != nil {
		return nil, err
	}

	c.logger.Debug("title search results", "query", query, "count", len(out.Hits))
	return out.Hits, nil
}

// Save publishes t to the shared catalog.
func (c *Client) Save(ctx context.Context, t domain.Title) (*SaveResult, error) {
	var out SaveResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/titles", nil, t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs one rate-limited request and decodes a 200 response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("title catalog request", "method", method, "url", u)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeBackupUnavailable, "title catalog unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *Client) statusError(resp *http.Response) error {
	var e apiError
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("title catalog returned status %d", resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return domainerrors.NotFound(msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domainerrors.Validation(msg)
	default:
		return domainerrors.Internal(msg)
	}
}
