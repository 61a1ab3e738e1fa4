package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
	"github.com/cineshelfapp/cineshelf/internal/snapshot"
)

// maxResponseBytes caps how much of a restore response is read.
const maxResponseBytes = 64 << 20

// Transport talks to one backup endpoint.
type Transport interface {
	Push(ctx context.Context, endpoint, user string, doc *snapshot.Document) (*snapshot.PushResponse, error)
	Pull(ctx context.Context, endpoint, user, file string) (*snapshot.Document, error)
}

// MissingError is returned by Pull when the server answered with a not-found body.
// It is authoritative: other candidates are not tried.
type MissingError struct {
	snapshot.MissingResponse
}

func (e *MissingError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.MissingResponse.Error, e.File)
	}
	return e.MissingResponse.Error
}

// HTTPTransport implements Transport over HTTP.
type HTTPTransport struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPTransport creates a transport. A nil client uses one without a global timeout;
// attempts are bounded by their context.
func NewHTTPTransport(client *http.Client, logger *slog.Logger) *HTTPTransport {
	if client == nil {
		client = &http.Client{Transport: http.DefaultTransport}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HTTPTransport{client: client, logger: logger}
}

// Push uploads doc to endpoint.
func (t *HTTPTransport) Push(ctx context.Context, endpoint, user string, doc *snapshot.Document) (*snapshot.PushResponse, error) {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(doc); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(snapshot.HeaderUserID, user)
	req.Header.Set(snapshot.HeaderBackupVersion, snapshot.ClientVersion)

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	t.logger.Debug("backup push", "endpoint", endpoint, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var out snapshot.PushResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("server did not confirm the backup: %s", out.Message)
	}
	return &out, nil
}

// Pull retrieves the snapshot for user, or the blob named file when file is set.
func (t *HTTPTransport) Pull(ctx context.Context, endpoint, user, file string) (*snapshot.Document, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("user", user)
	if file != "" {
		q.Set("file", file)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(snapshot.HeaderUserID, user)
	req.Header.Set(snapshot.HeaderBackupVersion, snapshot.ClientVersion)

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	t.logger.Debug("restore pull", "endpoint", endpoint, "status", resp.StatusCode, "duration", time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		var missing snapshot.MissingResponse
		if json.Unmarshal(body, &missing) != nil || missing.Error == "" {
			// Not one of ours, probably a route that does not exist.
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil, &MissingError{MissingResponse: missing}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, errorMessage(body))
	}

	return decodePulled(body)
}

// decodePulled separates transport garbage, which is worth another candidate, from a
// well-formed JSON payload with the wrong shape, which is not.
func decodePulled(body []byte) (*snapshot.Document, error) {
	if !json.Valid(body) {
		return nil, errors.New("response is not valid JSON")
	}
	return snapshot.DecodeBytes(body)
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("status %d: %s", resp.StatusCode, errorMessage(body))
}

func errorMessage(body []byte) string {
	var e snapshot.ErrorResponse
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}

// isAuthoritative reports whether err ends the candidate loop.
func isAuthoritative(err error) bool {
	var missing *MissingError
	if errors.As(err, &missing) {
		return true
	}
	return domainerrors.Is(err, domainerrors.ErrValidation)
}
