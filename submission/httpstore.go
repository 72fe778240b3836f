package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/datafield/courier/hook"
)

// HTTPStore fetches submission content from a data-collection service's
// submission API over HTTP.
type HTTPStore struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

// NewHTTPStore creates a store for the submission API at baseURL,
// authenticating every request with basic auth.
func NewHTTPStore(baseURL, username, password string, timeout time.Duration) *HTTPStore {
	return &HTTPStore{
		baseURL:  baseURL,
		username: username,
		password: password,
		client:   &http.Client{Timeout: timeout},
	}
}

// Get implements Store.
func (s *HTTPStore) Get(ctx context.Context, submissionID int64, owner string, format hook.Format) (*Content, error) {
	url := fmt.Sprintf("%s/submissions/%d?format=%s&owner=%s", s.baseURL, submissionID, format, owner)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("submission: create request: %w", err)
	}
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}
	req.Header.Set("Accept", format.ContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submission: fetch %d: %w", submissionID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("submission: fetch %d: unexpected status %d", submissionID, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("submission: read body: %w", err)
	}

	if format == hook.FormatXML {
		return &Content{XML: body}, nil
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("submission: decode %d: %w", submissionID, err)
	}
	return &Content{JSON: data}, nil
}
