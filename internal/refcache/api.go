package refcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrBackendRejected is returned when the backend answers with success=false.
var ErrBackendRejected = errors.New("refcache: backend reported failure")

const dataPath = "/api/taskmanagement/data"

// APIFetcher pulls the snapshot from the backend REST API.
type APIFetcher struct {
	BaseURL string
	Client  *http.Client
}

type backendResp struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func NewAPIFetcher(baseURL string, timeout time.Duration) *APIFetcher {
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &APIFetcher{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (f *APIFetcher) Fetch(ctx context.Context) (map[string]any, error) {
	if f.Client == nil {
		return nil, errors.New("refcache: http client is nil")
	}

	url := strings.TrimRight(f.BaseURL, "/") + dataPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("refcache: backend status %d: %s", resp.StatusCode, msg)
	}

	var decoded backendResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("refcache: decode backend response: %w", err)
	}
	if !decoded.Success {
		return nil, fmt.Errorf("%w: %s", ErrBackendRejected, decoded.Error)
	}
	if decoded.Data == nil {
		decoded.Data = map[string]any{}
	}
	return decoded.Data, nil
}
