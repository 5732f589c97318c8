package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/spm/internal/shared"
)

// PendingCode is the body of the receiver's /get-pending-code endpoint.
type PendingCode struct {
	Code *string `json:"code"`
}

// HTTPCodeSource reads the pending code from a callback receiver over HTTP.
type HTTPCodeSource struct {
	endpoint string
	client   *http.Client
}

// NewHTTPCodeSource creates a [HTTPCodeSource] for the receiver at baseURL.
func NewHTTPCodeSource(baseURL string, client *http.Client) *HTTPCodeSource {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPCodeSource{
		endpoint: strings.TrimSuffix(baseURL, "/") + "/get-pending-code",
		client:   client,
	}
}

// Take implements [CodeSource].
func (s *HTTPCodeSource) Take(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: receiver returned status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var body PendingCode
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrDecode, err)
	}

	if body.Code == nil {
		return "", nil
	}
	return *body.Code, nil
}
