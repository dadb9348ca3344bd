package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// HTTPClient consumes the social-graph service's predicate endpoints. The
// per-call timeout bounds storage-boundary waits; a timed-out request fails
// the operation with no partial commit.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) IsMutualFollow(ctx context.Context, a, b uuid.UUID) (bool, error) {
	return c.predicate(ctx, "/v1/relationships/mutual-follow", a, b)
}

func (c *HTTPClient) IsBlocking(ctx context.Context, a, b uuid.UUID) (bool, error) {
	return c.predicate(ctx, "/v1/relationships/blocking", a, b)
}

func (c *HTTPClient) IsRestricting(ctx context.Context, a, b uuid.UUID) (bool, error) {
	return c.predicate(ctx, "/v1/relationships/restricting", a, b)
}

func (c *HTTPClient) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	endpoint := c.baseURL + "/v1/users/" + id.String()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("social graph returned %d", resp.StatusCode)
	}
}

func (c *HTTPClient) predicate(ctx context.Context, path string, a, b uuid.UUID) (bool, error) {
	q := url.Values{}
	q.Set("a", a.String())
	q.Set("b", b.String())
	endpoint := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("social graph returned %d", resp.StatusCode)
	}

	var body struct {
		Result bool `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}
	return body.Result, nil
}
