package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dreamware/solarnet/internal/resource"
)

// APIError is a non-2xx reply from a hub, carrying its error message when
// the body had one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("hub returned %d", e.StatusCode)
	}
	return fmt.Sprintf("hub returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a single hub's management endpoints. Federated searches
// use federation.Client instead; this one is for operators adding records
// and checking a hub by hand.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the hub at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// AddResource POSTs a record and returns what the hub stored.
func (c *Client) AddResource(ctx context.Context, r resource.Record) (resource.Record, error) {
	var out AddResponse
	if err := c.postJSON(ctx, "/api/resources", r, &out); err != nil {
		return resource.Record{}, err
	}
	return out.Resource, nil
}

// GetResource fetches one record by id.
func (c *Client) GetResource(ctx context.Context, id string) (resource.Record, error) {
	var out ItemResponse
	if err := c.getJSON(ctx, "/api/resources/"+url.PathEscape(id), &out); err != nil {
		return resource.Record{}, err
	}
	return out.Resource, nil
}

// Health fetches the hub's health report.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.getJSON(ctx, "/api/health", &out)
	return out, err
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body ErrorResponse
		if json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body) == nil {
			apiErr.Message = body.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
