package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charliek/horn/internal/api"
	"github.com/charliek/horn/internal/constants"
	"github.com/charliek/horn/internal/domain"
)

// Client is an HTTP client for the horn API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	// streamClient has no timeout; streams end with their context
	streamClient *http.Client
}

// NewClient creates a new API client. token may be empty when the master
// runs without auth.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		token:        token,
		httpClient:   &http.Client{Timeout: constants.DefaultRequestTimeout},
		streamClient: &http.Client{},
	}
}

// GetStatus gets supervisor status
func (c *Client) GetStatus() (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.do(http.MethodGet, "/api/v1/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetWorkers gets all workers
func (c *Client) GetWorkers() (*api.WorkerListResponse, error) {
	var resp api.WorkerListResponse
	if err := c.do(http.MethodGet, "/api/v1/workers", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetWorker gets a single worker
func (c *Client) GetWorker(name string) (*api.WorkerResponse, error) {
	var resp api.WorkerResponse
	if err := c.do(http.MethodGet, "/api/v1/workers/"+url.PathEscape(name), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown asks the master to stop. force skips the graceful drain.
func (c *Client) Shutdown(force bool) error {
	path := "/api/v1/shutdown"
	if force {
		path += "?force=true"
	}
	return c.do(http.MethodPost, path, &api.SuccessResponse{})
}

// Reload asks the master to replace every worker
func (c *Client) Reload() error {
	return c.do(http.MethodPost, "/api/v1/reload", &api.SuccessResponse{})
}

func logQuery(params domain.LogParams, withLines bool) string {
	query := url.Values{}
	if params.Process != "" {
		query.Set("process", params.Process)
	}
	if withLines && params.Lines > 0 {
		query.Set("lines", strconv.Itoa(params.Lines))
	}
	if params.Pattern != "" {
		query.Set("pattern", params.Pattern)
	}
	if params.Regex {
		query.Set("regex", "true")
	}
	if params.ErrorOnly {
		query.Set("errors", "true")
	}
	if len(query) == 0 {
		return ""
	}
	return "?" + query.Encode()
}

// GetLogs gets logs with optional filtering
func (c *Client) GetLogs(params domain.LogParams) (*api.LogsResponse, error) {
	var resp api.LogsResponse
	if err := c.do(http.MethodGet, "/api/v1/logs"+logQuery(params, true), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StreamLogs calls fn for each streamed log entry until ctx ends or the
// server closes the stream
func (c *Client) StreamLogs(ctx context.Context, params domain.LogParams, fn func(api.LogEntryResponse)) error {
	return c.stream(ctx, "/api/v1/logs/stream"+logQuery(params, false), func(data []byte) {
		var entry api.LogEntryResponse
		if err := json.Unmarshal(data, &entry); err == nil {
			fn(entry)
		}
	})
}

// StreamEvents calls fn for each supervisor event until ctx ends or the
// server closes the stream
func (c *Client) StreamEvents(ctx context.Context, fn func(api.EventResponse)) error {
	return c.stream(ctx, "/api/v1/events", func(data []byte) {
		var event api.EventResponse
		if err := json.Unmarshal(data, &event); err == nil {
			fn(event)
		}
	})
}

func (c *Client) stream(ctx context.Context, path string, fn func([]byte)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	c.addAuthHeader(req)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return err
		}

		if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
			fn([]byte(data))
		}
	}
}

func (c *Client) do(method, path string, v any) error {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.addAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func decodeError(resp *http.Response) error {
	var errResp api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Code != "" {
		return fmt.Errorf("%s: %s", errResp.Code, errResp.Error)
	}
	return fmt.Errorf("request failed with status %d", resp.StatusCode)
}

// addAuthHeader adds the Authorization header if a token is available
func (c *Client) addAuthHeader(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
