// Package tsm reports binding events to the imKey trust service. Calls are
// best effort: the device binding flow never depends on their outcome.
package tsm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/hashicorp/go-retryablehttp"
)

var logger = log.New("package", "imkey/tsm")

const (
	DefaultBaseURL = "https://imkey.online:1000/imkey"
	DefaultTimeout = 30 * time.Second
	defaultRetries = 3
)

// HTTPClient interface for dependency injection
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Notifier delivers trust service events.
type Notifier interface {
	Notify(ctx context.Context, req Request) error
}

// Client posts events to the trust service.
type Client struct {
	BaseURL    string
	HTTPClient HTTPClient
}

// NewClient returns a client for baseURL. A nil httpClient is replaced by a
// retrying client.
func NewClient(baseURL string, httpClient HTTPClient) *Client {
	if httpClient == nil {
		httpClient = DefaultHTTPClient()
	}

	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: httpClient,
	}
}

// DefaultHTTPClient retries failed requests with exponential backoff.
func DefaultHTTPClient() *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = defaultRetries
	rc.Logger = logger
	rc.HTTPClient.Timeout = DefaultTimeout

	return rc.StandardClient()
}

// Post sends req and decodes the service response.
func (c *Client) Post(ctx context.Context, req Request) (*ServiceResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("tsm: failed to marshal request: %w", err)
	}

	url := c.BaseURL + req.Path()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tsm: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tsm: failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tsm: failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d, body: %s", ErrServer, resp.StatusCode, string(data))
	}

	var sr ServiceResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil, fmt.Errorf("tsm: failed to decode response: %w", err)
	}

	return &sr, nil
}

// Notify posts req and checks the return code.
func (c *Client) Notify(ctx context.Context, req Request) error {
	sr, err := c.Post(ctx, req)
	if err != nil {
		return err
	}

	return sr.CheckReturnCode()
}

// AsyncNotifier runs notifications in the background and only logs failures.
type AsyncNotifier struct {
	notifier Notifier
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewAsyncNotifier(n Notifier, timeout time.Duration) *AsyncNotifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &AsyncNotifier{
		notifier: n,
		timeout:  timeout,
	}
}

// Notify schedules req and returns immediately. The caller's context is not
// used so the event outlives the operation that produced it.
func (a *AsyncNotifier) Notify(_ context.Context, req Request) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := a.notifier.Notify(ctx, req); err != nil {
			logger.Warn("trust service notification failed", "path", req.Path(), "err", err)
			return
		}
		logger.Debug("trust service notified", "path", req.Path())
	}()

	return nil
}

// Wait blocks until every scheduled notification has finished.
func (a *AsyncNotifier) Wait() {
	a.wg.Wait()
}
