package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Default configuration values.
const (
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 500 * time.Millisecond
)

// HTTPClient implements Index against the ledger index REST API.
// Lookups are idempotent reads, so transient transport failures are
// retried with exponential backoff.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries uint
	retryDelay time.Duration
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets the maximum retry attempts for lookups.
func WithMaxRetries(n uint) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the initial backoff interval between retries.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new ledger index client.
func NewHTTPClient(baseURL, apiKey string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ Index = (*HTTPClient)(nil)

// GetTopHolders returns up to limit holders of the token, sorted by balance
// descending.
func (c *HTTPClient) GetTopHolders(ctx context.Context, tokenMint string, limit int) ([]Holder, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var resp struct {
		Holders []Holder `json:"holders"`
	}
	path := fmt.Sprintf("/v1/tokens/%s/holders", url.PathEscape(tokenMint))
	if err := c.get(ctx, path, q, &resp); err != nil {
		return nil, fmt.Errorf("get top holders for %s: %w", tokenMint, err)
	}
	return resp.Holders, nil
}

// GetBalance reports a wallet's balance of the token.
func (c *HTTPClient) GetBalance(ctx context.Context, wallet, tokenMint string) (*Balance, error) {
	var resp Balance
	path := fmt.Sprintf("/v1/tokens/%s/holders/%s", url.PathEscape(tokenMint), url.PathEscape(wallet))
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get balance of %s in %s: %w", wallet, tokenMint, err)
	}
	return &resp, nil
}

// get runs one GET with retries and decodes the JSON body into out.
func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err // transient, retry
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, body)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, backoff.Permanent(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body))
		}
		return body, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryDelay

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxRetries),
	)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
