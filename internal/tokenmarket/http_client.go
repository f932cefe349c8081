package tokenmarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout bounds every token service call.
const DefaultTimeout = 30 * time.Second

// HTTPClient implements Service against the token service REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new token service client.
func NewHTTPClient(baseURL, apiKey string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ Service = (*HTTPClient)(nil)

// CreateToken mints a fractional-ownership token for a pool.
func (c *HTTPClient) CreateToken(ctx context.Context, meta TokenMetadata) (*CreatedToken, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode token metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tokens", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp CreatedToken
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("create token for pool %s: %w", meta.PoolID, err)
	}
	return &resp, nil
}

// GetGraduationStatus reports a token's bonding-curve state.
func (c *HTTPClient) GetGraduationStatus(ctx context.Context, tokenMint string) (*GraduationStatus, error) {
	path := fmt.Sprintf("/v1/tokens/%s/graduation", url.PathEscape(tokenMint))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	var resp GraduationStatus
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("get graduation status of %s: %w", tokenMint, err)
	}
	return &resp, nil
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
