package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultTimeout bounds every vault call. Vault submissions are not
// idempotent, so the client never retries: a timeout is surfaced to the
// caller as a retryable-unknown outcome.
const DefaultTimeout = 30 * time.Second

// HTTPClient implements Vault against the governance vault REST API.
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

// NewHTTPClient creates a new governance vault client.
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
var _ Vault = (*HTTPClient)(nil)

// CreateVault creates a multisig vault from a member set.
func (c *HTTPClient) CreateVault(ctx context.Context, members []Member, threshold int, memo string) (*CreatedVault, error) {
	req := struct {
		Members   []Member `json:"members"`
		Threshold int      `json:"threshold"`
		Memo      string   `json:"memo,omitempty"`
	}{Members: members, Threshold: threshold, Memo: memo}

	var resp CreatedVault
	if err := c.post(ctx, "/v1/vaults", req, &resp); err != nil {
		return nil, fmt.Errorf("create vault: %w", err)
	}
	return &resp, nil
}

// SubmitTransaction submits a proposed transaction to a vault.
func (c *HTTPClient) SubmitTransaction(ctx context.Context, vaultID string, instructions []Instruction) (*SubmittedTransaction, error) {
	req := struct {
		Instructions []Instruction `json:"instructions"`
	}{Instructions: instructions}

	var resp SubmittedTransaction
	path := fmt.Sprintf("/v1/vaults/%s/transactions", url.PathEscape(vaultID))
	if err := c.post(ctx, path, req, &resp); err != nil {
		return nil, fmt.Errorf("submit transaction to vault %s: %w", vaultID, err)
	}
	return &resp, nil
}

// GetApprovalStatus reports current approvals of a vault transaction.
func (c *HTTPClient) GetApprovalStatus(ctx context.Context, vaultID string, transactionIndex int64) (*ApprovalStatus, error) {
	var resp ApprovalStatus
	path := fmt.Sprintf("/v1/vaults/%s/transactions/%s", url.PathEscape(vaultID), strconv.FormatInt(transactionIndex, 10))
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("get approval status of %s/%d: %w", vaultID, transactionIndex, err)
	}
	return &resp, nil
}

// Execute executes an approved vault transaction.
func (c *HTTPClient) Execute(ctx context.Context, vaultID string, transactionIndex int64) (*ExecuteResult, error) {
	var resp ExecuteResult
	path := fmt.Sprintf("/v1/vaults/%s/transactions/%s/execute", url.PathEscape(vaultID), strconv.FormatInt(transactionIndex, 10))
	if err := c.post(ctx, path, struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("execute transaction %s/%d: %w", vaultID, transactionIndex, err)
	}
	return &resp, nil
}

// TransferAsset moves an on-chain asset into the vault's custody.
func (c *HTTPClient) TransferAsset(ctx context.Context, vaultID, assetMint string) (*ExecuteResult, error) {
	req := struct {
		AssetMint string `json:"asset_mint"`
	}{AssetMint: assetMint}

	var resp ExecuteResult
	path := fmt.Sprintf("/v1/vaults/%s/assets", url.PathEscape(vaultID))
	if err := c.post(ctx, path, req, &resp); err != nil {
		return nil, fmt.Errorf("transfer asset %s to vault %s: %w", assetMint, vaultID, err)
	}
	return &resp, nil
}

// post runs one POST without retries and decodes the JSON response.
func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// get runs one GET and decodes the JSON response.
func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
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
