package submissionClient

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

	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/types"
)

const defaultTimeout = 30 * time.Second

// ISubmissionClient talks to a submission verifier server
type ISubmissionClient interface {
	SetHttpClient(client *http.Client)

	// SetAdminToken sets the bearer token sent with every request. The
	// server requires it for trust list changes.
	SetAdminToken(token string)

	// Submit posts a signed submission. Verification failures are returned
	// as a response with Success=false, not as errors.
	Submit(ctx context.Context, submission *types.SubmissionData) (*types.ApiResponse, error)

	// ListSubmissions returns the server ledger, filtered by signer when
	// signer is not empty
	ListSubmissions(ctx context.Context, signer string) ([]*types.SubmissionRecord, error)

	VerifyTypedData(ctx context.Context, submission *types.TypedDataSubmission) (*types.VerificationResult, error)

	TrustedAddresses(ctx context.Context) ([]string, error)
	AddTrustedAddress(ctx context.Context, address string) ([]string, error)
	RemoveTrustedAddress(ctx context.Context, address string) ([]string, error)

	LedgerRoot(ctx context.Context) (*types.LedgerRootResponse, error)
}

var _ ISubmissionClient = (*Client)(nil)

// Client is an HTTP ISubmissionClient
type Client struct {
	baseURL    string
	httpClient *http.Client
	adminToken string
	logger     *zap.Logger
}

// NewSubmissionClient creates a client for the server at baseURL
func NewSubmissionClient(baseURL string, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url: %q", baseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}, nil
}

// SetHttpClient replaces the underlying HTTP client
func (c *Client) SetHttpClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) SetAdminToken(token string) {
	c.adminToken = token
}

// do sends a request and decodes the JSON response into out when the
// status is one of okStatus
func (c *Client) do(ctx context.Context, method, path string, body any, out any, okStatus ...int) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}

	c.logger.Sugar().Debugw("Sending request", "method", method, "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	accepted := false
	for _, s := range okStatus {
		if resp.StatusCode == s {
			accepted = true
			break
		}
	}
	if !accepted {
		return fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, path, strings.TrimSpace(string(respBody)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) Submit(ctx context.Context, submission *types.SubmissionData) (*types.ApiResponse, error) {
	if submission == nil {
		return nil, fmt.Errorf("submission cannot be nil")
	}
	var resp types.ApiResponse
	if err := c.do(ctx, http.MethodPost, "/submissions", submission, &resp, http.StatusOK, http.StatusBadRequest); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListSubmissions(ctx context.Context, signer string) ([]*types.SubmissionRecord, error) {
	path := "/submissions"
	if signer != "" {
		path += "?signer=" + url.QueryEscape(signer)
	}
	var resp types.SubmissionListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Submissions, nil
}

func (c *Client) VerifyTypedData(ctx context.Context, submission *types.TypedDataSubmission) (*types.VerificationResult, error) {
	if submission == nil {
		return nil, fmt.Errorf("submission cannot be nil")
	}
	var result types.VerificationResult
	if err := c.do(ctx, http.MethodPost, "/typed-data/verify", submission, &result, http.StatusOK, http.StatusBadRequest); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) TrustedAddresses(ctx context.Context) ([]string, error) {
	var resp types.TrustedAddressesResponse
	if err := c.do(ctx, http.MethodGet, "/trusted", nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.TrustedAddresses, nil
}

func (c *Client) AddTrustedAddress(ctx context.Context, address string) ([]string, error) {
	var resp types.TrustedAddressesResponse
	if err := c.do(ctx, http.MethodPost, "/trusted", &types.TrustedAddressRequest{Address: address}, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.TrustedAddresses, nil
}

func (c *Client) RemoveTrustedAddress(ctx context.Context, address string) ([]string, error) {
	var resp types.TrustedAddressesResponse
	if err := c.do(ctx, http.MethodDelete, "/trusted?address="+url.QueryEscape(address), nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.TrustedAddresses, nil
}

func (c *Client) LedgerRoot(ctx context.Context) (*types.LedgerRootResponse, error) {
	var resp types.LedgerRootResponse
	if err := c.do(ctx, http.MethodGet, "/ledger/root", nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}
