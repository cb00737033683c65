// Package chapa is the client for the Chapa payment provider: it initializes
// hosted checkouts and verifies transactions by reference.
package chapa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"tg_chapa_bot/internal/httpclient"
)

const maxBodyBytes = 1 << 20

// Config holds the endpoints and the bearer secret.
type Config struct {
	Secret        string
	InitializeURL string
	VerifyURL     string
}

// Client calls Chapa. Every operation is a single request; nothing is retried.
type Client struct {
	cfg    Config
	client httpclient.HTTPClient
}

// NewClient constructs a Client.
func NewClient(cfg Config, client httpclient.HTTPClient) *Client {
	cfg.VerifyURL = strings.TrimRight(cfg.VerifyURL, "/")
	return &Client{cfg: cfg, client: client}
}

// Initialize starts a hosted checkout. Only HTTP 200 with a data.checkout_url
// counts as success; anything else yields a *ProviderError with the raw body.
func (c *Client) Initialize(ctx context.Context, request InitializeRequest) (InitializeResult, error) {
	if c == nil || c.client == nil {
		return InitializeResult{}, errors.New("chapa client is not initialized")
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(request); err != nil {
		return InitializeResult{}, fmt.Errorf("encoding error: %w", err)
	}

	resp, err := c.client.Post(ctx, c.cfg.InitializeURL, &buf, c.headers(true))
	if err != nil {
		return InitializeResult{}, fmt.Errorf("initialize transaction: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return InitializeResult{}, fmt.Errorf("read initialize response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return InitializeResult{}, &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var decoded initializeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return InitializeResult{}, &ProviderError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        fmt.Errorf("%w: %v", ErrParse, err),
		}
	}

	if decoded.Data == nil || strings.TrimSpace(decoded.Data.CheckoutURL) == "" {
		return InitializeResult{}, &ProviderError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        errors.New("missing data.checkout_url"),
		}
	}

	return InitializeResult{
		StatusCode:  resp.StatusCode,
		CheckoutURL: decoded.Data.CheckoutURL,
	}, nil
}

// Verify fetches the transaction identified by txRef. Transport failures,
// non-2xx responses and unparseable bodies return a nil Verification and an
// error matching ErrVerificationUnknown.
func (c *Client) Verify(ctx context.Context, txRef string) (*Verification, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("%w: chapa client is not initialized", ErrVerificationUnknown)
	}

	txRef = strings.TrimSpace(txRef)
	if txRef == "" {
		return nil, fmt.Errorf("%w: tx_ref is required", ErrVerificationUnknown)
	}

	resp, err := c.client.Get(ctx, c.cfg.VerifyURL+"/"+url.PathEscape(txRef), c.headers(false))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerificationUnknown, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read verify response: %w", ErrVerificationUnknown, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %w", ErrVerificationUnknown, &ProviderError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	var verification Verification
	if err := json.Unmarshal(body, &verification); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrVerificationUnknown, ErrParse, err)
	}
	verification.Raw = json.RawMessage(body)

	return &verification, nil
}

func (c *Client) headers(withJSON bool) map[string]string {
	headers := map[string]string{
		"Authorization": "Bearer " + c.cfg.Secret,
	}
	if withJSON {
		headers["Content-Type"] = "application/json"
	}
	return headers
}
