// Package gateway talks to the external payment gateway over HTTP JSON.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/carebridge-wallet-ledger/internal/config"
	"github.com/shopspring/decimal"
)

// ErrAmbiguous means the outcome of a call is unknown: a transport error, a
// timeout or a 5xx. The caller must wait for the gateway callback.
var ErrAmbiguous = errors.New("gateway outcome unknown")

// Status is the outcome reported by the gateway
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

// Result is a definitive gateway answer
type Result struct {
	Status     Status          `json:"status"`
	ExternalID string          `json:"external_id"`
	Reason     string          `json:"reason,omitempty"`
	Raw        json.RawMessage `json:"-"`
}

// Success reports whether the money moved
func (r *Result) Success() bool {
	return r.Status == StatusSuccess
}

// ChargeRequest pulls funds from the owner's card, e-wallet or bank into the platform
type ChargeRequest struct {
	Reference string          `json:"reference"`
	OwnerID   string          `json:"owner_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
}

// PayoutRequest pushes funds to a bank account
type PayoutRequest struct {
	Reference     string          `json:"reference"`
	OwnerID       string          `json:"owner_id"`
	Amount        decimal.Decimal `json:"amount"`
	BankCode      string          `json:"bank_code"`
	AccountNumber string          `json:"account_number"`
	AccountName   string          `json:"account_name"`
}

// Client is the gateway collaborator used by the payment service
type Client interface {
	Charge(ctx context.Context, req ChargeRequest) (*Result, error)
	Payout(ctx context.Context, req PayoutRequest) (*Result, error)
}

// HTTPClient is the net/http implementation of Client
type HTTPClient struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient builds a client from the gateway config
func NewHTTPClient(cfg *config.GatewayConfig, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (c *HTTPClient) Charge(ctx context.Context, req ChargeRequest) (*Result, error) {
	return c.post(ctx, "/charges", req.Reference, req)
}

func (c *HTTPClient) Payout(ctx context.Context, req PayoutRequest) (*Result, error) {
	return c.post(ctx, "/payouts", req.Reference, req)
}

func (c *HTTPClient) post(ctx context.Context, path, reference string, body interface{}) (*Result, error) {
	logger := c.logger.With("reference", reference, "path", path)

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", reference)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.Warn("Gateway request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAmbiguous, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn("Failed to read gateway response", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAmbiguous, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		logger.Warn("Gateway returned server error", "status_code", resp.StatusCode)
		return nil, fmt.Errorf("%w: gateway returned status %d", ErrAmbiguous, resp.StatusCode)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		logger.Info("Gateway rejected request", "status_code", resp.StatusCode)
		rejected := &Result{
			Status: StatusFailed,
			Reason: fmt.Sprintf("gateway rejected request with status %d", resp.StatusCode),
		}
		if json.Valid(raw) {
			rejected.Raw = json.RawMessage(raw)
		}
		return rejected, nil
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		logger.Warn("Failed to decode gateway response", "error", err)
		return nil, fmt.Errorf("%w: undecodable response: %v", ErrAmbiguous, err)
	}
	switch result.Status {
	case StatusSuccess, StatusFailed, StatusPending:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrAmbiguous, result.Status)
	}
	result.Raw = json.RawMessage(raw)

	logger.Info("Gateway responded", "status", result.Status, "external_id", result.ExternalID)
	return &result, nil
}
