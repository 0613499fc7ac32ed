package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"campus-wallet/config"
	"campus-wallet/internal/core/ports"
	"campus-wallet/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// HTTPClient is the subset of http.Client the gateway client uses.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the external payment gateway. Every outbound call carries
// the internal reference so retried initiations are deduplicated on the
// gateway's side, and every call is bounded by the configured timeout.
type Client struct {
	baseURL  string
	apiKey   string
	secret   string
	currency string
	http     HTTPClient
	log      zerolog.Logger
}

// NewClient creates a gateway client from configuration.
func NewClient(cfg config.GatewayConfig, log zerolog.Logger) *Client {
	return &Client{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		secret:   cfg.CallbackSecret,
		currency: cfg.Currency,
		http:     &http.Client{Timeout: cfg.Timeout},
		log:      log,
	}
}

// NewClientWithHTTP creates a gateway client with a custom HTTP client
// (useful for testing).
func NewClientWithHTTP(cfg config.GatewayConfig, httpClient HTTPClient, log zerolog.Logger) *Client {
	c := NewClient(cfg, log)
	c.http = httpClient
	return c
}

type createChargeBody struct {
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

type createChargeResult struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirect_url"`
	PollURL     string `json:"poll_url"`
}

type chargeStatusResult struct {
	Status string `json:"status"`
}

// CreateCharge asks the gateway to create a charge for the given reference.
// A 4xx answer is a terminal rejection; network errors, timeouts and 5xx
// answers are transient and leave the payment reconcilable.
func (c *Client) CreateCharge(ctx context.Context, req ports.ChargeRequest) (*ports.ChargeResponse, error) {
	body, err := json.Marshal(createChargeBody{
		Reference: req.Reference,
		Amount:    req.Amount,
		Currency:  c.currencyOr(req.Currency),
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal charge request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("build charge request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apperror.ErrGatewayUnavailable(fmt.Errorf("create charge: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var result createChargeResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, apperror.ErrGatewayUnavailable(fmt.Errorf("decode charge response: %w", err))
		}
		return &ports.ChargeResponse{
			ExternalReference: result.ID,
			RedirectURL:       result.RedirectURL,
			PollURL:           result.PollURL,
		}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		c.log.Warn().Str("reference", req.Reference).Int("status", resp.StatusCode).Msg("gateway rejected charge")
		return nil, apperror.ErrGatewayRejected()
	default:
		return nil, apperror.ErrGatewayUnavailable(fmt.Errorf("gateway returned %d", resp.StatusCode))
	}
}

// GetStatus polls the gateway for the charge's current state.
func (c *Client) GetStatus(ctx context.Context, reference string) (ports.ChargeStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/charges/"+reference, nil)
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("build status request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", apperror.ErrGatewayUnavailable(fmt.Errorf("get charge status: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperror.ErrGatewayUnavailable(fmt.Errorf("gateway returned %d", resp.StatusCode))
	}

	var result chargeStatusResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", apperror.ErrGatewayUnavailable(fmt.Errorf("decode status response: %w", err))
	}

	switch result.Status {
	case "pending", "created":
		return ports.ChargeStatusPending, nil
	case "paid", "success":
		return ports.ChargeStatusPaid, nil
	case "failed":
		return ports.ChargeStatusFailed, nil
	case "cancelled", "expired":
		return ports.ChargeStatusCancelled, nil
	default:
		return "", apperror.ErrGatewayUnavailable(fmt.Errorf("unknown gateway status %q", result.Status))
	}
}

// VerifyCallback checks the HMAC-SHA256 signature on an inbound gateway
// callback body.
func (c *Client) VerifyCallback(payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *Client) currencyOr(currency string) string {
	if currency != "" {
		return currency
	}
	return c.currency
}
