// Package stk implements the mobile STK-push payment adapter (spec §4.5):
// a single HMAC-signed HTTP call that causes the provider to push a
// payment prompt to the user's handset. Grounded on the teacher's
// internal/services/bank/jdb client: same HMAC-signing helper, same
// "sign the raw JSON body, send it as a header" shape, generalized from
// QR-code generation to a push-payment call.
package stk

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"ticketbot/internal/monitoring"
	"ticketbot/internal/payment"
	"ticketbot/internal/phonenumber"
	"ticketbot/internal/resilience"
	"ticketbot/internal/status"
)

type Config struct {
	PublishableKey string
	SecretKey      string
	IsTest         bool
	BaseURL        string
}

type Adapter struct {
	cfg     Config
	hc      *http.Client
	breaker *resilience.CircuitBreaker
}

func New(cfg Config) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://payments.example.com"
	}
	cfg.BaseURL = baseURL
	return &Adapter{
		cfg:     cfg,
		hc:      &http.Client{Timeout: 30 * time.Second},
		breaker: resilience.NewCircuitBreaker("stk"),
	}
}

func (a *Adapter) Method() payment.Method { return payment.MethodSTK }

type initiateRequest struct {
	Phone     string `json:"phone"`
	Amount    string `json:"amount"`
	APIRef    string `json:"api_ref"`
	IsTest    bool   `json:"is_test"`
}

type initiateReply struct {
	Status    string `json:"status"`
	InvoiceID string `json:"invoice_id"`
	Error     struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Initiate pushes a payment prompt to phone for amount, tagged with
// apiRef (the booking id) as the correlation key the provider's webhook
// echoes back.
func (a *Adapter) Initiate(ctx context.Context, phone string, amount decimal.Decimal, apiRef string) (string, error) {
	if a.cfg.SecretKey == "" || a.cfg.PublishableKey == "" {
		return "", status.New(status.ConfigError, nil)
	}
	normalized, err := phonenumber.Normalize(phone)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(initiateRequest{
		Phone:  normalized,
		Amount: amount.StringFixed(2),
		APIRef: apiRef,
		IsTest: a.cfg.IsTest,
	})
	if err != nil {
		return "", status.New(status.InternalError, err)
	}

	result, err := a.breaker.Execute(ctx, "stk", func() (interface{}, error) {
		return a.doInitiate(ctx, body)
	})
	if err != nil {
		monitoring.TrackPaymentAttempt("stk", "failure")
		return "", err
	}
	monitoring.TrackPaymentAttempt("stk", "success")
	return result.(string), nil
}

func (a *Adapter) doInitiate(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/v1/stk/initiate", bytes.NewReader(body))
	if err != nil {
		return "", status.New(status.InternalError, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.PublishableKey)
	req.Header.Set("X-Signature", sign(body, a.cfg.SecretKey))

	resp, err := a.hc.Do(req)
	if err != nil {
		return "", status.Payment("stk", "", err)
	}
	defer resp.Body.Close()

	var reply initiateReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", status.Payment("stk", "", fmt.Errorf("decode reply: %w", err))
	}

	if resp.StatusCode != http.StatusOK || reply.Status != "success" {
		code := reply.Error.Code
		return "", status.Payment("stk", code, fmt.Errorf("%s", reply.Error.Message))
	}

	return reply.InvoiceID, nil
}

func (a *Adapter) CheckStatus(ctx context.Context, providerReference string) (payment.TransactionStatus, error) {
	return payment.TransactionPending, status.New(status.InternalError, fmt.Errorf("stk settles via webhook only"))
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
