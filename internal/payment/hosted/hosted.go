// Package hosted implements the hosted-redirect payment adapter (spec
// §4.6): a three-step protocol (token, notification endpoint
// registration, order submission) culminating in a redirect URL the user
// completes payment on outside the chat. Grounded on the teacher's
// internal/services/bank/ldb client: OAuth client-credentials token
// fetch via HTTP Basic auth, and the same "re-authenticate transparently
// on 401" policy as both bank adapters.
package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"ticketbot/internal/monitoring"
	"ticketbot/internal/payment"
	"ticketbot/internal/resilience"
	"ticketbot/internal/status"
)

type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	CallbackURL    string
}

type Adapter struct {
	cfg     Config
	hc      *http.Client
	breaker *resilience.CircuitBreaker

	mu               sync.Mutex
	token            string
	tokenExpiresAt   time.Time
	notificationID   string
	notificationOnce sync.Once
	notificationErr  error
}

func New(cfg Config) *Adapter {
	return &Adapter{
		cfg:     cfg,
		hc:      &http.Client{Timeout: 30 * time.Second},
		breaker: resilience.NewCircuitBreaker("hosted"),
	}
}

func (a *Adapter) Method() payment.Method { return payment.MethodHosted }

// accessToken returns a cached token, proactively refreshing it 30s
// before expiry. Concurrent first-use racing to refresh is acceptable:
// one wasted refresh is harmless (spec §5).
func (a *Adapter) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	token := a.token
	expiresAt := a.tokenExpiresAt
	a.mu.Unlock()

	if token != "" && time.Now().Add(30*time.Second).Before(expiresAt) {
		return token, nil
	}
	return a.refreshToken(ctx)
}

func (a *Adapter) refreshToken(ctx context.Context) (string, error) {
	query := url.Values{"grant_type": []string{"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/api/v1/auth/token", strings.NewReader(query.Encode()))
	if err != nil {
		return "", status.New(status.InternalError, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.URL.User = url.UserPassword(a.cfg.ConsumerKey, a.cfg.ConsumerSecret)

	resp, err := a.hc.Do(req)
	if err != nil {
		return "", status.Payment("hosted", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", status.Payment("hosted", "", fmt.Errorf("token request: http %d", resp.StatusCode))
	}

	var reply struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", status.Payment("hosted", "", fmt.Errorf("decode token reply: %w", err))
	}

	a.mu.Lock()
	a.token = reply.AccessToken
	a.tokenExpiresAt = time.Now().Add(time.Duration(reply.ExpiresIn) * time.Second)
	a.mu.Unlock()

	return reply.AccessToken, nil
}

// notificationEndpointID lazily registers the callback URL with the
// provider on first use, then memoizes the returned id for the life of
// the process.
func (a *Adapter) notificationEndpointID(ctx context.Context) (string, error) {
	a.notificationOnce.Do(func() {
		a.notificationID, a.notificationErr = a.registerNotificationEndpoint(ctx)
	})
	return a.notificationID, a.notificationErr
}

func (a *Adapter) registerNotificationEndpoint(ctx context.Context) (string, error) {
	token, err := a.accessToken(ctx)
	if err != nil {
		return "", err
	}

	body, _ := json.Marshal(map[string]string{
		"url":         a.cfg.CallbackURL,
		"ipn_type":    "POST",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/api/v1/ipn/register", bytes.NewReader(body))
	if err != nil {
		return "", status.New(status.InternalError, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.hc.Do(req)
	if err != nil {
		return "", status.Payment("hosted", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		token, err = a.refreshToken(ctx)
		if err != nil {
			return "", err
		}
		return a.registerNotificationEndpointWithToken(ctx, token)
	}

	var reply struct {
		IPNId string `json:"ipn_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", status.Payment("hosted", "", fmt.Errorf("decode ipn reply: %w", err))
	}
	return reply.IPNId, nil
}

func (a *Adapter) registerNotificationEndpointWithToken(ctx context.Context, token string) (string, error) {
	body, _ := json.Marshal(map[string]string{"url": a.cfg.CallbackURL, "ipn_type": "POST"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/api/v1/ipn/register", bytes.NewReader(body))
	if err != nil {
		return "", status.New(status.InternalError, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.hc.Do(req)
	if err != nil {
		return "", status.Payment("hosted", "", err)
	}
	defer resp.Body.Close()

	var reply struct {
		IPNId string `json:"ipn_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", status.Payment("hosted", "", fmt.Errorf("decode ipn reply: %w", err))
	}
	return reply.IPNId, nil
}

type orderRequest struct {
	ID               string `json:"id"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	Description      string `json:"description"`
	CallbackURL      string `json:"callback_url"`
	NotificationID   string `json:"notification_id"`
}

type orderReply struct {
	OrderTrackingID string `json:"order_tracking_id"`
	RedirectURL     string `json:"redirect_url"`
}

// Charge submits an order and returns the hosted redirect URL the user
// completes payment on.
func (a *Adapter) Charge(ctx context.Context, req payment.ChargeRequest) (payment.ChargeOutcome, error) {
	result, err := a.breaker.Execute(ctx, "hosted", func() (interface{}, error) {
		return a.submitOrder(ctx, req)
	})
	if err != nil {
		monitoring.TrackPaymentAttempt("hosted", "failure")
		return payment.ChargeOutcome{}, err
	}
	monitoring.TrackPaymentAttempt("hosted", "success")
	return result.(payment.ChargeOutcome), nil
}

func (a *Adapter) submitOrder(ctx context.Context, req payment.ChargeRequest) (payment.ChargeOutcome, error) {
	token, err := a.accessToken(ctx)
	if err != nil {
		return payment.ChargeOutcome{}, err
	}
	notificationID, err := a.notificationEndpointID(ctx)
	if err != nil {
		return payment.ChargeOutcome{}, err
	}

	body, err := json.Marshal(orderRequest{
		ID:             req.Reference,
		Amount:         req.Amount.StringFixed(2),
		Currency:       "KES",
		Description:    req.Description,
		CallbackURL:    a.cfg.CallbackURL,
		NotificationID: notificationID,
	})
	if err != nil {
		return payment.ChargeOutcome{}, status.New(status.InternalError, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/api/v1/orders", bytes.NewReader(body))
	if err != nil {
		return payment.ChargeOutcome{}, status.New(status.InternalError, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.hc.Do(httpReq)
	if err != nil {
		return payment.ChargeOutcome{}, status.Payment("hosted", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		freshToken, err := a.refreshToken(ctx)
		if err != nil {
			return payment.ChargeOutcome{}, err
		}
		return a.submitOrderWithToken(ctx, req, notificationID, freshToken)
	}

	var reply orderReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return payment.ChargeOutcome{}, status.Payment("hosted", "", fmt.Errorf("decode order reply: %w", err))
	}

	return payment.ChargeOutcome{
		ProviderReference: reply.OrderTrackingID,
		RedirectURL:       reply.RedirectURL,
	}, nil
}

func (a *Adapter) submitOrderWithToken(ctx context.Context, req payment.ChargeRequest, notificationID, token string) (payment.ChargeOutcome, error) {
	body, err := json.Marshal(orderRequest{
		ID:             req.Reference,
		Amount:         req.Amount.StringFixed(2),
		Currency:       "KES",
		Description:    req.Description,
		CallbackURL:    a.cfg.CallbackURL,
		NotificationID: notificationID,
	})
	if err != nil {
		return payment.ChargeOutcome{}, status.New(status.InternalError, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/api/v1/orders", bytes.NewReader(body))
	if err != nil {
		return payment.ChargeOutcome{}, status.New(status.InternalError, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.hc.Do(httpReq)
	if err != nil {
		return payment.ChargeOutcome{}, status.Payment("hosted", "", err)
	}
	defer resp.Body.Close()

	var reply orderReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return payment.ChargeOutcome{}, status.Payment("hosted", "", fmt.Errorf("decode order reply: %w", err))
	}

	return payment.ChargeOutcome{
		ProviderReference: reply.OrderTrackingID,
		RedirectURL:       reply.RedirectURL,
	}, nil
}

// TransactionStatusDetail carries the extractable fields spec §4.6 names
// from the provider's opaque status object.
type TransactionStatusDetail struct {
	Status             string
	MerchantReference  string
	PaymentReference   string
	PayerPhone         string
}

// GetTransactionStatus queries a previously submitted order's status by
// its order-tracking id.
func (a *Adapter) GetTransactionStatus(ctx context.Context, orderTrackingID string) (TransactionStatusDetail, error) {
	result, err := a.breaker.Execute(ctx, "hosted", func() (interface{}, error) {
		return a.queryStatus(ctx, orderTrackingID)
	})
	if err != nil {
		return TransactionStatusDetail{}, err
	}
	return result.(TransactionStatusDetail), nil
}

func (a *Adapter) queryStatus(ctx context.Context, orderTrackingID string) (TransactionStatusDetail, error) {
	token, err := a.accessToken(ctx)
	if err != nil {
		return TransactionStatusDetail{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/api/v1/orders/"+orderTrackingID+"/status", nil)
	if err != nil {
		return TransactionStatusDetail{}, status.New(status.InternalError, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.hc.Do(req)
	if err != nil {
		return TransactionStatusDetail{}, status.Payment("hosted", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		freshToken, err := a.refreshToken(ctx)
		if err != nil {
			return TransactionStatusDetail{}, err
		}
		return a.queryStatusWithToken(ctx, orderTrackingID, freshToken)
	}

	return decodeStatusReply(resp)
}

func (a *Adapter) queryStatusWithToken(ctx context.Context, orderTrackingID, token string) (TransactionStatusDetail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/api/v1/orders/"+orderTrackingID+"/status", nil)
	if err != nil {
		return TransactionStatusDetail{}, status.New(status.InternalError, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.hc.Do(req)
	if err != nil {
		return TransactionStatusDetail{}, status.Payment("hosted", "", err)
	}
	defer resp.Body.Close()

	return decodeStatusReply(resp)
}

func decodeStatusReply(resp *http.Response) (TransactionStatusDetail, error) {
	var reply struct {
		PaymentStatusDescription string `json:"payment_status_description"`
		Status                   string `json:"status"`
		OrderMerchantReference   string `json:"order_merchant_reference"`
		MerchantReference        string `json:"merchant_reference"`
		ConfirmationCode         string `json:"confirmation_code"`
		OrderTrackingID          string `json:"order_tracking_id"`
		PayerPhone               string `json:"payer_phone"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return TransactionStatusDetail{}, status.Payment("hosted", "", fmt.Errorf("decode status reply: %w", err))
	}

	return TransactionStatusDetail{
		Status:            firstNonEmpty(reply.PaymentStatusDescription, reply.Status),
		MerchantReference: firstNonEmpty(reply.OrderMerchantReference, reply.MerchantReference, reply.ConfirmationCode),
		PaymentReference:  firstNonEmpty(reply.ConfirmationCode, reply.OrderTrackingID),
		PayerPhone:        reply.PayerPhone,
	}, nil
}

func (a *Adapter) CheckStatus(ctx context.Context, providerReference string) (payment.TransactionStatus, error) {
	detail, err := a.GetTransactionStatus(ctx, providerReference)
	if err != nil {
		return "", err
	}
	if IsCompleted(detail.Status) {
		return payment.TransactionSuccess, nil
	}
	return payment.TransactionPending, nil
}

// IsCompleted reports whether a provider status string indicates success,
// per spec §4.6: "Completed"/"COMPLETED" are both treated as success.
func IsCompleted(s string) bool {
	return strings.EqualFold(s, "completed")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
