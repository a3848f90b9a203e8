// Package handlers adapts ticketbot's internal components to PocketBase's
// *core.RequestEvent HTTP surface, the way the teacher's handlers package
// adapts its services. WebhookHandler is the only handler ticketbot needs:
// every other operation is driven by conversation, not REST.
package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"ticketbot/internal/webhook"
)

type WebhookHandler struct {
	ingress     *webhook.Ingress
	verifyToken string
}

func NewWebhookHandler(ingress *webhook.Ingress, verifyToken string) *WebhookHandler {
	return &WebhookHandler{ingress: ingress, verifyToken: verifyToken}
}

// VerifyMessagingWebhook answers the messaging platform's subscription
// handshake (spec §6): echo hub.challenge on a matching verify token,
// otherwise 403.
func (h *WebhookHandler) VerifyMessagingWebhook(e *core.RequestEvent) error {
	q := e.Request.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.verifyToken {
		return e.String(http.StatusOK, q.Get("hub.challenge"))
	}
	return e.JSON(http.StatusForbidden, map[string]string{"error": "verification failed"})
}

type inboundMessagePayload struct {
	Phone         string `json:"phone"`
	Body          string `json:"body"`
	InteractiveID string `json:"interactive_id"`
	MessageID     string `json:"message_id"`
	ProfileName   string `json:"profile_name"`
}

// ReceiveMessage accepts one normalized inbound chat message and always
// replies 200, per spec §4.10/§7: a transient internal error must never
// cause the messaging platform to redeliver (and thereby double-process)
// the same message. No rate limiting or access filtering is applied here:
// the spec's Non-goals rule out anything beyond the per-user lock registry.
func (h *WebhookHandler) ReceiveMessage(e *core.RequestEvent) error {
	var payload inboundMessagePayload
	if err := e.BindBody(&payload); err != nil {
		return e.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	h.ingress.HandleUserMessage(e.Request.Context(), webhook.InboundMessage{
		Phone:       payload.Phone,
		Body:        payload.Body,
		ID:          payload.InteractiveID,
		ProfileName: payload.ProfileName,
	})
	if payload.MessageID != "" {
		go h.ingress.MarkRead(e.Request.Context(), payload.MessageID)
	}

	return e.JSON(http.StatusOK, map[string]string{"status": "received"})
}

type stkWebhookPayload struct {
	Challenge string `json:"challenge"`
	State     string `json:"state"`
	APIRef    string `json:"api_ref"`
	InvoiceID string `json:"invoice_id"`
	Account   string `json:"account"`
}

// ReceiveSTKWebhook acks "OK" unconditionally (spec §7's resolution of
// the STK webhook's open question), regardless of what completeBooking
// does internally.
func (h *WebhookHandler) ReceiveSTKWebhook(e *core.RequestEvent) error {
	var payload stkWebhookPayload
	if err := e.BindBody(&payload); err != nil {
		return e.JSON(http.StatusOK, "OK")
	}

	ack := h.ingress.HandleSTKWebhook(e.Request.Context(), webhook.STKPayload{
		Challenge: payload.Challenge,
		State:     payload.State,
		APIRef:    payload.APIRef,
		InvoiceID: payload.InvoiceID,
		Account:   payload.Account,
	})
	return e.JSON(http.StatusOK, ack)
}

// ReceiveHostedValidationPing answers the hosted-redirect provider's GET
// validation ping with the fixed echo shape (spec §6).
func (h *WebhookHandler) ReceiveHostedValidationPing(e *core.RequestEvent) error {
	q := e.Request.URL.Query()
	echo := h.ingress.HandleHostedValidationPing(q.Get("OrderTrackingId"), q.Get("OrderNotificationType"))
	return e.JSON(http.StatusOK, echo)
}

type hostedNotificationPayload struct {
	OrderTrackingID       string `json:"OrderTrackingId"`
	OrderNotificationType string `json:"OrderNotificationType"`
}

// ReceiveHostedNotification processes the hosted provider's POST
// transaction notification. Always responds with the same echo shape
// (spec §6), regardless of whether the internal settle succeeded.
func (h *WebhookHandler) ReceiveHostedNotification(e *core.RequestEvent) error {
	var payload hostedNotificationPayload
	if err := e.BindBody(&payload); err != nil {
		return e.JSON(http.StatusBadRequest, webhook.HostedEcho{Status: http.StatusBadRequest})
	}

	echo := h.ingress.HandleHostedNotification(e.Request.Context(), payload.OrderTrackingID, payload.OrderNotificationType)
	return e.JSON(echo.Status, echo)
}
