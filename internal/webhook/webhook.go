// Package webhook implements Webhook Ingress (spec §4.10): the
// provider-facing and user-facing callback handlers. Each handler
// normalizes its provider's payload, drives the Booking Engine or
// Conversation Controller, and always returns the shape its provider
// expects so a transient internal error does not trigger a redelivery
// storm.
package webhook

import (
	"context"
	"log"

	"ticketbot/internal/booking"
	"ticketbot/internal/catalog"
	"ticketbot/internal/convo"
	"ticketbot/internal/messaging"
	"ticketbot/internal/models"
	"ticketbot/internal/payment/hosted"
	"ticketbot/internal/phonenumber"
	"ticketbot/internal/ticketing"
)

type Ingress struct {
	Controller *convo.Controller
	Bookings   *booking.Engine
	Catalog    *catalog.Catalog
	Hosted     *hosted.Adapter
	Messaging  messaging.Client
}

func New(controller *convo.Controller, bookings *booking.Engine, cat *catalog.Catalog, hostedAdapter *hosted.Adapter, client messaging.Client) *Ingress {
	return &Ingress{Controller: controller, Bookings: bookings, Catalog: cat, Hosted: hostedAdapter, Messaging: client}
}

// InboundMessage is the normalized (phone, type, body, id?) tuple of
// spec §6, plus whatever display name the messaging platform attaches to
// the sender's profile (e.g. WhatsApp's contacts[].profile.name).
type InboundMessage struct {
	Phone       string
	Type        string // "text" | "interactive"
	Body        string
	ID          string // empty for text messages
	ProfileName string
}

// HandleUserMessage dispatches one normalized inbound message to the
// conversation controller. Never returns an error to the caller: the
// HTTP edge always replies 200 regardless of processing outcome.
func (i *Ingress) HandleUserMessage(ctx context.Context, msg InboundMessage) {
	phone, err := phonenumber.Normalize(msg.Phone)
	if err != nil {
		log.Printf("webhook: inbound message from unnormalizable phone %q: %v", msg.Phone, err)
		return
	}
	i.Controller.Handle(ctx, phone, msg.Body, msg.ID, msg.ProfileName)
}

// MarkRead fires the inbound message's read receipt. Best-effort per
// spec §4.10.
func (i *Ingress) MarkRead(ctx context.Context, messageID string) {
	if err := i.Messaging.MarkRead(ctx, messageID); err != nil {
		log.Printf("webhook: mark-read failed for %s: %v", messageID, err)
	}
}

// STKPayload is the subset of the STK provider's webhook body the
// ingress acts on (spec §6).
type STKPayload struct {
	Challenge string
	State     string
	APIRef    string
	InvoiceID string
	Account   string
}

const stkAckOK = "OK"

// HandleSTKWebhook processes an STK payment callback. Always returns an
// acknowledgement string; internal failures are logged, never
// propagated, to avoid provider retry storms (spec §7, §9).
func (i *Ingress) HandleSTKWebhook(ctx context.Context, p STKPayload) string {
	if p.Challenge != "complete" {
		return stkAckOK
	}
	if p.State != "COMPLETE" {
		return stkAckOK
	}

	tickets, wonRace, err := i.Bookings.CompleteBooking(p.APIRef, p.InvoiceID, p.Account)
	if err != nil {
		log.Printf("webhook: stk completeBooking failed for booking %s: %v", p.APIRef, err)
		return stkAckOK
	}

	if wonRace {
		go i.sendConfirmation(context.Background(), p.APIRef, p.Account, tickets)
	}
	return stkAckOK
}

// HostedEcho is the fixed response shape the hosted-redirect provider
// always receives (spec §6).
type HostedEcho struct {
	OrderNotificationType string `json:"orderNotificationType"`
	OrderTrackingID       string `json:"orderTrackingId"`
	Status                int    `json:"status"`
}

// HandleHostedValidationPing answers the GET validation ping.
func (i *Ingress) HandleHostedValidationPing(orderTrackingID, notificationType string) HostedEcho {
	return HostedEcho{OrderNotificationType: notificationType, OrderTrackingID: orderTrackingID, Status: 200}
}

// HandleHostedNotification processes the POST transaction notification:
// queries transaction status, and if completed, drives completeBooking.
func (i *Ingress) HandleHostedNotification(ctx context.Context, orderTrackingID, notificationType string) HostedEcho {
	detail, err := i.Hosted.GetTransactionStatus(ctx, orderTrackingID)
	if err != nil {
		log.Printf("webhook: hosted status query failed for %s: %v", orderTrackingID, err)
		return HostedEcho{OrderNotificationType: notificationType, OrderTrackingID: orderTrackingID, Status: 500}
	}

	if !hosted.IsCompleted(detail.Status) {
		return HostedEcho{OrderNotificationType: notificationType, OrderTrackingID: orderTrackingID, Status: 200}
	}

	tickets, wonRace, err := i.Bookings.CompleteBooking(detail.MerchantReference, detail.PaymentReference, detail.PayerPhone)
	if err != nil {
		log.Printf("webhook: hosted completeBooking failed for booking %s: %v", detail.MerchantReference, err)
		return HostedEcho{OrderNotificationType: notificationType, OrderTrackingID: orderTrackingID, Status: 500}
	}

	if wonRace {
		go i.sendConfirmation(context.Background(), detail.MerchantReference, detail.PayerPhone, tickets)
	}
	return HostedEcho{OrderNotificationType: notificationType, OrderTrackingID: orderTrackingID, Status: 200}
}

// sendConfirmation fires the summary text and image fan-out described in
// spec §4.8. Runs detached from the webhook's request context; failures
// are logged only.
func (i *Ingress) sendConfirmation(ctx context.Context, bookingID, payerPhone string, tickets []models.Ticket) {
	b, err := i.Bookings.Lookup(bookingID)
	if err != nil {
		log.Printf("webhook: confirmation lookup failed for booking %s: %v", bookingID, err)
		return
	}

	tier, err := i.Catalog.Tier(b.TierID)
	if err != nil {
		log.Printf("webhook: confirmation tier lookup failed for booking %s: %v", bookingID, err)
		return
	}
	event, err := i.Catalog.Event(tier.EventID)
	if err != nil {
		log.Printf("webhook: confirmation event lookup failed for booking %s: %v", bookingID, err)
		return
	}

	phone := payerPhone
	if phone == "" {
		phone = b.PaymentPhoneNumber
	}

	ticketing.DeliverConfirmation(ctx, i.Messaging, phone, event, tier, b.Quantity, b.TotalAmount.StringFixed(2), tickets)
	ticketing.DeliverMedia(ctx, i.Messaging, phone, event, tier, tickets)
}
