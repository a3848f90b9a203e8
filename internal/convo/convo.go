// Package convo implements the Conversation Controller (spec §4.9): the
// per-user state machine that turns inbound messages into session
// transitions and outbound sends. It is the largest component in
// ticketbot, the same way the teacher's services/queue_service.go is its
// largest file — many small steps coordinating several collaborators
// rather than one complex algorithm.
package convo

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ticketbot/internal/booking"
	"ticketbot/internal/catalog"
	"ticketbot/internal/customer"
	"ticketbot/internal/lock"
	"ticketbot/internal/messaging"
	"ticketbot/internal/models"
	"ticketbot/internal/payment"
	"ticketbot/internal/payment/hosted"
	"ticketbot/internal/payment/stk"
	"ticketbot/internal/phonenumber"
	"ticketbot/internal/session"
)

const (
	maxQuantityDefault = 5
	lockTTL             = 10 * time.Minute
	antiLoopWindow     = 5 * time.Second
)

const backToCategories = "BACK_TO_CATEGORIES"

type Controller struct {
	Sessions    session.Store
	Locks       *lock.Registry
	Catalog     *catalog.Catalog
	Customers   *customer.Registry
	Bookings    *booking.Engine
	STK         *stk.Adapter
	Hosted      *hosted.Adapter
	Messaging   messaging.Client
	MaxQuantity int

	mu               sync.Mutex
	lastCategorySend map[string]time.Time
}

func New(sessions session.Store, locks *lock.Registry, cat *catalog.Catalog, customers *customer.Registry, bookings *booking.Engine, stkAdapter *stk.Adapter, hostedAdapter *hosted.Adapter, client messaging.Client, maxQuantity int) *Controller {
	if maxQuantity <= 0 {
		maxQuantity = maxQuantityDefault
	}
	return &Controller{
		Sessions:         sessions,
		Locks:            locks,
		Catalog:          cat,
		Customers:        customers,
		Bookings:         bookings,
		STK:              stkAdapter,
		Hosted:           hostedAdapter,
		Messaging:        client,
		MaxQuantity:      maxQuantity,
		lastCategorySend: make(map[string]time.Time),
	}
}

var globalCommands = map[string]bool{
	"hi": true, "menu": true, "start": true, "restart": true, "reset": true, "cancel": true,
}

// Handle dispatches one inbound message through the state machine. id, if
// present, is the interactive reply's element id; body is the raw text
// or the reply's id echoed per spec §6's normalization rule. profileName,
// if present, is the sender's platform display name, used to keep the
// customer record's display name current (spec §3).
func (c *Controller) Handle(ctx context.Context, phone, body, id, profileName string) {
	input := id
	if input == "" {
		input = body
	}

	if customerID, err := c.resolveUser(ctx, phone); err != nil {
		log.Printf("convo: resolve customer failed for %s: %v", mask(phone), err)
	} else if err := c.Customers.UpdateDisplayName(customerID, profileName); err != nil {
		log.Printf("convo: update display name failed for %s: %v", mask(phone), err)
	}

	sess := c.Sessions.Get(ctx, phone)

	if globalCommands[normalizeCommand(input)] {
		_ = c.Sessions.Clear(ctx, phone)
		c.sendCategoryList(ctx, phone)
		_ = c.Sessions.Update(ctx, phone, session.StateSelectingCategory, nil)
		return
	}

	switch sess.State {
	case session.StateIdle:
		c.sendCategoryList(ctx, phone)
		_ = c.Sessions.Update(ctx, phone, session.StateSelectingCategory, nil)

	case session.StateSelectingCategory:
		c.handleSelectingCategory(ctx, phone, input)

	case session.StateBrowsingEvents:
		c.handleBrowsingEvents(ctx, phone, sess, input)

	case session.StateSelectingTier:
		c.handleSelectingTier(ctx, phone, sess, input)

	case session.StateSelectingQuantity:
		c.handleSelectingQuantity(ctx, phone, sess, input)

	case session.StateAwaitingPaymentMethod:
		c.handleAwaitingPaymentMethod(ctx, phone, sess, input)

	case session.StateAwaitingPaymentPhone:
		c.handleAwaitingPaymentPhone(ctx, phone, sess, input)

	case session.StateAwaitingSTKPush:
		// No documented inbound transition (spec §9): politely hold the
		// user rather than restart their in-flight payment.
		_ = c.Messaging.SendText(ctx, phone, "Your payment is being processed. We'll confirm shortly.")

	default:
		_ = c.Sessions.Clear(ctx, phone)
		c.sendCategoryList(ctx, phone)
		_ = c.Sessions.Update(ctx, phone, session.StateSelectingCategory, nil)
	}
}

func normalizeCommand(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r = r + ('a' - 'A')
		}
		out = append(out, r)
	}
	return string(out)
}

// sendCategoryList applies the anti-loop guard (spec §4.9): at most one
// category list per phone per antiLoopWindow.
func (c *Controller) sendCategoryList(ctx context.Context, phone string) {
	c.mu.Lock()
	last, seen := c.lastCategorySend[phone]
	if seen && time.Since(last) < antiLoopWindow {
		c.mu.Unlock()
		return
	}
	c.lastCategorySend[phone] = time.Now()
	c.mu.Unlock()

	categories, err := c.Catalog.ActiveCategories()
	if err != nil {
		log.Printf("convo: list categories failed for %s: %v", mask(phone), err)
		return
	}

	rows := make([]messaging.ListRow, 0, len(categories))
	for _, cat := range categories {
		rows = append(rows, messaging.ListRow{ID: string(cat), Title: string(cat)})
	}
	sections := []messaging.ListSection{{Title: "Categories", Rows: rows}}
	if err := c.Messaging.SendList(ctx, phone, "What kind of event are you looking for?", "Choose", sections); err != nil {
		log.Printf("convo: send category list failed for %s: %v", mask(phone), err)
	}
}

func (c *Controller) handleSelectingCategory(ctx context.Context, phone, input string) {
	category := models.EventCategory(input)
	if !category.Valid() {
		c.sendCategoryList(ctx, phone)
		return
	}

	events, err := c.Catalog.EventsByCategory(category)
	if err != nil {
		log.Printf("convo: list events failed for %s: %v", mask(phone), err)
		return
	}

	rows := make([]messaging.ListRow, 0, len(events))
	for _, e := range events {
		rows = append(rows, messaging.ListRow{
			ID:          e.ID,
			Title:       e.Title,
			Description: e.Venue + " — " + e.StartTime.Format("Jan 2"),
		})
	}
	rows = append(rows, messaging.ListRow{ID: backToCategories, Title: "Back to categories"})

	sections := []messaging.ListSection{{Title: string(category), Rows: rows}}
	if err := c.Messaging.SendList(ctx, phone, "Pick an event", "Choose", sections); err != nil {
		log.Printf("convo: send events list failed for %s: %v", mask(phone), err)
	}
	_ = c.Sessions.Update(ctx, phone, session.StateBrowsingEvents, map[string]interface{}{
		session.KeySelectedCategory: string(category),
	})
}

func (c *Controller) handleBrowsingEvents(ctx context.Context, phone string, sess session.Session, input string) {
	if input == backToCategories {
		_ = c.Sessions.Update(ctx, phone, session.StateSelectingCategory, nil)
		c.sendCategoryList(ctx, phone)
		return
	}

	event, err := c.Catalog.Event(input)
	if err != nil {
		_ = c.Messaging.SendText(ctx, phone, "That event isn't available anymore.")
		_ = c.Sessions.Update(ctx, phone, session.StateSelectingCategory, nil)
		c.sendCategoryList(ctx, phone)
		return
	}

	tiers, err := c.Catalog.Tiers(event.ID)
	if err != nil || !hasAvailableTier(tiers) {
		_ = c.Messaging.SendText(ctx, phone, "That event is sold out.")
		_ = c.Sessions.Update(ctx, phone, session.StateSelectingCategory, nil)
		c.sendCategoryList(ctx, phone)
		return
	}

	c.sendTierList(ctx, phone, event, tiers)
	_ = c.Sessions.Update(ctx, phone, session.StateSelectingTier, map[string]interface{}{
		session.KeyEventID: event.ID,
	})
}

func (c *Controller) sendTierList(ctx context.Context, phone string, event models.Event, tiers []models.TicketTier) {
	rows := make([]messaging.ListRow, 0, len(tiers))
	for _, t := range tiers {
		if t.Available() <= 0 {
			continue
		}
		rows = append(rows, messaging.ListRow{
			ID:          t.ID,
			Title:       t.Name,
			Description: fmt.Sprintf("KES %s", t.UnitPrice.StringFixed(2)),
		})
	}
	rows = append(rows, messaging.ListRow{ID: backToCategories, Title: "Back to categories"})

	sections := []messaging.ListSection{{Title: event.Title, Rows: rows}}
	if err := c.Messaging.SendList(ctx, phone, "Pick a ticket tier", "Choose", sections); err != nil {
		log.Printf("convo: send tier list failed for %s: %v", mask(phone), err)
	}
}

func (c *Controller) handleSelectingTier(ctx context.Context, phone string, sess session.Session, input string) {
	if input == backToCategories {
		_ = c.Sessions.Update(ctx, phone, session.StateSelectingCategory, nil)
		c.sendCategoryList(ctx, phone)
		return
	}

	sessionEventID, _ := sess.Data[session.KeyEventID].(string)

	tier, err := c.Catalog.Tier(input)
	if err == nil && tier.EventID == sessionEventID && tier.Available() > 0 {
		_ = c.Messaging.SendText(ctx, phone, "How many tickets? (1-"+strconv.Itoa(c.MaxQuantity)+")")
		_ = c.Sessions.Update(ctx, phone, session.StateSelectingQuantity, map[string]interface{}{
			session.KeyTierID: tier.ID,
		})
		return
	}

	// Maybe the id the platform delivered is a stale list-reply pointing
	// at a different event; re-open that event's tier list in place
	// rather than treating it as an error (spec §4.9 S4).
	if event, eventErr := c.Catalog.Event(input); eventErr == nil {
		tiers, tierErr := c.Catalog.Tiers(event.ID)
		if tierErr == nil && hasAvailableTier(tiers) {
			c.sendTierList(ctx, phone, event, tiers)
			_ = c.Sessions.Update(ctx, phone, session.StateSelectingTier, map[string]interface{}{
				session.KeyEventID: event.ID,
			})
			return
		}
	}

	_ = c.Messaging.SendText(ctx, phone, "That ticket tier isn't available anymore.")
	_ = c.Sessions.Update(ctx, phone, session.StateSelectingCategory, nil)
	c.sendCategoryList(ctx, phone)
}

func (c *Controller) handleSelectingQuantity(ctx context.Context, phone string, sess session.Session, input string) {
	quantity, err := strconv.Atoi(input)
	if err != nil || quantity < 1 || quantity > c.MaxQuantity {
		_ = c.Messaging.SendText(ctx, phone, fmt.Sprintf("Please type a number between 1 and %d", c.MaxQuantity))
		return
	}

	tierID, _ := sess.Data[session.KeyTierID].(string)
	tier, err := c.Catalog.Tier(tierID)
	if err != nil {
		_ = c.Messaging.SendText(ctx, phone, "Something went wrong, type 'menu' to start over")
		return
	}

	resource := fmt.Sprintf("tier:%s:user:%s", tierID, phone)
	if !c.Locks.Acquire(ctx, resource, phone) {
		_ = c.Messaging.SendText(ctx, phone, "High demand right now, please try again shortly.")
		_ = c.Sessions.Clear(ctx, phone)
		return
	}

	total := tier.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))

	buttons := []messaging.Button{
		{ID: "mpesa", Title: "M-Pesa"},
		{ID: "card", Title: "Card"},
	}
	if err := c.Messaging.SendButtons(ctx, phone, fmt.Sprintf("Total: KES %s. How would you like to pay?", total.StringFixed(2)), buttons); err != nil {
		log.Printf("convo: send payment buttons failed for %s: %v", mask(phone), err)
	}

	_ = c.Sessions.Update(ctx, phone, session.StateAwaitingPaymentMethod, map[string]interface{}{
		session.KeyQuantity:    strconv.Itoa(quantity),
		session.KeyTotalAmount: total.StringFixed(2),
	})
}

func (c *Controller) handleAwaitingPaymentMethod(ctx context.Context, phone string, sess session.Session, input string) {
	switch normalizeCommand(input) {
	case "mpesa":
		_ = c.Messaging.SendText(ctx, phone, "Use this chat's phone number ("+phone+") for the M-Pesa prompt? (yes/no)")
		_ = c.Sessions.Update(ctx, phone, session.StateAwaitingPaymentPhone, map[string]interface{}{
			session.KeyPaymentMethod: string(models.PaymentMpesa),
		})

	case "card":
		c.startCardPayment(ctx, phone, sess)

	default:
		buttons := []messaging.Button{{ID: "mpesa", Title: "M-Pesa"}, {ID: "card", Title: "Card"}}
		_ = c.Messaging.SendButtons(ctx, phone, "Please choose a payment method.", buttons)
	}
}

func (c *Controller) startCardPayment(ctx context.Context, phone string, sess session.Session) {
	tierID, _ := sess.Data[session.KeyTierID].(string)
	quantity := sessionQuantity(sess)
	totalStr, _ := sess.Data[session.KeyTotalAmount].(string)
	total, _ := decimal.NewFromString(totalStr)

	user, err := c.resolveUser(ctx, phone)
	if err != nil {
		_ = c.Messaging.SendText(ctx, phone, "Something went wrong, type 'menu' to start over")
		return
	}

	b, err := c.Bookings.CreatePending(user, tierID, quantity, total, models.PaymentCard, phone)
	if err != nil {
		_ = c.Messaging.SendText(ctx, phone, "Something went wrong, type 'menu' to start over")
		return
	}

	tier, _ := c.Catalog.Tier(tierID)
	event, _ := c.Catalog.Event(tier.EventID)

	outcome, err := c.Hosted.Charge(ctx, payment.ChargeRequest{
		BookingID:   b.ID,
		Phone:       phone,
		Amount:      total,
		Reference:   b.ID,
		Description: fmt.Sprintf("%dx %s — %s", quantity, tier.Name, event.Title),
	})
	if err != nil {
		_ = c.Messaging.SendText(ctx, phone, "Couldn't start the card payment right now, please try again.")
		return
	}

	_ = c.Messaging.SendText(ctx, phone, "Complete your payment here: "+outcome.RedirectURL)
	_ = c.Sessions.Clear(ctx, phone)
}

func (c *Controller) handleAwaitingPaymentPhone(ctx context.Context, phone string, sess session.Session, input string) {
	var payPhone string
	switch normalizeCommand(input) {
	case "yes":
		payPhone = phone
	default:
		normalized, err := phonenumber.Normalize(input)
		if err != nil {
			_ = c.Messaging.SendText(ctx, phone, "That doesn't look like a valid phone number. Please try again.")
			return
		}
		payPhone = normalized
	}

	c.continueMpesa(ctx, phone, sess, payPhone)
}

func (c *Controller) continueMpesa(ctx context.Context, phone string, sess session.Session, payPhone string) {
	tierID, _ := sess.Data[session.KeyTierID].(string)
	quantity := sessionQuantity(sess)
	totalStr, _ := sess.Data[session.KeyTotalAmount].(string)
	total, _ := decimal.NewFromString(totalStr)

	user, err := c.resolveUser(ctx, phone)
	if err != nil {
		_ = c.Messaging.SendText(ctx, phone, "Something went wrong, type 'menu' to start over")
		return
	}

	b, err := c.Bookings.CreatePending(user, tierID, quantity, total, models.PaymentMpesa, payPhone)
	if err != nil {
		_ = c.Messaging.SendText(ctx, phone, "Something went wrong, type 'menu' to start over")
		return
	}

	_, err = c.STK.Initiate(ctx, payPhone, total, b.ID)
	if err != nil {
		_ = c.Messaging.SendText(ctx, phone, "Couldn't reach M-Pesa, please try again.")
		buttons := []messaging.Button{{ID: "mpesa", Title: "M-Pesa"}, {ID: "card", Title: "Card"}}
		_ = c.Messaging.SendButtons(ctx, phone, "How would you like to pay?", buttons)
		_ = c.Sessions.Update(ctx, phone, session.StateAwaitingPaymentMethod, nil)
		return
	}

	_ = c.Messaging.SendText(ctx, phone, "Check your phone to complete the M-Pesa payment.")
	_ = c.Sessions.Update(ctx, phone, session.StateAwaitingSTKPush, map[string]interface{}{
		session.KeyTempBookingID: b.ID,
	})
}

// resolveUser returns (or creates) the customer record id for phone.
// Grounded on the Booking/User invariant in spec §3: created on first
// interaction.
func (c *Controller) resolveUser(ctx context.Context, phone string) (string, error) {
	return c.Customers.ResolveOrCreate(phone)
}

// sessionQuantity reads the stored quantity back as a string, matching
// totalAmount's storage shape (both written as strings by
// handleSelectingQuantity): a session round-tripped
// through RedisStore has gone through encoding/json, which would decode a
// bare int back as a float64, not an int.
func sessionQuantity(sess session.Session) int {
	quantityStr, _ := sess.Data[session.KeyQuantity].(string)
	quantity, _ := strconv.Atoi(quantityStr)
	return quantity
}

func hasAvailableTier(tiers []models.TicketTier) bool {
	for _, t := range tiers {
		if t.Available() > 0 {
			return true
		}
	}
	return false
}

func mask(phone string) string {
	if len(phone) <= 4 {
		return "***"
	}
	return phone[:3] + "***" + phone[len(phone)-2:]
}
