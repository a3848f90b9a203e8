// Package models holds the domain structs persisted as PocketBase
// collections. Money fields use decimal.Decimal, not float64, so totals
// never drift across additions.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventCategory is the closed set of event categories.
type EventCategory string

const (
	CategoryUniversity EventCategory = "UNIVERSITY"
	CategoryConcert    EventCategory = "CONCERT"
	CategoryClub       EventCategory = "CLUB"
	CategorySocial     EventCategory = "SOCIAL"
	CategoryHoliday    EventCategory = "HOLIDAY"
)

// Categories lists every recognized EventCategory, in display order.
func Categories() []EventCategory {
	return []EventCategory{CategoryUniversity, CategoryConcert, CategoryClub, CategorySocial, CategoryHoliday}
}

func (c EventCategory) Valid() bool {
	for _, v := range Categories() {
		if v == c {
			return true
		}
	}
	return false
}

type Event struct {
	ID          string        `json:"id" db:"id"`
	Title       string        `json:"title" db:"title"`
	Description string        `json:"description" db:"description"`
	Venue       string        `json:"venue" db:"venue"`
	StartTime   time.Time     `json:"start_time" db:"start_time"`
	EndTime     time.Time     `json:"end_time" db:"end_time"`
	Active      bool          `json:"active" db:"active"`
	Category    EventCategory `json:"category" db:"category"`
}

// Offered reports whether the event can still be sold, per spec's
// invariant: active and not yet started.
func (e Event) Offered(now time.Time) bool {
	return e.Active && e.StartTime.After(now)
}

type TicketTier struct {
	ID           string          `json:"id" db:"id"`
	EventID      string          `json:"event_id" db:"event_id"`
	Name         string          `json:"name" db:"name"`
	UnitPrice    decimal.Decimal `json:"unit_price" db:"unit_price"`
	Quantity     int             `json:"quantity" db:"quantity"`
	QuantitySold int             `json:"quantity_sold" db:"quantity_sold"`
}

func (t TicketTier) Available() int {
	return t.Quantity - t.QuantitySold
}

type User struct {
	ID             string    `json:"id" db:"id"`
	NormalizedPhone string   `json:"normalized_phone" db:"normalized_phone"`
	DisplayName    string    `json:"display_name" db:"display_name"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type BookingStatus string

const (
	BookingPending          BookingStatus = "PENDING"
	BookingAwaitingPayment  BookingStatus = "AWAITING_PAYMENT"
	BookingPaid             BookingStatus = "PAID"
	BookingCancelled        BookingStatus = "CANCELLED"
	BookingExpired          BookingStatus = "EXPIRED"
)

type PaymentMethod string

const (
	PaymentMpesa PaymentMethod = "MPESA"
	PaymentCard  PaymentMethod = "CARD"
)

type Booking struct {
	ID                 string          `json:"id" db:"id"`
	UserID             string          `json:"user_id" db:"user_id"`
	TierID             string          `json:"tier_id" db:"tier_id"`
	Quantity           int             `json:"quantity" db:"quantity"`
	TotalAmount        decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status             BookingStatus   `json:"status" db:"status"`
	PaymentMethod      PaymentMethod   `json:"payment_method" db:"payment_method"`
	PaymentPhoneNumber string          `json:"payment_phone_number" db:"payment_phone_number"`
	PaymentReference   string          `json:"payment_reference" db:"payment_reference"`
	ExpiryTime         time.Time       `json:"expiry_time" db:"expiry_time"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

type Ticket struct {
	ID         string    `json:"id" db:"id"`
	BookingID  string    `json:"booking_id" db:"booking_id"`
	UniqueCode string    `json:"unique_code" db:"unique_code"`
	IsRedeemed bool      `json:"is_redeemed" db:"is_redeemed"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
