// Package booking implements the consistency heart of ticketbot (spec
// §4.7): pending-booking creation, idempotent payment completion under
// concurrent webhook delivery, and cancellation. The conditional
// UPDATE...WHERE status IN (...) with an observed affected-row count is
// the single serialization point — grounded on the RowsAffected()==0
// conflict-detection idiom used throughout the cinema-booking example's
// repository layer, adapted here from a simple not-found check into the
// "first webhook wins" race-resolution primitive the spec requires.
//
// The lock registry (internal/lock) only throttles the conversation
// controller's quantity-to-payment step; payment completions from the
// webhook ingress never pass through it, and it is not what makes this
// package correct. Correctness is the conditional update below.
package booking

import (
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticketbot/internal/models"
	"ticketbot/internal/monitoring"
	"ticketbot/internal/status"
	"ticketbot/internal/ticketing"
)

const bookingExpiry = 10 * time.Minute

type Engine struct {
	app core.App
}

func New(app core.App) *Engine {
	return &Engine{app: app}
}

// CreatePending writes a new AWAITING_PAYMENT booking. Inventory is
// untouched until CompleteBooking runs.
func (e *Engine) CreatePending(userID, tierID string, quantity int, totalAmount decimal.Decimal, method models.PaymentMethod, paymentPhone string) (models.Booking, error) {
	collection, err := e.app.FindCollectionByNameOrId("bookings")
	if err != nil {
		return models.Booking{}, status.New(status.InternalError, err)
	}

	record := core.NewRecord(collection)
	record.Set("user", userID)
	record.Set("tier", tierID)
	record.Set("quantity", quantity)
	record.Set("total_amount", totalAmount.StringFixed(2))
	record.Set("status", string(models.BookingAwaitingPayment))
	record.Set("payment_method", string(method))
	record.Set("payment_phone_number", paymentPhone)
	record.Set("expiry_time", time.Now().Add(bookingExpiry))

	if err := e.app.Save(record); err != nil {
		return models.Booking{}, status.New(status.InternalError, err)
	}

	monitoring.TrackBookingCreated(string(method))
	return recordToBooking(record), nil
}

// CompleteBooking is called by the webhook ingress with the provider's
// confirmation. It is safe under concurrent invocation for the same
// booking from either or both payment providers.
func (e *Engine) CompleteBooking(bookingID, paymentRef, paymentPhone string) ([]models.Ticket, bool, error) {
	// Idempotency shortcut (spec §4.7 step 1), outside the transaction:
	// if a previous winner already completed this booking, return its
	// tickets without touching anything.
	if tickets, done, err := e.existingTicketsIfPaid(bookingID); err != nil {
		return nil, false, err
	} else if done {
		return tickets, false, nil
	}

	bookingRecord, err := e.app.FindRecordById("bookings", bookingID)
	if err != nil {
		return nil, false, status.New(status.NotFound, err)
	}
	currentStatus := models.BookingStatus(bookingRecord.GetString("status"))
	if currentStatus == models.BookingPaid {
		// A concurrent winner committed between the shortcut above and
		// this read; its status and tickets are visible together.
		if tickets, done, err := e.existingTicketsIfPaid(bookingID); err != nil {
			return nil, false, err
		} else if done {
			return tickets, false, nil
		}
	}
	if currentStatus != models.BookingPending && currentStatus != models.BookingAwaitingPayment {
		return nil, false, status.New(status.InvalidState, nil)
	}

	quantity := bookingRecord.GetInt("quantity")
	tierID := bookingRecord.GetString("tier")

	codes, err := ticketing.GenerateUniqueCodes(e.app, quantity)
	if err != nil {
		return nil, false, err
	}

	var tickets []models.Ticket
	wonRace := false

	err = e.app.RunInTransaction(func(txApp core.App) error {
		result, err := txApp.DB().Update("bookings", dbx.Params{
			"status":                string(models.BookingPaid),
			"payment_reference":    paymentRef,
			"payment_phone_number": coalesce(paymentPhone, bookingRecord.GetString("payment_phone_number")),
			"updated":               time.Now(),
		}, dbx.NewExp("id = {:id} AND status IN ({:pending}, {:awaiting})", dbx.Params{
			"id":       bookingID,
			"pending":  string(models.BookingPending),
			"awaiting": string(models.BookingAwaitingPayment),
		})).Execute()
		if err != nil {
			return status.New(status.InternalError, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return status.New(status.InternalError, err)
		}
		if affected == 0 {
			// Another writer won the race. Caller retries the
			// idempotency lookup outside this transaction.
			return status.New(status.AlreadyProcessed, nil)
		}
		wonRace = true

		tierRecord, err := txApp.FindRecordById("ticket_tiers", tierID)
		if err != nil {
			return status.New(status.InternalError, err)
		}
		tierRecord.Set("quantity_sold", tierRecord.GetInt("quantity_sold")+quantity)
		if err := txApp.Save(tierRecord); err != nil {
			return status.New(status.InternalError, err)
		}

		ticketCollection, err := txApp.FindCollectionByNameOrId("tickets")
		if err != nil {
			return status.New(status.InternalError, err)
		}
		for _, code := range codes {
			ticketRecord := core.NewRecord(ticketCollection)
			ticketRecord.Set("booking", bookingID)
			ticketRecord.Set("unique_code", code)
			ticketRecord.Set("is_redeemed", false)
			if err := txApp.Save(ticketRecord); err != nil {
				return status.New(status.InternalError, err)
			}
			tickets = append(tickets, recordToTicket(ticketRecord))
		}

		return nil
	})

	if err != nil {
		if status.Is(err, status.AlreadyProcessed) {
			existing, _, lookupErr := e.existingTicketsIfPaid(bookingID)
			if lookupErr != nil {
				return nil, false, lookupErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	monitoring.TrackBookingCompleted(bookingRecord.GetString("payment_method"), wonRace)
	return tickets, wonRace, nil
}

// Lookup returns the current state of a booking by id, for the webhook
// ingress to assemble a confirmation message after a winning completion.
func (e *Engine) Lookup(bookingID string) (models.Booking, error) {
	record, err := e.app.FindRecordById("bookings", bookingID)
	if err != nil {
		return models.Booking{}, status.New(status.NotFound, err)
	}
	return recordToBooking(record), nil
}

func (e *Engine) existingTicketsIfPaid(bookingID string) ([]models.Ticket, bool, error) {
	bookingRecord, err := e.app.FindRecordById("bookings", bookingID)
	if err != nil {
		return nil, false, nil
	}
	if bookingRecord.GetString("status") != string(models.BookingPaid) {
		return nil, false, nil
	}

	ticketRecords, err := e.app.FindRecordsByFilter("tickets", "booking = {:booking}", "+created", 0, 0, map[string]interface{}{
		"booking": bookingID,
	})
	if err != nil {
		return nil, false, status.New(status.InternalError, err)
	}
	if len(ticketRecords) == 0 {
		return nil, false, nil
	}

	tickets := make([]models.Ticket, 0, len(ticketRecords))
	for _, r := range ticketRecords {
		tickets = append(tickets, recordToTicket(r))
	}
	return tickets, true, nil
}

// CancelBooking reverses a PAID booking's inventory hold. Tickets are
// left in place as dangling receipts; only the booking's status and the
// tier's quantitySold change.
func (e *Engine) CancelBooking(bookingID, reason string) error {
	bookingRecord, err := e.app.FindRecordById("bookings", bookingID)
	if err != nil {
		return status.New(status.NotFound, err)
	}
	if bookingRecord.GetString("status") != string(models.BookingPaid) {
		return status.New(status.InvalidState, nil)
	}

	tierID := bookingRecord.GetString("tier")
	quantity := bookingRecord.GetInt("quantity")

	return e.app.RunInTransaction(func(txApp core.App) error {
		result, err := txApp.DB().Update("bookings", dbx.Params{
			"status":  string(models.BookingCancelled),
			"updated": time.Now(),
		}, dbx.NewExp("id = {:id} AND status = {:paid}", dbx.Params{
			"id":   bookingID,
			"paid": string(models.BookingPaid),
		})).Execute()
		if err != nil {
			return status.New(status.InternalError, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return status.New(status.InternalError, err)
		}
		if affected != 1 {
			return status.New(status.Conflict, nil)
		}

		tierRecord, err := txApp.FindRecordById("ticket_tiers", tierID)
		if err != nil {
			return status.New(status.InternalError, err)
		}
		tierRecord.Set("quantity_sold", tierRecord.GetInt("quantity_sold")-quantity)
		return txApp.Save(tierRecord)
	})
}

func coalesce(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}

func recordToBooking(r *core.Record) models.Booking {
	total, _ := decimal.NewFromString(r.GetString("total_amount"))
	return models.Booking{
		ID:                  r.Id,
		UserID:              r.GetString("user"),
		TierID:              r.GetString("tier"),
		Quantity:            r.GetInt("quantity"),
		TotalAmount:         total,
		Status:              models.BookingStatus(r.GetString("status")),
		PaymentMethod:       models.PaymentMethod(r.GetString("payment_method")),
		PaymentPhoneNumber:  r.GetString("payment_phone_number"),
		PaymentReference:    r.GetString("payment_reference"),
		ExpiryTime:          r.GetDateTime("expiry_time").Time(),
		CreatedAt:           r.GetDateTime("created").Time(),
		UpdatedAt:           r.GetDateTime("updated").Time(),
	}
}

func recordToTicket(r *core.Record) models.Ticket {
	return models.Ticket{
		ID:         r.Id,
		BookingID:  r.GetString("booking"),
		UniqueCode: r.GetString("unique_code"),
		IsRedeemed: r.GetBool("is_redeemed"),
		CreatedAt:  r.GetDateTime("created").Time(),
	}
}
