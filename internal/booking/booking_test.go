package booking

import (
	"sync"
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tests"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "ticketbot/migrations"

	"ticketbot/internal/models"
)

func newTestApp(t *testing.T) *tests.TestApp {
	t.Helper()
	app, err := tests.NewTestApp()
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)
	return app
}

func seedEventAndTier(t *testing.T, app core.App, capacity int, price string) (eventID, tierID string) {
	t.Helper()

	events, err := app.FindCollectionByNameOrId("events")
	require.NoError(t, err)
	event := core.NewRecord(events)
	event.Set("title", "Campus Gala")
	event.Set("venue", "Main Hall")
	event.Set("active", true)
	event.Set("category", "UNIVERSITY")
	event.Set("start_time", "2030-01-01 18:00:00.000Z")
	require.NoError(t, app.Save(event))

	tiers, err := app.FindCollectionByNameOrId("ticket_tiers")
	require.NoError(t, err)
	tier := core.NewRecord(tiers)
	tier.Set("event", event.Id)
	tier.Set("name", "General")
	tier.Set("unit_price", price)
	tier.Set("quantity", capacity)
	tier.Set("quantity_sold", 0)
	require.NoError(t, app.Save(tier))

	return event.Id, tier.Id
}

func seedCustomer(t *testing.T, app core.App) string {
	t.Helper()
	customers, err := app.FindCollectionByNameOrId("customers")
	require.NoError(t, err)
	customer := core.NewRecord(customers)
	customer.Set("normalized_phone", "254712345678")
	require.NoError(t, app.Save(customer))
	return customer.Id
}

func TestCompleteBooking_ConcurrentWebhooksSettleOnce(t *testing.T) {
	app := newTestApp(t)
	_, tierID := seedEventAndTier(t, app, 10, "500.00")
	userID := seedCustomer(t, app)

	engine := New(app)
	b, err := engine.CreatePending(userID, tierID, 3, decimal.NewFromInt(1500), models.PaymentMpesa, "254712345678")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]models.Ticket, 2)
	wonFlags := make([]bool, 2)

	refs := []string{"ref-A", "ref-B"}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tickets, won, err := engine.CompleteBooking(b.ID, refs[i], "")
			require.NoError(t, err)
			results[i] = tickets
			wonFlags[i] = won
		}(i)
	}
	wg.Wait()

	assert.Len(t, results[0], 3)
	assert.Len(t, results[1], 3)
	assert.ElementsMatch(t, codesOf(results[0]), codesOf(results[1]))

	assert.True(t, wonFlags[0] != wonFlags[1], "exactly one invocation should observe the winning transition")

	tierRecord, err := app.FindRecordById("ticket_tiers", tierID)
	require.NoError(t, err)
	assert.Equal(t, 3, tierRecord.GetInt("quantity_sold"))

	allTickets, err := app.FindRecordsByFilter("tickets", "booking = {:b}", "", 0, 0, map[string]interface{}{"b": b.ID})
	require.NoError(t, err)
	assert.Len(t, allTickets, 3)
}

func TestCompleteBooking_IdempotentOnAlreadyPaid(t *testing.T) {
	app := newTestApp(t)
	_, tierID := seedEventAndTier(t, app, 5, "200.00")
	userID := seedCustomer(t, app)

	engine := New(app)
	b, err := engine.CreatePending(userID, tierID, 1, decimal.NewFromInt(200), models.PaymentMpesa, "254712345678")
	require.NoError(t, err)

	first, won, err := engine.CompleteBooking(b.ID, "ref-1", "")
	require.NoError(t, err)
	assert.True(t, won)
	assert.Len(t, first, 1)

	second, won2, err := engine.CompleteBooking(b.ID, "ref-2", "")
	require.NoError(t, err)
	assert.False(t, won2)
	assert.Equal(t, codesOf(first), codesOf(second))
}

func TestCancelBooking_ReversesInventory(t *testing.T) {
	app := newTestApp(t)
	_, tierID := seedEventAndTier(t, app, 10, "300.00")
	userID := seedCustomer(t, app)

	engine := New(app)
	b, err := engine.CreatePending(userID, tierID, 4, decimal.NewFromInt(1200), models.PaymentMpesa, "254712345678")
	require.NoError(t, err)

	_, _, err = engine.CompleteBooking(b.ID, "ref-1", "")
	require.NoError(t, err)

	require.NoError(t, engine.CancelBooking(b.ID, "refund"))

	bookingRecord, err := app.FindRecordById("bookings", b.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.BookingCancelled), bookingRecord.GetString("status"))

	tierRecord, err := app.FindRecordById("ticket_tiers", tierID)
	require.NoError(t, err)
	assert.Equal(t, 0, tierRecord.GetInt("quantity_sold"))

	tickets, err := app.FindRecordsByFilter("tickets", "booking = {:b}", "", 0, 0, map[string]interface{}{"b": b.ID})
	require.NoError(t, err)
	assert.Len(t, tickets, 4)
}

func codesOf(tickets []models.Ticket) []string {
	out := make([]string, len(tickets))
	for i, t := range tickets {
		out[i] = t.UniqueCode
	}
	return out
}
