// Package catalog implements the read-only event and ticket-tier lookups
// the conversation controller and booking engine consult (spec §4.4). It
// queries PocketBase's record store directly, the same app.Dao()/
// core.App query pattern the teacher sketches in main.go's migration
// scaffolding, generalized from commented-out collection setup into live
// query code.
package catalog

import (
	"sort"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticketbot/internal/models"
	"ticketbot/internal/status"
)

type Catalog struct {
	app core.App
}

func New(app core.App) *Catalog {
	return &Catalog{app: app}
}

// ActiveCategories returns the categories with at least one offered
// event, in the fixed display order defined by models.Categories.
func (c *Catalog) ActiveCategories() ([]models.EventCategory, error) {
	events, err := c.offeredEvents("")
	if err != nil {
		return nil, err
	}

	present := make(map[models.EventCategory]bool)
	for _, e := range events {
		present[e.Category] = true
	}

	out := make([]models.EventCategory, 0, len(present))
	for _, cat := range models.Categories() {
		if present[cat] {
			out = append(out, cat)
		}
	}
	return out, nil
}

// EventsByCategory returns offered events in the given category, sorted
// by start time ascending.
func (c *Catalog) EventsByCategory(category models.EventCategory) ([]models.Event, error) {
	return c.offeredEvents(string(category))
}

func (c *Catalog) offeredEvents(category string) ([]models.Event, error) {
	filter := "active = true && start_time > {:now}"
	params := map[string]interface{}{"now": time.Now()}
	if category != "" {
		filter += " && category = {:category}"
		params["category"] = category
	}

	records, err := c.app.FindRecordsByFilter("events", filter, "+start_time", 0, 0, params)
	if err != nil {
		return nil, status.New(status.InternalError, err)
	}

	out := make([]models.Event, 0, len(records))
	for _, r := range records {
		out = append(out, recordToEvent(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// Event fetches a single event by id. Returns a status.NotFound error if
// the event does not exist or is no longer offered.
func (c *Catalog) Event(id string) (models.Event, error) {
	record, err := c.app.FindRecordById("events", id)
	if err != nil {
		return models.Event{}, status.New(status.NotFound, err)
	}
	event := recordToEvent(record)
	if !event.Offered(time.Now()) {
		return models.Event{}, status.New(status.NotFound, nil)
	}
	return event, nil
}

// Tiers returns the ticket tiers for an event, in ascending price order.
func (c *Catalog) Tiers(eventID string) ([]models.TicketTier, error) {
	records, err := c.app.FindRecordsByFilter("ticket_tiers", "event = {:event}", "+unit_price", 0, 0, map[string]interface{}{
		"event": eventID,
	})
	if err != nil {
		return nil, status.New(status.InternalError, err)
	}

	out := make([]models.TicketTier, 0, len(records))
	for _, r := range records {
		out = append(out, recordToTier(r))
	}
	// unit_price is stored as a text field, so the DB's "+unit_price" sort
	// is lexicographic, not numeric ("1000.00" < "999.00"); re-sort by the
	// decoded decimal value the same way offeredEvents re-sorts by start
	// time after its query.
	sort.Slice(out, func(i, j int) bool { return out[i].UnitPrice.LessThan(out[j].UnitPrice) })
	return out, nil
}

// Tier fetches a single tier by id.
func (c *Catalog) Tier(id string) (models.TicketTier, error) {
	record, err := c.app.FindRecordById("ticket_tiers", id)
	if err != nil {
		return models.TicketTier{}, status.New(status.NotFound, err)
	}
	return recordToTier(record), nil
}

func recordToEvent(r *core.Record) models.Event {
	return models.Event{
		ID:          r.Id,
		Title:       r.GetString("title"),
		Description: r.GetString("description"),
		Venue:       r.GetString("venue"),
		StartTime:   r.GetDateTime("start_time").Time(),
		EndTime:     r.GetDateTime("end_time").Time(),
		Active:      r.GetBool("active"),
		Category:    models.EventCategory(r.GetString("category")),
	}
}

func recordToTier(r *core.Record) models.TicketTier {
	price, _ := decimal.NewFromString(r.GetString("unit_price"))
	return models.TicketTier{
		ID:            r.Id,
		EventID:       r.GetString("event"),
		Name:          r.GetString("name"),
		UnitPrice:     price,
		Quantity:      r.GetInt("quantity"),
		QuantitySold:  r.GetInt("quantity_sold"),
	}
}
