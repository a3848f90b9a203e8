package catalog

import (
	"testing"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tests"
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

func seedEvent(t *testing.T, app core.App, title string, category models.EventCategory, active bool, startTime time.Time) string {
	t.Helper()
	events, err := app.FindCollectionByNameOrId("events")
	require.NoError(t, err)
	event := core.NewRecord(events)
	event.Set("title", title)
	event.Set("venue", "Main Hall")
	event.Set("active", active)
	event.Set("category", string(category))
	event.Set("start_time", startTime.UTC().Format("2006-01-02 15:04:05.000Z"))
	require.NoError(t, app.Save(event))
	return event.Id
}

func seedTier(t *testing.T, app core.App, eventID, name, price string) string {
	t.Helper()
	tiers, err := app.FindCollectionByNameOrId("ticket_tiers")
	require.NoError(t, err)
	tier := core.NewRecord(tiers)
	tier.Set("event", eventID)
	tier.Set("name", name)
	tier.Set("unit_price", price)
	tier.Set("quantity", 100)
	tier.Set("quantity_sold", 0)
	require.NoError(t, app.Save(tier))
	return tier.Id
}

func TestActiveCategories_OnlyListsCategoriesWithOfferedEvents(t *testing.T) {
	app := newTestApp(t)
	future := time.Now().Add(24 * time.Hour)
	seedEvent(t, app, "Spring Gala", models.CategoryUniversity, true, future)
	seedEvent(t, app, "Jazz Night", models.CategoryConcert, true, future)
	seedEvent(t, app, "Cancelled Mixer", models.CategorySocial, false, future)

	cat := New(app)
	categories, err := cat.ActiveCategories()
	require.NoError(t, err)

	assert.Contains(t, categories, models.CategoryUniversity)
	assert.Contains(t, categories, models.CategoryConcert)
	assert.NotContains(t, categories, models.CategorySocial)
}

func TestEventsByCategory_ExcludesPastEvents(t *testing.T) {
	app := newTestApp(t)
	past := time.Now().Add(-24 * time.Hour)
	future := time.Now().Add(24 * time.Hour)
	seedEvent(t, app, "Already Happened", models.CategoryClub, true, past)
	upcoming := seedEvent(t, app, "Upcoming Mixer", models.CategoryClub, true, future)

	cat := New(app)
	events, err := cat.EventsByCategory(models.CategoryClub)
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, upcoming, events[0].ID)
}

func TestEventsByCategory_SortedByStartTimeAscending(t *testing.T) {
	app := newTestApp(t)
	later := time.Now().Add(48 * time.Hour)
	sooner := time.Now().Add(24 * time.Hour)
	seedEvent(t, app, "Later Show", models.CategoryConcert, true, later)
	seedEvent(t, app, "Sooner Show", models.CategoryConcert, true, sooner)

	cat := New(app)
	events, err := cat.EventsByCategory(models.CategoryConcert)
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, "Sooner Show", events[0].Title)
	assert.Equal(t, "Later Show", events[1].Title)
}

func TestEvent_NotFoundWhenPast(t *testing.T) {
	app := newTestApp(t)
	past := time.Now().Add(-time.Hour)
	eventID := seedEvent(t, app, "Expired Mixer", models.CategorySocial, true, past)

	cat := New(app)
	_, err := cat.Event(eventID)
	assert.Error(t, err)
}

func TestTiers_SortedByUnitPriceAscending(t *testing.T) {
	app := newTestApp(t)
	eventID := seedEvent(t, app, "Festival", models.CategoryConcert, true, time.Now().Add(24*time.Hour))
	seedTier(t, app, eventID, "VIP", "500.00")
	seedTier(t, app, eventID, "General", "100.00")

	cat := New(app)
	tiers, err := cat.Tiers(eventID)
	require.NoError(t, err)

	require.Len(t, tiers, 2)
	assert.Equal(t, "General", tiers[0].Name)
	assert.Equal(t, "VIP", tiers[1].Name)
}

func TestTier_ReturnsAvailability(t *testing.T) {
	app := newTestApp(t)
	eventID := seedEvent(t, app, "Festival", models.CategoryConcert, true, time.Now().Add(24*time.Hour))
	tierID := seedTier(t, app, eventID, "General", "100.00")

	cat := New(app)
	tier, err := cat.Tier(tierID)
	require.NoError(t, err)
	assert.Equal(t, 100, tier.Available())
}
