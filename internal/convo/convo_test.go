package convo

import (
	"context"
	"sync"
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "ticketbot/migrations"

	"ticketbot/internal/booking"
	"ticketbot/internal/catalog"
	"ticketbot/internal/customer"
	"ticketbot/internal/messaging"
	"ticketbot/internal/session"
)

// fakeSessionStore is an in-process session.Store, letting tests control
// and inspect conversation state precisely without a Redis dependency.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]session.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]session.Session)}
}

func (f *fakeSessionStore) Get(ctx context.Context, phone string) session.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[phone]
	if !ok {
		return session.Session{State: session.StateIdle, Data: map[string]interface{}{}}
	}
	return s
}

func (f *fakeSessionStore) Update(ctx context.Context, phone string, state session.State, dataPatch map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[phone]
	s.State = state
	if s.Data == nil {
		s.Data = map[string]interface{}{}
	}
	for k, v := range dataPatch {
		s.Data[k] = v
	}
	f.sessions[phone] = s
	return nil
}

func (f *fakeSessionStore) Clear(ctx context.Context, phone string) error {
	return f.Update(ctx, phone, session.StateIdle, nil)
}

func (f *fakeSessionStore) set(phone string, state session.State, data map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[phone] = session.Session{State: state, Data: data}
}

type sentList struct {
	body     string
	sections []messaging.ListSection
}

type fakeClient struct {
	mu    sync.Mutex
	texts []string
	lists []sentList
}

func (f *fakeClient) SendText(ctx context.Context, phone, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, body)
	return nil
}
func (f *fakeClient) SendButtons(ctx context.Context, phone, body string, buttons []messaging.Button) error {
	return nil
}
func (f *fakeClient) SendList(ctx context.Context, phone, body, buttonText string, sections []messaging.ListSection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, sentList{body: body, sections: sections})
	return nil
}
func (f *fakeClient) SendImage(ctx context.Context, phone, mediaID, caption string) error { return nil }
func (f *fakeClient) UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error) {
	return "media-1", nil
}
func (f *fakeClient) MarkRead(ctx context.Context, messageID string) error { return nil }

func newTestApp(t *testing.T) *tests.TestApp {
	t.Helper()
	app, err := tests.NewTestApp()
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)
	return app
}

func seedEventAndTier(t *testing.T, app core.App, category, title, price string) (eventID, tierID string) {
	t.Helper()

	events, err := app.FindCollectionByNameOrId("events")
	require.NoError(t, err)
	event := core.NewRecord(events)
	event.Set("title", title)
	event.Set("venue", "Main Hall")
	event.Set("active", true)
	event.Set("category", category)
	event.Set("start_time", "2030-01-01 18:00:00.000Z")
	require.NoError(t, app.Save(event))

	tiers, err := app.FindCollectionByNameOrId("ticket_tiers")
	require.NoError(t, err)
	tier := core.NewRecord(tiers)
	tier.Set("event", event.Id)
	tier.Set("name", "General")
	tier.Set("unit_price", price)
	tier.Set("quantity", 10)
	tier.Set("quantity_sold", 0)
	require.NoError(t, app.Save(tier))

	return event.Id, tier.Id
}

func newController(app core.App, sessions *fakeSessionStore, client *fakeClient) *Controller {
	return New(sessions, nil, catalog.New(app), customer.New(app), booking.New(app), nil, nil, client, 0)
}

func TestHandle_IdleSendsCategoryList(t *testing.T) {
	app := newTestApp(t)
	seedEventAndTier(t, app, "UNIVERSITY", "Campus Gala", "500.00")

	sessions := newFakeSessionStore()
	client := &fakeClient{}
	c := newController(app, sessions, client)

	c.Handle(context.Background(), "254712345678", "hi", "", "")

	assert.Len(t, client.lists, 1)
	assert.Equal(t, session.StateSelectingCategory, sessions.Get(context.Background(), "254712345678").State)
}

func TestHandle_CategorySelectionListsEvents(t *testing.T) {
	app := newTestApp(t)
	eventID, _ := seedEventAndTier(t, app, "UNIVERSITY", "Campus Gala", "500.00")

	sessions := newFakeSessionStore()
	sessions.set("254712345678", session.StateSelectingCategory, map[string]interface{}{})
	client := &fakeClient{}
	c := newController(app, sessions, client)

	c.Handle(context.Background(), "254712345678", "", "UNIVERSITY", "")

	require.Len(t, client.lists, 1)
	require.Len(t, client.lists[0].sections, 1)
	found := false
	for _, row := range client.lists[0].sections[0].Rows {
		if row.ID == eventID {
			found = true
		}
	}
	assert.True(t, found, "expected the seeded event to appear in the list")

	sess := sessions.Get(context.Background(), "254712345678")
	assert.Equal(t, session.StateBrowsingEvents, sess.State)
	assert.Equal(t, "UNIVERSITY", sess.Data[session.KeySelectedCategory])
}

func TestHandle_TierReselectionOnStaleEventID(t *testing.T) {
	app := newTestApp(t)
	eventAID, _ := seedEventAndTier(t, app, "UNIVERSITY", "Campus Gala", "500.00")
	eventBID, tierBID := seedEventAndTier(t, app, "UNIVERSITY", "Spring Formal", "700.00")

	sessions := newFakeSessionStore()
	sessions.set("254712345678", session.StateSelectingTier, map[string]interface{}{
		session.KeyEventID: eventAID,
	})
	client := &fakeClient{}
	c := newController(app, sessions, client)

	// The platform delivers eventB's id (e.g. a stale list reply), not a
	// tier id belonging to eventA.
	c.Handle(context.Background(), "254712345678", "", eventBID, "")

	require.Len(t, client.lists, 1)
	found := false
	for _, row := range client.lists[0].sections[0].Rows {
		if row.ID == tierBID {
			found = true
		}
	}
	assert.True(t, found, "expected the re-opened event's tier to appear")

	sess := sessions.Get(context.Background(), "254712345678")
	assert.Equal(t, session.StateSelectingTier, sess.State)
	assert.Equal(t, eventBID, sess.Data[session.KeyEventID])
}

func TestHandle_GlobalCommandResetsFromAnyState(t *testing.T) {
	app := newTestApp(t)
	seedEventAndTier(t, app, "UNIVERSITY", "Campus Gala", "500.00")

	sessions := newFakeSessionStore()
	sessions.set("254712345678", session.StateSelectingQuantity, map[string]interface{}{
		session.KeyTierID: "whatever",
	})
	client := &fakeClient{}
	c := newController(app, sessions, client)

	c.Handle(context.Background(), "254712345678", "menu", "", "")

	assert.Equal(t, session.StateSelectingCategory, sessions.Get(context.Background(), "254712345678").State)
	assert.Len(t, client.lists, 1)
}
