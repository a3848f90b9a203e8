package customer

import (
	"testing"

	"github.com/pocketbase/pocketbase/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "ticketbot/migrations"
)

func newTestApp(t *testing.T) *tests.TestApp {
	t.Helper()
	app, err := tests.NewTestApp()
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)
	return app
}

func TestResolveOrCreate_FirstInteractionCreatesRecord(t *testing.T) {
	app := newTestApp(t)
	r := New(app)

	id, err := r.ResolveOrCreate("+254712345678")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	record, err := app.FindRecordById("customers", id)
	require.NoError(t, err)
	assert.Equal(t, "+254712345678", record.GetString("normalized_phone"))
	assert.Empty(t, record.GetString("display_name"))
}

func TestResolveOrCreate_SubsequentLookupReusesRecord(t *testing.T) {
	app := newTestApp(t)
	r := New(app)

	first, err := r.ResolveOrCreate("+254712345678")
	require.NoError(t, err)

	second, err := r.ResolveOrCreate("+254712345678")
	require.NoError(t, err)

	assert.Equal(t, first, second)

	records, err := app.FindRecordsByFilter("customers", "normalized_phone = {:phone}", "", 0, 0, map[string]interface{}{
		"phone": "+254712345678",
	})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestResolveOrCreate_DistinctPhonesGetDistinctRecords(t *testing.T) {
	app := newTestApp(t)
	r := New(app)

	a, err := r.ResolveOrCreate("+254712345678")
	require.NoError(t, err)
	b, err := r.ResolveOrCreate("+254799999999")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestUpdateDisplayName_NoopOnEmptyValue(t *testing.T) {
	app := newTestApp(t)
	r := New(app)

	id, err := r.ResolveOrCreate("+254712345678")
	require.NoError(t, err)
	require.NoError(t, r.UpdateDisplayName(id, "Aisha"))

	require.NoError(t, r.UpdateDisplayName(id, ""))

	record, err := app.FindRecordById("customers", id)
	require.NoError(t, err)
	assert.Equal(t, "Aisha", record.GetString("display_name"))
}

func TestUpdateDisplayName_UpdatesOnNewValue(t *testing.T) {
	app := newTestApp(t)
	r := New(app)

	id, err := r.ResolveOrCreate("+254712345678")
	require.NoError(t, err)

	require.NoError(t, r.UpdateDisplayName(id, "Aisha"))
	require.NoError(t, r.UpdateDisplayName(id, "Aisha Noor"))

	record, err := app.FindRecordById("customers", id)
	require.NoError(t, err)
	assert.Equal(t, "Aisha Noor", record.GetString("display_name"))
}

func TestUpdateDisplayName_UnknownCustomerReturnsError(t *testing.T) {
	app := newTestApp(t)
	r := New(app)

	err := r.UpdateDisplayName("missing-id", "Aisha")
	assert.Error(t, err)
}
