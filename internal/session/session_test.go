package session

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_MissReturnsIdle(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, time.Minute)

	mock.ExpectGet(key("254712345678")).RedisNil()

	got := store.Get(context.Background(), "254712345678")
	assert.Equal(t, StateIdle, got.State)
	assert.Empty(t, got.Data)
}

func TestUpdate_ShallowMergesDataBag(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, time.Minute)

	mock.ExpectGet(key("254712345678")).RedisNil()
	mock.Regexp().ExpectSet(key("254712345678"), `.*`, time.Minute).SetVal("OK")

	err := store.Update(context.Background(), "254712345678", StateSelectingCategory, map[string]interface{}{
		KeyEventID: "ev-1",
	})
	require.NoError(t, err)

	existing := `{"state":"SELECTING_CATEGORY","data":{"eventId":"ev-1"}}`
	mock.ExpectGet(key("254712345678")).SetVal(existing)
	mock.Regexp().ExpectSet(key("254712345678"), `.*`, time.Minute).SetVal("OK")

	err = store.Update(context.Background(), "254712345678", StateSelectingTier, map[string]interface{}{
		KeyTierID: "tier-1",
	})
	require.NoError(t, err)
}

func TestClear_ResetsToIdle(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, time.Minute)

	existing := `{"state":"AWAITING_STK_PUSH","data":{"tempBookingId":"b-1"}}`
	mock.ExpectGet(key("254712345678")).SetVal(existing)
	mock.Regexp().ExpectSet(key("254712345678"), `.*`, time.Minute).SetVal("OK")

	err := store.Clear(context.Background(), "254712345678")
	require.NoError(t, err)
}

func TestGet_FallsBackToInProcessMapOnRedisFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, time.Minute)

	mock.ExpectGet(key("254700000000")).SetErr(assertErr)
	got := store.Get(context.Background(), "254700000000")
	assert.Equal(t, StateIdle, got.State)

	store.fallbackSet("254700000000", Session{State: StateBrowsingEvents, Data: map[string]interface{}{KeyEventID: "ev-9"}})

	mock.ExpectGet(key("254700000000")).SetErr(assertErr)
	got = store.Get(context.Background(), "254700000000")
	assert.Equal(t, StateBrowsingEvents, got.State)
	assert.Equal(t, "ev-9", got.Data[KeyEventID])
}

func TestFallbackSweepsExpiredEntries(t *testing.T) {
	client, _ := redismock.NewClientMock()
	store := NewRedisStore(client, time.Millisecond)

	store.fallbackSet("254711111111", Session{State: StateIdle, Data: map[string]interface{}{}})
	time.Sleep(5 * time.Millisecond)

	got := store.fallbackGet("254711111111")
	assert.Equal(t, StateIdle, got.State)
	assert.Empty(t, got.Data)

	store.mu.Lock()
	_, stillPresent := store.fallback["254711111111"]
	store.mu.Unlock()
	assert.False(t, stillPresent)
}

var assertErr = errRedisDown{}

type errRedisDown struct{}

func (errRedisDown) Error() string { return "redis down" }
