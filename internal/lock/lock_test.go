package lock

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestAcquire_SucceedsWhenUnheld(t *testing.T) {
	client, mock := redismock.NewClientMock()
	reg := NewRegistry(client, time.Second)

	mock.ExpectSetNX(prefix+"254712345678", "owner-1", time.Second).SetVal(true)

	assert.True(t, reg.Acquire(context.Background(), "254712345678", "owner-1"))
}

func TestAcquire_FailsWhenHeld(t *testing.T) {
	client, mock := redismock.NewClientMock()
	reg := NewRegistry(client, time.Second)

	mock.ExpectSetNX(prefix+"254712345678", "owner-2", time.Second).SetVal(false)

	assert.False(t, reg.Acquire(context.Background(), "254712345678", "owner-2"))
}

func TestAcquire_DegradesOpenOnRedisError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	reg := NewRegistry(client, time.Second)

	mock.ExpectSetNX(prefix+"254712345678", "owner-3", time.Second).SetErr(errDown)

	assert.True(t, reg.Acquire(context.Background(), "254712345678", "owner-3"))
}

var errDown = errTestErr("redis unreachable")

type errTestErr string

func (e errTestErr) Error() string { return string(e) }
