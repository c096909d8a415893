package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
)

func newTestQuota(t *testing.T, limit int) (*DailyQuota, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	client := &Client{rdb: db, logger: logging.NewNopLogger()}
	q := NewDailyQuota(client, logging.NewNopLogger(), "analysis", limit)
	q.now = func() time.Time {
		return time.Date(2024, 7, 14, 10, 30, 0, 0, time.UTC)
	}
	return q, mock
}

func TestDailyQuotaConsumeFirstUseArmsExpiry(t *testing.T) {
	q, mock := newTestQuota(t, 10)
	key := "heatquest:quota:analysis:alice:2024-07-14"

	mock.ExpectIncrBy(key, 2).SetVal(2)
	mock.ExpectExpireAt(key, time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)).SetVal(true)

	granted, err := q.Consume(context.Background(), "alice", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, granted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDailyQuotaConsumeWithinLimit(t *testing.T) {
	q, mock := newTestQuota(t, 10)
	key := "heatquest:quota:analysis:alice:2024-07-14"

	// Counter already at 5; no expiry set on subsequent use.
	mock.ExpectIncrBy(key, 2).SetVal(7)

	granted, err := q.Consume(context.Background(), "alice", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, granted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDailyQuotaConsumePartialGrant(t *testing.T) {
	q, mock := newTestQuota(t, 10)
	key := "heatquest:quota:analysis:bob:2024-07-14"

	// 9 consumed so far; asking for 2 grants only 1 and refunds the rest.
	mock.ExpectIncrBy(key, 2).SetVal(11)
	mock.ExpectIncrBy(key, -1).SetVal(10)

	granted, err := q.Consume(context.Background(), "bob", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, granted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDailyQuotaConsumeExhausted(t *testing.T) {
	q, mock := newTestQuota(t, 10)
	key := "heatquest:quota:analysis:bob:2024-07-14"

	mock.ExpectIncrBy(key, 2).SetVal(12)
	mock.ExpectIncrBy(key, -2).SetVal(10)

	granted, err := q.Consume(context.Background(), "bob", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, granted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDailyQuotaConsumeZero(t *testing.T) {
	q, mock := newTestQuota(t, 10)

	granted, err := q.Consume(context.Background(), "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, granted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDailyQuotaRemaining(t *testing.T) {
	q, mock := newTestQuota(t, 10)
	key := "heatquest:quota:analysis:alice:2024-07-14"

	mock.ExpectGet(key).SetVal("4")
	remaining, err := q.Remaining(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 6, remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDailyQuotaRemainingUnused(t *testing.T) {
	q, mock := newTestQuota(t, 10)
	key := "heatquest:quota:analysis:alice:2024-07-14"

	mock.ExpectGet(key).RedisNil()
	remaining, err := q.Remaining(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 10, remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}
