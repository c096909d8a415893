package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
)

// DailyQuota tracks a per-user counter that resets at midnight UTC.  It backs
// the daily analysis allowance: each analyzed cell consumes one unit.
type DailyQuota struct {
	client *Client
	logger logging.Logger
	name   string
	limit  int

	// now is swapped out in tests.
	now func() time.Time
}

// NewDailyQuota builds a quota named name (part of the Redis key) with the
// given daily limit.
func NewDailyQuota(client *Client, log logging.Logger, name string, limit int) *DailyQuota {
	return &DailyQuota{
		client: client,
		logger: log.Named("quota"),
		name:   name,
		limit:  limit,
		now:    time.Now,
	}
}

func (q *DailyQuota) key(userID string) string {
	day := q.now().UTC().Format("2006-01-02")
	return fmt.Sprintf("heatquest:quota:%s:%s:%s", q.name, userID, day)
}

// midnight returns the next UTC midnight, when the counter key expires.
func (q *DailyQuota) midnight() time.Time {
	t := q.now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}

// Remaining reports how many units the user has left today.
func (q *DailyQuota) Remaining(ctx context.Context, userID string) (int, error) {
	val, err := q.client.Get(ctx, q.key(userID)).Int()
	if err != nil {
		if err == ErrClientClosed {
			return 0, err
		}
		// Missing key means nothing consumed yet.
		val = 0
	}
	remaining := q.limit - val
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Consume takes up to n units from the user's daily allowance and returns how
// many were actually granted.  The counter key is created on first use and
// expires at the next UTC midnight.
func (q *DailyQuota) Consume(ctx context.Context, userID string, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	key := q.key(userID)

	total, err := q.client.IncrBy(ctx, key, int64(n)).Result()
	if err != nil {
		return 0, err
	}
	if total == int64(n) {
		// First consumption today; arm the midnight reset.
		if err := q.client.ExpireAt(ctx, key, q.midnight()).Err(); err != nil {
			q.logger.Warn("Failed to set quota expiry",
				logging.String("key", key), logging.Err(err))
		}
	}

	over := int(total) - q.limit
	if over <= 0 {
		return n, nil
	}
	granted := n - over
	if granted < 0 {
		granted = 0
	}
	// Units past the limit were never usable; hand them back so Remaining
	// stays accurate.
	if over > 0 {
		refund := over
		if refund > n {
			refund = n
		}
		if err := q.client.IncrBy(ctx, key, int64(-refund)).Err(); err != nil {
			q.logger.Warn("Failed to refund over-limit quota units",
				logging.String("key", key), logging.Err(err))
		}
	}
	return granted, nil
}
