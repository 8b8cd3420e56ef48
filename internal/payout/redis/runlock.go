// Package redis holds the Redis-backed payout run lock shared by every process.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const DefaultKey = "care-payments:payout-run"

// releaseScript deletes the key only when it still holds our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// RunLock is a SET NX PX lock. The TTL bounds how long a crashed run can block the next one.
type RunLock struct {
	client goredis.Cmdable
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

func NewRunLock(client goredis.Cmdable, key string, ttl time.Duration, logger *slog.Logger) *RunLock {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RunLock{client: client, key: key, ttl: ttl, logger: logger}
}

func (l *RunLock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, internal.NewInternalError("Failed to acquire payout run lock", fmt.Errorf("redis setnx %s: %w", l.key, err))
	}
	if !ok {
		return nil, internal.ErrPayoutRunInFlight
	}

	return func() {
		released, err := l.client.Eval(context.Background(), releaseScript, []string{l.key}, token).Int64()
		if err != nil {
			l.logger.Error("failed to release payout run lock", "key", l.key, "error", err)
			return
		}
		if released == 0 {
			l.logger.Warn("payout run lock expired before release", "key", l.key, "ttl", l.ttl)
		}
	}, nil
}
