package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// releaseLua deletes the lease only when it still carries the caller's token.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// extendLua refreshes the TTL only when the caller still holds the lease.
const extendLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

// LockManager implements domain.LockManager with SET NX and token-checked
// release, so a holder never releases someone else's lease.
type LockManager struct {
	c         *Client
	releaseSc *redis.Script
	extendSc  *redis.Script
	logger    *slog.Logger
}

// NewLockManager creates a LockManager.
func NewLockManager(c *Client, logger *slog.Logger) *LockManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &LockManager{
		c:         c,
		releaseSc: redis.NewScript(releaseLua),
		extendSc:  redis.NewScript(extendLua),
		logger:    logger.With(slog.String("component", "lease")),
	}
}

// Acquire takes the lease for key for ttl. It returns domain.ErrLockHeld when
// another holder owns it. While held, the lease is renewed every ttl/3 until
// the returned unlock is called; unlock is safe to call more than once.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lk := lm.c.Key("lease", key)

	ok, err := lm.c.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("redis: lease %s: %w", key, domain.ErrLockHeld)
	}

	renewCtx, stopRenew := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		lm.renew(renewCtx, key, lk, token, ttl)
	}()

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			stopRenew()
			<-done
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = lm.releaseSc.Run(releaseCtx, lm.c.rdb, []string{lk}, token).Err()
		})
	}
	return unlock, nil
}

func (lm *LockManager) renew(ctx context.Context, key, lk, token string, ttl time.Duration) {
	every := ttl / 3
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := lm.extendSc.Run(ctx, lm.c.rdb, []string{lk}, token, ttl.Milliseconds()).Int()
			if err != nil {
				lm.logger.WarnContext(ctx, "lease: renew failed",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
				continue
			}
			if n == 0 {
				lm.logger.ErrorContext(ctx, "lease: lost", slog.String("key", key))
				return
			}
		}
	}
}

var _ domain.LockManager = (*LockManager)(nil)
