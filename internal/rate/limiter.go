package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds login throttle tuning parameters.
type Config struct {
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

// bumpScript increments every counter in KEYS, arms the window TTL on the
// first hit of each, and returns the highest resulting count.
var bumpScript = redis.NewScript(`
local highest = 0
for _, key in ipairs(KEYS) do
  local n = redis.call("INCR", key)
  if n == 1 then
    redis.call("PEXPIRE", key, ARGV[1])
  end
  if n > highest then
    highest = n
  end
end
return highest
`)

// Limiter counts failed login attempts per user id and, optionally, per
// client IP using Redis fixed-window counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{redis: redisClient, config: cfg}
}

// Enabled reports whether any throttling is configured.
func (l *Limiter) Enabled() bool {
	return l != nil && l.config.MaxLoginAttempts > 0
}

// keys returns the counters that apply to a login by userID from ip.
func (l *Limiter) keys(userID, ip string) []string {
	keys := []string{userKey(userID)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, ipKey(ip))
	}
	return keys
}

// CheckLogin returns ErrRateLimited when the user, or the caller's IP, has
// used up its failed-attempt budget for the current window.
func (l *Limiter) CheckLogin(ctx context.Context, userID, ip string) error {
	if !l.Enabled() {
		return nil
	}
	values, err := l.redis.MGet(ctx, l.keys(userID, ip)...).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	for _, v := range values {
		if l.exhausted(counterValue(v)) {
			return ErrRateLimited
		}
	}
	return nil
}

// IncrementLogin records one failed attempt against every applicable
// counter.
func (l *Limiter) IncrementLogin(ctx context.Context, userID, ip string) error {
	if !l.Enabled() {
		return nil
	}
	window := l.config.LoginCooldownDuration.Milliseconds()
	highest, err := bumpScript.Run(ctx, l.redis, l.keys(userID, ip), window).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if highest > int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin clears the counters after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, userID, ip string) error {
	if !l.Enabled() {
		return nil
	}
	if err := l.redis.Del(ctx, l.keys(userID, ip)...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current failed-attempt count for a user.
func (l *Limiter) Attempts(ctx context.Context, userID string) (int, error) {
	n, err := l.redis.Get(ctx, userKey(userID)).Int()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return max(n, 0), nil
}

func (l *Limiter) exhausted(count int64) bool {
	return count >= int64(l.config.MaxLoginAttempts)
}

// counterValue reads an MGET reply; missing or garbled counters are zero.
func counterValue(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func userKey(userID string) string { return "hl:" + userID }

func ipKey(ip string) string { return "hli:" + ip }
