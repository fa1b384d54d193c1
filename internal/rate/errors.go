package rate

import "errors"

var (
	// ErrRateLimited means a failed-login budget is exhausted for the window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps any Redis failure while counting.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
