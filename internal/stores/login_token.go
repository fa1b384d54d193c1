package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/hsAuth/internal"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLoginTokenNotFound         = errors.New("login token not found")
	ErrLoginTokenRedisUnavailable = errors.New("login token redis unavailable")
)

var consumeLoginTokenLua = redis.NewScript(`
local user = redis.call('GET', KEYS[1])
if not user then
  return {err='not_found'}
end
redis.call('DEL', KEYS[1])
return user
`)

// LoginTokenStore keeps single-use tokens accepted by the m.login.token
// login type.
type LoginTokenStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewLoginTokenStore(redisClient redis.UniversalClient, prefix string) *LoginTokenStore {
	if prefix == "" {
		prefix = "lt"
	}
	return &LoginTokenStore{redis: redisClient, prefix: prefix}
}

func (s *LoginTokenStore) key(token string) string {
	return s.prefix + ":" + internal.HashToken(token)
}

// Save binds token to userID for ttl.
func (s *LoginTokenStore) Save(ctx context.Context, token, userID string, ttl time.Duration) error {
	if token == "" || userID == "" {
		return errors.New("login token requires token and user")
	}
	ok, err := s.redis.SetNX(ctx, s.key(token), userID, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginTokenRedisUnavailable, err)
	}
	if !ok {
		return errors.New("login token collision")
	}
	return nil
}

// Consume returns the owning user id and deletes the token.
func (s *LoginTokenStore) Consume(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrLoginTokenNotFound
	}

	result, err := consumeLoginTokenLua.Run(ctx, s.redis, []string{s.key(token)}).Result()
	if err != nil {
		if err.Error() == "not_found" {
			return "", ErrLoginTokenNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrLoginTokenRedisUnavailable, err)
	}

	userID, ok := result.(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("%w: unexpected lua result type", ErrLoginTokenRedisUnavailable)
	}
	return userID, nil
}
