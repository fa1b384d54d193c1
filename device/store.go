package device

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/MrEthical07/hsAuth/internal"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned for unknown credentials or devices.
var ErrNotFound = errors.New("device not found")

// ErrRedisUnavailable wraps Redis transport failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

const upsertScript = `
local previous = redis.call("GET", KEYS[1])
if previous and previous ~= ARGV[1] then
  redis.call("DEL", ARGV[3] .. previous)
end
redis.call("SET", KEYS[2], ARGV[2])
redis.call("SET", KEYS[1], ARGV[1])
redis.call("SADD", KEYS[3], ARGV[4])
return 1
`

var upsertLua = redis.NewScript(upsertScript)

const deleteScript = `
local removed = redis.call("DEL", KEYS[1])
if redis.call("GET", KEYS[2]) == ARGV[1] then
  redis.call("DEL", KEYS[2])
  redis.call("SREM", KEYS[3], ARGV[2])
end
return removed
`

var deleteLua = redis.NewScript(deleteScript)

// Store is a Redis-backed device store.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a [Store]. An empty prefix defaults to "dev".
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "dev"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

func (s *Store) tokenKeyPrefix() string {
	return s.prefix + ":t:"
}

func (s *Store) tokenKey(tokenHash string) string {
	return s.tokenKeyPrefix() + tokenHash
}

// deviceKey length-prefixes userID so ids containing ':' cannot collide.
func (s *Store) deviceKey(userID, deviceID string) string {
	return s.prefix + ":d:" + strconv.Itoa(len(userID)) + ":" + userID + ":" + deviceID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// FindByToken resolves a credential to its device record.
func (s *Store) FindByToken(ctx context.Context, token string) (*Device, error) {
	if token == "" {
		return nil, ErrNotFound
	}

	d, err := s.load(ctx, s.tokenKey(internal.HashToken(token)))
	if err != nil {
		return nil, err
	}
	d.Token = token
	return d, nil
}

// Upsert stores d keyed by (UserID, DeviceID), replacing any previous
// credential of that device. A blank DisplayName keeps the stored one.
func (s *Store) Upsert(ctx context.Context, d *Device) error {
	if d == nil || d.UserID == "" || d.DeviceID == "" || d.Token == "" {
		return errors.New("device upsert requires user, device and token")
	}

	record := *d
	if record.DisplayName == "" {
		if existing, err := s.Get(ctx, d.UserID, d.DeviceID); err == nil {
			record.DisplayName = existing.DisplayName
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	blob, err := encodeRecord(&record)
	if err != nil {
		return err
	}

	hash := internal.HashToken(d.Token)
	err = upsertLua.Run(ctx, s.redis,
		[]string{s.deviceKey(d.UserID, d.DeviceID), s.tokenKey(hash), s.userKey(d.UserID)},
		hash,
		blob,
		s.tokenKeyPrefix(),
		d.DeviceID,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get returns the device record for (userID, deviceID).
func (s *Store) Get(ctx context.Context, userID, deviceID string) (*Device, error) {
	hash, err := s.redis.Get(ctx, s.deviceKey(userID, deviceID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.load(ctx, s.tokenKey(hash))
}

// UpdateLastSeen records the latest client address and time for the
// credential. A missing record is left missing.
func (s *Store) UpdateLastSeen(ctx context.Context, token, ip string, ts int64) error {
	key := s.tokenKey(internal.HashToken(token))

	d, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	d.LastSeenIP = ip
	d.LastSeenTS = ts

	blob, err := encodeRecord(d)
	if err != nil {
		return err
	}

	ok, err := s.redis.SetXX(ctx, key, blob, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// DeleteToken revokes a credential. Revoking an unknown credential is not an error.
func (s *Store) DeleteToken(ctx context.Context, token string) error {
	hash := internal.HashToken(token)
	d, err := s.load(ctx, s.tokenKey(hash))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return s.delete(ctx, hash, d.UserID, d.DeviceID)
}

// Delete removes the device and its credential.
func (s *Store) Delete(ctx context.Context, userID, deviceID string) error {
	hash, err := s.redis.Get(ctx, s.deviceKey(userID, deviceID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.delete(ctx, hash, userID, deviceID)
}

// ListForUser returns every device owned by userID.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]Device, error) {
	deviceIDs, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]Device, 0, len(deviceIDs))
	for _, deviceID := range deviceIDs {
		d, err := s.Get(ctx, userID, deviceID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

func (s *Store) delete(ctx context.Context, hash, userID, deviceID string) error {
	err := deleteLua.Run(ctx, s.redis,
		[]string{s.tokenKey(hash), s.deviceKey(userID, deviceID), s.userKey(userID)},
		hash,
		deviceID,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, key string) (*Device, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	d, err := decodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt device record: %v", ErrRedisUnavailable, err)
	}
	return d, nil
}
