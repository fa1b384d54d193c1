package interactive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/hsAuth/internal"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned for unknown, expired or already satisfied sessions.
var ErrSessionNotFound = errors.New("interactive session not found")

// ErrRedisUnavailable wraps Redis transport failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionCorrupt is returned when a stored session blob cannot be parsed.
var ErrSessionCorrupt = errors.New("interactive session corrupt")

const (
	completeStatusNotFound  int64 = 0
	completeStatusPending   int64 = 1
	completeStatusSatisfied int64 = 2
	completeStatusCorrupt   int64 = 4
)

const flowSeparator = ","

const completeStageScript = `
local function parse(data)
  if string.byte(data, 1) ~= 1 or #data < 10 then
    return nil
  end
  local header = string.sub(data, 1, 9)
  local count = string.byte(data, 10)
  local idx = 11
  local stages = {}
  for i = 1, count do
    local len = string.byte(data, idx)
    if not len or len == 0 then
      return nil
    end
    idx = idx + 1
    if #data < idx + len - 1 then
      return nil
    end
    stages[i] = string.sub(data, idx, idx + len - 1)
    idx = idx + len
  end
  if idx ~= #data + 1 then
    return nil
  end
  return header, stages
end

local function encode(header, stages)
  local parts = {header, string.char(#stages)}
  for _, s in ipairs(stages) do
    parts[#parts + 1] = string.char(#s)
    parts[#parts + 1] = s
  end
  return table.concat(parts)
end

local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end

local header, stages = parse(data)
if not header then
  return {4}
end

local stage = ARGV[1]
local done = {}
for _, s in ipairs(stages) do
  done[s] = true
end
if not done[stage] then
  if #stages >= 255 then
    return {4}
  end
  stages[#stages + 1] = stage
  done[stage] = true
end

local updated = encode(header, stages)

for i = 2, #ARGV do
  local satisfied = false
  for s in string.gmatch(ARGV[i], "[^,]+") do
    satisfied = true
    if not done[s] then
      satisfied = false
      break
    end
  end
  if satisfied then
    redis.call("DEL", KEYS[1])
    return {2, updated}
  end
end

local ttl = redis.call("PTTL", KEYS[1])
if ttl == -1 then
  redis.call("SET", KEYS[1], updated)
elseif ttl > 0 then
  redis.call("SET", KEYS[1], updated, "PX", ttl)
else
  return {0}
end

return {1, updated}
`

var completeStageLua = redis.NewScript(completeStageScript)

// Store is a Redis-backed interactive session store.
//
//	Keys: <prefix>:<session id>
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a [Store]. An empty prefix defaults to "uia".
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "uia"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Create persists a fresh session with no completed stages.
func (s *Store) Create(ctx context.Context, ttl time.Duration) (*Session, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:        sid.String(),
		Completed: []string{},
		CreatedAt: time.Now().Unix(),
	}

	data, err := Encode(sess)
	if err != nil {
		return nil, err
	}

	ok, err := s.redis.SetNX(ctx, s.key(sess.ID), data, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !ok {
		return nil, errors.New("interactive session id collision")
	}

	return sess, nil
}

// Get loads a session without modifying it.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		return nil, ErrSessionNotFound
	}

	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	sess.ID = sessionID

	return sess, nil
}

// Complete adds stage to the session's completed set and evaluates flows.
// When some flow is satisfied the session is deleted in the same script and
// satisfied is true. Re-completing a stage is a no-op.
//
//	Performance: 1 EVALSHA.
func (s *Store) Complete(ctx context.Context, sessionID, stage string, flows [][]string) (*Session, bool, error) {
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		return nil, false, ErrSessionNotFound
	}
	if stage == "" || len(stage) > maxStageLen || strings.Contains(stage, flowSeparator) {
		return nil, false, errors.New("invalid stage id")
	}

	args := make([]interface{}, 0, len(flows)+1)
	args = append(args, stage)
	for _, flow := range flows {
		args = append(args, strings.Join(flow, flowSeparator))
	}

	result, err := completeStageLua.Run(ctx, s.redis, []string{s.key(sessionID)}, args...).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, false, fmt.Errorf("%w: invalid complete script response", ErrRedisUnavailable)
	}

	code, ok := parts[0].(int64)
	if !ok {
		return nil, false, fmt.Errorf("%w: invalid complete script status", ErrRedisUnavailable)
	}

	switch code {
	case completeStatusNotFound:
		return nil, false, ErrSessionNotFound
	case completeStatusCorrupt:
		return nil, false, ErrSessionCorrupt
	case completeStatusPending, completeStatusSatisfied:
	default:
		return nil, false, fmt.Errorf("%w: unknown complete script status %d", ErrRedisUnavailable, code)
	}

	if len(parts) < 2 {
		return nil, false, fmt.Errorf("%w: missing session payload", ErrRedisUnavailable)
	}

	var blob []byte
	switch v := parts[1].(type) {
	case string:
		blob = []byte(v)
	case []byte:
		blob = v
	default:
		return nil, false, fmt.Errorf("%w: invalid session payload", ErrRedisUnavailable)
	}

	sess, err := Decode(blob)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	sess.ID = sessionID

	return sess, code == completeStatusSatisfied, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
