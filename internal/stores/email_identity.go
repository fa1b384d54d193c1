package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const emailIdentityRecordVersionV1 = 1

var (
	ErrEmailIdentityNotFound         = errors.New("email identity session not found")
	ErrEmailIdentitySecretMismatch   = errors.New("email identity secret mismatch")
	ErrEmailIdentityAttemptsExceeded = errors.New("email identity attempts exceeded")
	ErrEmailIdentityNotValidated     = errors.New("email identity not validated")
	ErrEmailIdentityRedisUnavailable = errors.New("email identity redis unavailable")
)

// submitEmailIdentityLua marks a validation session confirmed when the
// submitted code matches.
// KEYS[1] = record key
// ARGV[1] = client secret hash (32 bytes)
// ARGV[2] = code hash (32 bytes)
// ARGV[3] = max attempts
// ARGV[4] = current unix timestamp
//
// Layout: version(1) validated(1) attempts(2) expiresAt(8) clientHash(32) codeHash(32) addrLen(2) addr
var submitEmailIdentityLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end
if string.byte(data, 1) ~= 1 or #data < 78 then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

local maxAttempts = tonumber(ARGV[3])
local nowUnix = tonumber(ARGV[4])

local e = {string.byte(data, 5, 12)}
local expiresAt = 0
for _, b in ipairs(e) do
  expiresAt = expiresAt * 256 + b
end
if nowUnix > expiresAt then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

if string.sub(data, 13, 44) ~= ARGV[1] then
  return {err='secret_mismatch'}
end

local ttlMs = redis.call('PTTL', KEYS[1])
if ttlMs <= 0 then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

if string.sub(data, 45, 76) ~= ARGV[2] then
  local attempts = string.byte(data, 3) * 256 + string.byte(data, 4) + 1
  if attempts >= maxAttempts then
    redis.call('DEL', KEYS[1])
    return {err='attempts_exceeded'}
  end
  local updated = string.sub(data, 1, 2) .. string.char(math.floor(attempts / 256), attempts % 256) .. string.sub(data, 5)
  redis.call('SET', KEYS[1], updated, 'PX', ttlMs)
  return {err='secret_mismatch'}
end

local validated = string.sub(data, 1, 1) .. string.char(1) .. string.sub(data, 3)
redis.call('SET', KEYS[1], validated, 'PX', ttlMs)
return validated
`)

// consumeEmailIdentityLua deletes a confirmed session and returns it, so a
// validation proves ownership exactly once. Unconfirmed sessions and wrong
// secrets leave the record in place.
// KEYS[1] = record key
// ARGV[1] = client secret hash (32 bytes)
// ARGV[2] = current unix timestamp
var consumeEmailIdentityLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end
if string.byte(data, 1) ~= 1 or #data < 78 then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

local expiresAt = 0
for _, b in ipairs({string.byte(data, 5, 12)}) do
  expiresAt = expiresAt * 256 + b
end
if tonumber(ARGV[2]) > expiresAt then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

if string.sub(data, 13, 44) ~= ARGV[1] then
  return {err='secret_mismatch'}
end
if string.byte(data, 2) ~= 1 then
  return {err='not_validated'}
end

redis.call('DEL', KEYS[1])
return data
`)

// EmailIdentityRecord is one email address validation session.
type EmailIdentityRecord struct {
	Address          string
	ClientSecretHash [32]byte
	CodeHash         [32]byte
	ExpiresAt        int64
	Attempts         uint16
	Validated        bool
}

// EmailIdentityStore persists email validation sessions referenced by the
// m.login.email.identity stage.
type EmailIdentityStore struct {
	redis       redis.UniversalClient
	prefix      string
	maxAttempts int
}

func NewEmailIdentityStore(redisClient redis.UniversalClient, prefix string, maxAttempts int) *EmailIdentityStore {
	if prefix == "" {
		prefix = "eid"
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &EmailIdentityStore{
		redis:       redisClient,
		prefix:      prefix,
		maxAttempts: maxAttempts,
	}
}

func (s *EmailIdentityStore) key(sid string) string {
	return s.prefix + ":" + sid
}

func (s *EmailIdentityStore) Save(ctx context.Context, sid string, record *EmailIdentityRecord, ttl time.Duration) error {
	encoded, err := encodeEmailIdentityRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(sid), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrEmailIdentityRedisUnavailable, err)
	}
	return nil
}

// Submit confirms the session when codeHash matches. Wrong codes count
// toward the attempt limit; the session is deleted once it is reached.
func (s *EmailIdentityStore) Submit(ctx context.Context, sid string, clientSecretHash, codeHash [32]byte) (*EmailIdentityRecord, error) {
	result, err := submitEmailIdentityLua.Run(ctx, s.redis,
		[]string{s.key(sid)},
		string(clientSecretHash[:]),
		string(codeHash[:]),
		s.maxAttempts,
		time.Now().Unix(),
	).Result()
	if err != nil {
		switch err.Error() {
		case "not_found":
			return nil, ErrEmailIdentityNotFound
		case "secret_mismatch":
			return nil, ErrEmailIdentitySecretMismatch
		case "attempts_exceeded":
			return nil, ErrEmailIdentityAttemptsExceeded
		default:
			return nil, fmt.Errorf("%w: %v", ErrEmailIdentityRedisUnavailable, err)
		}
	}

	data, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected lua result type", ErrEmailIdentityRedisUnavailable)
	}

	record, err := decodeEmailIdentityRecord([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmailIdentityRedisUnavailable, err)
	}

	// Lua string comparison is not constant-time.
	if subtle.ConstantTimeCompare(record.CodeHash[:], codeHash[:]) != 1 ||
		subtle.ConstantTimeCompare(record.ClientSecretHash[:], clientSecretHash[:]) != 1 {
		return nil, ErrEmailIdentitySecretMismatch
	}

	return record, nil
}

// Consume removes and returns a confirmed session when clientSecretHash
// matches. A second Consume of the same session reports not found.
func (s *EmailIdentityStore) Consume(ctx context.Context, sid string, clientSecretHash [32]byte) (*EmailIdentityRecord, error) {
	result, err := consumeEmailIdentityLua.Run(ctx, s.redis,
		[]string{s.key(sid)},
		string(clientSecretHash[:]),
		time.Now().Unix(),
	).Text()
	if err != nil {
		switch err.Error() {
		case "not_found":
			return nil, ErrEmailIdentityNotFound
		case "secret_mismatch":
			return nil, ErrEmailIdentitySecretMismatch
		case "not_validated":
			return nil, ErrEmailIdentityNotValidated
		default:
			return nil, fmt.Errorf("%w: %v", ErrEmailIdentityRedisUnavailable, err)
		}
	}

	record, err := decodeEmailIdentityRecord([]byte(result))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmailIdentityRedisUnavailable, err)
	}
	if subtle.ConstantTimeCompare(record.ClientSecretHash[:], clientSecretHash[:]) != 1 {
		return nil, ErrEmailIdentitySecretMismatch
	}
	return record, nil
}

// Get loads a session if clientSecretHash matches.
func (s *EmailIdentityStore) Get(ctx context.Context, sid string, clientSecretHash [32]byte) (*EmailIdentityRecord, error) {
	data, err := s.redis.Get(ctx, s.key(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmailIdentityNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrEmailIdentityRedisUnavailable, err)
	}

	record, err := decodeEmailIdentityRecord(data)
	if err != nil {
		return nil, ErrEmailIdentityNotFound
	}
	if record.ExpiresAt < time.Now().Unix() {
		return nil, ErrEmailIdentityNotFound
	}
	if subtle.ConstantTimeCompare(record.ClientSecretHash[:], clientSecretHash[:]) != 1 {
		return nil, ErrEmailIdentitySecretMismatch
	}

	return record, nil
}

func encodeEmailIdentityRecord(record *EmailIdentityRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(emailIdentityRecordVersionV1)
	if record.Validated {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	buf.Write(record.ClientSecretHash[:])
	buf.Write(record.CodeHash[:])

	if len(record.Address) > 65535 {
		return nil, errors.New("email identity address too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Address))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Address)

	return buf.Bytes(), nil
}

func decodeEmailIdentityRecord(data []byte) (*EmailIdentityRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != emailIdentityRecordVersionV1 {
		return nil, errors.New("invalid email identity record version")
	}

	validated, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &EmailIdentityRecord{Validated: validated == 1}

	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.ClientSecretHash[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	var addrLen uint16
	if err := binary.Read(reader, binary.BigEndian, &addrLen); err != nil {
		return nil, err
	}
	addr := make([]byte, addrLen)
	if _, err := io.ReadFull(reader, addr); err != nil {
		return nil, err
	}
	record.Address = string(addr)

	return record, nil
}
