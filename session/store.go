package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	revokeStatusNotFound    int64 = 0
	revokeStatusRevoked     int64 = 1
	revokeStatusInvalidBlob int64 = 4

	rotateStatusNotFound    int64 = 0
	rotateStatusExpired     int64 = 1
	rotateStatusRevoked     int64 = 2
	rotateStatusRotated     int64 = 3
	rotateStatusInvalidBlob int64 = 4
	rotateStatusConflict    int64 = 5
)

const sessionLuaHelpers = `
local function read_be64(s, i)
  local b1, b2, b3, b4, b5, b6, b7, b8 = string.byte(s, i, i + 7)
  if not b8 then
    return nil
  end
  return ((((((((b1 * 256) + b2) * 256 + b3) * 256 + b4) * 256 + b5) * 256 + b6) * 256 + b7) * 256 + b8)
end

local function valid_header(data)
  return data and #data >= 18 and string.byte(data, 1) == 1
end

local function set_revoked(key, data)
  local updated = string.sub(data, 1, 1) .. "\1" .. string.sub(data, 3)
  local ttl = redis.call("PTTL", key)
  if ttl > 0 then
    redis.call("SET", key, updated, "PX", ttl)
  else
    redis.call("SET", key, updated)
  end
end
`

// revokeSessionScript flips the revoked flag while keeping the key's TTL.
// KEYS[1] = session key
const revokeSessionScript = sessionLuaHelpers + `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
if not valid_header(data) then
  return 4
end
if string.byte(data, 2) ~= 1 then
  set_revoked(KEYS[1], data)
end
return 1
`

var revokeSessionLua = redis.NewScript(revokeSessionScript)

// rotateSessionScript revokes the old session and creates the next one only
// if the old session is still active.
// KEYS[1] = old session key
// KEYS[2] = next session key
// ARGV[1] = now (unix millis)
// ARGV[2] = next session blob
// ARGV[3] = next session ttl (millis)
const rotateSessionScript = sessionLuaHelpers + `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
if not valid_header(data) then
  return 4
end
if string.byte(data, 2) == 1 then
  return 2
end

local expires_at = read_be64(data, 11)
if not expires_at then
  return 4
end
if expires_at < tonumber(ARGV[1]) then
  return 1
end

if redis.call("EXISTS", KEYS[2]) == 1 then
  return 5
end

set_revoked(KEYS[1], data)
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 3
`

var rotateSessionLua = redis.NewScript(rotateSessionScript)

// Store is a Redis-backed [Repository] and [Rotator].
//
// Keys live for the session lifetime plus retention, so revoked and expired
// sessions stay resolvable for that long after expiry. Rotation touches two
// keys in one script and therefore needs both keys on the same node; on
// Redis Cluster use a single-shard deployment or the SQL backend.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewStore creates a session [Store]. prefix sets the key namespace and
// retention how long records outlive their expiry.
func NewStore(redisClient redis.UniversalClient, prefix string, retention time.Duration) *Store {
	if prefix == "" {
		prefix = "cs"
	}
	if retention < 0 {
		retention = 0
	}
	return &Store{
		redis:     redisClient,
		prefix:    prefix,
		retention: retention,
		now:       time.Now,
	}
}

// WithClock replaces the clock used to compute key TTLs.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Store) key(hash TokenHash) string {
	return s.prefix + ":" + hash.String()
}

func (s *Store) ttlFor(sess *Session) time.Duration {
	ttl := sess.ExpiresAt.Sub(s.now()) + s.retention
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

// Create persists sess under its token hash. An existing key is never
// overwritten.
func (s *Store) Create(ctx context.Context, sess *Session) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	ok, err := s.redis.SetNX(ctx, s.key(sess.TokenHash), data, s.ttlFor(sess)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

// FindByToken loads the session stored under hash.
func (s *Store) FindByToken(ctx context.Context, hash TokenHash) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(hash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	sess.TokenHash = hash
	return sess, nil
}

// Revoke marks the session revoked without changing its remaining lifetime.
func (s *Store) Revoke(ctx context.Context, hash TokenHash) error {
	status, err := revokeSessionLua.Run(ctx, s.redis, []string{s.key(hash)}).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch status {
	case revokeStatusRevoked:
		return nil
	case revokeStatusNotFound:
		return ErrNotFound
	case revokeStatusInvalidBlob:
		return ErrCorrupt
	default:
		return fmt.Errorf("%w: unexpected revoke status %d", ErrUnavailable, status)
	}
}

// Rotate atomically revokes the session under oldHash and creates next.
//
//	Performance: 1 Redis EVALSHA.
func (s *Store) Rotate(ctx context.Context, oldHash TokenHash, next *Session, now time.Time) error {
	data, err := Encode(next)
	if err != nil {
		return err
	}

	status, err := rotateSessionLua.Run(ctx, s.redis,
		[]string{s.key(oldHash), s.key(next.TokenHash)},
		now.UnixMilli(),
		data,
		s.ttlFor(next).Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch status {
	case rotateStatusRotated:
		return nil
	case rotateStatusNotFound:
		return ErrNotFound
	case rotateStatusExpired:
		return ErrExpired
	case rotateStatusRevoked:
		return ErrRevoked
	case rotateStatusConflict:
		return ErrConflict
	case rotateStatusInvalidBlob:
		return ErrCorrupt
	default:
		return fmt.Errorf("%w: unexpected rotate status %d", ErrUnavailable, status)
	}
}
