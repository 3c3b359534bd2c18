package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	createStatusConflict int64 = 0
	createStatusCreated  int64 = 1

	markUsedStatusNotFound int64 = -1
	markUsedStatusConsumed int64 = 0
	markUsedStatusMarked   int64 = 1

	sweepBatchSize = 512
)

const createRecordScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "sid", ARGV[1],
  "pr", ARGV[2],
  "ca", ARGV[3],
  "ea", ARGV[4],
  "u", "0",
  "iv", "0",
  "rf", ARGV[5])
redis.call("SADD", KEYS[2], ARGV[6])
redis.call("ZADD", KEYS[3], ARGV[4], ARGV[6])
local ttl = tonumber(ARGV[7])
if ttl > 0 then
  redis.call("PEXPIRE", KEYS[1], ttl)
  redis.call("PEXPIRE", KEYS[2], ttl)
end
return 1
`

var createRecordLua = redis.NewScript(createRecordScript)

const markUsedScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local state = redis.call("HMGET", KEYS[1], "u", "iv")
if state[1] ~= "0" or state[2] ~= "0" then
  return 0
end
redis.call("HSET", KEYS[1], "u", "1")
return 1
`

var markUsedLua = redis.NewScript(markUsedScript)

const invalidateSessionScript = `
local ids = redis.call("SMEMBERS", KEYS[1])
for _, id in ipairs(ids) do
  local key = ARGV[1] .. id
  if redis.call("EXISTS", key) == 1 then
    redis.call("HSET", key, "iv", "1")
  end
end
return #ids
`

var invalidateSessionLua = redis.NewScript(invalidateSessionScript)

const sweepExpiredScript = `
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
local deleted = 0
for _, id in ipairs(ids) do
  local key = ARGV[3] .. id
  local sid = redis.call("HGET", key, "sid")
  if redis.call("DEL", key) == 1 then
    deleted = deleted + 1
  end
  if sid then
    redis.call("SREM", ARGV[4] .. sid, id)
  end
  redis.call("ZREM", KEYS[1], id)
end
return {#ids, deleted}
`

var sweepExpiredLua = redis.NewScript(sweepExpiredScript)

// RedisStore is a Redis-backed [Store]. Records live in per-token hashes, a
// per-session set supports cascading invalidation, and a ZSET keyed by expiry
// drives the sweeper. MarkUsed and InvalidateSession run as Lua scripts, so
// their compare-and-set semantics hold under arbitrary client concurrency.
//
//	Performance: every method is a single round-trip (sweep batches by 512).
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisStore creates a [RedisStore]. prefix namespaces all keys; retention
// keeps consumed records alive past their expiry (as a key-TTL backstop) so
// late replays still register as reuse rather than NotFound.
func NewRedisStore(client redis.UniversalClient, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "rg"
	}
	if retention < 0 {
		retention = 0
	}
	return &RedisStore{
		redis:     client,
		prefix:    prefix,
		retention: retention,
	}
}

func (s *RedisStore) tokenKey(tokenID string) string {
	return s.prefix + ":t:" + tokenID
}

func (s *RedisStore) sessionKey(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *RedisStore) tokenKeyPrefix() string {
	return s.prefix + ":t:"
}

func (s *RedisStore) sessionKeyPrefix() string {
	return s.prefix + ":s:"
}

func (s *RedisStore) expiryKey() string {
	return s.prefix + ":exp"
}

// Create inserts rec atomically and stamps the TTL backstop.
func (s *RedisStore) Create(ctx context.Context, rec *Record) error {
	ttl := time.Until(time.Unix(rec.ExpiresAt, 0)) + s.retention
	var ttlMillis int64
	if ttl > 0 {
		ttlMillis = ttl.Milliseconds()
	}

	result, err := createRecordLua.Run(
		ctx,
		s.redis,
		[]string{s.tokenKey(rec.TokenID), s.sessionKey(rec.SessionID), s.expiryKey()},
		rec.SessionID,
		rec.Principal,
		strconv.FormatInt(rec.CreatedAt, 10),
		strconv.FormatInt(rec.ExpiresAt, 10),
		rec.RotatedFrom,
		rec.TokenID,
		strconv.FormatInt(ttlMillis, 10),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if result == createStatusConflict {
		return ErrConflict
	}
	return nil
}

// Get fetches and decodes the record hash for tokenID.
func (s *RedisStore) Get(ctx context.Context, tokenID string) (*Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.tokenKey(tokenID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decodeRecordHash(tokenID, fields)
}

// MarkUsed runs the conditional consume as a Lua compare-and-set.
func (s *RedisStore) MarkUsed(ctx context.Context, tokenID string) error {
	result, err := markUsedLua.Run(ctx, s.redis, []string{s.tokenKey(tokenID)}).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch result {
	case markUsedStatusNotFound:
		return ErrNotFound
	case markUsedStatusConsumed:
		return ErrAlreadyConsumed
	case markUsedStatusMarked:
		return nil
	default:
		return fmt.Errorf("%w: unknown mark-used script status %d", ErrUnavailable, result)
	}
}

// InvalidateSession marks every record in the session index as invalidated.
func (s *RedisStore) InvalidateSession(ctx context.Context, sessionID string) error {
	_, err := invalidateSessionLua.Run(
		ctx,
		s.redis,
		[]string{s.sessionKey(sessionID)},
		s.tokenKeyPrefix(),
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// DeleteExpiredBefore drains the expiry index in batches until no entry
// scores below cutoff.
func (s *RedisStore) DeleteExpiredBefore(ctx context.Context, cutoff int64) (int64, error) {
	var total int64
	for {
		result, err := sweepExpiredLua.Run(
			ctx,
			s.redis,
			[]string{s.expiryKey()},
			strconv.FormatInt(cutoff, 10),
			strconv.Itoa(sweepBatchSize),
			s.tokenKeyPrefix(),
			s.sessionKeyPrefix(),
		).Int64Slice()
		if err != nil {
			return total, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if len(result) != 2 {
			return total, fmt.Errorf("%w: invalid sweep script response", ErrUnavailable)
		}

		total += result[1]
		if result[0] < sweepBatchSize {
			return total, nil
		}
	}
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}

func decodeRecordHash(tokenID string, fields map[string]string) (*Record, error) {
	createdAt, err := strconv.ParseInt(fields["ca"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptRecord, err)
	}
	expiresAt, err := strconv.ParseInt(fields["ea"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptRecord, err)
	}

	return &Record{
		TokenID:     tokenID,
		SessionID:   fields["sid"],
		Principal:   fields["pr"],
		CreatedAt:   createdAt,
		ExpiresAt:   expiresAt,
		Used:        fields["u"] == "1",
		Invalidated: fields["iv"] == "1",
		RotatedFrom: fields["rf"],
	}, nil
}

var errCorruptRecord = errors.New("refresh token record corrupt")

var _ Store = (*RedisStore)(nil)
