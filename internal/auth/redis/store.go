// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

// Package redis stores password reset records in Redis. Each record is a
// hash that expires with the token, and consumption is a Lua script so the
// check and the write happen atomically on the server.
package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/cinebook/authcore/internal/auth"
)

// DefaultKeyPrefix namespaces reset records.
const DefaultKeyPrefix = "authcore:reset:"

// Hash fields. Times are unix milliseconds so the script can compare them
// without losing precision.
const (
	fieldID         = "id"
	fieldAccountID  = "account_id"
	fieldExpiresAt  = "expires_at_ms"
	fieldCreatedAt  = "created_at_ms"
	fieldConsumedAt = "consumed_at_ms"
)

var consumeScript = goredis.NewScript(`
local expires = redis.call('HGET', KEYS[1], 'expires_at_ms')
if not expires then
	return 0
end
if redis.call('HEXISTS', KEYS[1], 'consumed_at_ms') == 1 then
	return 0
end
if tonumber(ARGV[1]) >= tonumber(expires) then
	return 0
end
redis.call('HSET', KEYS[1], 'consumed_at_ms', ARGV[1])
return 1
`)

// ResetTokenStore implements auth.ResetTokenStore on Redis.
type ResetTokenStore struct {
	client goredis.UniversalClient
	prefix string
}

// NewResetTokenStore creates a store using DefaultKeyPrefix.
func NewResetTokenStore(client goredis.UniversalClient) *ResetTokenStore {
	return &ResetTokenStore{client: client, prefix: DefaultKeyPrefix}
}

// NewClient parses a redis:// URL into a client.
func NewClient(url string) (*goredis.Client, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("REDIS_CONFIG_INVALID").With("operation", "parse redis url").Wrap(err)
	}
	return goredis.NewClient(opt), nil
}

func (s *ResetTokenStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

// Put stores rec and lets Redis expire it at rec.ExpiresAt.
func (s *ResetTokenStore) Put(ctx context.Context, rec *auth.ResetRecord) error {
	key := s.key(rec.TokenHash)
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldID, rec.ID.String(),
			fieldAccountID, rec.AccountID,
			fieldExpiresAt, rec.ExpiresAt.UnixMilli(),
			fieldCreatedAt, rec.CreatedAt.UnixMilli(),
		)
		pipe.PExpireAt(ctx, key, rec.ExpiresAt)
		return nil
	})
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "store reset record").
			With("account_id", rec.AccountID).
			Wrap(err)
	}
	return nil
}

// Get returns the record for tokenHash or auth.ErrNotFound.
func (s *ResetTokenStore) Get(ctx context.Context, tokenHash string) (*auth.ResetRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key(tokenHash)).Result()
	if err != nil {
		return nil, oops.Code("RESET_GET_FAILED").With("operation", "load reset record").Wrap(err)
	}
	if len(fields) == 0 {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	rec, err := decodeRecord(tokenHash, fields)
	if err != nil {
		return nil, oops.Code("RESET_DECODE_FAILED").With("operation", "decode reset record").Wrap(err)
	}
	return rec, nil
}

// TryConsume marks the record consumed if it is still usable at now.
func (s *ResetTokenStore) TryConsume(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	n, err := consumeScript.Run(ctx, s.client, []string{s.key(tokenHash)}, now.UnixMilli()).Int()
	if err != nil {
		return false, oops.Code("RESET_CONSUME_FAILED").With("operation", "consume reset record").Wrap(err)
	}
	return n == 1, nil
}

// DeleteExpired removes records whose expiry is before the given time.
// Redis expires keys on its own; this catches records left behind when the
// server clock lags the application clock.
func (s *ResetTokenStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ms, err := s.client.HGet(ctx, key, fieldExpiresAt).Int64()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return deleted, oops.Code("RESET_DELETE_EXPIRED_FAILED").With("key", key).Wrap(err)
		}
		if ms >= before.UnixMilli() {
			continue
		}
		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return deleted, oops.Code("RESET_DELETE_EXPIRED_FAILED").With("key", key).Wrap(err)
		}
		deleted += n
	}
	if err := iter.Err(); err != nil {
		return deleted, oops.Code("RESET_DELETE_EXPIRED_FAILED").With("operation", "scan reset records").Wrap(err)
	}
	return deleted, nil
}

func decodeRecord(tokenHash string, fields map[string]string) (*auth.ResetRecord, error) {
	id, err := ulid.Parse(fields[fieldID])
	if err != nil {
		return nil, oops.With("field", fieldID).Wrap(err)
	}
	rec := &auth.ResetRecord{ID: id, TokenHash: tokenHash}

	if rec.AccountID, err = strconv.ParseInt(fields[fieldAccountID], 10, 64); err != nil {
		return nil, oops.With("field", fieldAccountID).Wrap(err)
	}
	if rec.ExpiresAt, err = parseMillis(fields[fieldExpiresAt]); err != nil {
		return nil, oops.With("field", fieldExpiresAt).Wrap(err)
	}
	if rec.CreatedAt, err = parseMillis(fields[fieldCreatedAt]); err != nil {
		return nil, oops.With("field", fieldCreatedAt).Wrap(err)
	}
	if raw, ok := fields[fieldConsumedAt]; ok {
		consumed, err := parseMillis(raw)
		if err != nil {
			return nil, oops.With("field", fieldConsumedAt).Wrap(err)
		}
		rec.ConsumedAt = &consumed
	}
	return rec, nil
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err //nolint:wrapcheck // wrapped by decodeRecord
	}
	return time.UnixMilli(ms).UTC(), nil
}

// Compile-time interface checks.
var (
	_ auth.ResetTokenStore  = (*ResetTokenStore)(nil)
	_ auth.ResetTokenPurger = (*ResetTokenStore)(nil)
)
