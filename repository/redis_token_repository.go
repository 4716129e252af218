// file: repository/redis_token_repository.go

package repository

import (
	"context"
	"errors"
	"fmt"
	"go-auth-api/logger"
	"go-auth-api/model"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultRedisPrefix = "refresh:"

// Key layout under the prefix:
//
//	token:<value>  hash {id, user_id, token, expires_at, revoked, created_at}, times in unix ms
//	id:<id>        string <value>
//	user:<uid>     set of <value>
//
// Hash and id keys expire retention after the record's own expiry, so an
// expired record is still reported as expired for that long.

const createTokenScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "id", ARGV[1], "user_id", ARGV[2], "token", ARGV[3],
  "expires_at", ARGV[4], "revoked", "0", "created_at", ARGV[5])
redis.call("PEXPIREAT", KEYS[1], ARGV[6])
redis.call("SET", KEYS[2], ARGV[3])
redis.call("PEXPIREAT", KEYS[2], ARGV[6])
redis.call("SADD", KEYS[3], ARGV[3])
return 1
`

const consumeTokenScript = `
local prefix = ARGV[1]
local now_ms = tonumber(ARGV[2])
local data = redis.call("HMGET", KEYS[1], "id", "user_id", "token", "expires_at", "revoked", "created_at")
if not data[1] then
  return false
end
if data[5] == "1" then
  return false
end
if tonumber(data[4]) <= now_ms then
  return false
end

local next_key = nil
if ARGV[3] == "1" then
  next_key = prefix .. "token:" .. ARGV[5]
  if redis.call("EXISTS", next_key) == 1 then
    return redis.error_reply("duplicate token")
  end
end

redis.call("DEL", KEYS[1])
redis.call("DEL", prefix .. "id:" .. data[1])
redis.call("SREM", prefix .. "user:" .. data[2], data[3])

if next_key then
  redis.call("HSET", next_key, "id", ARGV[4], "user_id", data[2], "token", ARGV[5],
    "expires_at", ARGV[6], "revoked", "0", "created_at", ARGV[7])
  redis.call("PEXPIREAT", next_key, ARGV[8])
  redis.call("SET", prefix .. "id:" .. ARGV[4], ARGV[5])
  redis.call("PEXPIREAT", prefix .. "id:" .. ARGV[4], ARGV[8])
  redis.call("SADD", prefix .. "user:" .. data[2], ARGV[5])
end
return data
`

const revokeAllScript = `
local members = redis.call("SMEMBERS", KEYS[1])
local changed = 0
for _, value in ipairs(members) do
  local key = ARGV[1] .. "token:" .. value
  if redis.call("EXISTS", key) == 1 then
    if redis.call("HGET", key, "revoked") ~= "1" then
      redis.call("HSET", key, "revoked", "1")
      changed = changed + 1
    end
  else
    redis.call("SREM", KEYS[1], value)
  end
end
return changed
`

const deleteByIDScript = `
local value = redis.call("GET", KEYS[1])
if not value then
  return 0
end
local key = ARGV[1] .. "token:" .. value
local uid = redis.call("HGET", key, "user_id")
redis.call("DEL", key, KEYS[1])
if uid then
  redis.call("SREM", ARGV[1] .. "user:" .. uid, value)
end
return 1
`

var (
	createTokenLua  = redis.NewScript(createTokenScript)
	consumeTokenLua = redis.NewScript(consumeTokenScript)
	revokeAllLua    = redis.NewScript(revokeAllScript)
	deleteByIDLua   = redis.NewScript(deleteByIDScript)
)

// RedisTokenRepository implements ITokenRepository on Redis. Every state
// transition runs as a single Lua script.
type RedisTokenRepository struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisTokenRepository creates a store that keeps records for retention
// after they expire.
func NewRedisTokenRepository(client redis.UniversalClient, retention time.Duration) *RedisTokenRepository {
	return &RedisTokenRepository{
		client:    client,
		prefix:    defaultRedisPrefix,
		retention: retention,
	}
}

func (r *RedisTokenRepository) tokenKey(value string) string { return r.prefix + "token:" + value }
func (r *RedisTokenRepository) idKey(id uuid.UUID) string    { return r.prefix + "id:" + id.String() }
func (r *RedisTokenRepository) userKey(uid uuid.UUID) string { return r.prefix + "user:" + uid.String() }

func (r *RedisTokenRepository) keepUntil(expiresAt time.Time) int64 {
	return expiresAt.Add(r.retention).UnixMilli()
}

func (r *RedisTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	log := logger.Log.WithFields(logrus.Fields{
		"token_id":   token.ID,
		"user_id":    token.UserID,
		"expires_at": token.ExpiresAt,
	})
	log.Info("Executing script to create a new refresh token")

	created, err := createTokenLua.Run(ctx, r.client,
		[]string{r.tokenKey(token.Token), r.idKey(token.ID), r.userKey(token.UserID)},
		token.ID.String(), token.UserID.String(), token.Token,
		token.ExpiresAt.UnixMilli(), token.CreatedAt.UnixMilli(), r.keepUntil(token.ExpiresAt),
	).Int()
	if err != nil {
		log.WithError(err).Error("Failed to execute create refresh token script")
		return fmt.Errorf("redis error: %w", err)
	}
	if created == 0 {
		log.Warn("Refresh token value collision")
		return ErrDuplicateToken
	}
	return nil
}

func (r *RedisTokenRepository) FindByToken(ctx context.Context, value string) (*model.RefreshToken, error) {
	fields, err := r.client.HGetAll(ctx, r.tokenKey(value)).Result()
	if err != nil {
		logger.Log.WithError(err).Error("Failed to read refresh token hash")
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return parseTokenFields(fields["id"], fields["user_id"], fields["token"], fields["expires_at"], fields["revoked"], fields["created_at"])
}

func (r *RedisTokenRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*model.RefreshToken, error) {
	values, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	var tokens []*model.RefreshToken
	for _, value := range values {
		token, err := r.FindByToken(ctx, value)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

func (r *RedisTokenRepository) ConsumeAndReplace(ctx context.Context, value string, now time.Time, successor *model.RefreshToken) (*model.RefreshToken, error) {
	args := []interface{}{r.prefix, now.UnixMilli(), "0", "", "", 0, 0, 0}
	if successor != nil {
		args = []interface{}{
			r.prefix, now.UnixMilli(), "1",
			successor.ID.String(), successor.Token,
			successor.ExpiresAt.UnixMilli(), successor.CreatedAt.UnixMilli(), r.keepUntil(successor.ExpiresAt),
		}
	}

	res, err := consumeTokenLua.Run(ctx, r.client, []string{r.tokenKey(value)}, args...).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		if strings.Contains(err.Error(), "duplicate token") {
			return nil, ErrDuplicateToken
		}
		logger.Log.WithError(err).Error("Failed to execute consume refresh token script")
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(res) != 6 {
		return nil, fmt.Errorf("redis error: unexpected consume reply of %d fields", len(res))
	}

	consumed, err := parseTokenFields(res[0], res[1], res[2], res[3], res[4], res[5])
	if err != nil {
		return nil, err
	}
	if successor != nil {
		successor.UserID = consumed.UserID
	}

	logger.Log.WithFields(logrus.Fields{
		"token_id": consumed.ID,
		"user_id":  consumed.UserID,
	}).Info("Refresh token consumed")
	return consumed, nil
}

func (r *RedisTokenRepository) RevokeAllByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	log := logger.Log.WithField("user_id", userID)
	log.Info("Executing script to revoke all refresh tokens for a user")

	n, err := revokeAllLua.Run(ctx, r.client, []string{r.userKey(userID)}, r.prefix).Int64()
	if err != nil {
		log.WithError(err).Error("Failed to execute revoke refresh tokens script")
		return 0, fmt.Errorf("redis error: %w", err)
	}
	return n, nil
}

func (r *RedisTokenRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	if err := deleteByIDLua.Run(ctx, r.client, []string{r.idKey(id)}, r.prefix).Err(); err != nil {
		logger.Log.WithError(err).WithField("token_id", id).Error("Failed to execute delete refresh token script")
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis drops records by key expiry once the
// retention window has passed.
func (r *RedisTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func parseTokenFields(id, userID, value, expiresAt, revoked, createdAt string) (*model.RefreshToken, error) {
	tokenID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh token id: %w", err)
	}
	owner, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh token owner: %w", err)
	}
	expMs, err := strconv.ParseInt(expiresAt, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh token expiry: %w", err)
	}
	createdMs, err := strconv.ParseInt(createdAt, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh token creation time: %w", err)
	}
	return &model.RefreshToken{
		ID:        tokenID,
		UserID:    owner,
		Token:     value,
		ExpiresAt: time.UnixMilli(expMs).UTC(),
		Revoked:   revoked == "1",
		CreatedAt: time.UnixMilli(createdMs).UTC(),
	}, nil
}
