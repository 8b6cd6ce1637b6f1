package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"codeclash/internal/session"
)

const (
	sessionKeyPrefix = "session:"
	playerKeySuffix  = ":session"
)

// casScript swaps the record only when the stored version still matches,
// refreshing the TTL on success. The player index keys (KEYS[2..]) are
// rewritten with the same TTL so the reconnect lookup lives exactly as
// long as the session it points at. Running it server-side keeps the
// read-compare-write atomic across instances.
var casScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if not cur then
	return -1
end
local decoded = cjson.decode(cur)
if tonumber(decoded["version"]) ~= tonumber(ARGV[1]) then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "EX", tonumber(ARGV[3]))
for i = 2, #KEYS do
	redis.call("SET", KEYS[i], ARGV[4], "EX", tonumber(ARGV[3]))
end
return 1
`)

// Redis implements session.Store on a shared Redis instance. Records carry
// a TTL so abandoned and completed sessions clean themselves up.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func playerKey(playerID string) string {
	return "player:" + playerID + playerKeySuffix
}

func (r *Redis) Create(ctx context.Context, s *session.Session) error {
	stored := s.Clone()
	stored.Version = 1
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, sessionKey(s.ID), data, r.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return session.ErrAlreadyExists
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, id string) (*session.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Redis) CompareAndSwap(ctx context.Context, s *session.Session) (*session.Session, error) {
	next := s.Clone()
	next.Version = s.Version + 1
	data, err := json.Marshal(next)
	if err != nil {
		return nil, err
	}
	ttlSec := int64(r.ttl / time.Second)
	keys := []string{sessionKey(s.ID)}
	for _, pid := range s.Expected {
		keys = append(keys, playerKey(pid))
	}
	res, err := casScript.Run(ctx, r.client, keys, s.Version, data, ttlSec, s.ID).Int64()
	if err != nil {
		return nil, err
	}
	switch res {
	case -1:
		return nil, session.ErrNotFound
	case 0:
		return nil, session.ErrVersionConflict
	}
	return next, nil
}

func (r *Redis) IndexPlayer(ctx context.Context, playerID, sessionID string) error {
	return r.client.Set(ctx, playerKey(playerID), sessionID, r.ttl).Err()
}

func (r *Redis) SessionForPlayer(ctx context.Context, playerID string) (string, error) {
	sid, err := r.client.Get(ctx, playerKey(playerID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", session.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return sid, nil
}

func (r *Redis) ActiveSessions(ctx context.Context) ([]*session.Session, error) {
	var out []*session.Session
	iter := r.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var s session.Session
		if err := json.Unmarshal(data, &s); err != nil {
			continue
		}
		if s.Status == session.StatusActive {
			out = append(out, &s)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
