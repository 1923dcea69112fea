package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/ryanongwx/chessbet/internal/wallet"
)

// RedisStore keeps one JSON record per session plus secondary index sets:
// per-participant and per-status. Writes go through a WATCH transaction so
// the version token is enforced server-side; a stale write fails with
// ErrVersionConflict instead of clobbering a concurrent instance's update.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for redis session store")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

// NewRedisStoreFromClient wires an existing client, for tests.
func NewRedisStoreFromClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (r *RedisStore) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}

func sessionKey(id string) string   { return "match:session:" + strings.TrimSpace(id) }
func userIdxKey(id string) string   { return "match:index:user:" + strings.TrimSpace(id) }
func statusIdxKey(st Status) string { return "match:index:status:" + string(st) }

func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	s.Version = 1
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ok, err := r.rdb.SetNX(ctx, sessionKey(s.ID), raw, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicateID
	}
	pipe := r.rdb.Pipeline()
	pipe.SAdd(ctx, statusIdxKey(s.Status), s.ID)
	if s.Creator != "" {
		pipe.SAdd(ctx, userIdxKey(s.Creator), s.ID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	key := sessionKey(s.ID)
	err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var cur Session
		if err := json.Unmarshal(raw, &cur); err != nil {
			return err
		}
		if cur.Version != s.Version {
			return ErrVersionConflict
		}

		next := s.Clone()
		next.Version = s.Version + 1
		newRaw, err := json.Marshal(next)
		if err != nil {
			return err
		}

		pipe := tx.TxPipeline()
		pipe.Set(ctx, key, newRaw, 0)
		if cur.Status != next.Status {
			pipe.SRem(ctx, statusIdxKey(cur.Status), s.ID)
			pipe.SAdd(ctx, statusIdxKey(next.Status), s.ID)
		}
		// Join sets the opponent after create; keep the user index complete.
		if next.Opponent != "" && next.Opponent != cur.Opponent {
			pipe.SAdd(ctx, userIdxKey(next.Opponent), s.ID)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		s.Version = next.Version
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	return err
}

func (r *RedisStore) ListByStatus(ctx context.Context, st Status) ([]*Session, error) {
	ids, err := r.rdb.SMembers(ctx, statusIdxKey(st)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		s, gerr := r.Get(ctx, id)
		if gerr != nil {
			continue
		}
		// Index entries can lag a transition briefly; trust the record.
		if s.Status == st {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *RedisStore) PlayingByParticipant(ctx context.Context, id wallet.Identity) (*Session, error) {
	return r.findByUser(ctx, id, func(s *Session) bool {
		return s.Status == StatusPlaying && s.Participant(id)
	})
}

func (r *RedisStore) WaitingByCreator(ctx context.Context, id wallet.Identity) (*Session, error) {
	return r.findByUser(ctx, id, func(s *Session) bool {
		return s.Status == StatusWaiting && s.Creator == string(id)
	})
}

func (r *RedisStore) findByUser(ctx context.Context, id wallet.Identity, match func(*Session) bool) (*Session, error) {
	ids, err := r.rdb.SMembers(ctx, userIdxKey(string(id))).Result()
	if err != nil {
		return nil, err
	}
	var best *Session
	for _, sid := range ids {
		s, gerr := r.Get(ctx, sid)
		if gerr != nil {
			continue
		}
		if !match(s) {
			continue
		}
		if best == nil || s.UpdatedAt.After(best.UpdatedAt) {
			best = s
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}
