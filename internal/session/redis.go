package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisSessionPrefix = "finmgr:session:"
	redisWizardPrefix  = "finmgr:wizard:"

	maxUpdateRetries = 50
)

// RedisStore keeps each session in a hash that expires with the session.
// Wizard state lives in a separate key with the same deadline.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

// NewRedisStoreFromURL connects using a redis:// or rediss:// URL.
func NewRedisStoreFromURL(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStore(client, ttl), nil
}

func sessionKey(id string) string { return redisSessionPrefix + id }
func wizardKey(id string) string  { return redisWizardPrefix + id }

func (r *RedisStore) Create(ctx context.Context, username string, tokens Tokens) (Session, error) {
	s := New(username, tokens, r.now(), r.ttl)
	key := sessionKey(s.ID)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"username", s.Username,
			"access_token", s.AccessToken,
			"refresh_token", s.RefreshToken,
			"created_at", s.CreatedAt.UnixMilli(),
			"expires_at", s.ExpiresAt.UnixMilli(),
		)
		p.PExpireAt(ctx, key, s.ExpiresAt)
		return nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	fields, err := r.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	if len(fields) == 0 {
		return Session{}, ErrNotFound
	}
	s := Session{
		ID:           id,
		Username:     fields["username"],
		AccessToken:  fields["access_token"],
		RefreshToken: fields["refresh_token"],
		CreatedAt:    unixMilli(fields["created_at"]),
		ExpiresAt:    unixMilli(fields["expires_at"]),
	}
	if s.Expired(r.now()) {
		return Session{}, ErrNotFound
	}
	return s, nil
}

// update runs fn against the session hash only while the hash exists, so a
// concurrent Delete cannot be undone by a late write.
func (r *RedisStore) update(ctx context.Context, id string, fn func(p redis.Pipeliner, ttl time.Duration)) error {
	key := sessionKey(id)
	txf := func(tx *redis.Tx) error {
		ttl, err := tx.PTTL(ctx, key).Result()
		if err != nil {
			return err
		}
		if ttl <= 0 {
			return ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			fn(p, ttl)
			return nil
		})
		return err
	}

	for range maxUpdateRetries {
		err := r.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrNotFound):
			return err
		default:
			return fmt.Errorf("update session: %w", err)
		}
	}
	return fmt.Errorf("update session: %w", redis.TxFailedErr)
}

func (r *RedisStore) UpdateAccessToken(ctx context.Context, id, access string) error {
	return r.update(ctx, id, func(p redis.Pipeliner, _ time.Duration) {
		p.HSet(ctx, sessionKey(id), "access_token", access)
	})
}

func (r *RedisStore) ClearTokens(ctx context.Context, id string) error {
	return r.update(ctx, id, func(p redis.Pipeliner, _ time.Duration) {
		p.HSet(ctx, sessionKey(id), "access_token", "", "refresh_token", "")
	})
}

func (r *RedisStore) SaveWizard(ctx context.Context, id string, state []byte) error {
	return r.update(ctx, id, func(p redis.Pipeliner, ttl time.Duration) {
		p.Set(ctx, wizardKey(id), state, ttl)
	})
}

func (r *RedisStore) LoadWizard(ctx context.Context, id string) ([]byte, error) {
	var exists *redis.IntCmd
	var state *redis.StringCmd
	_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		exists = p.Exists(ctx, sessionKey(id))
		state = p.Get(ctx, wizardKey(id))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load wizard: %w", err)
	}
	if exists.Val() == 0 {
		return nil, ErrNotFound
	}
	data, err := state.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load wizard: %w", err)
	}
	return data, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKey(id), wizardKey(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func unixMilli(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
