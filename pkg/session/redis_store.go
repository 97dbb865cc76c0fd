package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRecord struct {
	Data      json.RawMessage `json:"data"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// RedisStore keeps each session as a JSON blob under prefix+id with a TTL
// equal to the remaining lifetime, so Redis expires dead rows on its own.
type RedisStore struct {
	client   redis.Cmdable
	prefix   string
	lifetime time.Duration
}

func NewRedisStore(client redis.Cmdable, lifetime time.Duration) *RedisStore {
	return &RedisStore{
		client:   client,
		prefix:   "session:",
		lifetime: lifetime,
	}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) encode(data Data) ([]byte, error) {
	raw, err := encodeData(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(redisRecord{
		Data:      raw,
		ExpiresAt: time.Now().UTC().Add(r.lifetime),
	})
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}

	var rec redisRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		if delErr := r.client.Del(ctx, r.key(id)).Err(); delErr != nil {
			return nil, unavailable(delErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	if !rec.ExpiresAt.After(time.Now()) {
		if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
			return nil, unavailable(err)
		}
		return nil, ErrNotFound
	}

	data, err := decodeData(rec.Data)
	if err != nil {
		if delErr := r.client.Del(ctx, r.key(id)).Err(); delErr != nil {
			return nil, unavailable(delErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return &Record{ID: id, Data: data, ExpiresAt: rec.ExpiresAt}, nil
}

func (r *RedisStore) Create(ctx context.Context, id string, data Data) error {
	payload, err := r.encode(data)
	if err != nil {
		return err
	}

	ok, err := r.client.SetNX(ctx, r.key(id), payload, r.lifetime).Result()
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

func (r *RedisStore) Update(ctx context.Context, id string, data Data) error {
	payload, err := r.encode(data)
	if err != nil {
		return err
	}

	ok, err := r.client.SetXX(ctx, r.key(id), payload, r.lifetime).Result()
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}
