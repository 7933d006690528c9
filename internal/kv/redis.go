package kv

import (
	"context"

	"github.com/redis/rueidis"
)

type RedisStore struct {
	client rueidis.Client
}

func NewRedisStore(client rueidis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	cmd := r.client.B().Get().Key(key).Build()
	value, err := r.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return value, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	cmd := r.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).Build()
	return r.client.Do(ctx, cmd).Error()
}

func (r *RedisStore) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	cmd := r.client.B().Del().Key(key).Build()
	return r.client.Do(ctx, cmd).Error()
}
