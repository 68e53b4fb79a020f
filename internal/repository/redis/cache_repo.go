package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
)

const (
	keyNamespace = "testprep:"
	opTimeout    = 2 * time.Second
)

// CacheRepo implements repository.CacheRepository on a universal Redis client.
// Keys are namespaced so several deployments can share one Redis.
type CacheRepo struct {
	client redis.UniversalClient
}

func NewCacheRepo(client redis.UniversalClient) (*CacheRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil for CacheRepo")
	}
	return &CacheRepo{client: client}, nil
}

func (r *CacheRepo) Set(key string, value interface{}, expiration time.Duration) error {
	ctx, cancel := opContext()
	defer cancel()
	return r.client.Set(ctx, namespaced(key), value, expiration).Err()
}

func (r *CacheRepo) Get(key string) (string, error) {
	ctx, cancel := opContext()
	defer cancel()
	val, err := r.client.Get(ctx, namespaced(key)).Result()
	return val, missing(err)
}

func (r *CacheRepo) Delete(key string) error {
	ctx, cancel := opContext()
	defer cancel()
	return r.client.Del(ctx, namespaced(key)).Err()
}

func (r *CacheRepo) SetJSON(key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value %s: %w", key, err)
	}
	return r.Set(key, data, expiration)
}

func (r *CacheRepo) GetJSON(key string, dest interface{}) error {
	ctx, cancel := opContext()
	defer cancel()
	data, err := r.client.Get(ctx, namespaced(key)).Bytes()
	if err != nil {
		return missing(err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode cache value %s: %w", key, err)
	}
	return nil
}

func (r *CacheRepo) SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	ctx, cancel := opContext()
	defer cancel()
	return r.client.SetNX(ctx, namespaced(key), value, expiration).Result()
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// DeleteIfEquals removes key only while it still holds token, so an expired lock taken
// over by another finalize is left alone.
func (r *CacheRepo) DeleteIfEquals(key, token string) (bool, error) {
	ctx, cancel := opContext()
	defer cancel()
	n, err := releaseScript.Run(ctx, r.client, []string{namespaced(key)}, token).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func namespaced(key string) string {
	return keyNamespace + key
}

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

func missing(err error) error {
	if errors.Is(err, redis.Nil) {
		return apperrors.ErrNotFound
	}
	return err
}
