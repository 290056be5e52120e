package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/catalog-sync/internal/port"
)

const (
	defaultKeyPrefix   = "catalog:"
	namespaceIndexPart = "ns:"
)

// Deletes every key listed in the namespace index set, then the set itself.
// DEL is issued in chunks to stay below Lua's unpack limit.
var deleteNamespaceScript = redis.NewScript(`
local index = KEYS[1]
local members = redis.call('SMEMBERS', index)
local n = #members

for i = 1, n, 500 do
	local last = math.min(i + 499, n)
	redis.call('DEL', unpack(members, i, last))
end

redis.call('DEL', index)
return n
`)

type RedisCache struct {
	client *redis.Client
	prefix string
}

var _ port.CacheRepository = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return value, true, nil
}

// Set writes the value and records the key in the namespace index. The index
// lives at least as long as its longest-lived member.
func (r *RedisCache) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	full := r.prefix + key
	index := r.indexKey(namespace)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, full, value, ttl)
		pipe.SAdd(ctx, index, full)
		if ttl > 0 {
			pipe.ExpireNX(ctx, index, ttl)
			pipe.ExpireGT(ctx, index, ttl)
		} else {
			pipe.Persist(ctx, index)
		}
		return nil
	})
	return err
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + k
	}
	return r.client.Del(ctx, full...).Err()
}

func (r *RedisCache) DeleteNamespace(ctx context.Context, namespace string) error {
	return deleteNamespaceScript.Run(ctx, r.client, []string{r.indexKey(namespace)}).Err()
}

func (r *RedisCache) indexKey(namespace string) string {
	return r.prefix + namespaceIndexPart + namespace
}
