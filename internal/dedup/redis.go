package dedup

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisMirror keeps seen ids in a Redis set so several machines scraping
// the same account share one dedup history.
type RedisMirror struct {
	client *redis.Client
	key    string
}

// NewRedisMirror connects to addr and uses key as the set name.
func NewRedisMirror(addr, key string) *RedisMirror {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisMirror{client: rdb, key: key}
}

// Load returns the members of the set.
func (m *RedisMirror) Load(ctx context.Context) ([]string, error) {
	ids, err := m.client.SMembers(ctx, m.key).Result()
	if err != nil {
		return nil, eris.Wrap(err, "dedup: redis smembers")
	}
	return ids, nil
}

// Add puts ids into the set.
func (m *RedisMirror) Add(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	if err := m.client.SAdd(ctx, m.key, members...).Err(); err != nil {
		return eris.Wrap(err, "dedup: redis sadd")
	}
	return nil
}

// Close releases the connection pool.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
