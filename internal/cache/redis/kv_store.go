package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// KVStore implements domain.LocalStore on plain Redis strings under
// "{prefix}:kv:". It lets several engine processes share one fallback store.
type KVStore struct {
	c *Client
}

// NewKVStore creates a KVStore.
func NewKVStore(c *Client) *KVStore {
	return &KVStore{c: c}
}

func (s *KVStore) key(k string) string {
	return s.c.Key("kv", k)
}

// Get returns the value for key or domain.ErrNotFound.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.c.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis: kv %q: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("redis: kv get %q: %w", key, err)
	}
	return b, nil
}

// Put stores value under key with no expiry.
func (s *KVStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.c.rdb.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis: kv put %q: %w", key, err)
	}
	return nil
}

// Delete removes keys. Missing keys are ignored.
func (s *KVStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.c.rdb.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis: kv delete: %w", err)
	}
	return nil
}

// Keys lists keys starting with prefix, with the namespace stripped.
func (s *KVStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	base := s.key("")
	var out []string
	iter := s.c.rdb.Scan(ctx, 0, base+escapeGlob(prefix)+"*", 200).Iterator()
	for iter.Next(ctx) {
		out = append(out, strings.TrimPrefix(iter.Val(), base))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: kv scan %q: %w", prefix, err)
	}
	return out, nil
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)
	return r.Replace(s)
}

var _ domain.LocalStore = (*KVStore)(nil)
