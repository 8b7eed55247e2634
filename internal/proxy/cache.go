package proxy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"unlockstudio/internal/storage"
)

// Entry is a cached upstream response.
type Entry struct {
	ContentType string
	Data        []byte
}

// Cache stores proxied bytes keyed by source URL.
type Cache interface {
	Get(ctx context.Context, rawURL string) (Entry, bool, error)
	Set(ctx context.Context, rawURL string, e Entry, ttl time.Duration) error
}

func cacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// RedisCache keeps entries in Redis hashes with a TTL.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache wraps rdb. Keys are namespaced with prefix.
func NewRedisCache(rdb *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "proxy:image:"
	}
	return &RedisCache{rdb: rdb, prefix: prefix}
}

func (c *RedisCache) key(rawURL string) string {
	return c.prefix + cacheKey(rawURL)
}

func (c *RedisCache) Get(ctx context.Context, rawURL string) (Entry, bool, error) {
	vals, err := c.rdb.HMGet(ctx, c.key(rawURL), "content_type", "data").Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("proxy: redis get: %w", err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return Entry{}, false, nil
	}
	ct, _ := vals[0].(string)
	data, _ := vals[1].(string)
	return Entry{ContentType: ct, Data: []byte(data)}, true, nil
}

func (c *RedisCache) Set(ctx context.Context, rawURL string, e Entry, ttl time.Duration) error {
	key := c.key(rawURL)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, "content_type", e.ContentType, "data", e.Data)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("proxy: redis set: %w", err)
	}
	return nil
}

// FileCache keeps entries in a FileStore. Expiry is judged from the file
// modification time against the ttl given at construction.
type FileCache struct {
	store *storage.FileStore
	ttl   time.Duration
	now   func() time.Time
}

// NewFileCache wraps store.
func NewFileCache(store *storage.FileStore, ttl time.Duration) *FileCache {
	return &FileCache{store: store, ttl: ttl, now: time.Now}
}

func fileKey(rawURL string) string {
	k := cacheKey(rawURL)
	return "proxy/" + k[:2] + "/" + k
}

func (c *FileCache) Get(ctx context.Context, rawURL string) (Entry, bool, error) {
	raw, mod, err := c.store.Read(ctx, fileKey(rawURL))
	if errors.Is(err, storage.ErrNotExist) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if c.ttl > 0 && c.now().Sub(mod) > c.ttl {
		_ = c.store.Delete(ctx, fileKey(rawURL))
		return Entry{}, false, nil
	}
	ct, data, ok := strings.Cut(string(raw), "\n")
	if !ok {
		return Entry{}, false, nil
	}
	return Entry{ContentType: ct, Data: []byte(data)}, true, nil
}

func (c *FileCache) Set(ctx context.Context, rawURL string, e Entry, _ time.Duration) error {
	ct := strings.ReplaceAll(e.ContentType, "\n", "")
	buf := make([]byte, 0, len(ct)+1+len(e.Data))
	buf = append(buf, ct...)
	buf = append(buf, '\n')
	buf = append(buf, e.Data...)
	_, err := c.store.Write(ctx, fileKey(rawURL), buf)
	return err
}
