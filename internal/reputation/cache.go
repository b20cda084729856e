package reputation

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedClient remembers successful lookups in Redis. Failures are not
// cached, so an outage is re-checked on the next request.
type CachedClient struct {
	next   Client
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCachedClient wraps next. When rdb is nil the wrapper is a passthrough.
func NewCachedClient(next Client, rdb *redis.Client, ttl time.Duration) *CachedClient {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedClient{next: next, rdb: rdb, ttl: ttl, prefix: "rep"}
}

func (c *CachedClient) key(addr string) string {
	sum := sha1.Sum([]byte(strings.ToLower(addr)))
	return c.prefix + ":" + hex.EncodeToString(sum[:])
}

func (c *CachedClient) Frequency(ctx context.Context, addr string) (int, error) {
	if c.rdb == nil {
		return c.next.Frequency(ctx, addr)
	}
	key := c.key(addr)
	if s, err := c.rdb.Get(ctx, key).Result(); err == nil {
		if n, err := strconv.Atoi(s); err == nil {
			return n, nil
		}
	}

	n, err := c.next.Frequency(ctx, addr)
	if err != nil {
		return 0, err
	}
	// a cache write failure only costs a future lookup
	_ = c.rdb.SetEx(ctx, key, strconv.Itoa(n), c.ttl).Err()
	return n, nil
}
