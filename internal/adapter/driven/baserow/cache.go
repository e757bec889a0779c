package baserow

import (
	"fmt"

	"github.com/gregjones/httpcache"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheEntries bounds the response cache when Settings.CacheEntries is zero.
const DefaultCacheEntries = 256

var _ httpcache.Cache = (*responseCache)(nil)

// responseCache is an httpcache.Cache that keeps at most a fixed number of
// responses, evicting the least recently used one first.
type responseCache struct {
	entries *lru.Cache[string, []byte]
}

func newResponseCache(size int) (*responseCache, error) {
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("response cache: %w", err)
	}
	return &responseCache{entries: entries}, nil
}

func (c *responseCache) Get(key string) ([]byte, bool) {
	return c.entries.Get(key)
}

func (c *responseCache) Set(key string, resp []byte) {
	c.entries.Add(key, resp)
}

func (c *responseCache) Delete(key string) {
	c.entries.Remove(key)
}
