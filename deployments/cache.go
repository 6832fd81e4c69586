package deployments

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
)

const DefaultCacheSize = 1024

type cacheKey struct {
	chainID   uint64
	singleton common.Address
}

// VersionCache memoizes FindVersion. Only found versions are cached. Safe for
// concurrent use.
type VersionCache struct {
	registry *Registry
	cache    *lru.Cache
}

func NewVersionCache(registry *Registry, size int) (*VersionCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("version cache: %w", err)
	}
	return &VersionCache{registry: registry, cache: cache}, nil
}

func (c *VersionCache) FindVersion(chainID uint64, singleton common.Address) (string, bool) {
	key := cacheKey{chainID: chainID, singleton: singleton}
	if v, ok := c.cache.Get(key); ok {
		return v.(string), true
	}
	version, ok := c.registry.FindVersion(chainID, singleton)
	if ok {
		c.cache.Add(key, version)
	}
	return version, ok
}

func (c *VersionCache) Len() int {
	return c.cache.Len()
}
