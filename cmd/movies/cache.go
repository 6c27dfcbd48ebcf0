package main

import (
	ristretto "github.com/dgraph-io/ristretto/v2"
)

// MovieCache keeps loaded movie lists between loads.
type MovieCache struct {
	cache *ristretto.Cache[string, []Movie]
}

func NewMovieCache(bufferItems int) (*MovieCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []Movie]{
		NumCounters: 1e4,                // number of keys to track frequency of.
		MaxCost:     1 << 20,            // maximum cost of cache (1M movies).
		BufferItems: int64(bufferItems), // number of keys per Get buffer.
	})
	if err != nil {
		return nil, err
	}
	return &MovieCache{cache: cache}, nil
}

func (c *MovieCache) Get(key string) ([]Movie, bool) {
	return c.cache.Get(key)
}

// Set stores movies and waits until the value is visible to Get.
func (c *MovieCache) Set(key string, movies []Movie) bool {
	ok := c.cache.Set(key, movies, int64(len(movies)+1))
	c.cache.Wait()
	return ok
}

func (c *MovieCache) Delete(key string) {
	c.cache.Del(key)
}

func (c *MovieCache) Close() {
	c.cache.Close()
}
