package cache

import (
	"bytes"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const statsKeyPrefix = "workout-stats::"

// StatsCache keeps computed workout stats per user for a short TTL.
// The cached value is prefixed with the day it was computed for, so a
// value computed yesterday never serves today's request even if its
// TTL has not expired yet.
type StatsCache struct {
	cache      *freecache.Cache
	ttlSeconds int
}

func NewStatsCache(sizeBytes, ttlSeconds int) *StatsCache {
	return &StatsCache{
		cache:      freecache.NewCache(sizeBytes),
		ttlSeconds: ttlSeconds,
	}
}

func (c *StatsCache) Get(userID, day string) ([]byte, bool) {
	value, err := c.cache.Get([]byte(statsKeyPrefix + userID))
	if err != nil {
		// freecache returns ErrNotFound for missing/expired entries
		return nil, false
	}

	parts := bytes.SplitN(value, []byte("|"), 2)
	if len(parts) != 2 {
		return nil, false
	}
	if string(parts[0]) != day {
		return nil, false
	}

	return parts[1], true
}

func (c *StatsCache) Set(userID, day string, statsJson []byte) {
	value := append([]byte(day+"|"), statsJson...)
	if err := c.cache.Set([]byte(statsKeyPrefix+userID), value, c.ttlSeconds); err != nil {
		log.Warnf("stats cache set for user %s: %s", userID, err)
	}
}

func (c *StatsCache) Invalidate(userID string) {
	c.cache.Del([]byte(statsKeyPrefix + userID))
}
