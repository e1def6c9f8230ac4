// Package cache provides an optional Redis-backed cache for case reports and
// per-city statistics, plus the pub/sub channel the trainer uses to announce
// new policy artifacts. All operations degrade to no-ops when Redis is not
// configured; the cache is an accelerator, never a source of truth.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog/log"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

const (
	reportKeyPrefix = "ruleintel:report:"
	statsKeyPrefix  = "ruleintel:stats:"

	// PolicyUpdateChannel carries artifact versions published by the trainer.
	PolicyUpdateChannel = "ruleintel:policy-updates"

	reportTTL = 10 * time.Minute
	statsTTL  = 30 * time.Second
)

// Cache wraps a redigo connection pool. A nil *Cache is valid and disables
// caching, so callers never branch on configuration.
type Cache struct {
	pool *redis.Pool
}

// New builds a cache over a Redis address. Empty address returns nil,
// the disabled cache.
func New(addr string) *Cache {
	if addr == "" {
		return nil
	}
	return &Cache{
		pool: &redis.Pool{
			MaxIdle:     4,
			MaxActive:   16,
			IdleTimeout: 240 * time.Second,
			Wait:        true,
			Dial: func() (redis.Conn, error) {
				return redis.Dial("tcp", addr,
					redis.DialConnectTimeout(2*time.Second),
					redis.DialReadTimeout(2*time.Second),
					redis.DialWriteTimeout(2*time.Second))
			},
			TestOnBorrow: func(c redis.Conn, t time.Time) error {
				if time.Since(t) < time.Minute {
					return nil
				}
				_, err := c.Do("PING")
				return err
			},
		},
	}
}

// Close releases the pool.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.pool.Close()
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Do("PING")
	return err
}

// GetReport returns a cached case report, or nil on miss. Cache errors are
// logged and reported as misses.
func (c *Cache) GetReport(ctx context.Context, caseID string) *models.CaseReport {
	var report models.CaseReport
	if !c.getJSON(ctx, reportKeyPrefix+caseID, &report) {
		return nil
	}
	return &report
}

// SetReport caches a case report.
func (c *Cache) SetReport(ctx context.Context, report *models.CaseReport) {
	c.setJSON(ctx, reportKeyPrefix+report.CaseID, report, reportTTL)
}

// InvalidateReport drops a cached report, called when feedback lands so the
// next read reflects the adjusted confidence.
func (c *Cache) InvalidateReport(ctx context.Context, caseID string) {
	if c == nil {
		return
	}
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return
	}
	defer conn.Close()
	if _, err := conn.Do("DEL", reportKeyPrefix+caseID); err != nil {
		log.Debug().Err(err).Str("case_id", caseID).Msg("Report cache invalidation failed")
	}
}

// GetStatistics returns cached city statistics, or nil on miss.
func (c *Cache) GetStatistics(ctx context.Context, city string) *models.CityStatistics {
	var stats models.CityStatistics
	if !c.getJSON(ctx, statsKeyPrefix+city, &stats) {
		return nil
	}
	return &stats
}

// SetStatistics caches city statistics with a short TTL; the live table is
// authoritative and changes on every feedback event.
func (c *Cache) SetStatistics(ctx context.Context, stats models.CityStatistics) {
	c.setJSON(ctx, statsKeyPrefix+stats.City, stats, statsTTL)
}

// PublishPolicyUpdate announces a new policy artifact version to workers
// subscribed on the update channel.
func (c *Cache) PublishPolicyUpdate(ctx context.Context, version string) error {
	if c == nil {
		return nil
	}
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("get redis conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("PUBLISH", PolicyUpdateChannel, version); err != nil {
		return fmt.Errorf("publish policy update: %w", err)
	}
	return nil
}

func (c *Cache) getJSON(ctx context.Context, key string, dest any) bool {
	if c == nil {
		return false
	}
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return false
	}
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", key))
	if err != nil {
		if err != redis.ErrNil {
			log.Debug().Err(err).Str("key", key).Msg("Cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Cache entry decode failed")
		return false
	}
	return true
}

func (c *Cache) setJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if c == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}

	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return
	}
	defer conn.Close()

	if _, err := conn.Do("SET", key, data, "EX", int(ttl.Seconds())); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Cache write failed")
	}
}
