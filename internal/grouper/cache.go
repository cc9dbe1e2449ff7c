package grouper

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/isopsephy/gematria-crossref/pkg/config"
	"github.com/isopsephy/gematria-crossref/pkg/metrics"
	pkgredis "github.com/isopsephy/gematria-crossref/pkg/redis"
	"github.com/isopsephy/gematria-crossref/pkg/resilience"
)

const keyPrefix = "group:"

// ResultCache caches Resolve answers in Redis. Concurrent misses for the same
// phrase are collapsed with singleflight, and a circuit breaker keeps queries
// flowing directly from the index while Redis is down.
type ResultCache struct {
	grouper *Grouper
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewResultCache wraps a Grouper with a Redis result cache. client may be nil,
// in which case every query computes directly.
func NewResultCache(g *Grouper, client *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *ResultCache {
	return &ResultCache{
		grouper: g,
		client:  client,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker("group-cache", resilience.CircuitBreakerConfig{}),
		logger:  slog.Default().With("component", "group-cache"),
		metrics: m,
	}
}

// Resolve returns the cached relationship result for the phrase, computing
// and caching it on a miss.
func (c *ResultCache) Resolve(ctx context.Context, phraseID, alphabetID string) (*Result, error) {
	if c.client == nil {
		return c.grouper.Resolve(phraseID, alphabetID)
	}
	key := c.buildKey(phraseID, alphabetID)
	if result, ok := c.get(ctx, key); ok {
		return result, nil
	}

	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.get(ctx, key); ok {
			return result, nil
		}
		result, err := c.grouper.Resolve(phraseID, alphabetID)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*Result), nil
}

// Invalidate drops all cached group results, called after bulk ingestion
// changes bucket membership.
func (c *ResultCache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating group cache: %w", err)
	}
	c.logger.Info("group cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *ResultCache) get(ctx context.Context, key string) (*Result, bool) {
	var data string
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.client.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			data = ""
			return nil
		}
		return err
	})
	if err != nil || data == "" {
		if err != nil {
			c.logger.Debug("cache get bypassed", "key", key, "error", err)
		}
		if c.metrics != nil {
			c.metrics.CacheMissesTotal.Inc()
		}
		return nil, false
	}
	var result Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		if c.metrics != nil {
			c.metrics.CacheMissesTotal.Inc()
		}
		return nil, false
	}
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return &result, true
}

func (c *ResultCache) set(ctx context.Context, key string, result *Result) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	ttl := c.cfg.CacheTTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, ttl)
	})
	if err != nil {
		c.logger.Debug("cache set bypassed", "key", key, "error", err)
	}
}

func (c *ResultCache) buildKey(phraseID, alphabetID string) string {
	hash := sha256.Sum256([]byte(alphabetID + "\x00" + phraseID))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
