// Package redis caches upstream exchange responses so repeated dashboard
// requests do not burn the exchange's rate limit. Keys carry per-kind
// TTLs: ticker data goes stale in seconds, the market list in minutes.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const (
	keyPrefix = "capas:"

	// TTLCandles bounds staleness of cached candle series.
	TTLCandles = 60 * time.Second
	// TTLTicker keeps price snapshots fresh enough for the dashboard.
	TTLTicker = 5 * time.Second
	// TTLMarkets covers the slow-moving market listing.
	TTLMarkets = 10 * time.Minute
)

// Config configures the cache connection.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Cache is a thin TTL cache over Redis. A nil *Cache is valid and acts
// as a no-op (every Get misses), so the server runs without Redis.
type Cache struct {
	client *goredis.Client
}

// New connects to Redis and pings it.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[cache] connected to redis at %s", cfg.Addr)
	return &Cache{client: client}, nil
}

// CandleKey builds the cache key for a candle request.
func CandleKey(market, granularity string, count int) string {
	return fmt.Sprintf("%scandles:%s:%s:%d", keyPrefix, market, granularity, count)
}

// TickerKey builds the cache key for a ticker snapshot.
func TickerKey(market string) string {
	return keyPrefix + "ticker:" + market
}

// MarketsKey is the cache key for the market listing.
func MarketsKey() string {
	return keyPrefix + "markets"
}

// Get loads a cached value into out. Returns false on miss, on a nil
// cache, or on any Redis error — cache failures degrade to upstream
// fetches, never to request failures.
func (c *Cache) Get(ctx context.Context, key string, out interface{}) bool {
	if c == nil {
		return false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			log.Printf("[cache] get %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Printf("[cache] decode %s: %v", key, err)
		return false
	}
	return true
}

// Set stores a value under key with the given TTL. Errors are logged and
// swallowed for the same reason as in Get.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if c == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("[cache] encode %s: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Printf("[cache] set %s: %v", key, err)
	}
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
