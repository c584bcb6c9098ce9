package mw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"schedule-bridge-backend/config"
)

// CachedResponse is one stored GET response.
type CachedResponse struct {
	Status  int         `json:"status"`
	Headers http.Header `json:"headers"`
	Body    []byte      `json:"body"`
}

// ResponseCache stores rendered responses by request URI. Generation changes
// on every Flush.
type ResponseCache interface {
	Get(ctx context.Context, key string) (CachedResponse, bool)
	Set(ctx context.Context, key string, resp CachedResponse, ttl time.Duration)
	Flush(ctx context.Context) error
	Generation() uint64
}

// MemoryCache keeps responses in process memory.
type MemoryCache struct {
	store      *cache.Cache
	generation atomic.Uint64
}

// NewMemoryCache creates an in-memory cache, cleaned up every twice the TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{store: cache.New(ttl, 2*ttl)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (CachedResponse, bool) {
	v, found := m.store.Get(key)
	if !found {
		return CachedResponse{}, false
	}
	return v.(CachedResponse), true
}

func (m *MemoryCache) Set(_ context.Context, key string, resp CachedResponse, ttl time.Duration) {
	m.store.Set(key, resp, ttl)
}

func (m *MemoryCache) Flush(context.Context) error {
	m.generation.Add(1)
	m.store.Flush()
	return nil
}

func (m *MemoryCache) Generation() uint64 { return m.generation.Load() }

// RedisCache shares responses between replicas. Keys live under a prefix so
// Flush only touches this service's entries.
type RedisCache struct {
	client     *redis.Client
	prefix     string
	logger     zerolog.Logger
	generation atomic.Uint64
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, prefix string, logger zerolog.Logger) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, logger: logger}
}

func (r *RedisCache) Get(ctx context.Context, key string) (CachedResponse, bool) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return CachedResponse{}, false
	}
	var resp CachedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache entry is corrupt")
		return CachedResponse{}, false
	}
	return resp, true
}

func (r *RedisCache) Set(ctx context.Context, key string, resp CachedResponse, ttl time.Duration) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, r.prefix+key, raw, ttl).Err(); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (r *RedisCache) Generation() uint64 { return r.generation.Load() }

func (r *RedisCache) Flush(ctx context.Context) error {
	r.generation.Add(1)
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// NewResponseCache builds the backend selected in the configuration. The redis
// backend is pinged once so a bad address fails at startup.
func NewResponseCache(ctx context.Context, cfg config.CacheConfig, ttl time.Duration, logger zerolog.Logger) (ResponseCache, error) {
	switch cfg.Backend {
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis cache at %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisCache(client, cfg.KeyPrefix, logger), nil
	default:
		return NewMemoryCache(ttl), nil
	}
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache is a middleware for caching GET requests.
func Cache(store ResponseCache, duration time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.RequestURI
		if cached, found := store.Get(c.Request.Context(), key); found {
			for k, v := range cached.Headers {
				c.Writer.Header()[k] = v
			}
			c.Writer.WriteHeader(cached.Status)
			c.Writer.Write(cached.Body)
			c.Abort()
			return
		}

		generation := store.Generation()
		blw := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		// A flush while the handler ran may have invalidated what it read.
		if store.Generation() != generation {
			return
		}

		// Only cache successful responses
		if blw.Status() >= 200 && blw.Status() < 300 {
			headers := blw.Header().Clone()
			headers.Del(RequestIDHeader)
			response := CachedResponse{
				Status:  blw.Status(),
				Headers: headers,
				Body:    blw.body.Bytes(),
			}
			store.Set(c.Request.Context(), key, response, duration)
		}
	}
}
