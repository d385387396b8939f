package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/logistar/turnover-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL    = 5 * time.Minute
	generationKey = "query_generation"
)

// Store is the subset of the redis client used by the query cache.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	CacheKey(parts ...string) string
	CounterKey(name string) string
}

// QueryCache memoizes analytics query results for a short TTL. Entries are
// keyed under a generation counter; bumping the counter makes every
// outstanding entry unreachable at once, and the orphans expire on their own
// TTL. Cache failures are logged and treated as misses, never surfaced.
type QueryCache struct {
	store Store
	logg  *logger.Logger
	ttl   time.Duration
}

// Params configure the query cache.
type Params struct {
	Store  Store
	Logger *logger.Logger
	TTL    time.Duration
}

// New builds a query cache.
func New(params Params) (*QueryCache, error) {
	if params.Store == nil {
		return nil, errors.New("cache store required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &QueryCache{store: params.Store, logg: params.Logger, ttl: ttl}, nil
}

// Get loads a cached result into dest. It returns false on a miss or on any
// cache error.
func (c *QueryCache) Get(ctx context.Context, query string, filters map[string]string, dest any) bool {
	key, err := c.entryKey(ctx, query, filters)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "cache_error", err.Error()), "cache generation lookup failed")
		return false
	}
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logg.Warn(c.logg.WithField(ctx, "cache_error", err.Error()), "cache read failed")
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "cache_error", err.Error()), "cache entry corrupt")
		return false
	}
	return true
}

// Set stores a computed result under the generation read at write time. A
// rebuild landing between compute and store bumps the generation first, so
// the entry can carry pre-rebuild data under the new generation until the
// TTL expires. Readers therefore see at most one TTL of staleness.
func (c *QueryCache) Set(ctx context.Context, query string, filters map[string]string, value any) {
	key, err := c.entryKey(ctx, query, filters)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "cache_error", err.Error()), "cache generation lookup failed")
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "cache_error", err.Error()), "cache marshal failed")
		return
	}
	if err := c.store.Set(ctx, key, string(payload), c.ttl); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "cache_error", err.Error()), "cache write failed")
	}
}

// InvalidateAll bumps the generation so every live entry becomes unreachable.
func (c *QueryCache) InvalidateAll(ctx context.Context) error {
	if _, err := c.store.Incr(ctx, c.store.CounterKey(generationKey)); err != nil {
		return fmt.Errorf("bump cache generation: %w", err)
	}
	return nil
}

func (c *QueryCache) entryKey(ctx context.Context, query string, filters map[string]string) (string, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return "", err
	}
	return c.store.CacheKey(fmt.Sprintf("g%d", gen), hashParams(query, filters)), nil
}

func (c *QueryCache) generation(ctx context.Context) (int64, error) {
	raw, err := c.store.Get(ctx, c.store.CounterKey(generationKey))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	var gen int64
	if _, err := fmt.Sscanf(raw, "%d", &gen); err != nil {
		return 0, nil
	}
	return gen, nil
}

// hashParams derives a stable digest from the query name and its filter
// parameters sorted by key.
func hashParams(query string, filters map[string]string) string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(query)
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(filters[k])
	}
	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
