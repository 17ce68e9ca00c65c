package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"subseek/internal/logging"
)

// Version is embedded in every key. Bump it when the shape of cached values
// changes so older entries are never decoded into new types.
const Version = 1

// TTLClass selects how long a computed value stays fresh.
type TTLClass int

const (
	// ShowTTL covers slow-changing identities such as show name to id.
	ShowTTL TTLClass = iota
	// EpisodeTTL covers per-episode lookups.
	EpisodeTTL
	// RefinerTTL covers metadata fetched by refiners.
	RefinerTTL
)

// Duration returns the expiry for the class.
func (c TTLClass) Duration() time.Duration {
	switch c {
	case ShowTTL:
		return 21 * 24 * time.Hour
	case EpisodeTTL:
		return 3 * 24 * time.Hour
	case RefinerTTL:
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}

func (c TTLClass) String() string {
	switch c {
	case ShowTTL:
		return "show"
	case EpisodeTTL:
		return "episode"
	case RefinerTTL:
		return "refiner"
	default:
		return "unknown"
	}
}

// Entry is one stored value. A zero Expires never expires.
type Entry struct {
	Value   []byte
	Expires time.Time
}

// Expired reports whether e is stale at now.
func (e Entry) Expired(now time.Time) bool {
	return !e.Expires.IsZero() && !now.Before(e.Expires)
}

// Backend is the storage medium behind a Cache.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
	// Clear removes every entry and returns how many were dropped.
	Clear(ctx context.Context) (int, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

// Stats summarises cache usage since the Cache was constructed.
type Stats struct {
	Backend string
	Entries int
	Hits    int64
	Misses  int64
}

// Cache memoizes JSON-encodable values in a Backend. It is safe for
// concurrent use; concurrent computes of one key are collapsed into one.
type Cache struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
	group   singleflight.Group
	hits    atomic.Int64
	misses  atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for backend warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New wraps backend.
func New(backend Backend, opts ...Option) *Cache {
	c := &Cache{backend: backend, logger: logging.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "cache")
	return c
}

// Key builds a versioned key from a namespace (usually a provider name), a
// function name and the call arguments.
func Key(namespace, function string, args ...any) string {
	h := sha256.New()
	for i, arg := range args {
		if i > 0 {
			h.Write([]byte{0})
		}
		fmt.Fprintf(h, "%#v", arg)
	}
	sum := hex.EncodeToString(h.Sum(nil)[:12])
	return fmt.Sprintf("v%d:%s:%s:%s", Version, strings.ToLower(namespace), function, sum)
}

// Get decodes the fresh value stored under key into dst.
func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	entry, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if !ok {
		c.misses.Add(1)
		return false, nil
	}
	if entry.Expired(c.now()) {
		c.misses.Add(1)
		if err := c.backend.Delete(ctx, key); err != nil {
			c.logger.Debug("cache expired entry delete failed", logging.String("key", key), logging.Error(err))
		}
		return false, nil
	}
	if err := json.Unmarshal(entry.Value, dst); err != nil {
		c.misses.Add(1)
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	c.hits.Add(1)
	return true, nil
}

// Set stores value under key for ttl. A non-positive ttl never expires.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	entry := Entry{Value: data}
	if ttl > 0 {
		entry.Expires = c.now().Add(ttl)
	}
	if err := c.backend.Set(ctx, key, entry); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}

// Clear drops every entry.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	n, err := c.backend.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	return n, nil
}

// Stats reports the entry count and hit counters.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	n, err := c.backend.Len(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}
	return Stats{
		Backend: c.backend.Name(),
		Entries: n,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Close flushes and closes the backend.
func (c *Cache) Close() error {
	if c == nil || c.backend == nil {
		return nil
	}
	return c.backend.Close()
}

// GetOrCompute returns the fresh value under key, or calls compute, stores
// its result for class.Duration() and returns it. Errors from compute are
// returned and not cached. Backend failures degrade to computing the value.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, class TTLClass, compute func(context.Context) (T, error)) (T, error) {
	var cached T
	if c == nil {
		return compute(ctx)
	}
	ok, err := c.Get(ctx, key, &cached)
	if err != nil {
		c.logger.Warn("cache read failed; recomputing",
			logging.String("key", key),
			logging.Error(err),
			logging.String(logging.FieldEventType, "cache_read_failed"),
			logging.String(logging.FieldErrorHint, "run subseek cache clear if this persists"),
		)
	}
	if ok {
		return cached, nil
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		computed, err := compute(ctx)
		if err != nil {
			return computed, err
		}
		if err := c.Set(ctx, key, computed, class.Duration()); err != nil {
			c.logger.Warn("cache write failed",
				logging.String("key", key),
				logging.Error(err),
				logging.String(logging.FieldEventType, "cache_write_failed"),
				logging.String(logging.FieldErrorHint, "check cache path permissions"),
			)
		}
		return computed, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	result, ok := value.(T)
	if !ok {
		var zero T
		return zero, errors.New("cache: computed value has unexpected type")
	}
	return result, nil
}
