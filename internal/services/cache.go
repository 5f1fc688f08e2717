package services

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"marketbot/bot-go/internal/config"
	"marketbot/bot-go/internal/models"
)

const (
	sessionKeyPrefix = "marketbot:session:v1:"
	sessionIDBytes   = 6
	sessionIDRetries = 5
)

// SessionStore keeps the categorized results of each search, keyed by an
// opaque id. Entries expire; an expired id behaves exactly like an unknown one.
type SessionStore interface {
	Put(ctx context.Context, buckets models.Buckets) (string, error)
	Get(ctx context.Context, id string) (models.Buckets, bool)
	Ping(ctx context.Context) error
	Backend() string
	Close() error
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

type MemoryStore struct {
	mu         sync.Mutex
	items      *cache.Cache
	ttl        time.Duration
	maxEntries int
}

// NewSessionStore uses Redis when REDIS_URL is set and reachable, memory otherwise.
func NewSessionStore(cfg config.Config) SessionStore {
	mem := func() SessionStore {
		return NewMemoryStore(cfg.SessionTTL, cfg.SessionCleanupInterval, cfg.SessionMaxEntries)
	}
	if cfg.SessionBackend == "memory" || cfg.RedisURL == "" {
		return mem()
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Warn("invalid REDIS_URL, using memory sessions", "error", err)
		return mem()
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unreachable, using memory sessions", "error", err)
		_ = client.Close()
		return mem()
	}
	return NewRedisStore(client, cfg.SessionTTL)
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func NewMemoryStore(ttl, cleanup time.Duration, maxEntries int) *MemoryStore {
	return &MemoryStore{
		items:      cache.New(ttl, cleanup),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

func newSessionID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(u[:sessionIDBytes]), nil
}

func (r *RedisStore) Put(ctx context.Context, buckets models.Buckets) (string, error) {
	b, err := json.Marshal(buckets)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	for i := 0; i < sessionIDRetries; i++ {
		id, err := newSessionID()
		if err != nil {
			return "", err
		}
		ok, err := r.client.SetNX(ctx, sessionKeyPrefix+id, b, r.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("store session: %w", err)
		}
		if ok {
			return id, nil
		}
	}
	return "", errors.New("store session: could not allocate a unique id")
}

func (r *RedisStore) Get(ctx context.Context, id string) (models.Buckets, bool) {
	b, err := r.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("session lookup failed", "session", id, "error", err)
		}
		return nil, false
	}
	var out models.Buckets
	if err := json.Unmarshal(b, &out); err != nil {
		slog.Warn("session decode failed", "session", id, "error", err)
		return nil, false
	}
	return out, true
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Backend() string { return "redis" }

func (r *RedisStore) Close() error { return r.client.Close() }

func (m *MemoryStore) Put(_ context.Context, buckets models.Buckets) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxEntries > 0 && m.items.ItemCount() >= m.maxEntries {
		m.items.DeleteExpired()
		for m.items.ItemCount() >= m.maxEntries {
			if !m.evictOldest() {
				break
			}
		}
	}
	for i := 0; i < sessionIDRetries; i++ {
		id, err := newSessionID()
		if err != nil {
			return "", err
		}
		if err := m.items.Add(id, buckets, m.ttl); err == nil {
			return id, nil
		}
	}
	return "", errors.New("store session: could not allocate a unique id")
}

// evictOldest drops the entry closest to expiry. All entries share one TTL,
// so that is also the oldest one. Caller holds m.mu.
func (m *MemoryStore) evictOldest() bool {
	var (
		oldest string
		exp    int64
	)
	for id, it := range m.items.Items() {
		if oldest == "" || it.Expiration < exp {
			oldest, exp = id, it.Expiration
		}
	}
	if oldest == "" {
		m.items.DeleteExpired()
		return false
	}
	m.items.Delete(oldest)
	return true
}

func (m *MemoryStore) Get(_ context.Context, id string) (models.Buckets, bool) {
	v, ok := m.items.Get(id)
	if !ok {
		return nil, false
	}
	b, ok := v.(models.Buckets)
	return b, ok
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Backend() string { return "memory" }

func (m *MemoryStore) Close() error { return nil }

// Len counts stored sessions, including expired ones not yet swept.
func (m *MemoryStore) Len() int {
	return m.items.ItemCount()
}
