package services

import (
	"container/list"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the cache capability injected into handlers. Implementations must
// tolerate concurrent use; Set is idempotent per key. A nil *TieredCache is
// a valid no-op store, so disabling the cache only changes latency.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration, tags ...string)
	InvalidateTag(tag string)
}

// ── Memory tier ─────────────────────────────────────────────────────────

type memoryEntry struct {
	key     string
	value   []byte
	tags    []string
	expires time.Time
}

// MemoryStore is a bounded LRU cache. Least recently used entries are
// evicted when capacity is exceeded; expired entries evict lazily on Get.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	items    map[string]*list.Element
}

// NewMemoryStore creates a store holding at most capacity entries.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryStore{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*memoryEntry)
	if time.Now().After(entry.expires) {
		s.order.Remove(el)
		delete(s.items, key)
		return nil, false
	}
	s.order.MoveToFront(el)
	return entry.value, true
}

func (s *MemoryStore) Set(key string, value []byte, ttl time.Duration, tags ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &memoryEntry{key: key, value: value, tags: tags, expires: time.Now().Add(ttl)}
	if el, ok := s.items[key]; ok {
		el.Value = entry
		s.order.MoveToFront(el)
		return
	}
	s.items[key] = s.order.PushFront(entry)

	for s.order.Len() > s.capacity {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(*memoryEntry).key)
	}
}

func (s *MemoryStore) InvalidateTag(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next *list.Element
	for el := s.order.Front(); el != nil; el = next {
		next = el.Next()
		entry := el.Value.(*memoryEntry)
		for _, t := range entry.tags {
			if t == tag {
				s.order.Remove(el)
				delete(s.items, entry.key)
				break
			}
		}
	}
}

// Len reports the current number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// ── Persistent tier ─────────────────────────────────────────────────────

// SQLiteStore persists cache entries across restarts. The first database
// failure is logged; later ones are dropped so a broken disk does not flood
// the log.
type SQLiteStore struct {
	db       *sql.DB
	degraded sync.Once
}

// NewSQLiteStore opens (and migrates) the cache database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS cache_entries (
		key     TEXT PRIMARY KEY,
		value   BLOB NOT NULL,
		tags    TEXT NOT NULL DEFAULT '',
		expires INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(key string) ([]byte, bool) {
	v, _, ok := s.GetWithTTL(key)
	return v, ok
}

// GetWithTTL reports the entry's remaining lifetime alongside its value, so
// the tiered front can repopulate without restarting the clock.
func (s *SQLiteStore) GetWithTTL(key string) ([]byte, time.Duration, bool) {
	var value []byte
	var expires int64
	err := s.db.QueryRow(
		`SELECT value, expires FROM cache_entries WHERE key = ?`, key,
	).Scan(&value, &expires)
	if err != nil {
		return nil, 0, false
	}
	remaining := time.Until(time.Unix(expires, 0))
	if remaining <= 0 {
		_, err := s.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key)
		s.warn("evict", err)
		return nil, 0, false
	}
	return value, remaining, true
}

func (s *SQLiteStore) Set(key string, value []byte, ttl time.Duration, tags ...string) {
	_, err := s.db.Exec(
		`INSERT INTO cache_entries (key, value, tags, expires) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, tags = excluded.tags, expires = excluded.expires`,
		key, value, ","+strings.Join(tags, ",")+",", time.Now().Add(ttl).Unix(),
	)
	s.warn("set", err)
}

func (s *SQLiteStore) InvalidateTag(tag string) {
	_, err := s.db.Exec(`DELETE FROM cache_entries WHERE tags LIKE ?`, "%,"+tag+",%")
	s.warn("invalidate", err)
}

// warn logs the first write failure; later ones are the same story.
func (s *SQLiteStore) warn(op string, err error) {
	if err == nil {
		return
	}
	s.degraded.Do(func() {
		log.Printf("render cache: persistent tier degraded (%s): %v", op, err)
	})
}

// Close releases the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// ── Tiered front ────────────────────────────────────────────────────────

// TieredCache checks the memory tier first, then the persistent tier;
// misses that hit the persistent tier repopulate memory, and writes go to
// both. Either tier may be nil. A nil *TieredCache disables caching
// entirely without changing computed output.
type TieredCache struct {
	Memory     Store
	Persistent Store
	TTL        time.Duration
}

// ttlReporter is the optional capability of a persistent tier to report how
// long an entry has left to live, so repopulating memory keeps the original
// expiry instead of restarting it.
type ttlReporter interface {
	GetWithTTL(key string) ([]byte, time.Duration, bool)
}

// NewTieredCache wires the standard two tiers from config. persistent may
// be nil for a memory-only cache.
func NewTieredCache(cfg Config, persistent Store) *TieredCache {
	return &TieredCache{
		Memory:     NewMemoryStore(cfg.CacheCapacity),
		Persistent: persistent,
		TTL:        cfg.CacheTTL,
	}
}

func (c *TieredCache) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	if c.Memory != nil {
		if v, ok := c.Memory.Get(key); ok {
			return v, true
		}
	}
	if c.Persistent != nil {
		v, remaining, ok := c.persistentGet(key)
		if ok {
			if c.Memory != nil && remaining > 0 {
				c.Memory.Set(key, v, remaining)
			}
			return v, true
		}
	}
	return nil, false
}

// persistentGet reads the slow tier, preferring the remaining-TTL form so a
// repopulated memory entry cannot outlive its persistent twin.
func (c *TieredCache) persistentGet(key string) ([]byte, time.Duration, bool) {
	if r, ok := c.Persistent.(ttlReporter); ok {
		v, remaining, ok := r.GetWithTTL(key)
		if ok && remaining > c.TTL {
			remaining = c.TTL
		}
		return v, remaining, ok
	}
	v, ok := c.Persistent.Get(key)
	return v, c.TTL, ok
}

func (c *TieredCache) Set(key string, value []byte, ttl time.Duration, tags ...string) {
	if c == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.TTL
	}
	if c.Memory != nil {
		c.Memory.Set(key, value, ttl, tags...)
	}
	if c.Persistent != nil {
		c.Persistent.Set(key, value, ttl, tags...)
	}
}

func (c *TieredCache) InvalidateTag(tag string) {
	if c == nil {
		return
	}
	if c.Memory != nil {
		c.Memory.InvalidateTag(tag)
	}
	if c.Persistent != nil {
		c.Persistent.InvalidateTag(tag)
	}
}
