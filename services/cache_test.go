package services

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestMemoryStore_LRUEviction(t *testing.T) {
	s := NewMemoryStore(2)
	s.Set("a", []byte("1"), time.Minute)
	s.Set("b", []byte("2"), time.Minute)

	// Touch "a" so "b" becomes the eviction candidate.
	if _, ok := s.Get("a"); !ok {
		t.Fatal("a missing before eviction")
	}
	s.Set("c", []byte("3"), time.Minute)

	if _, ok := s.Get("b"); ok {
		t.Error("b survived eviction, want least recently used entry dropped")
	}
	if _, ok := s.Get("a"); !ok {
		t.Error("a evicted despite recent use")
	}
	if _, ok := s.Get("c"); !ok {
		t.Error("c missing after insert")
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	s := NewMemoryStore(4)
	s.Set("short", []byte("x"), -time.Second) // already expired
	s.Set("long", []byte("y"), time.Hour)

	if _, ok := s.Get("short"); ok {
		t.Error("expired entry returned")
	}
	if _, ok := s.Get("long"); !ok {
		t.Error("live entry missing")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after lazy eviction", s.Len())
	}
}

func TestMemoryStore_SetOverwrites(t *testing.T) {
	s := NewMemoryStore(4)
	s.Set("k", []byte("old"), time.Minute)
	s.Set("k", []byte("new"), time.Minute)

	v, ok := s.Get("k")
	if !ok || string(v) != "new" {
		t.Errorf("Get() = %q/%v, want updated value", v, ok)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestMemoryStore_InvalidateTag(t *testing.T) {
	s := NewMemoryStore(8)
	s.Set("doc1", []byte("a"), time.Minute, "bill:X", "docs")
	s.Set("doc2", []byte("b"), time.Minute, "bill:X")
	s.Set("other", []byte("c"), time.Minute, "bill:Y")

	s.InvalidateTag("bill:X")

	if _, ok := s.Get("doc1"); ok {
		t.Error("doc1 survived tag invalidation")
	}
	if _, ok := s.Get("doc2"); ok {
		t.Error("doc2 survived tag invalidation")
	}
	if _, ok := s.Get("other"); !ok {
		t.Error("entry with a different tag was invalidated")
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()

	s.Set("k", []byte("persisted"), time.Hour, "bill:Z")
	v, ok := s.Get("k")
	if !ok || !bytes.Equal(v, []byte("persisted")) {
		t.Fatalf("Get() = %q/%v", v, ok)
	}

	s.Set("expired", []byte("x"), -time.Second)
	if _, ok := s.Get("expired"); ok {
		t.Error("expired entry returned")
	}

	s.InvalidateTag("bill:Z")
	if _, ok := s.Get("k"); ok {
		t.Error("entry survived tag invalidation")
	}

	// Tag matching is exact, not substring.
	s.Set("a", []byte("1"), time.Hour, "bill:AB")
	s.InvalidateTag("bill:A")
	if _, ok := s.Get("a"); !ok {
		t.Error("invalidation of bill:A removed entry tagged bill:AB")
	}
}

func TestTieredCache_Repopulation(t *testing.T) {
	persistent := NewMemoryStore(8) // stands in for the sqlite tier
	c := &TieredCache{Memory: NewMemoryStore(8), Persistent: persistent, TTL: time.Minute}

	persistent.Set("k", []byte("from disk"), time.Minute)

	v, ok := c.Get("k")
	if !ok || string(v) != "from disk" {
		t.Fatalf("Get() = %q/%v, want persistent tier hit", v, ok)
	}
	// The miss must have repopulated the memory tier.
	if _, ok := c.Memory.Get("k"); !ok {
		t.Error("memory tier not repopulated after persistent hit")
	}
}

// clockStore reports a fixed remaining TTL for every entry, standing in for
// a persistent tier whose entries are already part-way through their life.
type clockStore struct {
	*MemoryStore
	remaining time.Duration
}

func (s *clockStore) GetWithTTL(key string) ([]byte, time.Duration, bool) {
	v, ok := s.MemoryStore.Get(key)
	return v, s.remaining, ok
}

func TestTieredCache_RepopulationKeepsRemainingTTL(t *testing.T) {
	persistent := &clockStore{MemoryStore: NewMemoryStore(8), remaining: 5 * time.Millisecond}
	c := &TieredCache{Memory: NewMemoryStore(8), Persistent: persistent, TTL: time.Hour}

	persistent.Set("k", []byte("v"), time.Hour)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("persistent tier missed")
	}

	// The repopulated memory entry must expire with its persistent twin,
	// not live a full fresh TTL.
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Memory.Get("k"); ok {
		t.Error("memory entry outlived the persistent tier's remaining TTL")
	}
}

func TestSQLiteStore_GetWithTTL(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()

	s.Set("k", []byte("v"), time.Hour)
	_, remaining, ok := s.GetWithTTL("k")
	if !ok {
		t.Fatal("GetWithTTL() missed a live entry")
	}
	if remaining <= 0 || remaining > time.Hour {
		t.Errorf("remaining = %v, want within (0, 1h]", remaining)
	}
}

func TestSQLiteStore_WriteFailureLoggedOnce(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	s.Close() // every statement from here on fails

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	s.Set("k", []byte("v"), time.Hour)
	s.Set("k", []byte("v"), time.Hour)
	s.InvalidateTag("bill:X")

	out := buf.String()
	if !strings.Contains(out, "persistent tier degraded") {
		t.Fatalf("log output %q, want degraded warning", out)
	}
	if strings.Count(out, "persistent tier degraded") != 1 {
		t.Errorf("degraded warning logged %d times, want once", strings.Count(out, "persistent tier degraded"))
	}
}

func TestTieredCache_WritesBothTiers(t *testing.T) {
	mem := NewMemoryStore(8)
	persistent := NewMemoryStore(8)
	c := &TieredCache{Memory: mem, Persistent: persistent, TTL: time.Minute}

	c.Set("k", []byte("v"), 0, "tag")
	if _, ok := mem.Get("k"); !ok {
		t.Error("memory tier missed the write")
	}
	if _, ok := persistent.Get("k"); !ok {
		t.Error("persistent tier missed the write")
	}

	c.InvalidateTag("tag")
	if _, ok := c.Get("k"); ok {
		t.Error("entry survived invalidation across tiers")
	}
}

func TestTieredCache_NilIsNoOp(t *testing.T) {
	var c *TieredCache

	c.Set("k", []byte("v"), time.Minute)
	c.InvalidateTag("tag")
	if _, ok := c.Get("k"); ok {
		t.Error("nil cache returned a value")
	}
}
