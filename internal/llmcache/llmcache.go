// Package llmcache is an optional, cross-call cache of LLM detection
// results, keyed by a content hash of the string the caller passes (the
// LLM detector passes the chunk text together with its masked form).
//
// Re-scrubbing the same document (the same chunk texts) would otherwise pay
// for the same LLM calls twice.
//
// Cache is strictly optional and additive: a cache hit and a fresh LLM call
// for the same input must produce the same relocated entities, so disabling
// the cache (Config.CacheFile == "") cannot change detection results, only
// the number of LLM calls made.
package llmcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	bolt "go.etcd.io/bbolt"

	"pii-scrubber/internal/entity"
)

// Cache is the cross-call LLM detection-result cache interface. All
// implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached entities for the given chunk text, if present.
	Get(text string) (entities []entity.Entity, ok bool)

	// Set stores text -> entities. Overwrites any existing entry silently.
	Set(text string, entities []entity.Entity)

	// Close releases any resources held by the cache (e.g. file handles).
	Close() error
}

// Key hashes chunk text into a fixed-length cache key so neither the bbolt
// key nor the in-memory map key grows with input size.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// --- memoryCache ---------------------------------------------------------

// memoryCache is an unbounded in-memory Cache, used unwrapped when no cache
// file is configured; its mutex makes it safe for concurrent use.
type memoryCache struct {
	mu    sync.RWMutex
	store map[string][]entity.Entity
}

func newMemoryCache() Cache {
	return &memoryCache{store: make(map[string][]entity.Entity)}
}

func (c *memoryCache) Get(text string) ([]entity.Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.store[Key(text)]
	return v, ok
}

func (c *memoryCache) Set(text string, entities []entity.Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[Key(text)] = entities
}

func (c *memoryCache) Close() error { return nil }

// --- bboltCache ------------------------------------------------------------

const bboltBucket = "llm_detections"

// bboltCache is a Cache backed by an embedded bbolt database, so detection
// results survive process restarts.
type bboltCache struct {
	db *bolt.DB
}

func newBboltCache(path string) (Cache, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bbolt llm cache %q: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bboltBucket))
		return err
	}); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("create bbolt bucket: %w", err)
	}
	log.Printf("[LLMCACHE] persistent cache opened at %s", path)
	return &bboltCache{db: db}, nil
}

func (c *bboltCache) Get(text string) ([]entity.Entity, bool) {
	key := []byte(Key(text))
	var raw []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bboltBucket))
		if b == nil {
			return nil
		}
		v := b.Get(key)
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || raw == nil {
		return nil, false
	}
	var entities []entity.Entity
	if err := json.Unmarshal(raw, &entities); err != nil {
		log.Printf("[LLMCACHE] corrupt cache entry for key %s: %v", Key(text), err)
		return nil, false
	}
	return entities, true
}

func (c *bboltCache) Set(text string, entities []entity.Entity) {
	raw, err := json.Marshal(entities)
	if err != nil {
		log.Printf("[LLMCACHE] marshal error: %v", err)
		return
	}
	key := []byte(Key(text))
	if err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bboltBucket))
		if b == nil {
			return fmt.Errorf("bucket %q not found", bboltBucket)
		}
		return b.Put(key, raw)
	}); err != nil {
		log.Printf("[LLMCACHE] bbolt Set error: %v", err)
	}
}

// delete removes the entry for an already-hashed cache key (see Key). It
// takes the hash directly, rather than raw text, so callers that only have
// the key (e.g. the S3-FIFO eviction path) don't need to keep the original
// text around just to delete its cache entry.
func (c *bboltCache) delete(hashedKey string) {
	key := []byte(hashedKey)
	if err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bboltBucket))
		if b == nil {
			return nil
		}
		return b.Delete(key)
	}); err != nil {
		log.Printf("[LLMCACHE] bbolt delete error: %v", err)
	}
}

func (c *bboltCache) Close() error {
	return c.db.Close()
}

// --- constructors ------------------------------------------------------

// defaultCacheCapacity bounds the S3-FIFO in-memory layer (and, indirectly,
// on-disk size: evicted entries are deleted from bbolt).
const defaultCacheCapacity = 20_000

// New returns a Cache. If path is empty, an unbounded in-memory cache is
// used (suitable for tests and stateless single-process runs). If path is
// non-empty, a bbolt-backed cache wrapped in an S3-FIFO in-memory eviction
// layer of defaultCacheCapacity entries is used.
func New(path string) Cache {
	return NewWithCapacity(path, defaultCacheCapacity)
}

// NewWithCapacity is like New but allows explicit control over the S3-FIFO
// cache capacity. Use 0 to disable the S3-FIFO layer and use bbolt directly
// (for testing only).
func NewWithCapacity(path string, capacity int) Cache {
	if path == "" {
		return newMemoryCache()
	}
	backing, err := newBboltCache(path)
	if err != nil {
		log.Printf("[LLMCACHE] failed to open persistent cache at %q, falling back to memory: %v", path, err)
		return newMemoryCache()
	}
	if capacity <= 0 {
		return backing
	}
	return newS3FIFOCache(backing.(*bboltCache), capacity)
}
