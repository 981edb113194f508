// s3fifo.go wraps a bboltCache with an in-memory S3-FIFO eviction layer,
// bounding both the hot in-memory footprint and the on-disk store size.
//
// # Algorithm
//
// S3-FIFO ("Simple, Scalable, FIFO-based cache eviction", Yang et al., 2023)
// uses two FIFO queues and a bounded ghost set:
//
//   - S (small, ~10% of capacity): probationary queue. All new keys land here.
//   - M (main, ~90% of capacity): protected queue. Keys promoted from S
//     after at least one access (freq > 0) land here.
//   - G (ghost): a circular-buffer set of keys recently evicted from S,
//     bounded to 2x sTarget. A key found in G on insert bypasses S and goes
//     directly to M.
//
// Per-object state: saturating frequency counter (uint8, max 3). Incremented
// on every Get hit; reset to 0 on M promotion.
package llmcache

import (
	"container/list"
	"log"
	"sync"

	"pii-scrubber/internal/entity"
)

type s3fifoEntry struct {
	value []entity.Entity
	freq  uint8
	elem  *list.Element
	inM   bool
}

type s3fifoCache struct {
	mu sync.Mutex

	capacity int
	sTarget  int
	ghostCap int

	entries map[string]*s3fifoEntry
	sQueue  *list.List
	mQueue  *list.List

	ghostBuf   []string
	ghostSet   map[string]struct{}
	ghostHead  int
	ghostCount int

	backing *bboltCache
}

// newS3FIFOCache returns a Cache that applies S3-FIFO eviction in front of
// backing. capacity is the maximum number of items kept in memory (and on
// disk); values < 2 are clamped to 2.
func newS3FIFOCache(backing *bboltCache, capacity int) Cache {
	if capacity < 2 {
		capacity = 2
	}
	sTarget := capacity / 10
	if sTarget < 1 {
		sTarget = 1
	}
	ghostCap := 2 * sTarget
	if ghostCap < 4 {
		ghostCap = 4
	}
	log.Printf("[LLMCACHE] S3-FIFO cache capacity=%d sTarget=%d ghostCap=%d", capacity, sTarget, ghostCap)
	return &s3fifoCache{
		capacity: capacity,
		sTarget:  sTarget,
		ghostCap: ghostCap,
		entries:  make(map[string]*s3fifoEntry, capacity),
		sQueue:   list.New(),
		mQueue:   list.New(),
		ghostBuf: make([]string, ghostCap),
		ghostSet: make(map[string]struct{}, ghostCap),
		backing:  backing,
	}
}

// Get returns the cached entities for text.
// Memory hit: freq counter incremented.
// Memory miss: backing store consulted; a hit there re-warms memory.
func (c *s3fifoCache) Get(text string) ([]entity.Entity, bool) {
	key := Key(text)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if e.freq < 3 {
			e.freq++
		}
		v := e.value
		c.mu.Unlock()
		return v, true
	}
	c.mu.Unlock()

	entities, ok := c.backing.Get(text)
	if !ok {
		return nil, false
	}
	c.insertLocked(key, entities)
	return entities, true
}

// Set stores text -> entities in memory and in the backing store.
func (c *s3fifoCache) Set(text string, entities []entity.Entity) {
	c.insertLocked(Key(text), entities)
	c.backing.Set(text, entities)
}

// Close closes the backing store. In-memory state is discarded.
func (c *s3fifoCache) Close() error {
	return c.backing.Close()
}

func (c *s3fifoCache) insertLocked(key string, value []entity.Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		return
	}

	inM := c.ghostContains(key)
	var elem *list.Element
	if inM {
		elem = c.mQueue.PushBack(key)
	} else {
		elem = c.sQueue.PushBack(key)
	}
	c.entries[key] = &s3fifoEntry{value: value, freq: 0, elem: elem, inM: inM}

	for c.sQueue.Len()+c.mQueue.Len() > c.capacity {
		c.evictOne()
	}
}

func (c *s3fifoCache) evictOne() {
	if c.sQueue.Len() > 0 {
		c.evictFromS()
		return
	}
	c.evictFromM()
}

func (c *s3fifoCache) evictFromS() {
	front := c.sQueue.Front()
	if front == nil {
		return
	}
	key, ok := front.Value.(string)
	if !ok {
		c.sQueue.Remove(front)
		return
	}
	c.sQueue.Remove(front)

	e, ok := c.entries[key]
	if !ok {
		return
	}

	if e.freq > 0 {
		e.freq = 0
		e.inM = true
		e.elem = c.mQueue.PushBack(key)
		mTarget := c.capacity - c.sTarget
		if c.mQueue.Len() > mTarget {
			c.evictFromM()
		}
	} else {
		delete(c.entries, key)
		c.ghostAdd(key)
		go c.backing.delete(key) //nolint:errcheck // async: avoid blocking the hot path; keyed by hash, not raw text
	}
}

func (c *s3fifoCache) evictFromM() {
	front := c.mQueue.Front()
	if front == nil {
		return
	}
	key, ok := front.Value.(string)
	if !ok {
		c.mQueue.Remove(front)
		return
	}
	c.mQueue.Remove(front)
	delete(c.entries, key)
	go c.backing.delete(key) //nolint:errcheck // async: avoid blocking the hot path
}

func (c *s3fifoCache) ghostContains(key string) bool {
	_, ok := c.ghostSet[key]
	return ok
}

func (c *s3fifoCache) ghostAdd(key string) {
	if _, exists := c.ghostSet[key]; exists {
		return
	}
	if c.ghostCount == c.ghostCap {
		oldest := c.ghostBuf[c.ghostHead]
		delete(c.ghostSet, oldest)
		c.ghostHead = (c.ghostHead + 1) % c.ghostCap
		c.ghostCount--
	}
	writeIdx := (c.ghostHead + c.ghostCount) % c.ghostCap
	c.ghostBuf[writeIdx] = key
	c.ghostSet[key] = struct{}{}
	c.ghostCount++
}
