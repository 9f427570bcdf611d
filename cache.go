package kernelcache

import (
	"iter"
	"log/slog"
	"unsafe"

	"github.com/djdv/go-kernelcache/internal/ring"
)

type (
	// Element is the storage type of cached kernel values.
	Element interface{ ~float32 | ~float64 }

	row[E Element] = ring.Ring[int, []E]

	// Cache stores kernel rows keyed by sample index
	// under a fixed element budget, evicting the least
	// recently used rows when the budget would be exceeded.
	// Concurrent access must be guarded by the caller.
	// Constructed by [New].
	Cache[E Element] struct {
		index    map[int]*row[E]
		// lru is the tail of the recency ring (most recent);
		// lru.Next() is the head (least recent).
		lru      *row[E]
		scratch  []E
		log      *slog.Logger
		stats    Stats
		capacity int
		size     int
	}

	// Stats counts cache events since construction.
	Stats struct {
		// Hits are fetches fully served from a resident row.
		Hits uint64
		// Misses are fetches of a key with no resident row.
		Misses uint64
		// Grows are fetches that extended a resident row.
		Grows uint64
		// Evictions are rows removed to free budget.
		Evictions uint64
		// Overflows are fetches longer than the whole budget,
		// served from scratch space without being retained.
		Overflows uint64
		// Rows and Elements describe what is currently resident.
		Rows, Elements int
		// Capacity is the element budget.
		Capacity int
	}
)

// New creates a [Cache] whose resident rows may hold at most
// budgetBytes worth of elements in total.
func New[E Element](budgetBytes int64, options ...Option) (*Cache[E], error) {
	var (
		zero        E
		elementSize = unsafe.Sizeof(zero)
		capacity    = budgetBytes / int64(elementSize)
	)
	if capacity < 1 {
		return nil, minBudgetError(budgetBytes, elementSize)
	}
	s := newSettings(options)
	return &Cache[E]{
		index:    make(map[int]*row[E]),
		capacity: int(capacity),
		log:      s.logger,
	}, nil
}

// Fetch returns a row for key holding at least length elements,
// and how many of them (from the start) are already valid.
// Elements in [valid, length) must be filled in by the caller
// before the next call on the cache.
// The row remains owned by the cache and must not be retained
// across calls.
//
// A row that does not fit in the budget even after evicting
// every other row is not retained; such a request is served
// from scratch space with valid == 0.
func (c *Cache[E]) Fetch(key, length int) (data []E, valid int) {
	if debugging {
		assert(key >= 0, "negative row key")
		assert(length >= 0, "negative row length")
	}
	page, resident := c.index[key]
	if resident {
		if have := len(page.Value); have >= length {
			c.stats.Hits++
			c.moveToLRU(page)
			return page.Value[:length], length
		}
		c.stats.Grows++
		c.unlink(page)
	} else {
		c.stats.Misses++
		page = &row[E]{Name: key}
	}
	var (
		have = len(page.Value)
		more = length - have
	)
	c.evictFor(more)
	if c.size+more > c.capacity {
		return c.overflow(page, length), 0
	}
	page.Value = grow(page.Value, length)
	c.size += more
	c.index[key] = page
	c.addToLRU(page)
	return page.Value, have
}

// Swap exchanges the rows stored under keys a and b.
// Row data is not moved or recomputed; only the keys change.
// If only one of the keys is resident, its row is relabeled
// to the other key. Recency order is unaffected.
func (c *Cache[E]) Swap(a, b int) {
	if a == b {
		return
	}
	pageA, hadA := c.index[a]
	pageB, hadB := c.index[b]
	switch {
	case hadA && hadB:
		pageA.Name, pageB.Name = b, a
		c.index[a], c.index[b] = pageB, pageA
	case hadA:
		pageA.Name = b
		delete(c.index, a)
		c.index[b] = pageA
	case hadB:
		pageB.Name = a
		delete(c.index, b)
		c.index[a] = pageB
	}
}

// Len returns the number of resident rows.
func (c *Cache[_]) Len() int { return len(c.index) }

// Size returns the summed length of resident rows.
func (c *Cache[_]) Size() int { return c.size }

// Capacity returns the element budget.
func (c *Cache[_]) Capacity() int { return c.capacity }

// Stats returns a snapshot of the cache's counters.
func (c *Cache[_]) Stats() Stats {
	stats := c.stats
	stats.Rows = c.Len()
	stats.Elements = c.size
	stats.Capacity = c.capacity
	return stats
}

// Keys returns an iterator over the keys of resident rows,
// from least to most recently used.
func (c *Cache[_]) Keys() iter.Seq[int] {
	return func(yield func(int) bool) {
		if c.lru == nil {
			return
		}
		for page := range c.lru.Next().Iter() {
			if !yield(page.Name) {
				return
			}
		}
	}
}

// evictFor evicts from the head of the recency ring
// until more elements fit or nothing is left to evict.
func (c *Cache[_]) evictFor(more int) {
	for c.size+more > c.capacity &&
		c.lru != nil {
		c.evictOldest()
	}
}

func (c *Cache[_]) evictOldest() {
	page := c.lru.Next()
	c.unlink(page)
	c.release(page)
	c.stats.Evictions++
}

// release drops the page from the index and the budget.
// The page must already be unlinked.
func (c *Cache[E]) release(page *row[E]) {
	delete(c.index, page.Name)
	c.size -= len(page.Value)
	page.Value = nil
}

// overflow serves a request that cannot be retained.
// Any resident prefix for the key is discarded.
func (c *Cache[E]) overflow(page *row[E], length int) []E {
	if _, resident := c.index[page.Name]; resident {
		c.release(page)
	}
	c.stats.Overflows++
	c.log.Warn("kernel row exceeds cache budget",
		slog.Int("key", page.Name),
		slog.Int("length", length),
		slog.Int("capacity", c.capacity),
	)
	c.scratch = grow(c.scratch[:0], length)
	return c.scratch
}

func (c *Cache[E]) addToLRU(page *row[E]) {
	if c.lru != nil {
		c.lru.Link(page)
	}
	c.lru = page
	if debugging {
		assert(c.lru.Len() == len(c.index),
			"recency ring and index disagree")
		assert(c.size <= c.capacity,
			"resident rows exceed budget")
	}
}

func (c *Cache[E]) moveToLRU(page *row[E]) {
	if page == c.lru {
		return
	}
	leaf := page.Prev().Unlink(1)
	c.lru.Link(leaf)
	c.lru = leaf
}

// unlink removes the page from the recency ring,
// leaving it as a ring of one.
func (c *Cache[E]) unlink(page *row[E]) {
	if page.Next() == page {
		c.lru = nil
		return
	}
	if page == c.lru {
		c.lru = page.Prev()
	}
	page.Prev().Unlink(1)
}

// grow extends data to length, preserving its contents.
// Storage is only reallocated when capacity is insufficient.
func grow[E Element](data []E, length int) []E {
	if cap(data) >= length {
		return data[:length]
	}
	grown := make([]E, length)
	copy(grown, data)
	return grown
}
