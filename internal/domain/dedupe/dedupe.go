// Package dedupe tracks keys of in-flight work so the same job is not queued twice.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Deduper records seen keys to ensure at-most-once scheduling.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen (and not expired), false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord removes a key, allowing it to be scheduled again. Called when the
	// work finished or could not be queued.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	key      string
	recorded time.Time
}

// inMemoryDeduper keeps keys in insertion order. When full, the oldest key is evicted.
// Keys older than ttl count as unseen.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front is oldest
	maxSize int        // 0 or negative = unbounded
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 10000,
		ttl:     10 * time.Minute,
		now:     time.Now,
	}

	// Apply all options
	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

// SeenAndRecord implements Deduper.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if el, ok := d.seen[key]; ok {
		if !d.expired(el.Value.(*entry), now) {
			return true
		}
		d.removeLocked(el)
	}

	if d.maxSize > 0 {
		for len(d.seen) >= d.maxSize {
			d.removeLocked(d.order.Front())
		}
	}
	d.seen[key] = d.order.PushBack(&entry{key: key, recorded: now})
	return false
}

// Unrecord implements Deduper.
func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.removeLocked(el)
	}
}

// Size returns the current number of entries, including expired ones not yet reclaimed.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}

func (d *inMemoryDeduper) expired(e *entry, now time.Time) bool {
	return d.ttl > 0 && now.Sub(e.recorded) >= d.ttl
}

// removeLocked must be called with d.mu held.
func (d *inMemoryDeduper) removeLocked(el *list.Element) {
	e := d.order.Remove(el).(*entry)
	delete(d.seen, e.key)
}
