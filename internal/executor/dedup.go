package executor

import (
	"sync"
	"time"
)

// Dedup prevents a trade intent from being executed more than once within a
// configurable time-to-live window. Intents are identified by their UUID, so
// a retry is always a fresh intent and is never deduplicated. Safe for
// concurrent use.
type Dedup struct {
	seen map[string]time.Time // intentID -> last seen time
	ttl  time.Duration
	mu   sync.Mutex
}

// NewDedup creates a Dedup instance that considers an intent a duplicate if
// it has been seen within the given ttl.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// IsDuplicate returns true if the intentID has been seen within the TTL
// window. If the intent has not been seen (or has expired), it is recorded
// and false is returned.
func (d *Dedup) IsDuplicate(intentID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if lastSeen, ok := d.seen[intentID]; ok {
		if now.Sub(lastSeen) < d.ttl {
			return true
		}
	}

	d.seen[intentID] = now
	return false
}

// Cleanup removes entries that have expired beyond the TTL. This should be
// called periodically to prevent unbounded memory growth.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for id, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, id)
		}
	}
}
