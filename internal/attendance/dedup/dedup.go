// Package dedup detects re-delivered inbound events within a rolling window.
package dedup

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"
	"time"
)

// DefaultWindow is how long a delivery is remembered.
const DefaultWindow = 5 * time.Minute

// Cache remembers recently seen deliveries keyed by a hash of the sender,
// message text, and delivery timestamp. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[[sha256.Size]byte]time.Time
	now     func() time.Time
}

// New creates a cache with the given window. A non-positive window falls
// back to DefaultWindow.
func New(window time.Duration) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Cache{
		window:  window,
		entries: make(map[[sha256.Size]byte]time.Time),
		now:     time.Now,
	}
}

// CheckAndRecord reports whether this delivery was already seen within the
// window, recording it when it was not. Check and insert happen atomically
// so two near-simultaneous duplicate deliveries cannot both pass.
func (c *Cache) CheckAndRecord(senderID, text string, timestampMs int64) bool {
	key := deliveryKey(senderID, text, timestampMs)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.purgeLocked(now)

	if _, seen := c.entries[key]; seen {
		return true
	}
	c.entries[key] = now
	return false
}

// Purge removes entries older than the window.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeLocked(c.now())
}

// Len reports the number of remembered deliveries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) purgeLocked(now time.Time) {
	cutoff := now.Add(-c.window)
	for key, seen := range c.entries {
		if seen.Before(cutoff) {
			delete(c.entries, key)
		}
	}
}

func deliveryKey(senderID, text string, timestampMs int64) [sha256.Size]byte {
	h := sha256.New()
	h.Write([]byte(senderID))
	h.Write([]byte{0})
	h.Write([]byte(text))
	h.Write([]byte{0})
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(timestampMs))
	h.Write(ts[:])

	var key [sha256.Size]byte
	copy(key[:], h.Sum(nil))
	return key
}
