package main

import "sync"

const transcriptionCacheCapacity = 100

// TranscriptionCache maps message IDs to transcribed audio text. It is
// insertion-ordered: when full, the oldest entry is evicted, regardless of
// how recently it was read. Shared across handler goroutines.
type TranscriptionCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]string
	order    []string
}

func NewTranscriptionCache(capacity int) *TranscriptionCache {
	if capacity < 1 {
		capacity = transcriptionCacheCapacity
	}
	return &TranscriptionCache{
		capacity: capacity,
		entries:  make(map[string]string, capacity),
	}
}

func (c *TranscriptionCache) Put(messageID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[messageID]; !ok {
		if len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, messageID)
	}
	c.entries[messageID] = text
}

func (c *TranscriptionCache) Get(messageID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.entries[messageID]
	return text, ok
}

func (c *TranscriptionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
