package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
)

// SummaryCache is the per-process code → session summary table. Entries live in a flat arena;
// the code index points at slots, and released slots are reused before the arena grows.
type SummaryCache struct {
	mu    sync.RWMutex
	arena []domain.SessionSummary
	free  []int
	index map[string]int
}

func NewSummaryCache() *SummaryCache {
	return &SummaryCache{index: make(map[string]int)}
}

func (c *SummaryCache) Put(_ context.Context, summary domain.SessionSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slot, ok := c.index[summary.Code]; ok {
		c.arena[slot] = summary
		return
	}
	var slot int
	if n := len(c.free); n > 0 {
		slot = c.free[n-1]
		c.free = c.free[:n-1]
		c.arena[slot] = summary
	} else {
		slot = len(c.arena)
		c.arena = append(c.arena, summary)
	}
	c.index[summary.Code] = slot
}

func (c *SummaryCache) Lookup(_ context.Context, code string) (domain.SessionSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	slot, ok := c.index[code]
	if !ok {
		return domain.SessionSummary{}, false
	}
	return c.arena[slot], true
}

func (c *SummaryCache) Release(_ context.Context, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot, ok := c.index[code]
	if !ok {
		return
	}
	delete(c.index, code)
	c.arena[slot] = domain.SessionSummary{}
	c.free = append(c.free, slot)
}

// Len reports the number of cached codes.
func (c *SummaryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.index)
}
