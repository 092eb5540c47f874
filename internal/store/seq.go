package store

import "sync"

// seqGenerator hands out strictly increasing unix-nano timestamps per
// conversation, so two concurrent appends in one conversation can
// never collide or land out of order.
type seqGenerator struct {
	mu       sync.Mutex
	lastNano map[string]int64
}

func newSeqGenerator() *seqGenerator {
	return &seqGenerator{lastNano: make(map[string]int64)}
}

func (g *seqGenerator) next(convKey string, nowNano int64) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if last := g.lastNano[convKey]; nowNano <= last {
		nowNano = last + 1
	}
	g.lastNano[convKey] = nowNano
	return nowNano
}
