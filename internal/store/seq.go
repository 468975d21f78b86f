package store

import "sync"

type seqGenerator struct {
	mu   sync.Mutex
	last int64
}

func newSeqGenerator() *seqGenerator {
	return &seqGenerator{}
}

func (g *seqGenerator) next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last++
	return g.last
}

// observe moves the generator past an id loaded from disk.
func (g *seqGenerator) observe(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id > g.last {
		g.last = id
	}
}
