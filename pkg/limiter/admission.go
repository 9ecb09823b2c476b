package limiter

import (
	"errors"
	"sync"
)

// ErrTooBusy is returned when a client already has its maximum number of
// turns in flight. It maps to HTTP 429 and is never retried server-side.
var ErrTooBusy = errors.New("故事正在生成中，请等待当前回合完成。")

// Gate bounds in-flight turns per client identity, independent of the global
// limiter. Counters are removed as soon as they reach zero so the map never
// grows with the number of distinct clients seen.
type Gate struct {
	mu        sync.Mutex
	active    map[string]int
	maxActive int
}

func NewGate(maxPerClient int) *Gate {
	if maxPerClient < 1 {
		maxPerClient = 1
	}
	return &Gate{active: make(map[string]int), maxActive: maxPerClient}
}

// Enter admits one turn for identity or fails with ErrTooBusy before any
// upstream work begins.
func (g *Gate) Enter(identity string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[identity] >= g.maxActive {
		return ErrTooBusy
	}
	g.active[identity]++
	return nil
}

// Active reports how many turns identity currently has in flight.
func (g *Gate) Active(identity string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active[identity]
}

// Leave releases one admitted turn. Callers must pair it with every
// successful Enter regardless of the turn's outcome.
func (g *Gate) Leave(identity string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[identity] <= 1 {
		delete(g.active, identity)
		return
	}
	g.active[identity]--
}
