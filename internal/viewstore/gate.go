package viewstore

import "sync"

// ReadyGate is a one-shot, replayable readiness signal. Callbacks
// registered before the gate fires run on Fire in registration order;
// callbacks registered afterwards run immediately.
type ReadyGate struct {
	mu      sync.Mutex
	ready   bool
	waiters []func()
}

// OnReady runs fn once the gate has fired.
func (g *ReadyGate) OnReady(fn func()) {
	g.mu.Lock()
	if g.ready {
		g.mu.Unlock()
		fn()
		return
	}
	g.waiters = append(g.waiters, fn)
	g.mu.Unlock()
}

// Fire opens the gate. Subsequent calls are no-ops.
func (g *ReadyGate) Fire() {
	g.mu.Lock()
	if g.ready {
		g.mu.Unlock()
		return
	}
	g.ready = true
	waiters := g.waiters
	g.waiters = nil
	g.mu.Unlock()
	for _, fn := range waiters {
		fn()
	}
}

// Ready reports whether the gate has fired.
func (g *ReadyGate) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}
