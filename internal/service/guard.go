package service

import "sync"

// inflightGuard serializes mutations per staff member. A double-tap on the
// production or close button must not run the operation twice; the second
// call fails fast with ErrOperationInFlight instead of queueing.
type inflightGuard struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newInflightGuard() *inflightGuard {
	return &inflightGuard{keys: make(map[string]struct{})}
}

func (g *inflightGuard) acquire(key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.keys[key]; held {
		return nil, ErrOperationInFlight
	}
	g.keys[key] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.keys, key)
			g.mu.Unlock()
		})
	}
	return release, nil
}
