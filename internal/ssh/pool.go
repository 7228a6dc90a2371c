package ssh

import (
	"context"
	"sync"
	"time"

	"webforge/internal/logging"
)

// DefaultMaxIdle is how long an unused build-host connection stays open.
const DefaultMaxIdle = 15 * time.Minute

// Pool shares build-host connections across generations, keyed by
// Target.Key. Idle connections are closed by a background sweep.
type Pool struct {
	mu      sync.Mutex
	conns   map[string]*Conn
	maxIdle time.Duration
	stop    chan struct{}
	once    sync.Once
}

// NewPool creates a pool and starts its idle sweep.
func NewPool(maxIdle time.Duration) *Pool {
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}
	p := &Pool{
		conns:   make(map[string]*Conn),
		maxIdle: maxIdle,
		stop:    make(chan struct{}),
	}
	go p.sweepLoop()
	return p
}

// Acquire returns a dialed connection to t. A connection that fails to dial
// is dropped from the pool.
func (p *Pool) Acquire(ctx context.Context, t *Target) (*Conn, error) {
	key := t.Key()

	p.mu.Lock()
	c, ok := p.conns[key]
	if !ok {
		c = NewConn(t)
		p.conns[key] = c
	}
	p.mu.Unlock()

	if err := c.Dial(ctx); err != nil {
		p.mu.Lock()
		if p.conns[key] == c {
			delete(p.conns, key)
		}
		p.mu.Unlock()
		return nil, err
	}
	return c, nil
}

// Len returns the number of pooled connections.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Sweep closes connections idle longer than the pool's limit and returns
// how many it closed.
func (p *Pool) Sweep() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	closed := 0
	now := time.Now()
	for key, c := range p.conns {
		if idle, ok := c.idleFor(now); ok && idle > p.maxIdle {
			logging.Debug("closing idle build-host connection", "key", key, "idle", idle)
			c.Close()
			delete(p.conns, key)
			closed++
		}
	}
	return closed
}

func (p *Pool) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.Sweep()
		case <-p.stop:
			return
		}
	}
}

// Close stops the sweep and closes every connection.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.stop) })

	p.mu.Lock()
	defer p.mu.Unlock()
	for key, c := range p.conns {
		if err := c.Close(); err != nil {
			logging.Warn("error closing build-host connection", "key", key, "error", err)
		}
	}
	p.conns = make(map[string]*Conn)
}
