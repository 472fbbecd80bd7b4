// Package asynchook moves hook delivery off the request path.
//
// Multi fires hooks synchronously inside Get/Add/Remove. Wrapping a slow
// implementation (one that logs or exports over the network) in Hooks queues
// the events instead; when the queue is full they are dropped and counted.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{GateMissEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000)
//	defer hooks.Close()
//
//	m, err := multicache.New(ctx, multicache.Config{
//		Providers: "memory:30, redis",
//		Hooks:     hooks,
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/multicache"
)

type kind uint8

const (
	skipped kind = iota
	rejected
	gateMiss
	tierError
)

type event struct {
	kind     kind
	tier, op string
	key      string
	err      error
}

type Hooks struct {
	inner   multicache.Hooks
	q       chan event
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64

	mu     sync.RWMutex // guards q against send-after-close
	closed bool
}

var _ multicache.Hooks = (*Hooks)(nil)

// New starts workers goroutines draining a queue of qlen events into inner.
func New(inner multicache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}
	h := &Hooks{inner: inner, q: make(chan event, qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go h.run()
	}
	return h
}

func (h *Hooks) run() {
	defer h.wg.Done()
	for ev := range h.q {
		switch ev.kind {
		case skipped:
			h.inner.TierSkipped(ev.tier, ev.key)
		case rejected:
			h.inner.TierRejected(ev.tier, ev.op, ev.key)
		case gateMiss:
			h.inner.GateMiss(ev.tier, ev.key)
		case tierError:
			h.inner.TierError(ev.tier, ev.op, ev.err)
		}
	}
}

// Close delivers what is already queued and stops the workers. Events fired
// after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded because the queue was full
// or Close had been called.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) send(ev event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- ev:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) TierSkipped(tier, key string) { h.send(event{kind: skipped, tier: tier, key: key}) }
func (h *Hooks) GateMiss(master, key string)  { h.send(event{kind: gateMiss, tier: master, key: key}) }

func (h *Hooks) TierRejected(tier, op, key string) {
	h.send(event{kind: rejected, tier: tier, op: op, key: key})
}

func (h *Hooks) TierError(tier, op string, err error) {
	h.send(event{kind: tierError, tier: tier, op: op, err: err})
}
