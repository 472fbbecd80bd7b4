package asynchook

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu     sync.Mutex
	events []string
	block  chan struct{}
}

func (r *recorder) add(e string) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) TierSkipped(tier, _ string)         { r.add("skipped:" + tier) }
func (r *recorder) TierRejected(tier, op, _ string)    { r.add("rejected:" + tier + ":" + op) }
func (r *recorder) GateMiss(master, _ string)          { r.add("gate:" + master) }
func (r *recorder) TierError(tier, op string, _ error) { r.add("error:" + tier + ":" + op) }

func TestDeliversBeforeClose(t *testing.T) {
	rec := &recorder{}
	h := New(rec, 1, 16)

	h.TierSkipped("memory", "k")
	h.TierRejected("ristretto", "add", "k")
	h.GateMiss("redis", "k")
	h.TierError("redis", "get", errors.New("x"))
	h.Close()

	assert.Equal(t, []string{"skipped:memory", "rejected:ristretto:add", "gate:redis", "error:redis:get"}, rec.events)
}

func TestDropsWhenFull(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	h := New(rec, 1, 1)

	for i := 0; i < 10; i++ {
		h.GateMiss("redis", "k")
	}
	close(rec.block)
	h.Close()

	assert.LessOrEqual(t, len(rec.events), 2, "one in flight plus one queued")
	assert.NotEmpty(t, rec.events)
	assert.Equal(t, uint64(10-len(rec.events)), h.Dropped())
}

func TestSendAfterCloseIsDropped(t *testing.T) {
	rec := &recorder{}
	h := New(rec, 2, 4)
	h.Close()
	h.Close()

	assert.NotPanics(t, func() { h.GateMiss("redis", "k") })
	assert.Empty(t, rec.events)
	assert.Equal(t, uint64(1), h.Dropped())
}
