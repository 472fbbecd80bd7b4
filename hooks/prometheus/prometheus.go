// Package prometheus counts orchestration events. Keys are never used as
// labels; only tier names and operations are.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/multicache"
)

type Options struct {
	Namespace   string // "" => "multicache"
	Subsystem   string
	ConstLabels prometheus.Labels
}

type Hooks struct {
	skipped  *prometheus.CounterVec
	rejected *prometheus.CounterVec
	gateMiss *prometheus.CounterVec
	errors   *prometheus.CounterVec
}

var _ multicache.Hooks = (*Hooks)(nil)

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer, opts Options) (*Hooks, error) {
	ns := opts.Namespace
	if ns == "" {
		ns = "multicache"
	}
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   opts.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: opts.ConstLabels,
		}, labels)
	}
	h := &Hooks{
		skipped:  counter("tier_skipped_total", "Writes that skipped a tier on request.", "tier"),
		rejected: counter("tier_rejected_total", "Tier operations that returned false.", "tier", "op"),
		gateMiss: counter("gate_miss_total", "Reads that missed because the master tier lacked the key.", "master"),
		errors:   counter("tier_errors_total", "Tier operations that failed.", "tier", "op"),
	}
	for _, c := range []prometheus.Collector{h.skipped, h.rejected, h.gateMiss, h.errors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) TierSkipped(tier, _ string) { h.skipped.WithLabelValues(tier).Inc() }
func (h *Hooks) GateMiss(master, _ string)  { h.gateMiss.WithLabelValues(master).Inc() }
func (h *Hooks) TierRejected(tier, op, _ string) {
	h.rejected.WithLabelValues(tier, op).Inc()
}
func (h *Hooks) TierError(tier, op string, _ error) {
	h.errors.WithLabelValues(tier, op).Inc()
}
