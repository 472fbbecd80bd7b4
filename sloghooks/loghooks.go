// Package sloghooks reports Multi events through log/slog.
package sloghooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/multicache"
)

type Options struct {
	// Log one in every N skipped tiers or gate misses. 0 and 1 log all.
	SkippedEvery  uint64
	GateMissEvery uint64
	// Redact maps storage keys before they are logged. The default is the
	// first 8 bytes of their SHA-256, hex encoded.
	Redact func(string) string
}

type Hooks struct {
	l      *slog.Logger
	redact func(string) string

	skipped  sampler
	gateMiss sampler
}

var _ multicache.Hooks = (*Hooks)(nil)

// New returns hooks that log through l. A nil l disables every event.
func New(l *slog.Logger, opts Options) *Hooks {
	redact := opts.Redact
	if redact == nil {
		redact = digest
	}
	return &Hooks{
		l:        l,
		redact:   redact,
		skipped:  sampler{every: opts.SkippedEvery},
		gateMiss: sampler{every: opts.GateMissEvery},
	}
}

func digest(k string) string {
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

type sampler struct {
	every uint64
	n     atomic.Uint64
}

func (s *sampler) take() bool {
	if s.every <= 1 {
		return true
	}
	return s.n.Add(1)%s.every == 0
}

func (h *Hooks) emit(level slog.Level, msg string, attrs ...slog.Attr) {
	h.l.LogAttrs(context.Background(), level, msg, attrs...)
}

func (h *Hooks) TierSkipped(tier, storageKey string) {
	if h.l == nil || !h.skipped.take() {
		return
	}
	h.emit(slog.LevelDebug, "multicache.tier_skipped",
		slog.String("tier", tier), slog.String("key", h.redact(storageKey)))
}

func (h *Hooks) TierRejected(tier, op, storageKey string) {
	if h.l == nil {
		return
	}
	h.emit(slog.LevelWarn, "multicache.tier_rejected",
		slog.String("tier", tier), slog.String("op", op), slog.String("key", h.redact(storageKey)))
}

func (h *Hooks) GateMiss(master, storageKey string) {
	if h.l == nil || !h.gateMiss.take() {
		return
	}
	h.emit(slog.LevelDebug, "multicache.gate_miss",
		slog.String("master", master), slog.String("key", h.redact(storageKey)))
}

// TierError is never sampled.
func (h *Hooks) TierError(tier, op string, err error) {
	if h.l == nil {
		return
	}
	h.emit(slog.LevelError, "multicache.tier_error",
		slog.String("tier", tier), slog.String("op", op), slog.Any("err", err))
}
