// Package drift tracks denial streaks and escalates sustained runs of
// denials into a re-evaluation of the trust identity upstream.
package drift

import (
	"log/slog"
	"sync"

	"github.com/wardenhq/warden/internal/permission"
)

// DefaultThreshold is the consecutive-denial count that triggers an
// escalation.
const DefaultThreshold = 3

// DenialHook receives every denial for audit/reporting.
type DenialHook func(permission.Denial)

// DriftHook triggers recomputation of the trust identity upstream.
type DriftHook func() error

// Stats is a point-in-time snapshot of denial bookkeeping.
type Stats struct {
	TotalDenials       int `json:"total_denials"`
	ConsecutiveDenials int `json:"consecutive_denials"`
	DriftEscalations   int `json:"drift_escalations"`
}

// Tracker counts denials and fires the drift hook after a sustained
// consecutive run. It lives for the process lifetime.
type Tracker struct {
	threshold int
	onDenial  DenialHook
	onDrift   DriftHook

	mu          sync.Mutex
	total       int
	consecutive int
	escalations int
}

// NewTracker creates a tracker with the default threshold.
func NewTracker(onDenial DenialHook, onDrift DriftHook) *Tracker {
	return NewTrackerWithThreshold(DefaultThreshold, onDenial, onDrift)
}

// NewTrackerWithThreshold creates a tracker that escalates after the
// given number of consecutive denials.
func NewTrackerWithThreshold(threshold int, onDenial DenialHook, onDrift DriftHook) *Tracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Tracker{
		threshold: threshold,
		onDenial:  onDenial,
		onDrift:   onDrift,
	}
}

// RecordDenial increments both counters and invokes the denial hook.
func (t *Tracker) RecordDenial(denial permission.Denial) {
	t.mu.Lock()
	t.total++
	t.consecutive++
	hook := t.onDenial
	t.mu.Unlock()

	if hook != nil {
		hook(denial)
	}
}

// RecordAllow resets the consecutive counter after any allowed action.
func (t *Tracker) RecordAllow() {
	t.mu.Lock()
	t.consecutive = 0
	t.mu.Unlock()
}

// CheckDrift fires the drift hook once the consecutive counter reaches
// the threshold, then resets the counter so the next escalation needs a
// fresh run of denials. A failing hook is logged, never fatal: the
// stale identity stays in effect until the next successful reload.
func (t *Tracker) CheckDrift() bool {
	t.mu.Lock()
	if t.consecutive < t.threshold {
		t.mu.Unlock()
		return false
	}
	t.consecutive = 0
	t.escalations++
	hook := t.onDrift
	t.mu.Unlock()

	slog.Warn("denial drift detected, requesting identity recompute", "threshold", t.threshold)
	if hook != nil {
		if err := hook(); err != nil {
			slog.Warn("drift recompute failed, keeping stale identity", "error", err)
		}
	}
	return true
}

// Stats returns a snapshot of the counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		TotalDenials:       t.total,
		ConsecutiveDenials: t.consecutive,
		DriftEscalations:   t.escalations,
	}
}
