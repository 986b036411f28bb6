package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const runtimeMetricsFileName = "runtime_metrics.json"

// Snapshot contains aggregated runtime counters for gate decisions,
// prediction outcomes and channel sends.
type Snapshot struct {
	UpdatedAt  time.Time       `json:"updated_at"`
	Gate       GateStats       `json:"gate"`
	Prediction PredictionStats `json:"prediction"`
	Channel    ChannelStats    `json:"channel"`
}

// GateStats tracks action gateway decisions.
type GateStats struct {
	Allows           int64 `json:"allows"`
	Denials          int64 `json:"denials"`
	DriftEscalations int64 `json:"drift_escalations"`
}

// DenialRatio returns denials/decisions in [0,1].
func (g GateStats) DenialRatio() float64 {
	total := g.Allows + g.Denials
	if total <= 0 {
		return 0
	}
	return float64(g.Denials) / float64(total)
}

// PredictionStats tracks prediction lifecycle outcomes.
type PredictionStats struct {
	Created    int64 `json:"created"`
	Completed  int64 `json:"completed"`
	Redirected int64 `json:"redirected"`
	Blessed    int64 `json:"blessed"`
	Aborted    int64 `json:"aborted"`
	Superseded int64 `json:"superseded"`
	Rejected   int64 `json:"rejected"`
}

// ChannelStats tracks outbound channel send metrics.
type ChannelStats struct {
	SendAttempts int64 `json:"send_attempts"`
	SendFailures int64 `json:"send_failures"`
}

// FailureRatio returns failures/attempts in [0,1].
func (c ChannelStats) FailureRatio() float64 {
	if c.SendAttempts <= 0 {
		return 0
	}
	return float64(c.SendFailures) / float64(c.SendAttempts)
}

// HasData reports whether any runtime metrics were recorded.
func (s Snapshot) HasData() bool {
	return s.Gate.Allows+s.Gate.Denials > 0 || s.Prediction.Created > 0 || s.Channel.SendAttempts > 0
}

// Recorder records and persists runtime metrics under
// <workspace>/state/runtime_metrics.json.
type Recorder struct {
	path string

	mu   sync.Mutex
	snap Snapshot
}

// NewRecorder creates a metrics recorder rooted at the workspace.
func NewRecorder(workspacePath string) *Recorder {
	return &Recorder{path: runtimeMetricsPath(workspacePath)}
}

// Snapshot returns the latest in-memory snapshot.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// RecordGateDecision updates gate counters and persists the snapshot.
func (r *Recorder) RecordGateDecision(allowed bool) (Snapshot, error) {
	if r == nil {
		return Snapshot{}, nil
	}

	r.mu.Lock()
	r.snap.UpdatedAt = time.Now().UTC()
	if allowed {
		r.snap.Gate.Allows++
	} else {
		r.snap.Gate.Denials++
	}
	snapshot := r.snap
	r.mu.Unlock()

	return snapshot, persistSnapshot(r.path, snapshot)
}

// RecordDrift counts one drift escalation and persists the snapshot.
func (r *Recorder) RecordDrift() (Snapshot, error) {
	if r == nil {
		return Snapshot{}, nil
	}

	r.mu.Lock()
	r.snap.UpdatedAt = time.Now().UTC()
	r.snap.Gate.DriftEscalations++
	snapshot := r.snap
	r.mu.Unlock()

	return snapshot, persistSnapshot(r.path, snapshot)
}

// RecordPrediction counts one prediction lifecycle event and persists
// the snapshot. Unknown events are ignored.
func (r *Recorder) RecordPrediction(event string) (Snapshot, error) {
	if r == nil {
		return Snapshot{}, nil
	}

	r.mu.Lock()
	r.snap.UpdatedAt = time.Now().UTC()
	switch event {
	case "created":
		r.snap.Prediction.Created++
	case "completed":
		r.snap.Prediction.Completed++
	case "redirected":
		r.snap.Prediction.Redirected++
	case "blessed":
		r.snap.Prediction.Blessed++
	case "aborted":
		r.snap.Prediction.Aborted++
	case "superseded":
		r.snap.Prediction.Superseded++
	case "rejected":
		r.snap.Prediction.Rejected++
	}
	snapshot := r.snap
	r.mu.Unlock()

	return snapshot, persistSnapshot(r.path, snapshot)
}

// RecordChannelSend updates outbound channel send metrics and persists
// the snapshot.
func (r *Recorder) RecordChannelSend(success bool) (Snapshot, error) {
	if r == nil {
		return Snapshot{}, nil
	}

	r.mu.Lock()
	r.snap.UpdatedAt = time.Now().UTC()
	r.snap.Channel.SendAttempts++
	if !success {
		r.snap.Channel.SendFailures++
	}
	snapshot := r.snap
	r.mu.Unlock()

	return snapshot, persistSnapshot(r.path, snapshot)
}

// ReadSnapshot reads the persisted snapshot from workspace state.
// If no file exists yet, it returns a zero-value snapshot and nil error.
func ReadSnapshot(workspacePath string) (Snapshot, error) {
	path := runtimeMetricsPath(workspacePath)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("read runtime metrics: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode runtime metrics: %w", err)
	}
	return snap, nil
}

func runtimeMetricsPath(workspacePath string) string {
	return filepath.Join(workspacePath, "state", runtimeMetricsFileName)
}

func persistSnapshot(path string, snapshot Snapshot) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create runtime metrics dir: %w", err)
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode runtime metrics: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, payload, 0o644); err != nil {
		return fmt.Errorf("write runtime metrics temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename runtime metrics file: %w", err)
	}
	return nil
}
