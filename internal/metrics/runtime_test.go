package metrics

import (
	"testing"
)

func TestRecorderGateDecisions(t *testing.T) {
	workspace := t.TempDir()
	r := NewRecorder(workspace)

	if _, err := r.RecordGateDecision(true); err != nil {
		t.Fatalf("RecordGateDecision failed: %v", err)
	}
	if _, err := r.RecordGateDecision(false); err != nil {
		t.Fatalf("RecordGateDecision failed: %v", err)
	}
	snap, err := r.RecordGateDecision(false)
	if err != nil {
		t.Fatalf("RecordGateDecision failed: %v", err)
	}

	if snap.Gate.Allows != 1 || snap.Gate.Denials != 2 {
		t.Fatalf("unexpected gate stats: %+v", snap.Gate)
	}
	if ratio := snap.Gate.DenialRatio(); ratio < 0.66 || ratio > 0.67 {
		t.Fatalf("unexpected denial ratio: %v", ratio)
	}

	// The snapshot persists and reads back.
	loaded, err := ReadSnapshot(workspace)
	if err != nil {
		t.Fatalf("ReadSnapshot failed: %v", err)
	}
	if loaded.Gate.Denials != 2 {
		t.Fatalf("persisted snapshot mismatch: %+v", loaded.Gate)
	}
}

func TestRecorderPredictionEvents(t *testing.T) {
	r := NewRecorder(t.TempDir())

	for _, event := range []string{"created", "created", "completed", "redirected", "blessed", "aborted", "superseded", "rejected", "unknown"} {
		if _, err := r.RecordPrediction(event); err != nil {
			t.Fatalf("RecordPrediction(%q) failed: %v", event, err)
		}
	}

	snap := r.Snapshot()
	p := snap.Prediction
	if p.Created != 2 || p.Completed != 1 || p.Redirected != 1 || p.Blessed != 1 || p.Aborted != 1 || p.Superseded != 1 || p.Rejected != 1 {
		t.Fatalf("unexpected prediction stats: %+v", p)
	}
}

func TestRecorderDriftAndChannel(t *testing.T) {
	r := NewRecorder(t.TempDir())

	if _, err := r.RecordDrift(); err != nil {
		t.Fatalf("RecordDrift failed: %v", err)
	}
	if _, err := r.RecordChannelSend(true); err != nil {
		t.Fatalf("RecordChannelSend failed: %v", err)
	}
	snap, err := r.RecordChannelSend(false)
	if err != nil {
		t.Fatalf("RecordChannelSend failed: %v", err)
	}

	if snap.Gate.DriftEscalations != 1 {
		t.Fatalf("unexpected drift count: %+v", snap.Gate)
	}
	if snap.Channel.SendAttempts != 2 || snap.Channel.SendFailures != 1 {
		t.Fatalf("unexpected channel stats: %+v", snap.Channel)
	}
	if snap.Channel.FailureRatio() != 0.5 {
		t.Fatalf("unexpected failure ratio: %v", snap.Channel.FailureRatio())
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder

	if _, err := r.RecordGateDecision(true); err != nil {
		t.Fatalf("nil recorder errored: %v", err)
	}
	if _, err := r.RecordDrift(); err != nil {
		t.Fatalf("nil recorder errored: %v", err)
	}
	if snap := r.Snapshot(); snap.HasData() {
		t.Fatalf("nil recorder has data: %+v", snap)
	}
}

func TestReadSnapshotMissingFile(t *testing.T) {
	snap, err := ReadSnapshot(t.TempDir())
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if snap.HasData() {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}
