package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriterAppendsJSONL(t *testing.T) {
	workspace := t.TempDir()
	w := NewWriter(workspace)

	events := []Event{
		{Time: time.Now().UTC(), Type: "permission_deny", Action: "deploy_service", Result: "overlap=0.50"},
		{Time: time.Now().UTC(), Type: "prediction_created", Room: "telegram:1", Action: "run_migration"},
	}
	for _, ev := range events {
		if err := w.Append(ev); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	file, err := os.Open(filepath.Join(workspace, "state", "audit.jsonl"))
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer file.Close()

	var got []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad JSONL line: %v", err)
		}
		got = append(got, ev)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Type != "permission_deny" || got[0].Action != "deploy_service" {
		t.Fatalf("unexpected first event: %+v", got[0])
	}
	if got[1].Room != "telegram:1" {
		t.Fatalf("unexpected second event: %+v", got[1])
	}
}

func TestWriterCreatesStateDir(t *testing.T) {
	workspace := filepath.Join(t.TempDir(), "nested", "workspace")
	w := NewWriter(workspace)

	if err := w.Append(Event{Time: time.Now(), Type: "test"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(workspace, "state", "audit.jsonl")); err != nil {
		t.Fatalf("audit file missing: %v", err)
	}
}
