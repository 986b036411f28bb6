package action

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/wardenhq/warden/internal/trust"
)

// DispatchLog records every executed action as one JSONL line under
// <workspace>/state/actions.jsonl. The shipped binary dispatches here;
// hosts embedding warden register real skills instead.
type DispatchLog struct {
	path string
	mu   sync.Mutex
}

type dispatchRecord struct {
	Time      time.Time `json:"time"`
	Action    string    `json:"action"`
	Room      string    `json:"room,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	ArgsJSON  string    `json:"args,omitempty"`
}

// NewDispatchLog creates a dispatch log rooted at workspace state.
func NewDispatchLog(workspace string) *DispatchLog {
	return &DispatchLog{path: filepath.Join(workspace, "state", "actions.jsonl")}
}

// Record appends one dispatch record.
func (d *DispatchLog) Record(actionName string, p Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("create dispatch log dir: %w", err)
	}
	file, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open dispatch log: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(dispatchRecord{
		Time:      time.Now().UTC(),
		Action:    actionName,
		Room:      p.Room,
		RequestID: p.RequestID,
		ArgsJSON:  p.ArgsJSON,
	})
	if err != nil {
		return fmt.Errorf("marshal dispatch record: %w", err)
	}
	encoded = append(encoded, '\n')

	if _, err := file.Write(encoded); err != nil {
		return fmt.Errorf("append dispatch record: %w", err)
	}
	return nil
}

// RegisterConfigured registers an Executable for every named action
// that dispatches to the log. Duplicate names are skipped so callers
// can merge the requirement table and directive actions.
func RegisterConfigured(registry *Registry, log *DispatchLog, actionNames []string) error {
	seen := make(map[string]bool, len(actionNames))
	for _, name := range actionNames {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		actionName := name
		variant := &Executable{
			ActionName: actionName,
			Run: func(ctx context.Context, p Payload) error {
				return log.Record(actionName, p)
			},
		}
		if err := registry.Register(variant); err != nil {
			return err
		}
	}
	return nil
}

// NewKeywordCategorizer returns a Categorizer that classifies payload
// args into trust categories by keyword match.
func NewKeywordCategorizer(name string, keywords map[string]trust.Category) *Categorizer {
	return &Categorizer{
		ActionName: name,
		Categorize: func(ctx context.Context, p Payload) ([]trust.Category, error) {
			lowered := strings.ToLower(p.ArgsJSON)
			var matched []trust.Category
			for keyword, category := range keywords {
				if strings.Contains(lowered, strings.ToLower(keyword)) {
					matched = append(matched, category)
				}
			}
			return matched, nil
		},
	}
}
