package trust

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Provider supplies the current trust identity and can be asked to
// reload it from the external trust computation.
type Provider interface {
	Identity() Identity
	Reload(ctx context.Context) (Identity, error)
}

// FileProvider reads the identity file the external trust pipeline
// maintains. Missing or malformed files degrade to the zero identity so
// the core stays up while the pipeline catches up.
type FileProvider struct {
	path string
	now  func() time.Time

	mu      sync.RWMutex
	current Identity
}

// NewFileProvider creates a provider backed by the given identity file.
// The file is not read until the first Reload.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{
		path:    path,
		now:     time.Now,
		current: Identity{Scores: map[Category]float64{}},
	}
}

// Identity returns the most recently loaded identity.
func (p *FileProvider) Identity() Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Reload re-reads the identity file and atomically swaps the current
// identity. On read or parse errors the previous identity stays in
// effect and the error is returned to the caller.
func (p *FileProvider) Reload(ctx context.Context) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return p.Identity(), err
	}

	raw, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("identity file missing, keeping current identity", "path", p.path)
			return p.Identity(), nil
		}
		return p.Identity(), fmt.Errorf("read identity file: %w", err)
	}

	var parsed Identity
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return p.Identity(), fmt.Errorf("parse identity file: %w", err)
	}
	if parsed.Scores == nil {
		parsed.Scores = map[Category]float64{}
	}

	loaded := parsed.Clamped()
	loaded.LoadedAt = p.now().UTC()

	p.mu.Lock()
	p.current = loaded
	p.mu.Unlock()

	slog.Debug("identity reloaded",
		"path", p.path,
		"categories", len(loaded.Scores),
		"sovereignty", loaded.Sovereignty,
	)
	return loaded, nil
}

// SaveIdentity writes an identity file in the format Reload expects.
// Used by `warden init` to seed a starting identity; at runtime the
// external pipeline owns the file.
func SaveIdentity(path string, id Identity) error {
	data, err := json.MarshalIndent(id.Clamped(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write identity file: %w", err)
	}
	return nil
}
