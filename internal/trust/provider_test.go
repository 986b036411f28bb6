package trust

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileProviderReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	content := `{"scores":{"security":0.8,"testing":0.6},"sovereignty":0.7}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	provider := NewFileProvider(path)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	provider.now = func() time.Time { return fixed }

	id, err := provider.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if id.Sovereignty != 0.7 {
		t.Fatalf("expected sovereignty 0.7, got %v", id.Sovereignty)
	}
	if id.Score("security") != 0.8 || id.Score("testing") != 0.6 {
		t.Fatalf("unexpected scores: %v", id.Scores)
	}
	if !id.LoadedAt.Equal(fixed) {
		t.Fatalf("expected LoadedAt %v, got %v", fixed, id.LoadedAt)
	}
	if got := provider.Identity(); got.Sovereignty != 0.7 {
		t.Fatalf("Identity() did not return reloaded identity: %+v", got)
	}
}

func TestFileProviderClampsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	content := `{"scores":{"security":1.5,"testing":-0.2},"sovereignty":2.0}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	provider := NewFileProvider(path)
	id, err := provider.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if id.Sovereignty != 1.0 {
		t.Fatalf("expected sovereignty clamped to 1, got %v", id.Sovereignty)
	}
	if id.Score("security") != 1.0 {
		t.Fatalf("expected security clamped to 1, got %v", id.Score("security"))
	}
	if id.Score("testing") != 0.0 {
		t.Fatalf("expected testing clamped to 0, got %v", id.Score("testing"))
	}
}

func TestFileProviderMissingFileKeepsCurrent(t *testing.T) {
	provider := NewFileProvider(filepath.Join(t.TempDir(), "absent.json"))

	id, err := provider.Reload(context.Background())
	if err != nil {
		t.Fatalf("missing file should not error, got %v", err)
	}
	if id.Sovereignty != 0 || len(id.Scores) != 0 {
		t.Fatalf("expected zero identity, got %+v", id)
	}
}

func TestFileProviderParseErrorKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	good := `{"scores":{"security":0.9},"sovereignty":0.5}`
	if err := os.WriteFile(path, []byte(good), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	provider := NewFileProvider(path)
	if _, err := provider.Reload(context.Background()); err != nil {
		t.Fatalf("first reload failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	id, err := provider.Reload(context.Background())
	if err == nil {
		t.Fatal("expected parse error")
	}
	if id.Score("security") != 0.9 {
		t.Fatalf("expected previous identity preserved, got %+v", id)
	}
	if provider.Identity().Score("security") != 0.9 {
		t.Fatal("current identity should be untouched after a failed reload")
	}
}

func TestFileProviderCancelledContext(t *testing.T) {
	provider := NewFileProvider(filepath.Join(t.TempDir(), "identity.json"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := provider.Reload(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

func TestSaveIdentityRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	seed := Identity{
		Scores:      map[Category]float64{"security": 0.5, "operations": 1.3},
		Sovereignty: 0.5,
	}

	if err := SaveIdentity(path, seed); err != nil {
		t.Fatalf("SaveIdentity failed: %v", err)
	}

	provider := NewFileProvider(path)
	id, err := provider.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if id.Score("operations") != 1.0 {
		t.Fatalf("expected save to clamp scores, got %v", id.Score("operations"))
	}
	if id.Score("security") != 0.5 || id.Sovereignty != 0.5 {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestIdentityScoreAbsentCategory(t *testing.T) {
	id := Identity{Scores: map[Category]float64{"security": 0.9}}
	if got := id.Score("unknown"); got != 0 {
		t.Fatalf("expected 0 for absent category, got %v", got)
	}
}
