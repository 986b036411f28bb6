package action

import (
	"context"
	"testing"
)

func noopExecutable(name string) *Executable {
	return &Executable{ActionName: name, Run: func(ctx context.Context, p Payload) error { return nil }}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(noopExecutable("deploy_service")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	v, ok := r.Get("deploy_service")
	if !ok {
		t.Fatal("expected variant to be found")
	}
	if v.Name() != "deploy_service" {
		t.Fatalf("unexpected name: %q", v.Name())
	}
}

func TestRegistryNormalizesNames(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(noopExecutable("Deploy_Service")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, ok := r.Get("  deploy_service "); !ok {
		t.Fatal("expected case/whitespace-insensitive lookup")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(noopExecutable("deploy_service")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(noopExecutable("DEPLOY_SERVICE")); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(noopExecutable("   ")); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(noopExecutable(name)); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	names := r.Names()
	if len(names) != 3 || names[0] != "alpha" || names[1] != "mid" || names[2] != "zeta" {
		t.Fatalf("expected sorted names, got %v", names)
	}
}
