package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Scheduler.MaxPending != 8 {
		t.Fatalf("unexpected max pending: %d", cfg.Scheduler.MaxPending)
	}
	if cfg.Scheduler.MinTimeoutSeconds != 5 || cfg.Scheduler.MaxTimeoutSeconds != 60 {
		t.Fatalf("unexpected timeouts: %d/%d", cfg.Scheduler.MinTimeoutSeconds, cfg.Scheduler.MaxTimeoutSeconds)
	}
	if cfg.Gateway.Port != 18890 {
		t.Fatalf("unexpected gateway port: %d", cfg.Gateway.Port)
	}
	if !cfg.Trust.RefreshEnabled || cfg.Trust.RefreshIntervalMinutes != 15 {
		t.Fatalf("unexpected trust config: %+v", cfg.Trust)
	}
	if cfg.Channels.Telegram.Enabled {
		t.Fatal("telegram should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateBackfillsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scheduler.MaxPending = 0
	cfg.Scheduler.MinTimeoutSeconds = 0
	cfg.Scheduler.MaxTimeoutSeconds = 0
	cfg.Scheduler.RedirectGraceSeconds = 0
	cfg.Trust.RefreshIntervalMinutes = 0
	cfg.Log.Level = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.Scheduler.MaxPending != 8 || cfg.Scheduler.MinTimeoutSeconds != 5 || cfg.Scheduler.MaxTimeoutSeconds != 60 {
		t.Fatalf("zero values not backfilled: %+v", cfg.Scheduler)
	}
	if cfg.Trust.RefreshIntervalMinutes != 15 {
		t.Fatalf("refresh interval not backfilled: %d", cfg.Trust.RefreshIntervalMinutes)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("log level not backfilled: %q", cfg.Log.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative max pending", func(c *Config) { c.Scheduler.MaxPending = -1 }},
		{"negative timeout", func(c *Config) { c.Scheduler.MinTimeoutSeconds = -5 }},
		{"max below min", func(c *Config) {
			c.Scheduler.MinTimeoutSeconds = 30
			c.Scheduler.MaxTimeoutSeconds = 10
		}},
		{"negative grace", func(c *Config) { c.Scheduler.RedirectGraceSeconds = -1 }},
		{"negative refresh", func(c *Config) { c.Trust.RefreshIntervalMinutes = -1 }},
		{"port zero", func(c *Config) { c.Gateway.Port = 0 }},
		{"port too high", func(c *Config) { c.Gateway.Port = 70000 }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestValidateNormalizesLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "  DEBUG "
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected normalized level, got %q", cfg.Log.Level)
	}
}

func TestWorkspacePathDefault(t *testing.T) {
	cfg := DefaultConfig()
	got := cfg.WorkspacePath()
	if !strings.HasSuffix(got, filepath.Join(".warden", "workspace")) {
		t.Fatalf("unexpected default workspace: %q", got)
	}
}

func TestWorkspacePathExplicit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workspace.Path = "/var/lib/warden"
	if got := cfg.WorkspacePath(); got != "/var/lib/warden" {
		t.Fatalf("unexpected workspace: %q", got)
	}
}

func TestDerivedFilePaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workspace.Path = "/tmp/warden-test"

	if got := cfg.IdentityFilePath(); got != filepath.Join("/tmp/warden-test", "state", "identity.json") {
		t.Fatalf("unexpected identity path: %q", got)
	}
	if got := cfg.PermissionsFilePath(); got != filepath.Join("/tmp/warden-test", "permissions.json") {
		t.Fatalf("unexpected permissions path: %q", got)
	}

	cfg.Trust.IdentityFile = "/etc/warden/identity.json"
	cfg.Permissions.File = "/etc/warden/permissions.json"
	if got := cfg.IdentityFilePath(); got != "/etc/warden/identity.json" {
		t.Fatalf("override ignored: %q", got)
	}
	if got := cfg.PermissionsFilePath(); got != "/etc/warden/permissions.json" {
		t.Fatalf("override ignored: %q", got)
	}
}
