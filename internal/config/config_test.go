package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "./data/offpay.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.SyncTimeout != 10*time.Second {
		t.Errorf("SyncTimeout = %s, want 10s", cfg.SyncTimeout)
	}
	if cfg.PayloadSecret != "" {
		t.Errorf("PayloadSecret = %q, want empty", cfg.PayloadSecret)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "offpay.yaml")
	content := "db_path: /tmp/ledger.db\nsync_timeout: 3s\ndevice_id: from-file\npin_hash_cost: 4\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("OFFPAY_DEVICE_ID", "from-env")

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "/tmp/ledger.db" {
		t.Errorf("DBPath = %q, want /tmp/ledger.db", cfg.DBPath)
	}
	if cfg.SyncTimeout != 3*time.Second {
		t.Errorf("SyncTimeout = %s, want 3s", cfg.SyncTimeout)
	}
	if cfg.DeviceID != "from-env" {
		t.Errorf("DeviceID = %q, want env override", cfg.DeviceID)
	}
	if cfg.PINHashCost != 4 {
		t.Errorf("PINHashCost = %d, want 4", cfg.PINHashCost)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		path    string
	}{
		{name: "explicit file missing", path: filepath.Join(dir, "missing.yaml")},
		{name: "malformed yaml", path: filepath.Join(dir, "bad.yaml"), content: "db_path: [unterminated\n"},
		{name: "non-positive timeout", path: filepath.Join(dir, "zero.yaml"), content: "sync_timeout: 0s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.content != "" {
				if err := os.WriteFile(tt.path, []byte(tt.content), 0o600); err != nil {
					t.Fatalf("failed to write config: %v", err)
				}
			}
			if _, err := Load(tt.path); err == nil {
				t.Error("expected error")
			}
		})
	}
}
