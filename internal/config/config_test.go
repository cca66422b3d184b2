package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func known(name string) bool { return name == "round-robin" || name == "fifo" }

func TestDefaultKernelConfig_Valid(t *testing.T) {
	cfg := DefaultKernelConfig()
	if err := cfg.Validate(known); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if cfg.Scheduler.PoolCapacity != 100 {
		t.Errorf("PoolCapacity = %d, want 100", cfg.Scheduler.PoolCapacity)
	}
	if len(cfg.Boot.Programs) != 1 || cfg.Boot.Programs[0] != "bin/init" {
		t.Errorf("Boot.Programs = %v, want [bin/init]", cfg.Boot.Programs)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickos.yaml")
	data := `
scheduler:
  policy: fifo
  quantum: 3
clock:
  tick_interval: 2ms
images:
  source: sqlite
  db: /tmp/images.db
kstat:
  addr: 127.0.0.1:7070
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Scheduler.Policy != "fifo" || cfg.Scheduler.Quantum != 3 {
		t.Errorf("Scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Scheduler.PoolCapacity != 100 {
		t.Errorf("PoolCapacity = %d, want default 100", cfg.Scheduler.PoolCapacity)
	}
	if cfg.Clock.TickInterval != 2*time.Millisecond {
		t.Errorf("TickInterval = %v, want 2ms", cfg.Clock.TickInterval)
	}
	if cfg.Images.Source != SourceSQLite || cfg.Images.DB != "/tmp/images.db" {
		t.Errorf("Images = %+v", cfg.Images)
	}
	if cfg.Kstat.Addr != "127.0.0.1:7070" {
		t.Errorf("Kstat.Addr = %q", cfg.Kstat.Addr)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want default info", cfg.Log.Level)
	}
	if err := cfg.Validate(known); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing) = nil, want error")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("scheduler: [unclosed"), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("Load(bad yaml) = nil, want error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*KernelConfig)
		wantErr string
	}{
		{"zero quantum", func(c *KernelConfig) { c.Scheduler.Quantum = 0 }, "quantum"},
		{"zero capacity", func(c *KernelConfig) { c.Scheduler.PoolCapacity = 0 }, "pool_capacity"},
		{"unknown policy", func(c *KernelConfig) { c.Scheduler.Policy = "lottery" }, "policy"},
		{"zero tick", func(c *KernelConfig) { c.Clock.TickInterval = 0 }, "tick_interval"},
		{"unknown source", func(c *KernelConfig) { c.Images.Source = "ftp" }, "images.source"},
		{"dir without path", func(c *KernelConfig) { c.Images.Source = SourceDir }, "images.dir"},
		{"sqlite without db", func(c *KernelConfig) { c.Images.Source = SourceSQLite }, "images.db"},
		{"s3 without bucket", func(c *KernelConfig) { c.Images.Source = SourceS3 }, "bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultKernelConfig()
			tt.mutate(&cfg)
			err := cfg.Validate(known)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}
