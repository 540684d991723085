package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  owner_user_ids: [42]
  poll_timeout: 10s
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
storage:
  driver: sqlite
  path: ./tw.db
watch:
  change_interval: 3s
  heartbeat_interval: 9s
  min_gap: 100ms
  rebuild_after: 500
  cpp:
    enabled: true
    schedule: 3s
    event_id: 5020
  bili:
    enabled: true
    schedule: 600ms
    project_ids: [108406]
  mango:
    enabled: true
    schedule: 600ms
    goods_ids: [256987, 256988]
`

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeTemp(t, "config.yaml", sampleYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if !cfg.IsOwner(42) || cfg.IsOwner(7) {
		t.Fatalf("owner check wrong: %v", cfg.Telegram.OwnerUserIDs)
	}
	if cfg.Watch.CPP == nil || cfg.Watch.CPP.EventID != 5020 {
		t.Fatalf("cpp block not decoded: %+v", cfg.Watch.CPP)
	}
	if got := len(cfg.Watch.Mango.GoodsIDs); got != 2 {
		t.Fatalf("mango goods ids = %d, want 2", got)
	}
	if m.Get() != cfg {
		t.Fatal("Get() should return the committed config")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewManager(writeTemp(t, "config.yaml", sampleYAML+"\nbogus_key: 1\n"))
	if _, err := m.Load(); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestValidateRequirements(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		mut  func(c *Config)
	}{
		{name: "missing token", mut: func(c *Config) { c.Telegram.Token = "" }},
		{name: "bad duration", mut: func(c *Config) { c.Watch.ChangeInterval = "soon" }},
		{name: "bili without projects", mut: func(c *Config) { c.Watch.Bili = &BiliConfig{Enabled: true} }},
		{name: "cpp without event", mut: func(c *Config) { c.Watch.CPP = &CPPConfig{Enabled: true} }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := &Config{Telegram: TelegramConfig{Token: "x"}}
			tt.mut(c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
