package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.BaseURL != "http://127.0.0.1:8000" {
		t.Errorf("default base url = %q, want %q", cfg.API.BaseURL, "http://127.0.0.1:8000")
	}
	if cfg.API.Timeout != 0 {
		t.Errorf("default timeout = %v, want 0 (transport default)", cfg.API.Timeout)
	}
	if cfg.UI.DeliveryHint != "Check backend console (simulated)." {
		t.Errorf("default delivery hint = %q", cfg.UI.DeliveryHint)
	}
	if cfg.Session.Dir != ".dualotp" {
		t.Errorf("default session dir = %q, want %q", cfg.Session.Dir, ".dualotp")
	}
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidFile(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir(), `
api:
  base_url: https://otp.example.com
  timeout: 10s
  user_agent: dualotp-ci
ui:
  delivery_hint: Check your phone and inbox.
  plain: true
session:
  dir: /tmp/dualotp
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.BaseURL != "https://otp.example.com" {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("timeout = %v, want %v", cfg.API.Timeout, 10*time.Second)
	}
	if cfg.API.UserAgent != "dualotp-ci" {
		t.Errorf("user agent = %q", cfg.API.UserAgent)
	}
	if cfg.UI.DeliveryHint != "Check your phone and inbox." {
		t.Errorf("delivery hint = %q", cfg.UI.DeliveryHint)
	}
	if !cfg.UI.Plain {
		t.Error("plain = false, want true")
	}
	if cfg.Session.Dir != "/tmp/dualotp" {
		t.Errorf("session dir = %q", cfg.Session.Dir)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/dualotp.yaml")
	if err != nil {
		t.Fatalf("Load() should return defaults for missing file, got error: %v", err)
	}
	want := DefaultConfig()
	if *cfg != want {
		t.Errorf("Load(missing) = %+v, want defaults %+v", *cfg, want)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir(), "{{invalid yaml")

	if _, err := Load(cfgPath); err == nil {
		t.Fatal("Load(invalid YAML) should return error")
	}
}

func TestLoad_PartialConfig(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir(), `
api:
  base_url: http://otp.internal:9000
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.BaseURL != "http://otp.internal:9000" {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
	// Unset fields should retain defaults.
	if cfg.API.UserAgent != "dualotp" {
		t.Errorf("user agent = %q, want default", cfg.API.UserAgent)
	}
	if cfg.Session.Dir != ".dualotp" {
		t.Errorf("session dir = %q, want default", cfg.Session.Dir)
	}
}

func TestLoad_LayeredPriority(t *testing.T) {
	// Setup: user config sets base url and hint, project config overrides the hint.
	userCfg := writeConfig(t, t.TempDir(), `
api:
  base_url: https://otp.example.com
ui:
  delivery_hint: user hint
`)
	projectCfg := writeConfig(t, t.TempDir(), `
ui:
  delivery_hint: project hint
`)

	cfg, err := LoadLayered(userCfg, projectCfg)
	if err != nil {
		t.Fatalf("LoadLayered() error = %v", err)
	}
	// Base URL from user config (project doesn't set it).
	if cfg.API.BaseURL != "https://otp.example.com" {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
	// Hint from project config (overrides user).
	if cfg.UI.DeliveryHint != "project hint" {
		t.Errorf("delivery hint = %q, want %q", cfg.UI.DeliveryHint, "project hint")
	}
	// Session dir retains default when neither layer sets it.
	if cfg.Session.Dir != ".dualotp" {
		t.Errorf("session dir = %q, want default", cfg.Session.Dir)
	}
}

func TestLoad_LayerCanClearHint(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir(), `
ui:
  delivery_hint: ""
`)
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.UI.DeliveryHint != "" {
		t.Errorf("delivery hint = %q, want empty", cfg.UI.DeliveryHint)
	}
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name    string
		envs    map[string]string
		wantErr bool
		check   func(*testing.T, Config)
	}{
		{
			name: "DUALOTP_BASE_URL overrides base url",
			envs: map[string]string{"DUALOTP_BASE_URL": "https://otp.example.com"},
			check: func(t *testing.T, c Config) {
				if c.API.BaseURL != "https://otp.example.com" {
					t.Errorf("base url = %q", c.API.BaseURL)
				}
			},
		},
		{
			name: "DUALOTP_TIMEOUT overrides timeout",
			envs: map[string]string{"DUALOTP_TIMEOUT": "30s"},
			check: func(t *testing.T, c Config) {
				if c.API.Timeout != 30*time.Second {
					t.Errorf("timeout = %v, want %v", c.API.Timeout, 30*time.Second)
				}
			},
		},
		{
			name: "DUALOTP_PLAIN overrides plain",
			envs: map[string]string{"DUALOTP_PLAIN": "true"},
			check: func(t *testing.T, c Config) {
				if !c.UI.Plain {
					t.Error("plain = false, want true")
				}
			},
		},
		{
			name:    "invalid DUALOTP_TIMEOUT returns error",
			envs:    map[string]string{"DUALOTP_TIMEOUT": "notaduration"},
			wantErr: true,
		},
		{
			name:    "invalid DUALOTP_PLAIN returns error",
			envs:    map[string]string{"DUALOTP_PLAIN": "maybe"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envs {
				t.Setenv(k, v)
			}
			cfg := DefaultConfig()
			err := cfg.ApplyEnv()

			if tt.wantErr {
				if err == nil {
					t.Fatal("ApplyEnv() should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnv() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoad_UnknownField(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir(), `
api:
  base_ur: http://localhost
`)

	if _, err := Load(cfgPath); err == nil {
		t.Fatal("Load() should return error for unknown field 'base_ur'")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			modify: func(*Config) {},
		},
		{
			name:    "empty base url",
			modify:  func(c *Config) { c.API.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "relative base url",
			modify:  func(c *Config) { c.API.BaseURL = "/api" },
			wantErr: true,
		},
		{
			name:    "unsupported scheme",
			modify:  func(c *Config) { c.API.BaseURL = "ftp://otp.example.com" },
			wantErr: true,
		},
		{
			name:    "negative timeout",
			modify:  func(c *Config) { c.API.Timeout = -1 * time.Second },
			wantErr: true,
		},
		{
			name:   "zero timeout",
			modify: func(c *Config) { c.API.Timeout = 0 },
		},
		{
			name:    "empty session dir",
			modify:  func(c *Config) { c.Session.Dir = "" },
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_CommentOnlyFile(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir(), "# just a comment\n")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load(comment-only) error = %v", err)
	}
	want := DefaultConfig()
	if *cfg != want {
		t.Errorf("Load(comment-only) = %+v, want defaults %+v", *cfg, want)
	}
}

func TestLoadLayered_AllMissing(t *testing.T) {
	cfg, err := LoadLayered("/no/user.yaml", "/no/project.yaml")
	if err != nil {
		t.Fatalf("LoadLayered(all missing) error = %v", err)
	}
	want := DefaultConfig()
	if *cfg != want {
		t.Errorf("got %+v, want defaults %+v", *cfg, want)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir(), "")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load(empty) error = %v", err)
	}
	want := DefaultConfig()
	if *cfg != want {
		t.Errorf("Load(empty) = %+v, want defaults %+v", *cfg, want)
	}
}
