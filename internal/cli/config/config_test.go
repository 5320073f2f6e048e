package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPathPrefersNearestLocalConfig(t *testing.T) {
	root := t.TempDir()
	home := filepath.Join(root, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)

	projectRoot := filepath.Join(root, "project")
	deep := filepath.Join(projectRoot, "a", "b")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatalf("mkdir deep: %v", err)
	}

	parentCfg := filepath.Join(projectRoot, ".artizen", "config.json")
	if err := os.MkdirAll(filepath.Dir(parentCfg), 0o755); err != nil {
		t.Fatalf("mkdir parent cfg dir: %v", err)
	}
	if err := os.WriteFile(parentCfg, []byte(`{"version":1}`), 0o600); err != nil {
		t.Fatalf("write parent cfg: %v", err)
	}

	nearCfg := filepath.Join(projectRoot, "a", ".artizen", "config.json")
	if err := os.MkdirAll(filepath.Dir(nearCfg), 0o755); err != nil {
		t.Fatalf("mkdir near cfg dir: %v", err)
	}
	if err := os.WriteFile(nearCfg, []byte(`{"version":1}`), 0o600); err != nil {
		t.Fatalf("write near cfg: %v", err)
	}

	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	defer func() { _ = os.Chdir(prev) }()
	if err := os.Chdir(deep); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	got, err := Path()
	if err != nil {
		t.Fatalf("Path() error: %v", err)
	}
	if got != nearCfg {
		t.Fatalf("Path() = %q, want %q", got, nearCfg)
	}
}

func TestPathFallsBackToHomeWhenNoLocalConfig(t *testing.T) {
	root := t.TempDir()
	home := filepath.Join(root, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)

	wd := filepath.Join(root, "work", "x", "y")
	if err := os.MkdirAll(wd, 0o755); err != nil {
		t.Fatalf("mkdir wd: %v", err)
	}

	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	defer func() { _ = os.Chdir(prev) }()
	if err := os.Chdir(wd); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	got, err := Path()
	if err != nil {
		t.Fatalf("Path() error: %v", err)
	}
	want := filepath.Join(home, ".artizen", "config.json")
	if got != want {
		t.Fatalf("Path() = %q, want %q", got, want)
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.SetIdentity("ada@artizen.test", "tok"); err == nil {
		t.Fatalf("identity without a server should fail")
	}
	cfg.SetDefault("http://localhost:8080", "https://api.artizen.app")
	if err := cfg.SetIdentity("ada@artizen.test", "tok"); err != nil {
		t.Fatalf("set identity: %v", err)
	}
	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	s, ok := loaded.Default()
	if !ok || s.Token != "tok" || s.ProductionURL != "https://api.artizen.app" {
		t.Fatalf("unexpected server %+v", s)
	}
	if loaded.PollInterval() != 5*time.Second {
		t.Fatalf("poll interval = %s", loaded.PollInterval())
	}

	loaded.SetDefault("http://localhost:9090", "")
	if s, _ := loaded.Default(); s.Token != "tok" {
		t.Fatalf("reconnect should keep identity")
	}
	loaded.ClearIdentity()
	if s, _ := loaded.Default(); s.Token != "" || s.Email != "" {
		t.Fatalf("identity not cleared: %+v", s)
	}
}
