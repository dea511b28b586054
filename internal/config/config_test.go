package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DECKFORGE_CONFIG", "")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Classifier.DividerMaxElements != 3 || cfg.Classifier.NumberMaxDigits != 3 {
		t.Errorf("classifier defaults = %+v", cfg.Classifier)
	}
	if cfg.Application.Debounce != 2*time.Second {
		t.Errorf("debounce = %v", cfg.Application.Debounce)
	}
	if cfg.Application.Storage.Stage == "" || cfg.Application.Storage.Jobs == "" {
		t.Errorf("storage defaults missing: %+v", cfg.Application.Storage)
	}
	if cfg.Database.Enabled {
		t.Error("database enabled by default")
	}
	if _, s, ok := cfg.AI.Active(); !ok || s.Driver != "gemini" {
		t.Errorf("active provider = %q %+v", cfg.AI.ActiveProvider, s)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deckforge.yaml")
	os.WriteFile(path, []byte(`
application:
  storage:
    stage: /srv/stage
  debounce: 500ms
classifier:
  divider_max_elements: 4
  keyword_dir: /etc/deckforge/keywords
ai:
  active_provider: mock
database:
  enabled: true
  host: db
  port: "5432"
  user: deck
  password: secret
  dbname: forge
`), 0644)

	t.Setenv("DECKFORGE_CONFIG", path)
	t.Setenv("STORAGE_JOBS", "/srv/jobs")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Application.Storage.Stage != "/srv/stage" {
		t.Errorf("stage = %q", cfg.Application.Storage.Stage)
	}
	if cfg.Application.Storage.Jobs != "/srv/jobs" {
		t.Errorf("jobs = %q, want the environment value", cfg.Application.Storage.Jobs)
	}
	if cfg.Application.Debounce != 500*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Application.Debounce)
	}
	if cfg.Classifier.DividerMaxElements != 4 || cfg.Classifier.NumberMaxDigits != 3 {
		t.Errorf("classifier = %+v", cfg.Classifier)
	}
	if name, s, ok := cfg.AI.Active(); name != "mock" || !ok || s.Driver != "mock" {
		t.Errorf("active provider = %q %+v %v", name, s, ok)
	}
	if !cfg.Database.Enabled {
		t.Error("database not enabled")
	}
	if got := cfg.Database.GetConnectStr(); got != "postgres://deck:secret@db:5432/forge?sslmode=disable" {
		t.Errorf("connect string = %q", got)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	t.Setenv("DECKFORGE_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Error("expected an error for a missing explicit config file")
	}
}

func TestGetConnectStr(t *testing.T) {
	c := DatabaseConfig{URL: "postgres://u@h/db"}
	if c.GetConnectStr() != "postgres://u@h/db" {
		t.Errorf("URL not preferred: %s", c.GetConnectStr())
	}

	c = DatabaseConfig{Host: "h", Port: "1", User: "u", Password: "p", DBName: "d", SSLMode: "require", Options: "-c search_path=deck"}
	want := "postgres://u:p@h:1/d?sslmode=require&options=-c%20search_path=deck"
	if got := c.GetConnectStr(); got != want {
		t.Errorf("GetConnectStr = %q, want %q", got, want)
	}
}
