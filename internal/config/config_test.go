package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seekroute.yaml")
	data := []byte(`
port: "9090"
allowOrigins: ["http://localhost:5173"]
scheduler:
  tickInterval: 500ms
  tieBreak: numeric
registry:
  serviceDuration: 2m
routing:
  timeout: 3s
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PENDING_TIMEOUT", "10m")
	t.Setenv("RATE_BURST", "3")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" || cfg.Scheduler.TickInterval.Duration != 500*time.Millisecond {
		t.Fatalf("file values: %+v", cfg)
	}
	if cfg.Scheduler.TieBreak != "numeric" || cfg.Scheduler.Combination != "nearest" {
		t.Fatalf("defaults not kept: %+v", cfg.Scheduler)
	}
	if cfg.Registry.ServiceDuration.Duration != 2*time.Minute || cfg.Registry.PendingTimeout.Duration != 10*time.Minute {
		t.Fatalf("registry: %+v", cfg.Registry)
	}
	if cfg.RateBurst != 3 || cfg.Routing.Timeout.Duration != 3*time.Second {
		t.Fatalf("overrides: %+v", cfg)
	}
}

func TestMapboxTokenSelectsProvider(t *testing.T) {
	cfg := Default()
	if err := cfg.applyEnv(env(map[string]string{"MAPBOX_TOKEN": "pk.test"})); err != nil {
		t.Fatal(err)
	}
	if cfg.Routing.Provider != "mapbox" {
		t.Fatalf("provider = %s", cfg.Routing.Provider)
	}
	if err := cfg.validate(); err != nil {
		t.Fatal(err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"auth mode":   {"AUTH_MODE": "jwks"},
		"hmac secret": {"AUTH_MODE": "hmac"},
		"clock":       {"SCHEDULER_CLOCK": "sundial"},
		"port":        {"PORT": "http"},
		"provider":    {"ROUTING_PROVIDER": "mapbox"},
	}
	for name, vars := range cases {
		cfg := Default()
		if err := cfg.applyEnv(env(vars)); err != nil {
			t.Fatalf("%s: env: %v", name, err)
		}
		if err := cfg.validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
	cfg := Default()
	if err := cfg.applyEnv(env(map[string]string{"TICK_INTERVAL": "soon"})); err == nil {
		t.Fatal("bad duration accepted")
	}
}

func TestMigrateCanBeDisabled(t *testing.T) {
	cfg := Default()
	if !cfg.Migrate {
		t.Fatal("migrations should run by default")
	}
	if err := cfg.applyEnv(env(map[string]string{"DB_MIGRATE": "false"})); err != nil {
		t.Fatal(err)
	}
	if cfg.Migrate {
		t.Fatal("DB_MIGRATE=false ignored")
	}
}
