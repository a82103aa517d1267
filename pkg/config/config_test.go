package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
environment: test
server:
  port: 9090
  read_timeout: 5s
  write_timeout: 10s
  shutdown_timeout: 5s
log:
  level: debug
snapshot:
  path: /data/snapshot.json
clickhouse:
  host: ch.internal
  port: 9000
  database: backtest
kafka:
  enabled: false
cache:
  enabled: true
  type: memory
  ttl: 45s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Cache.TTL != 45*time.Second {
		t.Errorf("cache.ttl = %s, want 45s", cfg.Cache.TTL)
	}
	if got := cfg.ManifestTable(); got != "build_manifest" {
		t.Errorf("manifest table default = %q, want build_manifest", got)
	}
	if cfg.Cache.MaxItems <= 0 {
		t.Errorf("cache.max_items not defaulted, got %d", cfg.Cache.MaxItems)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing snapshot path", `
environment: test
clickhouse: {host: ch, database: db}
`},
		{"missing clickhouse host", `
environment: test
snapshot: {path: /s.json}
clickhouse: {database: db}
`},
		{"kafka enabled without brokers", `
environment: test
snapshot: {path: /s.json}
clickhouse: {host: ch, database: db}
kafka: {enabled: true}
`},
		{"bad cache type", `
environment: test
snapshot: {path: /s.json}
clickhouse: {host: ch, database: db}
cache: {enabled: true, type: disk}
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("CLICKHOUSE_HOST", "ch.override")
	t.Setenv("SNAPSHOT_PATH", "/override/snapshot.json")

	cfg, err := LoadWithEnv(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load with env: %v", err)
	}
	if cfg.ClickHouse.Host != "ch.override" {
		t.Errorf("clickhouse.host = %q, want ch.override", cfg.ClickHouse.Host)
	}
	if cfg.Snapshot.Path != "/override/snapshot.json" {
		t.Errorf("snapshot.path = %q, want /override/snapshot.json", cfg.Snapshot.Path)
	}
}
