package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
postgres:
  dsn: postgres://u:p@db:5432/mgv?sslmode=disable
  max_open_conns: 32
consumer:
  batch_size: 250
  fetch_max_wait: 2s
chains:
  - id: 80001
    name: mumbai
    exclude_mangroves:
      - "0xOldDeployment"
    streams:
      core:
        jetstream: MGV_CORE
        subject: mgv.80001.core
        durable: indexer-core-80001
      tokens:
        jetstream: MGV_TOKENS
        subject: mgv.80001.tokens
        durable: indexer-tokens-80001
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Postgres.MaxOpenConns != 32 {
		t.Errorf("max_open_conns = %d", cfg.Postgres.MaxOpenConns)
	}
	// Untouched values keep their defaults.
	if cfg.Postgres.MaxIdleConns != 4 {
		t.Errorf("max_idle_conns = %d", cfg.Postgres.MaxIdleConns)
	}
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("nats url = %q", cfg.NATS.URL)
	}
	if cfg.Consumer.BatchSize != 250 || cfg.Consumer.FetchMaxWait != 2*time.Second {
		t.Errorf("consumer = %+v", cfg.Consumer)
	}
	if cfg.Consumer.BatchTimeout != 30*time.Second {
		t.Errorf("batch_timeout = %v", cfg.Consumer.BatchTimeout)
	}

	if len(cfg.Chains) != 1 {
		t.Fatalf("chains = %d", len(cfg.Chains))
	}
	ch := cfg.Chains[0]
	if ch.ID != 80001 || ch.Name != "mumbai" {
		t.Errorf("chain = %+v", ch)
	}
	if len(ch.ExcludeMangroves) != 1 || ch.ExcludeMangroves[0] != "0xOldDeployment" {
		t.Errorf("exclude_mangroves = %v", ch.ExcludeMangroves)
	}
	if ch.Streams.Core.Subject != "mgv.80001.core" {
		t.Errorf("core stream = %+v", ch.Streams.Core)
	}
	// Streams without config stay disabled.
	if ch.Streams.Kandel.Subject != "" {
		t.Errorf("kandel stream = %+v", ch.Streams.Kandel)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MGV_POSTGRES_DSN", "postgres://env@db:5432/env")
	t.Setenv("MGV_NATS_URL", "nats://env:4222")

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Postgres.DSN != "postgres://env@db:5432/env" {
		t.Errorf("dsn = %q", cfg.Postgres.DSN)
	}
	if cfg.NATS.URL != "nats://env:4222" {
		t.Errorf("nats url = %q", cfg.NATS.URL)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no chains", "metrics:\n  addr: :9091\n", "at least one chain"},
		{"missing core subject", "chains:\n  - id: 1\n    name: x\n", "streams.core.subject"},
		{"duplicate ids", `
chains:
  - id: 1
    streams: {core: {subject: a}}
  - id: 1
    streams: {core: {subject: b}}
`, "duplicate chain id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}
