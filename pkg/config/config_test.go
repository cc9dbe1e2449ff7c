package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Codec.PrimaryMethod != "sum" {
		t.Errorf("Codec.PrimaryMethod = %q, want sum", cfg.Codec.PrimaryMethod)
	}
	if cfg.Codec.LengthAdditiveK != 1000 {
		t.Errorf("Codec.LengthAdditiveK = %d, want 1000", cfg.Codec.LengthAdditiveK)
	}
	if cfg.Index.Partitions != 8 {
		t.Errorf("Index.Partitions = %d, want 8", cfg.Index.Partitions)
	}
	if cfg.Index.FlushInterval != 2*time.Second {
		t.Errorf("Index.FlushInterval = %v, want 2s", cfg.Index.FlushInterval)
	}
	if cfg.Ingest.DefaultAlphabet != "english" {
		t.Errorf("Ingest.DefaultAlphabet = %q, want english", cfg.Ingest.DefaultAlphabet)
	}
	if cfg.Kafka.Topics.PhraseIngest != "phrase-ingest" {
		t.Errorf("Kafka.Topics.PhraseIngest = %q, want phrase-ingest", cfg.Kafka.Topics.PhraseIngest)
	}
	if cfg.Baseline.AliasVersion != "v1" {
		t.Errorf("Baseline.AliasVersion = %q, want v1", cfg.Baseline.AliasVersion)
	}
}

func TestLoadFromFile(t *testing.T) {
	yaml := `
server:
  port: 9999
codec:
  primaryMethod: mirror
  nameExpansionDepth: 16
index:
  dataDir: /tmp/gx-test
ingest:
  defaultAlphabet: hebrew
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Codec.PrimaryMethod != "mirror" {
		t.Errorf("Codec.PrimaryMethod = %q, want mirror", cfg.Codec.PrimaryMethod)
	}
	if cfg.Codec.NameExpansionDepth != 16 {
		t.Errorf("Codec.NameExpansionDepth = %d, want 16", cfg.Codec.NameExpansionDepth)
	}
	if cfg.Ingest.DefaultAlphabet != "hebrew" {
		t.Errorf("Ingest.DefaultAlphabet = %q, want hebrew", cfg.Ingest.DefaultAlphabet)
	}
	// Untouched sections keep their defaults.
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q, want default", cfg.Redis.Addr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GX_SERVER_PORT", "7070")
	t.Setenv("GX_CODEC_PRIMARY_METHOD", "ordinal")
	t.Setenv("GX_INGEST_DEFAULT_ALPHABET", "greek")
	t.Setenv("GX_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Codec.PrimaryMethod != "ordinal" {
		t.Errorf("Codec.PrimaryMethod = %q, want ordinal", cfg.Codec.PrimaryMethod)
	}
	if cfg.Ingest.DefaultAlphabet != "greek" {
		t.Errorf("Ingest.DefaultAlphabet = %q, want greek", cfg.Ingest.DefaultAlphabet)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Kafka.Brokers = %v, want [k1:9092 k2:9092]", cfg.Kafka.Brokers)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "db", Port: 5433, Database: "gx", User: "u", Password: "p", SSLMode: "disable",
	}
	want := "host=db port=5433 user=u password=p dbname=gx sslmode=disable"
	if got := p.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
