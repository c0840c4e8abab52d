package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
runtimes:
  - name: wasmtime
    binary: /usr/bin/wasmtime
    preopen_args_template: "--dir={{.Dir}}::/sandbox"
    executor_wasm: /opt/wasit/executor.wasm
  - name: embedded
    embedded: true
    executor_wasm: /opt/wasit/executor.wasm
generation:
  max_depth: 4
  max_array_len: 16
  max_string_len: 64
  generate_flags: true
  generate_numericals: false
policy:
  continue_on_divergence: true
  request_timeout: 2s
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadParsesRuntimesAndCaps(t *testing.T) {
	cfg, err := Load(writeSample(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Runtimes) != 2 {
		t.Fatalf("len(Runtimes) = %d, want 2", len(cfg.Runtimes))
	}
	if cfg.Runtimes[0].Name != "wasmtime" {
		t.Fatalf("Runtimes[0].Name = %q, want wasmtime", cfg.Runtimes[0].Name)
	}
	if !cfg.Runtimes[1].Embedded {
		t.Fatal("Runtimes[1].Embedded = false, want true")
	}
	if cfg.Generation.MaxDepth != 4 {
		t.Fatalf("MaxDepth = %d, want 4", cfg.Generation.MaxDepth)
	}
}

func TestRequestTimeoutParsesDuration(t *testing.T) {
	cfg, err := Load(writeSample(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d, err := cfg.RequestTimeout()
	if err != nil {
		t.Fatalf("RequestTimeout: %v", err)
	}
	if d != 2*time.Second {
		t.Fatalf("RequestTimeout = %v, want 2s", d)
	}
}

func TestRequestTimeoutDefaultsWhenUnset(t *testing.T) {
	cfg := &Config{}
	d, err := cfg.RequestTimeout()
	if err != nil {
		t.Fatalf("RequestTimeout: %v", err)
	}
	if d != 5*time.Second {
		t.Fatalf("RequestTimeout = %v, want 5s default", d)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestToControlsMapsGenerationCaps(t *testing.T) {
	cfg, err := Load(writeSample(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	controls := cfg.ToControls()
	if controls.MaxArrayLen != 16 {
		t.Fatalf("MaxArrayLen = %d, want 16", controls.MaxArrayLen)
	}
	if !controls.GenerateFlags {
		t.Fatal("GenerateFlags = false, want true")
	}
}
