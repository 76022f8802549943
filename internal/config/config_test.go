package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hostmeta/internal/ledger"
	"hostmeta/internal/resolved"
	"hostmeta/internal/trace"
)

func writeFile(t *testing.T, dir, text string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	tc, err := cfg.TraceConfig()
	if err != nil {
		t.Fatal(err)
	}
	if tc.Level != trace.LevelOff || tc.Mode != trace.ModeStream {
		t.Fatalf("default trace config = %+v", tc)
	}
	if cfg.Universe.MethodCacheSlots != resolved.DefaultMethodCacheSlots {
		t.Fatalf("default slots = %d", cfg.Universe.MethodCacheSlots)
	}
}

func TestLoad(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
[universe]
method_cache_slots = 2
signature_polymorphic_holders = ["Poly"]

[driver]
jobs = 3
fail_fast = true

[trace]
level = "detail"
mode = "both"
format = "ndjson"
output = "trace.ndjson"
ring_size = 16
heartbeat = "250ms"

[ledger]
codec = "cbor"
path = "out.cbor"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Path != path || cfg.Jobs() != 3 || !cfg.Driver.FailFast {
		t.Fatalf("driver section = %+v", cfg.Driver)
	}
	rc := cfg.ResolvedConfig(trace.Nop, nil)
	if rc.MethodCacheSlots != 2 || len(rc.SignaturePolymorphicHolders) != 1 || rc.SignaturePolymorphicHolders[0] != "Poly" {
		t.Fatalf("resolved config = %+v", rc)
	}
	tc, err := cfg.TraceConfig()
	if err != nil {
		t.Fatal(err)
	}
	if tc.Level != trace.LevelDetail || tc.Mode != trace.ModeBoth || tc.Format != trace.FormatNDJSON ||
		tc.RingSize != 16 || tc.Heartbeat != 250*time.Millisecond || tc.OutputPath != "trace.ndjson" {
		t.Fatalf("trace config = %+v", tc)
	}
	if cfg.LedgerCodec() != ledger.CodecCBOR || cfg.Ledger.Path != "out.cbor" {
		t.Fatalf("ledger section = %+v", cfg.Ledger)
	}
}

func TestLoadKeepsDefaultsForMissingSections(t *testing.T) {
	cfg, err := Load(writeFile(t, t.TempDir(), "[driver]\njobs = 1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Trace.Level != "off" || cfg.Ledger.Codec != "msgpack" {
		t.Fatalf("defaults lost: %+v %+v", cfg.Trace, cfg.Ledger)
	}
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":   "[driver]\nworkers = 2\n",
		"negative jobs": "[driver]\njobs = -1\n",
		"bad level":     "[trace]\nlevel = \"loud\"\n",
		"bad mode":      "[trace]\nmode = \"disk\"\n",
		"bad heartbeat": "[trace]\nheartbeat = \"soon\"\n",
		"bad codec":     "[ledger]\ncodec = \"gob\"\n",
		"bad slots":     "[universe]\nmethod_cache_slots = -4\n",
		"empty holder":  "[universe]\nsignature_polymorphic_holders = [\" \"]\n",
		"not toml":      "[driver\n",
	}
	for name, text := range cases {
		path := writeFile(t, t.TempDir(), text)
		_, err := Load(path)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !strings.Contains(err.Error(), path) {
			t.Fatalf("%s: error %q does not name the file", name, err)
		}
	}
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "[driver]\njobs = 7\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	found, ok, err := Find(nested)
	if err != nil || !ok || found != path {
		t.Fatalf("Find = %q %v %v, want %q", found, ok, err, path)
	}
	cfg, err := Discover(nested)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Jobs() != 7 {
		t.Fatalf("jobs = %d", cfg.Jobs())
	}
}
