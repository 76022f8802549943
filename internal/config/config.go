// Package config loads hostmeta.toml. Every section is optional; CLI flags
// override whatever the file sets.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"hostmeta/internal/ledger"
	"hostmeta/internal/resolved"
	"hostmeta/internal/trace"
)

// FileName is the config file searched for by Find.
const FileName = "hostmeta.toml"

type Config struct {
	Universe UniverseConfig `toml:"universe"`
	Driver   DriverConfig   `toml:"driver"`
	Trace    TraceConfig    `toml:"trace"`
	Ledger   LedgerConfig   `toml:"ledger"`

	// Path is the file the config was read from, empty for defaults.
	Path string `toml:"-"`
}

type UniverseConfig struct {
	MethodCacheSlots            int      `toml:"method_cache_slots"`
	SignaturePolymorphicHolders []string `toml:"signature_polymorphic_holders"`
}

type DriverConfig struct {
	Jobs     int  `toml:"jobs"`
	FailFast bool `toml:"fail_fast"`
}

type TraceConfig struct {
	Level     string `toml:"level"`
	Mode      string `toml:"mode"`
	Format    string `toml:"format"`
	Output    string `toml:"output"`
	RingSize  int    `toml:"ring_size"`
	Heartbeat string `toml:"heartbeat"`
}

type LedgerConfig struct {
	Codec string `toml:"codec"`
	Path  string `toml:"path"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Universe: UniverseConfig{
			MethodCacheSlots:            resolved.DefaultMethodCacheSlots,
			SignaturePolymorphicHolders: append([]string(nil), resolved.DefaultSignaturePolymorphicHolders...),
		},
		Driver: DriverConfig{Jobs: runtime.GOMAXPROCS(0)},
		Trace: TraceConfig{
			Level:    "off",
			Mode:     "stream",
			Format:   "auto",
			Output:   "-",
			RingSize: trace.DefaultRingSize,
		},
		Ledger: LedgerConfig{Codec: "msgpack"},
	}
}

// Find walks up from startDir looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads the nearest FileName above startDir, or the defaults.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks ranges and enum values.
func (c *Config) Validate() error {
	if c.Universe.MethodCacheSlots < 0 {
		return fmt.Errorf("[universe].method_cache_slots must be >= 0, got %d", c.Universe.MethodCacheSlots)
	}
	for _, h := range c.Universe.SignaturePolymorphicHolders {
		if strings.TrimSpace(h) == "" {
			return errors.New("[universe].signature_polymorphic_holders has an empty name")
		}
	}
	if c.Driver.Jobs < 0 {
		return fmt.Errorf("[driver].jobs must be >= 0, got %d", c.Driver.Jobs)
	}
	if _, err := c.TraceConfig(); err != nil {
		return fmt.Errorf("[trace]: %w", err)
	}
	if _, err := ledger.ParseCodec(c.Ledger.Codec); err != nil {
		return fmt.Errorf("[ledger]: %w", err)
	}
	return nil
}

// Jobs returns the worker count, GOMAXPROCS when unset.
func (c *Config) Jobs() int {
	if c.Driver.Jobs <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.Driver.Jobs
}

// ResolvedConfig converts the [universe] section. The tracer and access
// context are supplied by the caller.
func (c *Config) ResolvedConfig(t trace.Tracer, access resolved.AccessContext) resolved.Config {
	return resolved.Config{
		MethodCacheSlots:            c.Universe.MethodCacheSlots,
		SignaturePolymorphicHolders: c.Universe.SignaturePolymorphicHolders,
		Tracer:                      t,
		Access:                      access,
	}
}

// TraceConfig converts the [trace] section into a tracer config.
func (c *Config) TraceConfig() (trace.Config, error) {
	level, err := trace.ParseLevel(c.Trace.Level)
	if err != nil {
		return trace.Config{}, err
	}
	mode, err := trace.ParseMode(orDefault(c.Trace.Mode, "stream"))
	if err != nil {
		return trace.Config{}, err
	}
	format, err := trace.ParseFormat(orDefault(c.Trace.Format, "auto"))
	if err != nil {
		return trace.Config{}, err
	}
	if c.Trace.RingSize < 0 {
		return trace.Config{}, fmt.Errorf("ring_size must be >= 0, got %d", c.Trace.RingSize)
	}
	var hb time.Duration
	if c.Trace.Heartbeat != "" {
		hb, err = time.ParseDuration(c.Trace.Heartbeat)
		if err != nil {
			return trace.Config{}, fmt.Errorf("heartbeat: %w", err)
		}
	}
	return trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: c.Trace.Output,
		RingSize:   c.Trace.RingSize,
		Heartbeat:  hb,
	}, nil
}

// LedgerCodec returns the configured codec; Validate has already checked it.
func (c *Config) LedgerCodec() ledger.Codec {
	codec, _ := ledger.ParseCodec(c.Ledger.Codec)
	return codec
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
