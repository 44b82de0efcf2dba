package skolem

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the run-time options recognized by the solver backend.
type Config struct {
	// UseConstructHash memoises query construction on expression identity.
	// Disabling it keeps translation correct but makes it linear in DAG
	// unfoldings rather than unique nodes.
	UseConstructHash bool `toml:"use-construct-hash-z3"`

	// AutoClearConstructCache drops the construction cache after every
	// top-level translation.
	AutoClearConstructCache bool `toml:"auto-clear-construct-cache"`

	// Timeout bounds each solver query. Zero means no limit.
	Timeout time.Duration `toml:"timeout"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		UseConstructHash:        true,
		AutoClearConstructCache: false,
		Timeout:                 0,
	}
}

// ParseConfig reads a TOML configuration from path. Keys that are absent
// keep their default values. A missing file yields the default config.
func ParseConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	} else if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return parseConfig(f)
}

func parseConfig(r io.Reader) (Config, error) {
	var raw struct {
		UseConstructHash        *bool  `toml:"use-construct-hash-z3"`
		AutoClearConstructCache *bool  `toml:"auto-clear-construct-cache"`
		Timeout                 string `toml:"timeout"`
	}
	meta, err := toml.DecodeReader(r, &raw)
	if err != nil {
		return Config{}, err
	}
	for _, key := range meta.Undecoded() {
		return Config{}, fmt.Errorf("unknown option: %s", key)
	}

	config := DefaultConfig()
	if raw.UseConstructHash != nil {
		config.UseConstructHash = *raw.UseConstructHash
	}
	if raw.AutoClearConstructCache != nil {
		config.AutoClearConstructCache = *raw.AutoClearConstructCache
	}
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("invalid timeout: %w", err)
		}
		config.Timeout = d
	}
	return config, nil
}
