package skolem_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/skolem"
	"github.com/google/go-cmp/cmp"
)

func TestParseConfig(t *testing.T) {
	t.Run("Missing", func(t *testing.T) {
		config, err := skolem.ParseConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(config, skolem.DefaultConfig()); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		config := parseConfigString(t, ``)
		if !config.UseConstructHash {
			t.Fatal("expected construct hashing by default")
		} else if config.AutoClearConstructCache {
			t.Fatal("expected cache retention by default")
		} else if config.Timeout != 0 {
			t.Fatal("expected no timeout by default")
		}
	})

	t.Run("Values", func(t *testing.T) {
		config := parseConfigString(t, `
use-construct-hash-z3 = false
auto-clear-construct-cache = true
timeout = "30s"
`)
		if config.UseConstructHash {
			t.Fatal("expected construct hashing disabled")
		} else if !config.AutoClearConstructCache {
			t.Fatal("expected auto clear enabled")
		} else if config.Timeout != 30*time.Second {
			t.Fatalf("unexpected timeout: %s", config.Timeout)
		}
	})

	t.Run("UnknownKey", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte(`no-such-option = true`), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := skolem.ParseConfig(path); err == nil {
			t.Fatal("expected error for unknown option")
		}
	})

	t.Run("InvalidTimeout", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte(`timeout = "not-a-duration"`), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := skolem.ParseConfig(path); err == nil {
			t.Fatal("expected error for invalid timeout")
		}
	})
}

func parseConfigString(t *testing.T, s string) skolem.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(s), 0644); err != nil {
		t.Fatal(err)
	}
	config, err := skolem.ParseConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	return config
}
