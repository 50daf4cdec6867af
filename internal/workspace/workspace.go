package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"aigc_sentinel/internal/config"
)

const BaseDirName = "AIGCSentinel"

// Paths lists the well-known locations inside a workspace.
type Paths struct {
	Root       string
	ConfigFile string
	CacheDB    string
	LogsDir    string
}

func At(base string) Paths {
	return Paths{
		Root:       base,
		ConfigFile: filepath.Join(base, "configs", "sentinel.yaml"),
		CacheDB:    filepath.Join(base, "cache", "classifier.db"),
		LogsDir:    filepath.Join(base, "logs"),
	}
}

func EnsureDefault() (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve home: %w", err)
	}
	return EnsureAt(filepath.Join(home, BaseDirName))
}

// EnsureAt creates the workspace layout under base and writes a default
// config file when none exists. An existing config file is never touched.
func EnsureAt(base string) (Paths, error) {
	ws := At(base)
	for _, p := range []string{filepath.Dir(ws.ConfigFile), filepath.Dir(ws.CacheDB), ws.LogsDir} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return Paths{}, fmt.Errorf("mkdir %s: %w", p, err)
		}
	}

	if _, err := os.Stat(ws.ConfigFile); os.IsNotExist(err) {
		defaults := config.Defaults()
		defaults.CachePath = ws.CacheDB
		raw, marshalErr := yaml.Marshal(defaults)
		if marshalErr != nil {
			return Paths{}, fmt.Errorf("marshal settings: %w", marshalErr)
		}
		if writeErr := os.WriteFile(ws.ConfigFile, raw, 0o644); writeErr != nil {
			return Paths{}, fmt.Errorf("write settings: %w", writeErr)
		}
	}

	return ws, nil
}
