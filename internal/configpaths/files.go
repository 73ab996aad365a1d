// Package configpaths locates configuration files for syncbackend.
package configpaths

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

// ProjectDir is the per-project directory searched before the user config
// directory. It is also the default work directory of the pipeline.
const ProjectDir = "_SyncToBackend"

// Bases are the file names (without extension) probed in every directory.
var Bases = []string{"syncbackend", "config", "weave", "refresh", "serve", "publish"}

// DefaultConfigDir returns the platform-specific configuration directory for syncbackend.
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if appdata := os.Getenv("AppData"); appdata != "" {
			return filepath.Join(appdata, "syncbackend"), nil
		}
		return "", errors.New("AppData not set")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "syncbackend"), nil
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".config", "syncbackend"), nil
		}
		return "", errors.New("HOME not set")
	}
}

// FileName returns base with the extension used for format.
func FileName(base, format string) string {
	switch format {
	case "yaml", "yml":
		return base + ".yaml"
	case "toml":
		return base + ".toml"
	}
	return base + ".json"
}

// EnsureDir ensures the directory for a given file path exists.
func EnsureDir(filePath string) error {
	return os.MkdirAll(filepath.Dir(filePath), 0o755)
}

// Candidates holds config file candidates grouped by loader.
type Candidates struct {
	JSON []string
	YAML []string
	TOML []string
}

func (c *Candidates) add(p string) {
	switch filepath.Ext(p) {
	case ".yaml", ".yml":
		c.YAML = append(c.YAML, p)
	case ".toml":
		c.TOML = append(c.TOML, p)
	default:
		c.JSON = append(c.JSON, p)
	}
}

func (c *Candidates) addDir(dir string) {
	for _, base := range Bases {
		for _, ext := range []string{".json", ".yaml", ".yml", ".toml"} {
			c.add(filepath.Join(dir, base+ext))
		}
	}
}

// ConfigCandidatePaths builds candidate paths for config files per format.
// userPath comes first and is routed to a loader by extension, then the
// working directory, its ProjectDir, the user config directory and /etc.
func ConfigCandidatePaths(userPath string) (jsonPaths, yamlPaths, tomlPaths []string) {
	var c Candidates
	if userPath != "" {
		c.add(userPath)
	}

	if wd, err := os.Getwd(); err == nil {
		c.addDir(wd)
		c.addDir(filepath.Join(wd, ProjectDir))
	}
	if dir, err := DefaultConfigDir(); err == nil {
		c.addDir(dir)
	}
	if runtime.GOOS != "windows" {
		c.addDir("/etc/syncbackend")
	}
	return c.JSON, c.YAML, c.TOML
}
