// Package manifest handles to2.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project file.
const FileName = "to2.toml"

// Manifest represents a to2.toml project configuration.
type Manifest struct {
	Project      Project               `toml:"project"`
	Source       Source                `toml:"source"`
	Runtime      Runtime               `toml:"runtime"`
	Server       Server                `toml:"server"`
	Dependencies map[string]Dependency `toml:"dependencies"`

	// Dir is the directory containing the to2.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	// Prefix is prepended to the module names of this project when another
	// project depends on it.
	Prefix string `toml:"prefix"`
}

// Source configures source file locations.
type Source struct {
	Dirs []string `toml:"dirs"`
	// Entry names the function `to2 run` calls, as module::function.
	Entry string `toml:"entry"`
}

// Runtime configures script execution.
type Runtime struct {
	TimeoutMs int    `toml:"timeout-ms"`
	LogLevel  string `toml:"log-level"`
}

// Server configures `to2 serve`.
type Server struct {
	Port int `toml:"port"`
}

// Dependency is another TO2 project whose sources are compiled along with
// this one.
type Dependency struct {
	Path   string `toml:"path"`
	Prefix string `toml:"prefix"`
}

// Default values for unset fields.
const (
	DefaultTimeoutMs = 10000
	DefaultPort      = 8470
	DefaultLogLevel  = "info"
)

// Load parses a to2.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes manifest text and fills in defaults. Dir is left empty.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"src"}
	}
	if m.Runtime.TimeoutMs <= 0 {
		m.Runtime.TimeoutMs = DefaultTimeoutMs
	}
	if m.Runtime.LogLevel == "" {
		m.Runtime.LogLevel = DefaultLogLevel
	}
	if m.Server.Port == 0 {
		m.Server.Port = DefaultPort
	}
	if m.Project.Prefix != "" && !ValidPrefix(m.Project.Prefix) {
		return nil, fmt.Errorf("invalid prefix %q", m.Project.Prefix)
	}
	if m.Source.Entry != "" {
		if _, _, err := m.EntryPoint(); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a to2.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		if filepath.IsAbs(d) {
			paths = append(paths, d)
			continue
		}
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// Timeout is the run-time slice scripts get before they must yield.
func (m *Manifest) Timeout() time.Duration {
	return time.Duration(m.Runtime.TimeoutMs) * time.Millisecond
}

// EntryPoint splits source.entry into module and function name.
func (m *Manifest) EntryPoint() (module, function string, err error) {
	i := strings.LastIndex(m.Source.Entry, "::")
	if i <= 0 || i+2 == len(m.Source.Entry) {
		return "", "", fmt.Errorf("entry %q is not of the form module::function", m.Source.Entry)
	}
	return m.Source.Entry[:i], m.Source.Entry[i+2:], nil
}
