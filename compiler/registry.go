// Package compiler turns TO2 sources into registered modules: it parses
// them, resolves names and types across a batch of modules in five passes,
// and generates one bytecode unit per function, lambda, default value and
// struct constructor.
package compiler

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/to2/stdlib"
	"github.com/chazu/to2/types"
)

var log = commonlog.GetLogger("to2.compiler")

// SourceExtension is the file extension of TO2 sources.
const SourceExtension = ".to2"

// Source is one module's source text.
type Source struct {
	Module  string
	Path    string
	Content string
}

// Registry owns compiled and bound modules by name. It is filled once and
// then only read; recompiling builds a new registry.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]types.Module
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: map[string]types.Module{}}
}

// NewDefaultRegistry creates a registry holding the core:: modules.
func NewDefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	mods, err := stdlib.Bind()
	if err != nil {
		return nil, fmt.Errorf("binding standard modules: %w", err)
	}
	for _, m := range mods {
		if err := r.AddModule(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// AddModule registers a finished module.
func (r *Registry) AddModule(m types.Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[m.Name()]; exists {
		return &StructuralError{Kind: DuplicateModuleName, Module: m.Name(), Message: fmt.Sprintf("module %s is already registered", m.Name())}
	}
	r.modules[m.Name()] = m
	return nil
}

// Module returns a registered module, or nil.
func (r *Registry) Module(name string) types.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.modules[name]; ok {
		return m
	}
	return nil
}

// ModuleNames lists the registered modules, sorted.
func (r *Registry) ModuleNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *Registry) has(name string) bool {
	return r.Module(name) != nil
}

// ---------------------------------------------------------------------------
// Source discovery
// ---------------------------------------------------------------------------

// ModuleName derives a module name from a file path relative to base:
// a/b.to2 becomes a::b.
func ModuleName(base, path string) (string, error) {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return "", err
	}
	rel = strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
	if rel == "" || rel == "." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is not below %s", path, base)
	}
	return strings.ReplaceAll(rel, "/", "::"), nil
}

// ReadDirectory reads every .to2 file below dir. Module names are derived
// from the relative paths and, when prefix is set, placed below it.
func ReadDirectory(dir, prefix string) ([]Source, error) {
	var sources []Source
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != SourceExtension {
			return nil
		}
		src, err := readSource(dir, path)
		if err != nil {
			return err
		}
		if prefix != "" {
			src.Module = prefix + "::" + src.Module
		}
		sources = append(sources, src)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	log.Debugf("found %d sources in %s", len(sources), dir)
	return sources, nil
}

// AddDirectory compiles every .to2 file below dir as one batch.
func (r *Registry) AddDirectory(dir string) error {
	sources, err := ReadDirectory(dir, "")
	if err != nil {
		return err
	}
	return r.AddSources(sources)
}

// AddFile compiles a single file as a batch of one.
func (r *Registry) AddFile(base, path string) error {
	src, err := readSource(base, path)
	if err != nil {
		return err
	}
	return r.AddSources([]Source{src})
}

func readSource(base, path string) (Source, error) {
	name, err := ModuleName(base, path)
	if err != nil {
		return Source{}, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return Source{Module: name, Path: path, Content: string(content)}, nil
}

// AddSources compiles in-memory sources as one batch. Either every module
// of the batch is registered or, on a *CompilationErrors, none is.
func (r *Registry) AddSources(sources []Source) error {
	b := newBatch(r)
	modules, err := b.compile(sources)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range modules {
		r.modules[m.Name()] = m
	}
	log.Infof("registered %d modules", len(modules))
	return nil
}
