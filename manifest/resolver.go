package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// SourceRoot is a directory of sources whose module names get Prefix.
type SourceRoot struct {
	Dir    string
	Prefix string
}

// ResolvedDep represents a dependency that has been resolved to a local path.
type ResolvedDep struct {
	Name      string    // dependency name
	LocalPath string    // local filesystem path
	Prefix    string    // module prefix for this dependency
	Manifest  *Manifest // the dependency's own manifest (may be nil)
}

// Roots returns the source directories of the dependency.
func (d ResolvedDep) Roots() []SourceRoot {
	if d.Manifest == nil {
		return []SourceRoot{{Dir: d.LocalPath, Prefix: d.Prefix}}
	}
	var roots []SourceRoot
	for _, dir := range d.Manifest.SourceDirPaths() {
		roots = append(roots, SourceRoot{Dir: dir, Prefix: d.Prefix})
	}
	return roots
}

// Resolver manages dependency resolution.
type Resolver struct {
	manifest *Manifest
	resolved map[string]*ResolvedDep
	visiting map[string]bool
	order    []ResolvedDep
}

// NewResolver creates a new dependency resolver.
func NewResolver(m *Manifest) *Resolver {
	return &Resolver{
		manifest: m,
		resolved: map[string]*ResolvedDep{},
		visiting: map[string]bool{},
	}
}

// Resolve resolves all dependencies and returns them in load order
// (dependencies before dependents).
func (r *Resolver) Resolve() ([]ResolvedDep, error) {
	if err := r.resolveAll(r.manifest); err != nil {
		return nil, err
	}
	return r.order, nil
}

// Roots returns every source root of the project: dependencies first,
// then the project's own directories without a prefix.
func (r *Resolver) Roots() ([]SourceRoot, error) {
	deps, err := r.Resolve()
	if err != nil {
		return nil, err
	}
	var roots []SourceRoot
	for _, d := range deps {
		roots = append(roots, d.Roots()...)
	}
	for _, dir := range r.manifest.SourceDirPaths() {
		roots = append(roots, SourceRoot{Dir: dir})
	}
	return roots, nil
}

func (r *Resolver) resolveAll(m *Manifest) error {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, ok := r.resolved[name]; ok {
			continue
		}
		if r.visiting[name] {
			return fmt.Errorf("dependency cycle through %q", name)
		}
		r.visiting[name] = true

		rd, err := resolveOne(m.Dir, name, m.Dependencies[name])
		if err != nil {
			return fmt.Errorf("resolving %s: %w", name, err)
		}
		if rd.Manifest != nil {
			if err := r.resolveAll(rd.Manifest); err != nil {
				return err
			}
		}

		delete(r.visiting, name)
		r.resolved[name] = rd
		r.order = append(r.order, *rd)
	}
	return nil
}

// resolvePrefix determines the module prefix of a dependency:
//  1. Consumer override (dep.Prefix from TOML)
//  2. Producer manifest (depManifest.Project.Prefix)
//  3. snake_case fallback (ToSnakeCase(name))
func resolvePrefix(name string, dep Dependency, depManifest *Manifest) (string, error) {
	var prefix string
	switch {
	case dep.Prefix != "":
		prefix = dep.Prefix
	case depManifest != nil && depManifest.Project.Prefix != "":
		prefix = depManifest.Project.Prefix
	default:
		prefix = ToSnakeCase(name)
	}

	if !ValidPrefix(prefix) {
		return "", fmt.Errorf("dependency %q resolves to invalid prefix %q", name, prefix)
	}
	if IsReservedPrefix(prefix) {
		return "", fmt.Errorf("dependency %q resolves to reserved prefix %q; add prefix = \"...\" in [dependencies]", name, prefix)
	}
	return prefix, nil
}

// resolveOne resolves a single dependency relative to the directory of the
// manifest naming it.
func resolveOne(base, name string, dep Dependency) (*ResolvedDep, error) {
	if dep.Path == "" {
		return nil, fmt.Errorf("dependency %q has no path specified", name)
	}
	localPath := dep.Path
	if !filepath.IsAbs(localPath) {
		localPath = filepath.Join(base, localPath)
	}
	localPath, err := filepath.Abs(localPath)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", dep.Path, err)
	}
	if _, err := os.Stat(localPath); err != nil {
		return nil, fmt.Errorf("local dependency %q not found at %s: %w", name, localPath, err)
	}

	var depManifest *Manifest
	if _, err := os.Stat(filepath.Join(localPath, FileName)); err == nil {
		if depManifest, err = Load(localPath); err != nil {
			return nil, err
		}
	}

	prefix, err := resolvePrefix(name, dep, depManifest)
	if err != nil {
		return nil, err
	}
	return &ResolvedDep{
		Name:      name,
		LocalPath: localPath,
		Prefix:    prefix,
		Manifest:  depManifest,
	}, nil
}
