package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/to2/compiler"
	"github.com/chazu/to2/manifest"
)

// project is the set of sources a command compiles.
type project struct {
	manifest *manifest.Manifest // nil without a to2.toml
	roots    []manifest.SourceRoot
	sources  []compiler.Source
}

// loadProject collects sources. Explicit paths (directories or .to2 files)
// take precedence; otherwise the nearest to2.toml and its dependencies are
// used.
func loadProject(paths []string, opts options) (*project, error) {
	p := &project{}
	if !opts.noManifest {
		m, err := manifest.FindAndLoad(".")
		if err != nil {
			return nil, err
		}
		p.manifest = m
	}

	if len(paths) > 0 {
		for _, path := range paths {
			if err := p.addPath(path); err != nil {
				return nil, err
			}
		}
		return p, nil
	}

	if p.manifest == nil {
		return nil, errors.New("no " + manifest.FileName + " found; pass source paths instead")
	}
	roots, err := manifest.NewResolver(p.manifest).Roots()
	if err != nil {
		return nil, err
	}
	for _, root := range roots {
		if err := p.addRoot(root); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *project) addRoot(root manifest.SourceRoot) error {
	sources, err := compiler.ReadDirectory(root.Dir, root.Prefix)
	if err != nil {
		return err
	}
	log.Debugf("%s: %d modules", root.Dir, len(sources))
	p.roots = append(p.roots, root)
	p.sources = append(p.sources, sources...)
	return nil
}

func (p *project) addPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return p.addRoot(manifest.SourceRoot{Dir: abs})
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return err
	}
	module := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	p.sources = append(p.sources, compiler.Source{Module: module, Path: abs, Content: string(data)})
	return nil
}

// logLevel is the configured log level, or the default without a manifest.
func (p *project) logLevel() string {
	if p.manifest == nil {
		return manifest.DefaultLogLevel
	}
	return p.manifest.Runtime.LogLevel
}

// compile builds the project sources into a registry holding the standard
// modules.
func (p *project) compile() (*compiler.Registry, error) {
	r, err := compiler.NewDefaultRegistry()
	if err != nil {
		return nil, err
	}
	if err := r.AddSources(p.sources); err != nil {
		return nil, err
	}
	return r, nil
}

// splitQualified splits module::name at its last separator.
func splitQualified(s string) (module, name string, err error) {
	i := strings.LastIndex(s, "::")
	if i <= 0 || i+2 == len(s) {
		return "", "", fmt.Errorf("%q is not of the form module::name", s)
	}
	return s[:i], s[i+2:], nil
}
