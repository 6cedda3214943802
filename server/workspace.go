package server

import (
	"errors"
	"maps"
	"slices"

	"github.com/chazu/to2/compiler"
)

// Workspace holds the project sources the servers compile against and the
// registry of the last successful build. It is only touched from the
// worker goroutine.
type Workspace struct {
	sources  map[string]compiler.Source
	registry *compiler.Registry
	errors   []*compiler.StructuralError
}

// NewWorkspace creates a workspace over sources. Call Rebuild to compile.
func NewWorkspace(sources []compiler.Source) *Workspace {
	ws := &Workspace{sources: map[string]compiler.Source{}}
	for _, src := range sources {
		ws.sources[src.Module] = src
	}
	return ws
}

// Registry returns the registry of the last successful build, or nil.
func (ws *Workspace) Registry() *compiler.Registry {
	return ws.registry
}

// Errors returns the structural errors of the last build.
func (ws *Workspace) Errors() []*compiler.StructuralError {
	return ws.errors
}

// Sources returns the workspace sources ordered by module name.
func (ws *Workspace) Sources() []compiler.Source {
	out := make([]compiler.Source, 0, len(ws.sources))
	for _, name := range slices.Sorted(maps.Keys(ws.sources)) {
		out = append(out, ws.sources[name])
	}
	return out
}

// Rebuild compiles every source as one batch. On structural errors the
// previous registry is kept and the errors are recorded; other failures
// are returned.
func (ws *Workspace) Rebuild() error {
	r, errs, err := Build(ws.Sources())
	if err != nil {
		return err
	}
	ws.errors = errs
	if len(errs) == 0 {
		ws.registry = r
	}
	log.Debugf("rebuilt %d modules, %d errors", len(ws.sources), len(errs))
	return nil
}

// Update replaces the text of one module, rebuilds, and returns the errors
// reported for that module.
func (ws *Workspace) Update(src compiler.Source) ([]*compiler.StructuralError, error) {
	ws.sources[src.Module] = src
	if err := ws.Rebuild(); err != nil {
		return nil, err
	}
	var own []*compiler.StructuralError
	for _, e := range ws.errors {
		if e.Module == src.Module {
			own = append(own, e)
		}
	}
	return own, nil
}

// Build compiles sources into a fresh registry holding the standard
// modules. Structural errors are returned separately from other failures.
func Build(sources []compiler.Source) (*compiler.Registry, []*compiler.StructuralError, error) {
	r, err := compiler.NewDefaultRegistry()
	if err != nil {
		return nil, nil, err
	}
	err = r.AddSources(sources)
	var ce *compiler.CompilationErrors
	switch {
	case err == nil:
		return r, nil, nil
	case errors.As(err, &ce):
		return nil, ce.Errors, nil
	}
	return nil, nil, err
}
