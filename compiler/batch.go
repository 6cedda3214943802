package compiler

import (
	"context"
	"fmt"
	"time"

	"github.com/chazu/to2/grammar"
	"github.com/chazu/to2/runtime"
	"github.com/chazu/to2/types"
)

// ---------------------------------------------------------------------------
// Batch: the modules compiled together
// ---------------------------------------------------------------------------

// batch compiles a set of sources against a registry. Modules of the batch
// may refer to each other in any order; they are published only when the
// whole batch succeeds.
type batch struct {
	registry *Registry
	modules  []*ModuleContext
	byName   map[string]*ModuleContext
	errors   []*StructuralError
}

func newBatch(r *Registry) *batch {
	return &batch{registry: r, byName: map[string]*ModuleContext{}}
}

func (b *batch) report(err *StructuralError) {
	b.errors = append(b.errors, err)
}

func (b *batch) failed() error {
	if len(b.errors) == 0 {
		return nil
	}
	return &CompilationErrors{Errors: b.errors}
}

// lookupModule finds a module of the batch or a registered one.
func (b *batch) lookupModule(name string) source {
	if m, ok := b.byName[name]; ok {
		return m
	}
	if m := b.registry.Module(name); m != nil {
		return registered{m}
	}
	return nil
}

// ConstantTimeout bounds the time a batch spends evaluating its module
// constants.
var ConstantTimeout = 5 * time.Second

type pass struct {
	name string
	run  func(*ModuleContext)
}

// The passes after declaration. Each runs over every module of the batch
// before the next starts.
var passes = []pass{
	{"import types", (*ModuleContext).recordImports},
	{"resolve aliases", (*ModuleContext).resolveAliases},
	{"declare functions", (*ModuleContext).declareFunctions},
	{"import functions", (*ModuleContext).importFunctions},
	{"verify", (*ModuleContext).verify},
	{"layout structs", (*ModuleContext).layoutStructs},
}

func (b *batch) compile(sources []Source) ([]*types.CompiledModule, error) {
	b.declare(sources)
	if err := b.failed(); err != nil {
		return nil, err
	}
	for _, p := range passes {
		for _, m := range b.modules {
			p.run(m)
		}
		log.Debugf("%s: %d modules, %d errors", p.name, len(b.modules), len(b.errors))
	}
	if err := b.failed(); err != nil {
		return nil, err
	}
	return b.freeze()
}

// declare parses every source and registers the names each module
// declares. Parse errors stop the batch here.
func (b *batch) declare(sources []Source) {
	for _, src := range sources {
		if _, dup := b.byName[src.Module]; dup || b.registry.has(src.Module) {
			b.report(&StructuralError{
				Kind:    DuplicateModuleName,
				Module:  src.Module,
				Message: fmt.Sprintf("module %s is declared twice", src.Module),
			})
			continue
		}
		tree, parseErrors := grammar.ParseModule(src.Module, src.Content)
		for _, e := range parseErrors {
			b.report(&StructuralError{
				Kind:    ParseError,
				Module:  src.Module,
				Message: parseMessage(e),
				Start:   e.Range.Start,
				End:     e.Range.End,
			})
		}
		m := newModuleContext(b, src.Module, tree)
		b.modules = append(b.modules, m)
		b.byName[src.Module] = m
	}
	for _, m := range b.modules {
		m.declare()
	}
}

func parseMessage(e *grammar.Error) string {
	if e.Text != "" {
		return fmt.Sprintf("expected %s, found %q", e.Expected, e.Text)
	}
	return "expected " + e.Expected
}

// freeze links the generated units, evaluates the module constants and
// builds the exported view of every module.
func (b *batch) freeze() ([]*types.CompiledModule, error) {
	for _, m := range b.modules {
		m.link()
	}
	ctx := runtime.NewContext(context.Background(), runtime.WithLogger(log), runtime.WithTimeout(ConstantTimeout))
	for _, m := range b.modules {
		m.evaluateConstants(ctx)
	}
	if err := b.failed(); err != nil {
		return nil, err
	}
	out := make([]*types.CompiledModule, 0, len(b.modules))
	for _, m := range b.modules {
		compiled, err := m.exports()
		if err != nil {
			return nil, err
		}
		out = append(out, compiled)
	}
	return out, nil
}
