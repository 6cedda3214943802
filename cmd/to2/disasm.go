package main

import (
	"fmt"

	"github.com/chazu/to2/vm"
)

// handleDisasmCommand prints the bytecode of every function of a module,
// or of the named function only. Native functions are listed without code.
func handleDisasmCommand(args []string, opts options) error {
	if len(args) == 0 || len(args) > 2 {
		return fmt.Errorf("usage: to2 disasm <module> [function]")
	}

	p, err := loadProject(nil, opts)
	if err != nil {
		return err
	}
	configureLogging(opts, p.logLevel(), nil)

	r, err := p.compile()
	if err != nil {
		return err
	}
	m := r.Module(args[0])
	if m == nil {
		return fmt.Errorf("no module %s", args[0])
	}

	names := m.FunctionNames()
	if len(args) == 2 {
		if m.FindFunction(args[1]) == nil {
			return fmt.Errorf("module %s exports no function %s", args[0], args[1])
		}
		names = []string{args[1]}
	}
	for _, name := range names {
		for _, fn := range m.FindFunction(name).All() {
			fmt.Printf("; %s\n", fn.Signature())
			if fn.Impl == nil || fn.Impl.Unit == nil {
				fmt.Printf("; native\n\n")
				continue
			}
			fmt.Println(vm.Disassemble(fn.Impl.Unit))
		}
	}
	return nil
}
