// Package stdlib holds the core::* modules every TO2 registry starts with.
// Each module is a binding table; Bind turns all of them into compiled
// modules.
package stdlib

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/to2/binding"
	"github.com/chazu/to2/types"
)

var log = commonlog.GetLogger("to2.stdlib")

// PreludeName is the module imported into every script module.
const PreludeName = "core::prelude"

// Modules lists the standard binding tables in registration order.
var Modules = []*binding.Module{
	Prelude,
	Logging,
	Math,
	Str,
	TaskModule,
	Background,
	Stats,
}

// Bind binds every standard module.
func Bind() ([]*types.CompiledModule, error) {
	out := make([]*types.CompiledModule, 0, len(Modules))
	for _, m := range Modules {
		compiled, err := binding.Bind(m)
		if err != nil {
			return nil, err
		}
		out = append(out, compiled)
	}
	log.Debugf("bound %d standard modules", len(out))
	return out, nil
}
