package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/tliron/commonlog"

	"github.com/chazu/to2/runtime"
	"github.com/chazu/to2/types"
	"github.com/chazu/to2/vm"
)

// handleRunCommand processes the `to2 run` subcommand. Arguments are
// parsed according to the parameter types of the function; omitted
// trailing arguments take their defaults.
func handleRunCommand(args []string, opts options) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	timeout := fs.Duration("timeout", 0, "Run-time slice before a script must yield (default: runtime.timeout-ms)")
	fs.Parse(args)
	args = fs.Args()

	p, err := loadProject(nil, opts)
	if err != nil {
		return err
	}
	configureLogging(opts, p.logLevel(), nil)

	var module, function string
	if len(args) > 0 {
		module, function, err = splitQualified(args[0])
		args = args[1:]
	} else {
		module, function, err = p.manifest.EntryPoint()
	}
	if err != nil {
		return err
	}

	r, err := p.compile()
	if err != nil {
		return err
	}
	m := r.Module(module)
	if m == nil {
		return fmt.Errorf("no module %s", module)
	}
	sel := m.FindFunction(function)
	if sel == nil {
		return fmt.Errorf("module %s exports no function %s", module, function)
	}
	fn := sel.Any()

	values, err := parseArgs(fn, args)
	if err != nil {
		return err
	}

	slice := *timeout
	if slice == 0 {
		slice = p.manifest.Timeout()
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rctx := runtime.NewContext(ctx,
		runtime.WithLogger(commonlog.GetLogger("to2.script")),
		runtime.WithTimeout(slice))
	future, err := fn.Start(rctx, values...)
	if err != nil {
		return err
	}
	result, err := runtime.RunFuture(ctx, future)
	if err != nil {
		return err
	}
	if _, unit := result.(runtime.Unit); !unit {
		fmt.Println(vm.FormatValue(result))
	}
	return nil
}

// parseArgs converts command-line words to the parameter types of fn.
func parseArgs(fn *types.Function, args []string) ([]vm.Value, error) {
	if len(args) > len(fn.Params) {
		return nil, fmt.Errorf("%s takes at most %d arguments, got %d", fn.QualifiedName(), len(fn.Params), len(args))
	}
	values := make([]vm.Value, len(args))
	for i, arg := range args {
		param := fn.Params[i]
		var err error
		switch param.Type {
		case types.Int:
			values[i], err = strconv.ParseInt(arg, 10, 64)
		case types.Float:
			values[i], err = strconv.ParseFloat(arg, 64)
		case types.Bool:
			values[i], err = strconv.ParseBool(arg)
		case types.String:
			values[i] = arg
		default:
			err = errors.New("cannot be given on the command line")
		}
		if err != nil {
			return nil, fmt.Errorf("argument %s (%s): %w", param.Name, param.Type.Name(), err)
		}
	}
	return values, nil
}
