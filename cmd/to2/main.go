// to2 compiles, checks and runs TO2 projects, and serves them to editors
// and remote callers.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("to2")

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	noManifest := flag.Bool("no-manifest", false, "Ignore to2.toml; compile only the given paths")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: to2 [options] <command> [arguments]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  check [--interface] [paths...]      Compile and report errors\n")
		fmt.Fprintf(os.Stderr, "  run [module::function] [args...]    Run a function (default: source.entry)\n")
		fmt.Fprintf(os.Stderr, "  disasm <module> [function]          Print the bytecode of a module\n")
		fmt.Fprintf(os.Stderr, "  lsp                                 Start the language server on stdio\n")
		fmt.Fprintf(os.Stderr, "  serve [--port N]                    Start the execution service\n")
		fmt.Fprintf(os.Stderr, "  call <addr> <module::function> [json args...]\n")
		fmt.Fprintf(os.Stderr, "                                      Invoke a function on a running service\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nSources come from the to2.toml found in the current directory or above,\n")
		fmt.Fprintf(os.Stderr, "including its dependencies. Paths given to check replace them.\n")
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	opts := options{verbose: *verbose, noManifest: *noManifest}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	var err error
	switch cmd {
	case "check":
		err = handleCheckCommand(args, opts)
	case "run":
		err = handleRunCommand(args, opts)
	case "disasm":
		err = handleDisasmCommand(args, opts)
	case "lsp":
		err = handleLSPCommand(args, opts)
	case "serve":
		err = handleServeCommand(args, opts)
	case "call":
		err = handleCallCommand(args, opts)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the global flags every command sees.
type options struct {
	verbose    bool
	noManifest bool
}

// configureLogging sets up commonlog. The LSP speaks on stdout, so its
// logs go to a file when one is given.
func configureLogging(opts options, level string, path *string) {
	verbosity := 0
	switch level {
	case "debug":
		verbosity = 2
	case "info":
		verbosity = 1
	}
	if opts.verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, path)
}
