// to2-bindgen generates TO2 binding tables for Go packages.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/to2/bindgen"
)

var log = commonlog.GetLogger("to2.bindgen")

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	output := flag.String("o", "", "Output file (default: stdout)")
	pkgName := flag.String("package", "", "Package name of the generated file (default: the output directory's name)")
	varName := flag.String("var", "", "Variable holding the module (default: derived from the package)")
	module := flag.String("module", "", "TO2 module name (default: go:: followed by the import path)")
	include := flag.String("include", "", "Comma-separated exported names to bind (default: all)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: to2-bindgen [options] <import path>\n\n")
		fmt.Fprintf(os.Stderr, "Writes a Go file declaring a binding.Module for the package's bindable API.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  to2-bindgen strings\n")
		fmt.Fprintf(os.Stderr, "  to2-bindgen -o host/str.go -include Contains,Fields,Builder strings\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(flag.Arg(0), *output, *pkgName, *varName, *module, *include); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(importPath, output, pkgName, varName, module, include string) error {
	var filter map[string]bool
	if include != "" {
		filter = map[string]bool{}
		for _, name := range strings.Split(include, ",") {
			filter[strings.TrimSpace(name)] = true
		}
	}

	model, err := bindgen.IntrospectPackage(importPath, filter)
	if err != nil {
		return fmt.Errorf("introspecting: %w", err)
	}
	log.Infof("%s: %d functions, %d types, %d constants, %d skipped",
		importPath, len(model.Functions), len(model.Types), len(model.Constants), len(model.Skipped))
	for _, s := range model.Skipped {
		log.Debugf("skipped %s: %s", s.Name, s.Reason)
	}

	if pkgName == "" {
		pkgName = "bindings"
		if output != "" {
			abs, err := filepath.Abs(output)
			if err != nil {
				return err
			}
			pkgName = strings.ReplaceAll(filepath.Base(filepath.Dir(abs)), "-", "_")
		}
	}
	code, err := bindgen.Generate(model, bindgen.Options{Package: pkgName, Var: varName, Module: module})
	if err != nil {
		return err
	}

	if output == "" {
		_, err = os.Stdout.Write(code)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if err := os.WriteFile(output, code, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	log.Infof("wrote %s", output)
	return nil
}
