package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/chazu/to2/compiler"
)

// handleCheckCommand processes the `to2 check` subcommand.
// Usage:
//
//	to2 check                       # compile the project
//	to2 check --interface           # also print module interfaces as JSON
//	to2 check --fingerprint app     # print the interface hash of app
func handleCheckCommand(args []string, opts options) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	iface := fs.Bool("interface", false, "Print the public interface of each project module as JSON")
	fingerprint := fs.String("fingerprint", "", "Print the interface fingerprint of the named module")
	fs.Parse(args)

	p, err := loadProject(fs.Args(), opts)
	if err != nil {
		return err
	}
	configureLogging(opts, p.logLevel(), nil)

	r, err := p.compile()
	var ce *compiler.CompilationErrors
	if errors.As(err, &ce) {
		for _, e := range ce.Errors {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		return fmt.Errorf("%d errors", len(ce.Errors))
	}
	if err != nil {
		return err
	}

	if *fingerprint != "" {
		fp, err := r.Fingerprint(*fingerprint)
		if err != nil {
			return err
		}
		fmt.Println(fp)
		return nil
	}
	if *iface {
		names := make([]string, len(p.sources))
		for i, src := range p.sources {
			names[i] = src.Module
		}
		ifaces, err := r.Interfaces(names...)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ifaces)
	}
	if opts.verbose {
		fmt.Printf("%d modules ok\n", len(p.sources))
	}
	return nil
}
