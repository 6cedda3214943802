package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chazu/to2/manifest"
	"github.com/chazu/to2/server"
)

// handleServeCommand processes the `to2 serve` subcommand.
// Usage:
//
//	to2 serve              # port from server.port, default 8470
//	to2 serve --port 9000
func handleServeCommand(args []string, opts options) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", 0, "Port to listen on (default: server.port)")
	fs.Parse(args)

	p, err := loadProject(fs.Args(), opts)
	if err != nil {
		return err
	}
	configureLogging(opts, p.logLevel(), nil)

	ws, err := newWorkspace(p)
	if err != nil {
		return err
	}

	var srvOpts []server.Option
	addrPort := manifest.DefaultPort
	if p.manifest != nil {
		addrPort = p.manifest.Server.Port
		srvOpts = append(srvOpts, server.WithTimeout(p.manifest.Timeout()))
	}
	if *port != 0 {
		addrPort = *port
	}

	srv := server.New(ws, srvOpts...)
	defer srv.Stop()
	return srv.ListenAndServe(fmt.Sprintf(":%d", addrPort))
}

// handleLSPCommand processes the `to2 lsp` subcommand. Without a
// to2.toml the current directory is the only source root.
func handleLSPCommand(args []string, opts options) error {
	fs := flag.NewFlagSet("lsp", flag.ExitOnError)
	logFile := fs.String("log", "", "Write logs to this file")
	fs.Parse(args)

	var path *string
	if *logFile != "" {
		path = logFile
	}

	p, err := loadProject(nil, opts)
	if err != nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			return err
		}
		p = &project{}
		if err := p.addRoot(manifest.SourceRoot{Dir: cwd}); err != nil {
			return err
		}
	}
	configureLogging(opts, p.logLevel(), path)

	ws, err := newWorkspace(p)
	if err != nil {
		return err
	}
	return server.NewLSP(ws, p.roots).Run()
}

// newWorkspace builds the project once. Structural errors do not stop the
// servers; they are logged and reported to clients.
func newWorkspace(p *project) (*server.Workspace, error) {
	ws := server.NewWorkspace(p.sources)
	if err := ws.Rebuild(); err != nil {
		return nil, err
	}
	for _, e := range ws.Errors() {
		log.Warningf("%s", e.Error())
	}
	return ws, nil
}
