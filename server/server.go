// Package server exposes a TO2 workspace to editors (LSP over stdio) and to
// remote callers (a Connect execution service over HTTP).
package server

import (
	"net/http"
	"time"

	"github.com/tliron/commonlog"
)

var (
	log       = commonlog.GetLogger("to2.server")
	scriptLog = commonlog.GetLogger("to2.script")
)

// Server serves the execution service. Connect clients may use the JSON
// or the binary protobuf codec on the same port.
type Server struct {
	worker   *Worker
	sessions *SessionStore
	mux      *http.ServeMux

	stopSweeper func()
}

// Option configures a Server.
type Option func(*config)

type config struct {
	timeout       time.Duration
	sessionTTL    time.Duration
	sweepInterval time.Duration
}

// WithTimeout bounds the run time of one invocation.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithSessionTTL sets how long an unused session is kept.
func WithSessionTTL(d time.Duration) Option {
	return func(c *config) { c.sessionTTL = d }
}

// New creates a Server over ws. The workspace should already be built;
// the server takes ownership of it.
func New(ws *Workspace, opts ...Option) *Server {
	cfg := &config{
		timeout:       defaultExecTimeout,
		sessionTTL:    30 * time.Minute,
		sweepInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Server{
		worker:   NewWorker(ws),
		sessions: NewSessionStore(),
		mux:      http.NewServeMux(),
	}
	path, handler := NewExecServiceHandler(NewExecService(s.worker, s.sessions, cfg.timeout))
	s.mux.Handle(path, handler)

	s.stopSweeper = s.sessions.StartSweeper(cfg.sweepInterval, cfg.sessionTTL)
	return s
}

// Handler returns the HTTP handler serving all services.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *Server) ListenAndServe(addr string) error {
	log.Noticef("TO2 execution service listening on %s", addr)
	log.Noticef("  Connect (HTTP/JSON): http://%s%s", addr, InvokeProcedure)
	return http.ListenAndServe(addr, s.mux)
}

// Stop shuts down the server.
func (s *Server) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	s.worker.Stop()
}
