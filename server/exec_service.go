package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/to2/compiler"
	"github.com/chazu/to2/runtime"
	"github.com/chazu/to2/vm"
)

// Procedures of the execution service. Messages are google.protobuf.Struct
// values, so the service works with the Connect JSON and binary codecs
// without generated stubs.
const (
	ExecServiceName     = "to2.v1.ExecService"
	CompileProcedure    = "/" + ExecServiceName + "/Compile"
	InvokeProcedure     = "/" + ExecServiceName + "/Invoke"
	DescribeProcedure   = "/" + ExecServiceName + "/Describe"
	CloseProcedure      = "/" + ExecServiceName + "/Close"
	defaultExecTimeout  = 10 * time.Second
	workspaceSessionKey = ""
)

type (
	structReq = connect.Request[structpb.Struct]
	structRes = connect.Response[structpb.Struct]
)

// ExecService compiles sources into sessions and runs their functions.
//
// Compile   {name?, workspace?, sources: [{module, content}]}
//
//	→ {session?, modules, diagnostics: [{module, kind, message, line, column}]}
//
// Invoke    {session?, module, function, args?} → {result, display}
// Describe  {session?, module?} → {modules: [interface]}
// Close     {session} → {closed}
//
// An empty session refers to the workspace loaded at startup.
type ExecService struct {
	worker   *Worker
	sessions *SessionStore
	timeout  time.Duration
}

// NewExecService creates the service. A zero timeout selects the default.
func NewExecService(worker *Worker, sessions *SessionStore, timeout time.Duration) *ExecService {
	if timeout <= 0 {
		timeout = defaultExecTimeout
	}
	return &ExecService{worker: worker, sessions: sessions, timeout: timeout}
}

// NewExecServiceHandler builds the HTTP handler serving svc and returns the
// path to mount it on.
func NewExecServiceHandler(svc *ExecService, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(CompileProcedure, connect.NewUnaryHandler(CompileProcedure, svc.Compile, opts...))
	mux.Handle(InvokeProcedure, connect.NewUnaryHandler(InvokeProcedure, svc.Invoke, opts...))
	mux.Handle(DescribeProcedure, connect.NewUnaryHandler(DescribeProcedure, svc.Describe, opts...))
	mux.Handle(CloseProcedure, connect.NewUnaryHandler(CloseProcedure, svc.Close, opts...))
	return "/" + ExecServiceName + "/", mux
}

// ---------------------------------------------------------------------------
// Compile
// ---------------------------------------------------------------------------

// Compile builds a new session from the request sources, optionally on top
// of the workspace sources. On structural errors no session is created.
func (s *ExecService) Compile(ctx context.Context, req *structReq) (*structRes, error) {
	fields := req.Msg.GetFields()
	name := fields["name"].GetStringValue()
	withWorkspace := fields["workspace"].GetBoolValue()

	var sources []compiler.Source
	for i, item := range fields["sources"].GetListValue().GetValues() {
		src := item.GetStructValue().GetFields()
		module := src["module"].GetStringValue()
		if module == "" {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("sources[%d] has no module", i))
		}
		sources = append(sources, compiler.Source{Module: module, Content: src["content"].GetStringValue()})
	}
	if len(sources) == 0 && !withWorkspace {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("no sources"))
	}

	type compiled struct {
		registry *compiler.Registry
		errors   []*compiler.StructuralError
	}
	out, err := s.worker.Do(ctx, func(ws *Workspace) (any, error) {
		all := sources
		if withWorkspace {
			all = append(ws.Sources(), sources...)
		}
		r, errs, err := Build(all)
		return compiled{r, errs}, err
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	c := out.(compiled)

	diagnostics := make([]any, 0, len(c.errors))
	for _, e := range c.errors {
		diagnostics = append(diagnostics, map[string]any{
			"module":  e.Module,
			"kind":    e.Kind.String(),
			"message": e.Message,
			"line":    e.Start.Line,
			"column":  e.Start.Column,
		})
	}
	res := map[string]any{"diagnostics": diagnostics, "modules": []any{}}
	if c.registry != nil {
		session := s.sessions.Create(name, c.registry)
		res["session"] = session.ID
		var modules []any
		for _, m := range sources {
			modules = append(modules, m.Module)
		}
		res["modules"] = modules
		log.Infof("session %s: compiled %d modules", session.ID, len(sources))
	}
	return structResponse(res)
}

// ---------------------------------------------------------------------------
// Invoke
// ---------------------------------------------------------------------------

// Invoke calls an exported function with JSON arguments converted to its
// parameter types; omitted trailing arguments take their defaults.
func (s *ExecService) Invoke(ctx context.Context, req *structReq) (*structRes, error) {
	fields := req.Msg.GetFields()
	module := fields["module"].GetStringValue()
	function := fields["function"].GetStringValue()
	args := fields["args"].GetListValue().GetValues()

	r, err := s.registry(ctx, fields["session"].GetStringValue())
	if err != nil {
		return nil, err
	}
	m := r.Module(module)
	if m == nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("no module %s", module))
	}
	sel := m.FindFunction(function)
	if sel == nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("module %s exports no function %s", module, function))
	}
	fn := sel.Any()
	if len(args) > len(fn.Params) {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%s takes at most %d arguments, got %d", function, len(fn.Params), len(args)))
	}
	values := make([]vm.Value, len(args))
	for i, a := range args {
		v, err := toValue(a, fn.Params[i].Type)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("argument %s: %w", fn.Params[i].Name, err))
		}
		values[i] = v
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	out, err := s.worker.Do(ctx, func(*Workspace) (any, error) {
		rctx := runtime.NewContext(ctx, runtime.WithLogger(scriptLog), runtime.WithTimeout(s.timeout))
		future, err := fn.Start(rctx, values...)
		if err != nil {
			return nil, err
		}
		return runtime.RunFuture(ctx, future)
	})
	if err != nil {
		log.Warningf("%s::%s failed: %v", module, function, err)
		return nil, connect.NewError(connect.CodeAborted, err)
	}
	return connect.NewResponse(&structpb.Struct{Fields: map[string]*structpb.Value{
		"result":  fromValue(out),
		"display": structpb.NewStringValue(vm.FormatValue(out)),
	}}), nil
}

// ---------------------------------------------------------------------------
// Describe and Close
// ---------------------------------------------------------------------------

// Describe returns the public interface of one module or of all modules.
func (s *ExecService) Describe(ctx context.Context, req *structReq) (*structRes, error) {
	fields := req.Msg.GetFields()
	r, err := s.registry(ctx, fields["session"].GetStringValue())
	if err != nil {
		return nil, err
	}
	var names []string
	if module := fields["module"].GetStringValue(); module != "" {
		names = append(names, module)
	}
	ifaces, err := r.Interfaces(names...)
	if err != nil {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	// The interface types carry json tags; a JSON round trip yields the
	// map form structpb accepts.
	data, err := json.Marshal(ifaces)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	var modules []any
	if err := json.Unmarshal(data, &modules); err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return structResponse(map[string]any{"modules": modules})
}

// Close destroys a session.
func (s *ExecService) Close(_ context.Context, req *structReq) (*structRes, error) {
	id := req.Msg.GetFields()["session"].GetStringValue()
	if id == workspaceSessionKey {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("no session given"))
	}
	return structResponse(map[string]any{"closed": s.sessions.Destroy(id)})
}

// registry resolves a session id; the empty id is the workspace.
func (s *ExecService) registry(ctx context.Context, id string) (*compiler.Registry, error) {
	if id != workspaceSessionKey {
		session, ok := s.sessions.Get(id)
		if !ok {
			return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("no session %s", id))
		}
		return session.Registry, nil
	}
	out, err := s.worker.Do(ctx, func(ws *Workspace) (any, error) {
		return ws.Registry(), nil
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	r, _ := out.(*compiler.Registry)
	if r == nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errors.New("the workspace does not compile"))
	}
	return r, nil
}

func structResponse(m map[string]any) (*structRes, error) {
	msg, err := structpb.NewStruct(m)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}
