package server

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/to2/compiler"
	"github.com/chazu/to2/grammar"
	"github.com/chazu/to2/manifest"
	"github.com/chazu/to2/stdlib"
	"github.com/chazu/to2/types"
)

const lspName = "to2-lsp"

// LspServer publishes diagnostics and completions for TO2 documents. Open
// documents replace the workspace source of their module, so errors in
// dependent modules show up as the user types.
type LspServer struct {
	worker *Worker
	roots  []manifest.SourceRoot

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server over ws. Roots map document paths to
// module names.
func NewLSP(ws *Workspace, roots []manifest.SourceRoot) *LspServer {
	s := &LspServer{
		worker:  NewWorker(ws),
		roots:   roots,
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "TO2 LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{".", ":"},
	}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	uri := params.TextDocument.URI

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}

	module := s.moduleFor(uri)
	result, err := s.worker.Do(context.Background(), func(ws *Workspace) (any, error) {
		return complete(ws.Registry(), module, prefix), nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := params.TextDocument.URI

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	module := s.moduleFor(uri)
	result, err := s.worker.Do(context.Background(), func(ws *Workspace) (any, error) {
		return hover(ws.Registry(), module, word), nil
	})
	if err != nil || result == nil {
		return nil, nil
	}
	return result.(*protocol.Hover), nil
}

// --- Registry-backed logic (called on worker goroutine) ---

// complete offers keywords and names for a plain prefix, and the members
// of a module for a qualified one.
func complete(r *compiler.Registry, module, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		k, d, insert := kind, detail, label
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &k,
			Detail:     &d,
			InsertText: &insert,
		})
	}

	if i := strings.LastIndex(prefix, "::"); i >= 0 {
		qualifier, partial := prefix[:i], prefix[i+2:]
		if r != nil {
			if m := r.Module(qualifier); m != nil {
				addMembers(m, partial, add)
			}
			for _, name := range r.ModuleNames() {
				if rest, ok := strings.CutPrefix(name, qualifier+"::"); ok && strings.HasPrefix(rest, partial) {
					add(rest, protocol.CompletionItemKindModule, "module "+name)
				}
			}
		}
		return limit(items)
	}

	for _, kw := range grammar.Keywords() {
		if strings.HasPrefix(kw, prefix) {
			add(kw, protocol.CompletionItemKindKeyword, "keyword")
		}
	}
	if r != nil {
		for _, name := range r.ModuleNames() {
			if strings.HasPrefix(name, prefix) {
				add(name, protocol.CompletionItemKindModule, "module")
			}
		}
		for _, name := range []string{module, stdlib.PreludeName} {
			if m := r.Module(name); m != nil {
				addMembers(m, prefix, add)
			}
		}
	}
	return limit(items)
}

func addMembers(m types.Module, prefix string, add func(string, protocol.CompletionItemKind, string)) {
	for _, name := range m.FunctionNames() {
		if strings.HasPrefix(name, prefix) {
			add(name, protocol.CompletionItemKindFunction, m.FindFunction(name).Any().Signature())
		}
	}
	for _, name := range m.TypeNames() {
		if strings.HasPrefix(name, prefix) {
			add(name, protocol.CompletionItemKindStruct, "type "+m.FindType(name).Name())
		}
	}
	for _, name := range m.ConstantNames() {
		if strings.HasPrefix(name, prefix) {
			add(name, protocol.CompletionItemKindConstant, "const "+name+": "+m.FindConstant(name).Type.Name())
		}
	}
}

func limit(items []protocol.CompletionItem) []protocol.CompletionItem {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

// hover describes a function, type or constant named by word, which may
// be qualified with its module.
func hover(r *compiler.Registry, module, word string) *protocol.Hover {
	if r == nil {
		return nil
	}
	modules := []string{module, stdlib.PreludeName}
	name := word
	if i := strings.LastIndex(word, "::"); i >= 0 {
		modules, name = []string{word[:i]}, word[i+2:]
	}

	for _, mn := range modules {
		m := r.Module(mn)
		if m == nil {
			continue
		}
		var b strings.Builder
		if sel := m.FindFunction(name); sel != nil {
			b.WriteString("```to2\n")
			for _, fn := range sel.All() {
				b.WriteString(fn.Signature() + "\n")
			}
			b.WriteString("```")
			if d := sel.Any().Description; d != "" {
				b.WriteString("\n\n" + d)
			}
		} else if t := m.FindType(name); t != nil {
			fmt.Fprintf(&b, "**%s**", t.Name())
			if d, ok := t.(*types.DeclaredType); ok {
				for _, f := range d.Fields {
					fmt.Fprintf(&b, "\n- `%s: %s`", f.Name, f.Type.Name())
				}
			}
		} else if c := m.FindConstant(name); c != nil {
			fmt.Fprintf(&b, "`const %s: %s`", name, c.Type.Name())
			if c.Description != "" {
				b.WriteString("\n\n" + c.Description)
			}
		} else {
			continue
		}
		return &protocol.Hover{
			Contents: protocol.MarkupContent{
				Kind:  protocol.MarkupKindMarkdown,
				Value: b.String(),
			},
		}
	}
	return nil
}

// publishDiagnostics recompiles the workspace with the document's text and
// reports the errors of its module.
func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	module := s.moduleFor(uri)
	result, err := s.worker.Do(context.Background(), func(ws *Workspace) (any, error) {
		return ws.Update(compiler.Source{Module: module, Path: string(uri), Content: text})
	})
	if err != nil {
		log.Errorf("checking %s: %v", uri, err)
		return
	}

	errs, _ := result.([]*compiler.StructuralError)
	diagnostics := make([]protocol.Diagnostic, 0, len(errs))
	for _, e := range errs {
		diagnostics = append(diagnostics, diagnostic(e))
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func diagnostic(e *compiler.StructuralError) protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityError
	source := lspName
	code := protocol.IntegerOrString{Value: e.Kind.String()}
	start := lspPosition(e.Start.Line, e.Start.Column)
	end := lspPosition(e.End.Line, e.End.Column)
	if end.Line < start.Line || (end.Line == start.Line && end.Character < start.Character) {
		end = start
	}
	return protocol.Diagnostic{
		Range:    protocol.Range{Start: start, End: end},
		Severity: &severity,
		Code:     &code,
		Source:   &source,
		Message:  e.Message,
	}
}

// lspPosition converts a 1-based position to the 0-based LSP form.
func lspPosition(line, column int) protocol.Position {
	if line < 1 {
		line = 1
	}
	if column < 1 {
		column = 1
	}
	return protocol.Position{Line: protocol.UInteger(line - 1), Character: protocol.UInteger(column - 1)}
}

// moduleFor derives the module name of a document from the source roots,
// falling back to the file name.
func (s *LspServer) moduleFor(uri protocol.DocumentUri) string {
	path := string(uri)
	if u, err := url.Parse(path); err == nil && u.Scheme == "file" {
		path = u.Path
	}
	for _, root := range s.roots {
		name, err := compiler.ModuleName(root.Dir, path)
		if err != nil {
			continue
		}
		if root.Prefix != "" {
			name = root.Prefix + "::" + name
		}
		return name
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// --- Text extraction helpers ---

func isNameChar(ch byte) bool {
	r := rune(ch)
	return unicode.IsLetter(r) || unicode.IsDigit(r) || ch == '_' || ch == ':'
}

// extractPrefix returns the (possibly qualified) name fragment before the
// cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the name
	start := col
	for start > 0 && isNameChar(line[start-1]) {
		start--
	}
	return line[start:col]
}

// extractWord returns the full (possibly qualified) name under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isNameChar(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isNameChar(line[end]) {
		end++
	}
	return strings.Trim(line[start:end], ":")
}

func boolPtr(b bool) *bool {
	return &b
}
