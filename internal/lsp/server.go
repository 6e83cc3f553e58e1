// Package lsp serves tip annotations to editors over stdio JSON-RPC.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"tiplens/internal/annotate"
	"tiplens/internal/engine"
	"tiplens/internal/events"
	"tiplens/internal/settings"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// ServerOptions configures LSP server behavior.
type ServerOptions struct {
	// Engine configures the tip engine. Publisher and Prompter are supplied
	// by the server.
	Engine   engine.Options
	Debounce time.Duration
	// Watcher, when set, turns settings file edits into reloads.
	Watcher *settings.Watcher
	Version string
	Logger  *slog.Logger
}

// Server handles stdio JSON-RPC for tiplens.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex

	engine   *engine.Engine
	settings settings.Storage
	watcher  *settings.Watcher
	logger   *slog.Logger
	version  string
	debounce time.Duration

	// docMu orders document events against open/close bookkeeping.
	docMu sync.Mutex

	mu                sync.Mutex
	openDocs          map[string]string
	active            string
	timers            map[string]*time.Timer
	seqs              map[string]uint64
	nextSeq           uint64
	inflight          sync.WaitGroup
	shutdownRequested bool
	baseCtx           context.Context

	*requests
}

// NewServer constructs a server and the engine behind it.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) (*Server, error) {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		in:       bufio.NewReader(in),
		out:      bufio.NewWriter(out),
		settings: opts.Engine.Settings,
		watcher:  opts.Watcher,
		logger:   logger.With("component", "lsp"),
		version:  opts.Version,
		debounce: debounce,
		openDocs: make(map[string]string),
		timers:   make(map[string]*time.Timer),
		seqs:     make(map[string]uint64),
		baseCtx:  context.Background(),
		requests: newRequests(),
	}
	engineOpts := opts.Engine
	engineOpts.Publisher = annotate.PublisherFunc(s.publish)
	engineOpts.Prompter = s
	if engineOpts.Logger == nil {
		engineOpts.Logger = logger
	}
	eng, err := engine.New(engineOpts)
	if err != nil {
		return nil, err
	}
	s.engine = eng
	return s, nil
}

// Engine returns the engine driven by the server.
func (s *Server) Engine() *engine.Engine {
	return s.engine
}

// Run serves LSP requests until exit or end of input.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()
	defer s.stop()

	if s.watcher != nil {
		s.watcher.OnChange(func() {
			s.logger.Debug("settings file changed")
			s.dispatch(events.ConfigChanged{})
		})
		if err := s.watcher.Start(ctx); err != nil {
			s.logger.Warn("settings watcher disabled", "err", err)
		} else {
			defer s.watcher.Close()
		}
	}

	for {
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.Warn("failed to parse message", "err", err)
			continue
		}
		if msg.Method == "" {
			if len(msg.ID) > 0 {
				s.resolve(&msg)
			}
			continue
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) stop() {
	s.mu.Lock()
	for uri, t := range s.timers {
		if t.Stop() {
			s.inflight.Done()
		}
		delete(s.timers, uri)
	}
	s.mu.Unlock()
	s.closeRequests()
	s.inflight.Wait()
	s.engine.Wait()
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return s.handleInitialized()
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		s.mu.Lock()
		requested := s.shutdownRequested
		s.mu.Unlock()
		if requested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(msg)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/hover":
		return s.handleHover(msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, codeMethodNotFound, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, codeInvalidParams, "invalid params")
		}
	}
	if len(params.InitializationOptions) > 0 {
		changed, err := s.applySettings(params.InitializationOptions)
		if err != nil {
			s.logger.Warn("failed to apply initialization options", "err", err)
		} else if changed {
			s.dispatch(events.ConfigChanged{})
		}
	}
	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    syncIncremental,
			},
			HoverProvider: true,
			ExecuteCommandProvider: &executeCommandOptions{
				Commands: s.engine.Commands(),
			},
		},
		ServerInfo: &serverInfo{Name: "tiplens", Version: s.version},
	}
	return s.sendResponse(msg.ID, result)
}

func (s *Server) handleInitialized() error {
	s.mu.Lock()
	doc := s.active
	text := s.openDocs[doc]
	s.mu.Unlock()
	s.dispatch(events.Activated{Doc: doc, Text: text})
	return nil
}

func (s *Server) handleShutdown(msg *rpcMessage) error {
	s.mu.Lock()
	s.shutdownRequested = true
	s.mu.Unlock()
	return s.sendResponse(msg.ID, nil)
}

func (s *Server) dispatch(ev events.Event) {
	if err := s.engine.Dispatch(s.runContext(), ev); err != nil {
		s.logger.Warn("event failed", "event", events.Name(ev), "err", err)
	}
}

func (s *Server) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

func (s *Server) publish(doc string, diags []annotate.Diagnostic) {
	if err := s.sendPublish(doc, toDiagnostics(diags)); err != nil {
		s.logger.Warn("failed to publish diagnostics", "uri", doc, "err", err)
	}
}

func (s *Server) showMessage(kind int, text string) {
	err := s.send(map[string]any{
		"jsonrpc": "2.0",
		"method":  "window/showMessage",
		"params":  showMessageParams{Type: kind, Message: text},
	})
	if err != nil {
		s.logger.Warn("failed to show message", "err", err)
	}
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}
	return s.send(msg)
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": rpcError{
			Code:    code,
			Message: message,
		},
	}
	return s.send(msg)
}

func (s *Server) sendPublish(uri string, list []lspDiagnostic) error {
	if list == nil {
		list = []lspDiagnostic{}
	}
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  "textDocument/publishDiagnostics",
		"params": publishDiagnosticsParams{
			URI:         uri,
			Diagnostics: list,
		},
	}
	return s.send(msg)
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}
