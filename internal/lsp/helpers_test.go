package lsp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"tiplens/internal/annotate"
	"tiplens/internal/catalog"
	"tiplens/internal/engine"
	"tiplens/internal/settings"
)

const testCatalog = `
[[tip]]
id = "basic"
difficulty = "easy"
message = "A basic construct."

[[tip]]
id = "advanced"
difficulty = "medium"
deps = "basic"
`

const testURI = "file:///work/app.ts"

// lineExtractor reports one occurrence per non-empty line, typed by the
// line's text.
var lineExtractor = annotate.ExtractorFunc(func(_ context.Context, text string) ([]annotate.Occurrence, error) {
	var out []annotate.Occurrence
	for i, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		out = append(out, annotate.Occurrence{Type: line, Loc: annotate.SourceLocation{
			Start: annotate.Position{Line: i + 1, Column: 0},
			End:   annotate.Position{Line: i + 1, Column: len(line)},
		}})
	}
	return out, nil
})

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) snapshot() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

func (b *syncBuffer) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

func answeredSettings() settings.Settings {
	return settings.Settings{HideBasicTips: settings.Bool(false)}
}

func newTestServer(t *testing.T, initial settings.Settings) (*Server, *syncBuffer, *settings.MemoryStore) {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalog), "test.toml")
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	store := settings.NewMemoryStore(initial)
	out := &syncBuffer{}
	server, err := NewServer(bytes.NewReader(nil), out, ServerOptions{
		Engine: engine.Options{
			Catalog:   cat,
			Settings:  store,
			Extractor: lineExtractor,
		},
		Debounce: time.Hour,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(server.stop)
	return server, out, store
}

// call feeds one message to the server. A nil id makes it a notification.
func call(t *testing.T, s *Server, method string, id any, params any) {
	t.Helper()
	msg := rpcMessage{JSONRPC: "2.0", Method: method}
	if id != nil {
		raw, err := json.Marshal(id)
		if err != nil {
			t.Fatalf("marshal id: %v", err)
		}
		msg.ID = raw
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			t.Fatalf("marshal params: %v", err)
		}
		msg.Params = raw
	}
	if err := s.handleMessage(&msg); err != nil {
		t.Fatalf("%s: %v", method, err)
	}
}

func decodeMessages(t *testing.T, data []byte) []rpcMessage {
	t.Helper()
	reader := bufio.NewReader(bytes.NewReader(data))
	var out []rpcMessage
	for {
		payload, err := readMessage(reader)
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("read message: %v", err)
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		out = append(out, msg)
	}
}

// lastPublish returns the latest diagnostics published for uri.
func lastPublish(t *testing.T, msgs []rpcMessage, uri string) ([]lspDiagnostic, bool) {
	t.Helper()
	var (
		found bool
		diags []lspDiagnostic
	)
	for _, msg := range msgs {
		if msg.Method != "textDocument/publishDiagnostics" {
			continue
		}
		var params publishDiagnosticsParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			t.Fatalf("decode publish: %v", err)
		}
		if params.URI == uri {
			found = true
			diags = params.Diagnostics
		}
	}
	return diags, found
}

func response(t *testing.T, msgs []rpcMessage, id string) rpcMessage {
	t.Helper()
	for _, msg := range msgs {
		if msg.Method == "" && idKey(msg.ID) == id {
			return msg
		}
	}
	t.Fatalf("no response with id %s", id)
	return rpcMessage{}
}

func openDoc(t *testing.T, s *Server, uri, text string) {
	t.Helper()
	call(t, s, "textDocument/didOpen", nil, didOpenTextDocumentParams{
		TextDocument: textDocumentItem{URI: uri, LanguageID: "typescript", Version: 1, Text: text},
	})
	s.flushPending()
}

// flushPending runs every scheduled annotation now and waits for those
// already running.
func (s *Server) flushPending() {
	type job struct {
		uri string
		seq uint64
	}
	var jobs []job
	s.mu.Lock()
	for uri, t := range s.timers {
		if t.Stop() {
			s.inflight.Done()
			jobs = append(jobs, job{uri: uri, seq: s.seqs[uri]})
		}
	}
	s.mu.Unlock()
	for _, j := range jobs {
		s.runAnnotate(j.uri, j.seq)
	}
	s.inflight.Wait()
}
