package lsp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"
	"time"

	"tiplens/internal/catalog"
	"tiplens/internal/engine"
	"tiplens/internal/settings"
)

func TestInitializeAdvertisesCommands(t *testing.T) {
	server, out, _ := newTestServer(t, answeredSettings())
	call(t, server, "initialize", 1, map[string]any{})

	msg := response(t, decodeMessages(t, out.snapshot()), "1")
	var result initializeResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	caps := result.Capabilities
	if !caps.HoverProvider || caps.TextDocumentSync.Change != syncIncremental {
		t.Fatalf("unexpected capabilities: %+v", caps)
	}
	if caps.ExecuteCommandProvider == nil {
		t.Fatal("missing executeCommandProvider")
	}
	got := slices.Clone(caps.ExecuteCommandProvider.Commands)
	slices.Sort(got)
	want := []string{"tiplens.dont-show-again.advanced", "tiplens.dont-show-again.basic"}
	if !slices.Equal(got, want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
}

func TestPublishDiagnosticsMapping(t *testing.T) {
	server, out, _ := newTestServer(t, answeredSettings())
	openDoc(t, server, testURI, "\nbasic\nadvanced")

	diags, ok := lastPublish(t, decodeMessages(t, out.snapshot()), testURI)
	if !ok {
		t.Fatal("expected publishDiagnostics")
	}
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(diags))
	}
	got := diags[0]
	if got.Range.Start != (position{Line: 1, Character: 0}) || got.Range.End != (position{Line: 1, Character: 5}) {
		t.Fatalf("unexpected range: %+v", got.Range)
	}
	if got.Severity != 3 || got.Source != "tiplens" || got.Message != "basic" {
		t.Fatalf("unexpected diagnostic: %+v", got)
	}
}

func TestIncrementalChangeReannotates(t *testing.T) {
	server, out, _ := newTestServer(t, answeredSettings())
	openDoc(t, server, testURI, "basic")

	call(t, server, "textDocument/didChange", nil, didChangeTextDocumentParams{
		TextDocument: versionedTextDocumentIdentifier{URI: testURI, Version: 2},
		ContentChanges: []textDocumentContentChangeEvent{{
			Range: &lspRange{Start: position{Line: 0, Character: 5}, End: position{Line: 0, Character: 5}},
			Text:  "\nbasic",
		}},
	})
	server.flushPending()

	diags, _ := lastPublish(t, decodeMessages(t, out.snapshot()), testURI)
	if len(diags) != 2 {
		t.Fatalf("expected 2 diagnostics after change, got %d", len(diags))
	}
	if diags[1].Range.Start.Line != 1 {
		t.Fatalf("unexpected second range: %+v", diags[1].Range)
	}
}

func TestDidCloseClearsDiagnostics(t *testing.T) {
	server, out, _ := newTestServer(t, answeredSettings())
	openDoc(t, server, testURI, "basic")
	out.reset()

	call(t, server, "textDocument/didClose", nil, didCloseTextDocumentParams{
		TextDocument: textDocumentIdentifier{URI: testURI},
	})

	diags, ok := lastPublish(t, decodeMessages(t, out.snapshot()), testURI)
	if !ok || len(diags) != 0 {
		t.Fatalf("expected empty publish, got %v (found=%v)", diags, ok)
	}
	if server.Engine().Hover(testURI, toPoint(position{})) != nil {
		t.Fatal("expected record to be forgotten")
	}
}

func TestExecuteCommandDismissesTip(t *testing.T) {
	server, out, store := newTestServer(t, answeredSettings())
	openDoc(t, server, testURI, "basic\nadvanced")
	out.reset()

	call(t, server, "workspace/executeCommand", 7, executeCommandParams{Command: "tiplens.dont-show-again.basic"})

	msgs := decodeMessages(t, out.snapshot())
	if resp := response(t, msgs, "7"); resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	diags, _ := lastPublish(t, msgs, testURI)
	if len(diags) != 1 || diags[0].Message != "advanced" {
		t.Fatalf("expected only the unlocked tip, got %+v", diags)
	}
	saved, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !slices.Equal(saved.HiddenTips, []string{"basic"}) {
		t.Fatalf("hidden tips = %v", saved.HiddenTips)
	}
}

func TestExecuteCommandPersistFailure(t *testing.T) {
	server, out, store := newTestServer(t, answeredSettings())
	store.SaveErr = errors.New("read-only")

	call(t, server, "workspace/executeCommand", 8, executeCommandParams{Command: "tiplens.dont-show-again.basic"})

	msgs := decodeMessages(t, out.snapshot())
	if resp := response(t, msgs, "8"); resp.Error == nil {
		t.Fatal("expected error response")
	}
	shown := false
	for _, msg := range msgs {
		if msg.Method == "window/showMessage" {
			shown = true
		}
	}
	if !shown {
		t.Fatal("expected window/showMessage")
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	server, out, _ := newTestServer(t, answeredSettings())
	call(t, server, "workspace/executeCommand", 9, executeCommandParams{Command: "something.else"})
	if resp := response(t, decodeMessages(t, out.snapshot()), "9"); resp.Error == nil {
		t.Fatal("expected error response")
	}
}

func TestDidChangeConfigurationWritesSettings(t *testing.T) {
	server, out, store := newTestServer(t, answeredSettings())
	openDoc(t, server, testURI, "basic\nadvanced")
	out.reset()

	call(t, server, "workspace/didChangeConfiguration", nil, map[string]any{
		"settings": map[string]any{"tiplens": map[string]any{"hideBasicTips": true}},
	})

	saved, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if saved.HideBasicTips == nil || !*saved.HideBasicTips {
		t.Fatalf("hideBasicTips not stored: %+v", saved)
	}
	diags, _ := lastPublish(t, decodeMessages(t, out.snapshot()), testURI)
	if len(diags) != 1 || diags[0].Message != "advanced" {
		t.Fatalf("expected re-annotation with basic tips hidden, got %+v", diags)
	}
}

func TestDidChangeConfigurationNullKeepsAnswer(t *testing.T) {
	server, _, store := newTestServer(t, answeredSettings())
	call(t, server, "workspace/didChangeConfiguration", nil, map[string]any{
		"settings": map[string]any{"tiplens": map[string]any{"hideBasicTips": nil}},
	})
	saved, _ := store.Load()
	if saved.HideBasicTips == nil || *saved.HideBasicTips {
		t.Fatalf("expected the stored answer to survive, got %+v", saved)
	}
	if server.Engine().Policy().NeedsBeginnerPrompt() {
		t.Fatal("first-run question should stay answered")
	}
	if store.Saves() != 0 {
		t.Fatalf("expected no write, got %d", store.Saves())
	}
}

func TestDidChangeConfigurationKeepsDismissals(t *testing.T) {
	server, out, store := newTestServer(t, answeredSettings())
	openDoc(t, server, testURI, "basic\nadvanced")
	call(t, server, "workspace/executeCommand", 11, executeCommandParams{Command: "tiplens.dont-show-again.basic"})
	out.reset()

	call(t, server, "workspace/didChangeConfiguration", nil, map[string]any{
		"settings": map[string]any{"tiplens": map[string]any{"hiddenTips": []string{}, "hideBasicTips": nil}},
	})

	saved, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !slices.Equal(saved.HiddenTips, []string{"basic"}) {
		t.Fatalf("dismissal lost: hidden tips = %v", saved.HiddenTips)
	}
	if !server.Engine().Policy().IsSuppressed("basic") {
		t.Fatal("expected basic to stay suppressed")
	}
	diags, _ := lastPublish(t, decodeMessages(t, out.snapshot()), testURI)
	if len(diags) != 1 || diags[0].Message != "advanced" {
		t.Fatalf("expected only the unlocked tip, got %+v", diags)
	}
}

func TestDidChangeConfigurationAddsHiddenTips(t *testing.T) {
	initial := answeredSettings()
	initial.HiddenTips = []string{"basic"}
	server, _, store := newTestServer(t, initial)

	call(t, server, "workspace/didChangeConfiguration", nil, map[string]any{
		"settings": map[string]any{"tiplens": map[string]any{"hiddenTips": []string{"advanced", "basic", "advanced"}}},
	})

	saved, _ := store.Load()
	if !slices.Equal(saved.HiddenTips, []string{"basic", "advanced"}) {
		t.Fatalf("hidden tips = %v", saved.HiddenTips)
	}
	if !server.Engine().Policy().IsSuppressed("advanced") {
		t.Fatal("expected pushed tip to be suppressed")
	}
}

func TestFirstRunPromptRoundTrip(t *testing.T) {
	server, out, store := newTestServer(t, settings.Settings{})
	call(t, server, "initialized", nil, map[string]any{})

	var requestID string
	deadline := time.Now().Add(5 * time.Second)
	for requestID == "" && time.Now().Before(deadline) {
		for _, msg := range decodeMessages(t, out.snapshot()) {
			if msg.Method == "window/showMessageRequest" {
				var params showMessageRequestParams
				if err := json.Unmarshal(msg.Params, &params); err != nil {
					t.Fatalf("decode request: %v", err)
				}
				if params.Message != engine.BeginnerQuestion || len(params.Actions) != 2 {
					t.Fatalf("unexpected prompt: %+v", params)
				}
				requestID = idKey(msg.ID)
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	if requestID == "" {
		t.Fatal("no showMessageRequest sent")
	}

	id, _ := json.Marshal(requestID)
	server.resolve(&rpcMessage{JSONRPC: "2.0", ID: id, Result: json.RawMessage(`{"title":"No"}`)})
	server.Engine().Wait()

	saved, _ := store.Load()
	if saved.HideBasicTips == nil || !*saved.HideBasicTips {
		t.Fatalf("expected hideBasicTips=true after answering No, got %+v", saved)
	}
}

func TestHoverResponses(t *testing.T) {
	server, out, _ := newTestServer(t, answeredSettings())

	call(t, server, "textDocument/hover", 1, hoverParams{
		TextDocument: textDocumentIdentifier{URI: testURI},
	})
	if resp := response(t, decodeMessages(t, out.snapshot()), "1"); string(resp.Result) != "" && string(resp.Result) != "null" {
		t.Fatalf("expected null hover before annotation, got %s", resp.Result)
	}

	openDoc(t, server, testURI, "basic")
	call(t, server, "textDocument/hover", 2, hoverParams{
		TextDocument: textDocumentIdentifier{URI: testURI},
		Position:     position{Line: 0, Character: 3},
	})
	call(t, server, "textDocument/hover", 3, hoverParams{
		TextDocument: textDocumentIdentifier{URI: testURI},
		Position:     position{Line: 4, Character: 0},
	})
	msgs := decodeMessages(t, out.snapshot())

	var inside hover
	if err := json.Unmarshal(response(t, msgs, "2").Result, &inside); err != nil {
		t.Fatalf("decode hover: %v", err)
	}
	want := "**Basic**\n\nA basic construct.\n\n [Mark as Learned](command:tiplens.dont-show-again.basic)"
	if inside.Contents.Kind != "markdown" || inside.Contents.Value != want {
		t.Fatalf("unexpected hover: %+v", inside.Contents)
	}

	var outside hover
	if err := json.Unmarshal(response(t, msgs, "3").Result, &outside); err != nil {
		t.Fatalf("decode hover: %v", err)
	}
	if outside.Contents.Value != "" {
		t.Fatalf("expected empty hover, got %q", outside.Contents.Value)
	}
}

func TestRunExitAfterShutdown(t *testing.T) {
	var in bytes.Buffer
	for _, raw := range []string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","id":2,"method":"shutdown"}`,
		`{"jsonrpc":"2.0","method":"exit"}`,
	} {
		if err := writeMessage(&in, []byte(raw)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	cat, err := catalog.Parse([]byte(testCatalog), "test.toml")
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	out := &syncBuffer{}
	server, err := NewServer(&in, out, ServerOptions{Engine: engine.Options{
		Catalog:   cat,
		Settings:  settings.NewMemoryStore(answeredSettings()),
		Extractor: lineExtractor,
	}})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := server.Run(context.Background()); !errors.Is(err, ErrExit) {
		t.Fatalf("expected ErrExit, got %v", err)
	}
	msgs := decodeMessages(t, out.snapshot())
	response(t, msgs, "1")
	response(t, msgs, "2")
}

func TestExitWithoutShutdown(t *testing.T) {
	server, _, _ := newTestServer(t, answeredSettings())
	err := server.handleMessage(&rpcMessage{JSONRPC: "2.0", Method: "exit"})
	if !errors.Is(err, ErrExitWithoutShutdown) {
		t.Fatalf("expected ErrExitWithoutShutdown, got %v", err)
	}
}
