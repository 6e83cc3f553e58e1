package lsp

import (
	"encoding/json"
	"time"

	"tiplens/internal/events"
)

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logger.Warn("invalid didOpen params", "err", err)
		return nil
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	s.openDocs[uri] = params.TextDocument.Text
	s.mu.Unlock()
	s.schedule(uri, 0)
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logger.Warn("invalid didChange params", "err", err)
		return nil
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	text, ok := s.openDocs[uri]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("change for unopened document", "uri", uri)
		return nil
	}
	s.openDocs[uri] = applyChanges(text, params.ContentChanges)
	s.mu.Unlock()
	s.schedule(uri, s.debounce)
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logger.Warn("invalid didClose params", "err", err)
		return nil
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.docMu.Lock()
	defer s.docMu.Unlock()
	s.mu.Lock()
	delete(s.openDocs, uri)
	if t, ok := s.timers[uri]; ok && t.Stop() {
		s.inflight.Done()
	}
	delete(s.timers, uri)
	delete(s.seqs, uri)
	if s.active == uri {
		s.active = ""
	}
	s.mu.Unlock()
	s.dispatch(events.DocumentClosed{Doc: uri})
	return nil
}

// schedule annotates uri after delay. A newer schedule for the same
// document supersedes a pending one.
func (s *Server) schedule(uri string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[uri]; ok && t.Stop() {
		s.inflight.Done()
	}
	s.nextSeq++
	seq := s.nextSeq
	s.seqs[uri] = seq
	s.inflight.Add(1)
	s.timers[uri] = time.AfterFunc(delay, func() {
		defer s.inflight.Done()
		s.runAnnotate(uri, seq)
	})
}

// runAnnotate sends the document to the engine. The document touched last
// becomes the active one.
func (s *Server) runAnnotate(uri string, seq uint64) {
	s.docMu.Lock()
	defer s.docMu.Unlock()
	s.mu.Lock()
	text, open := s.openDocs[uri]
	if !open || s.seqs[uri] != seq {
		s.mu.Unlock()
		return
	}
	delete(s.timers, uri)
	focus := s.active != uri
	s.active = uri
	s.mu.Unlock()

	if focus {
		s.dispatch(events.FocusChanged{Doc: uri, Text: text})
		return
	}
	s.dispatch(events.TextChanged{Doc: uri, Text: text})
}
