package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"tiplens/internal/engine"
)

const (
	answerYes = "Yes"
	answerNo  = "No"
)

var errServerStopped = errors.New("server stopped")

// requests tracks server-to-client requests awaiting a reply.
type requests struct {
	reqSeq    atomic.Uint64
	pendingMu sync.Mutex
	pending   map[string]chan *rpcMessage
	stopped   chan struct{}
	stopOnce  sync.Once
}

func newRequests() *requests {
	return &requests{
		pending: make(map[string]chan *rpcMessage),
		stopped: make(chan struct{}),
	}
}

func (r *requests) register() (string, chan *rpcMessage) {
	id := fmt.Sprintf("tiplens-%d", r.reqSeq.Add(1))
	ch := make(chan *rpcMessage, 1)
	r.pendingMu.Lock()
	r.pending[id] = ch
	r.pendingMu.Unlock()
	return id, ch
}

func (r *requests) forget(id string) {
	r.pendingMu.Lock()
	delete(r.pending, id)
	r.pendingMu.Unlock()
}

// resolve hands a client reply to the request waiting for it.
func (r *requests) resolve(msg *rpcMessage) {
	id := idKey(msg.ID)
	r.pendingMu.Lock()
	ch, ok := r.pending[id]
	delete(r.pending, id)
	r.pendingMu.Unlock()
	if ok {
		ch <- msg
	}
}

func (r *requests) closeRequests() {
	r.stopOnce.Do(func() { close(r.stopped) })
}

func idKey(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// AskBeginner asks the first-run question with window/showMessageRequest.
// Closing the message without choosing counts as no answer.
func (s *Server) AskBeginner(ctx context.Context) (beginner, answered bool, err error) {
	id, ch := s.register()
	defer s.forget(id)
	err = s.send(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "window/showMessageRequest",
		"params": showMessageRequestParams{
			Type:    messageInfo,
			Message: engine.BeginnerQuestion,
			Actions: []messageActionItem{{Title: answerYes}, {Title: answerNo}},
		},
	})
	if err != nil {
		return false, false, err
	}

	var reply *rpcMessage
	select {
	case reply = <-ch:
	case <-ctx.Done():
		return false, false, ctx.Err()
	case <-s.stopped:
		return false, false, errServerStopped
	}
	if reply.Error != nil {
		return false, false, fmt.Errorf("showMessageRequest: %s", reply.Error.Message)
	}
	if len(reply.Result) == 0 || string(reply.Result) == "null" {
		return false, false, nil
	}
	var item messageActionItem
	if err := json.Unmarshal(reply.Result, &item); err != nil {
		return false, false, fmt.Errorf("decode showMessageRequest reply: %w", err)
	}
	switch item.Title {
	case answerYes:
		return true, true, nil
	case answerNo:
		return false, true, nil
	default:
		return false, false, nil
	}
}
