package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"conductor/internal/provider"
	"conductor/internal/runner"
	"conductor/internal/storage"
	"conductor/internal/tools"
)

type stubRunner struct {
	got      runner.Request
	taggedID string
	err      error
}

func (s *stubRunner) Run(ctx context.Context, req runner.Request) (*runner.Result, error) {
	s.got = req
	s.taggedID = storage.ConversationID(ctx)
	if s.err != nil {
		return nil, s.err
	}
	return &runner.Result{ConversationID: req.ConversationID, Answer: "done", State: runner.StateDone}, nil
}

func readFrame(t *testing.T, frames <-chan []byte) WSMessage {
	t.Helper()
	select {
	case data, ok := <-frames:
		if !ok {
			t.Fatal("channel closed before a frame arrived")
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for frame")
	}
	return WSMessage{}
}

func TestNewChatHandler_Result(t *testing.T) {
	r := &stubRunner{}
	handler := NewChatHandler(context.Background(), r, nil)

	frames, err := handler("s1", WSMessage{Type: TypeChat, Message: "hi", Mode: "agent", Context: "ctx"})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	msg := readFrame(t, frames)
	if msg.Type != TypeResult || msg.Session != "s1" {
		t.Fatalf("got %+v", msg)
	}
	var res runner.Result
	if err := json.Unmarshal(msg.Data, &res); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if res.Answer != "done" || res.ConversationID != "s1" {
		t.Errorf("result = %+v", res)
	}

	if _, ok := <-frames; ok {
		t.Error("channel not closed after result")
	}
	if r.got.Mode != tools.ModeAgent || r.got.Context != "ctx" || r.got.ConversationID != "s1" {
		t.Errorf("request = %+v", r.got)
	}
}

func TestNewChatHandler_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"empty", runner.ErrEmptyMessage, "INVALID_REQUEST"},
		{"cancelled", context.Canceled, "CANCELLED"},
		{"unavailable", provider.NewProviderError(provider.ErrCodeServiceUnavailable, "down", "ollama", true), "SERVICE_UNAVAILABLE"},
		{"other", errors.New("garbled"), "BAD_GATEWAY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewChatHandler(context.Background(), &stubRunner{err: tt.err}, nil)
			frames, err := handler("s1", WSMessage{Message: "hi"})
			if err != nil {
				t.Fatalf("handler: %v", err)
			}
			msg := readFrame(t, frames)
			if msg.Type != TypeError || msg.Code != tt.code {
				t.Errorf("got type=%s code=%s, want error %s", msg.Type, msg.Code, tt.code)
			}
		})
	}
}

func TestNewChatHandler_NoRunner(t *testing.T) {
	handler := NewChatHandler(context.Background(), nil, nil)
	if _, err := handler("s1", WSMessage{Message: "hi"}); err == nil {
		t.Error("expected error without runner")
	}
}

func TestNewChatHandler_PersistsConversation(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "conductor.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	r := &stubRunner{}
	handler := NewChatHandler(context.Background(), r, db)

	frames, err := handler("conv-7", WSMessage{Type: TypeChat, Message: "hello", Mode: "ask"})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if msg := readFrame(t, frames); msg.Type != TypeResult {
		t.Fatalf("got %+v", msg)
	}
	for range frames {
	}

	if r.taggedID != "conv-7" {
		t.Errorf("run context conversation id = %q, want conv-7", r.taggedID)
	}
	c, err := db.GetConversation(context.Background(), "conv-7")
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if c.Message != "hello" || c.Answer != "done" || c.Mode != "ask" {
		t.Errorf("stored conversation = %+v", c)
	}
}

func TestNewChatHandler_FailedRunNotPersisted(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "conductor.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	handler := NewChatHandler(context.Background(), &stubRunner{err: errors.New("boom")}, db)
	frames, err := handler("conv-8", WSMessage{Message: "hello"})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	readFrame(t, frames)
	for range frames {
	}

	if _, err := db.GetConversation(context.Background(), "conv-8"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetConversation err = %v, want ErrNotFound", err)
	}
}
