package chat

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lakehouse-apps/chat-config-manager/internal/apperr"
	"github.com/lakehouse-apps/chat-config-manager/internal/dbx"
	"github.com/lakehouse-apps/chat-config-manager/internal/queue"
	"github.com/lakehouse-apps/chat-config-manager/internal/settings"
	"github.com/lakehouse-apps/chat-config-manager/internal/store"
)

type fakeCompleter struct {
	result   *dbx.ChatResult
	err      error
	endpoint string
	messages []dbx.ChatMessage
	params   dbx.ChatParams
}

func (f *fakeCompleter) Chat(ctx context.Context, endpoint string, messages []dbx.ChatMessage, params dbx.ChatParams) (*dbx.ChatResult, error) {
	f.endpoint = endpoint
	f.messages = messages
	f.params = params
	return f.result, f.err
}

func newTestService(t *testing.T, completer Completer) (*Service, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "state.db"), "sqlite")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	if _, err := s.CreateProfile(context.Background(), store.CreateProfileParams{
		Name:  "default",
		Actor: "tester",
		Defaults: store.SubConfigs{
			LLMEndpoint:        "databricks-claude-sonnet-4-5",
			LLMTemperature:     0.3,
			LLMMaxTokens:       256,
			ExperimentName:     "/Shared/experiments",
			SystemPrompt:       "You are terse.",
			UserPromptTemplate: "Q: {question}",
		},
	}); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if _, err := s.CreateSession(context.Background(), "sess-1", "alice", "chat"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	loader := settings.NewLoader(s, nil, "tester", nil)
	svc := NewService(Options{
		Store:  s,
		Loader: loader,
		Model:  NewModel(completer, time.Minute),
	})
	return svc, s
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t, &fakeCompleter{})

	if _, err := svc.Ask(context.Background(), "sess-1", "   "); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProcessCompletesRequest(t *testing.T) {
	t.Parallel()
	completer := &fakeCompleter{result: &dbx.ChatResult{Content: "42", Model: "claude"}}
	svc, st := newTestService(t, completer)
	ctx := context.Background()

	// Seed the question the way Ask does, then run the task directly so
	// the test stays synchronous.
	if _, err := st.AppendMessage(ctx, "sess-1", store.Message{Role: "user", Content: "meaning of life?"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if _, err := st.CreateChatRequest(ctx, "req-1", "sess-1"); err != nil {
		t.Fatalf("CreateChatRequest: %v", err)
	}
	svc.Process(ctx, queue.ChatTask{RequestID: "req-1", SessionID: "sess-1", Question: "meaning of life?"})

	req, err := svc.Status(ctx, "req-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if req.Status != store.ChatCompleted {
		t.Fatalf("expected completed, got %s (%s)", req.Status, req.ErrorMessage)
	}
	var result struct {
		Content string `json:"content"`
		Model   string `json:"model"`
	}
	if err := json.Unmarshal([]byte(req.Result), &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Content != "42" || result.Model != "claude" {
		t.Fatalf("unexpected result: %+v", result)
	}

	if completer.endpoint != "databricks-claude-sonnet-4-5" {
		t.Fatalf("unexpected endpoint: %s", completer.endpoint)
	}
	if completer.params.Temperature != 0.3 || completer.params.MaxTokens != 256 {
		t.Fatalf("unexpected params: %+v", completer.params)
	}
	// System prompt plus the templated question; the pre-appended user
	// message must not be doubled.
	if len(completer.messages) != 2 {
		t.Fatalf("unexpected prompt assembly: %+v", completer.messages)
	}
	if completer.messages[1].Content != "Q: meaning of life?" {
		t.Fatalf("template not applied: %q", completer.messages[1].Content)
	}

	msgs, err := st.ListMessages(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[1].Role != "assistant" || msgs[1].Content != "42" {
		t.Fatalf("assistant message not persisted: %+v", msgs)
	}
	if msgs[1].RequestID != "req-1" {
		t.Fatalf("assistant message must link the request id")
	}

	sess, err := st.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.IsProcessing {
		t.Fatalf("busy flag must be cleared after processing")
	}
}

func TestProcessRecordsFailure(t *testing.T) {
	t.Parallel()
	completer := &fakeCompleter{err: errors.New("endpoint timed out")}
	svc, st := newTestService(t, completer)
	ctx := context.Background()

	if _, err := st.CreateChatRequest(ctx, "req-1", "sess-1"); err != nil {
		t.Fatalf("CreateChatRequest: %v", err)
	}
	svc.Process(ctx, queue.ChatTask{RequestID: "req-1", SessionID: "sess-1", Question: "hello"})

	req, err := svc.Status(ctx, "req-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if req.Status != store.ChatError || req.ErrorMessage != "endpoint timed out" {
		t.Fatalf("unexpected failed request: %+v", req)
	}
}

func TestRenderTemplate(t *testing.T) {
	t.Parallel()

	if got := renderTemplate("Q: {question}", "why?"); got != "Q: why?" {
		t.Fatalf("unexpected rendering: %q", got)
	}
	if got := renderTemplate("no placeholder", "why?"); got != "why?" {
		t.Fatalf("template without placeholder must pass the question through, got %q", got)
	}
}
