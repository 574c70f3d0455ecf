// Package chat runs chat completions against the configured serving
// endpoint, tracking each request through the pending, running, and
// terminal states so clients can poll for results.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/lakehouse-apps/chat-config-manager/internal/dbx"
	"github.com/lakehouse-apps/chat-config-manager/internal/settings"
	"github.com/lakehouse-apps/chat-config-manager/internal/store"
	"github.com/lakehouse-apps/chat-config-manager/internal/validator"
)

// Completer invokes a serving endpoint with a chat payload.
type Completer interface {
	Chat(ctx context.Context, endpoint string, messages []dbx.ChatMessage, params dbx.ChatParams) (*dbx.ChatResult, error)
}

// Model assembles prompts from the active settings snapshot and calls
// the serving endpoint.
type Model struct {
	completer Completer
	timeout   time.Duration
}

// NewModel builds a chat model. timeout bounds a single endpoint call.
func NewModel(completer Completer, timeout time.Duration) *Model {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Model{completer: completer, timeout: timeout}
}

// Answer renders the user question through the profile's prompt
// template, prepends the system prompt and conversation history, and
// invokes the configured endpoint.
func (m *Model) Answer(ctx context.Context, snap *settings.Snapshot, history []*store.Message, question string) (*dbx.ChatResult, error) {
	messages := make([]dbx.ChatMessage, 0, len(history)+2)
	if snap.SystemPrompt != "" {
		messages = append(messages, dbx.ChatMessage{Role: "system", Content: snap.SystemPrompt})
	}
	for _, msg := range history {
		if msg.Role != "user" && msg.Role != "assistant" {
			continue
		}
		messages = append(messages, dbx.ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, dbx.ChatMessage{
		Role:    "user",
		Content: renderTemplate(snap.UserPromptTemplate, question),
	})

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	return m.completer.Chat(callCtx, snap.LLMEndpoint, messages, dbx.ChatParams{
		Temperature: snap.LLMTemperature,
		MaxTokens:   snap.LLMMaxTokens,
	})
}

func renderTemplate(tmpl, question string) string {
	if !strings.Contains(tmpl, validator.QuestionPlaceholder) {
		return question
	}
	return strings.ReplaceAll(tmpl, validator.QuestionPlaceholder, question)
}
