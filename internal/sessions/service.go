// Package sessions manages persisted chat sessions and their messages.
package sessions

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/lakehouse-apps/chat-config-manager/internal/apperr"
	"github.com/lakehouse-apps/chat-config-manager/internal/store"
)

// Service provides session CRUD for the API layer.
type Service struct {
	store *store.Store
	limit int
}

// New builds the session service. limit caps list results.
func New(st *store.Store, limit int) *Service {
	if limit <= 0 {
		limit = 50
	}
	return &Service{store: st, limit: limit}
}

// Create starts a new session for a user.
func (s *Service) Create(ctx context.Context, userID, title string) (*store.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "New chat"
	}
	return s.store.CreateSession(ctx, uuid.NewString(), userID, title)
}

// Get returns one session.
func (s *Service) Get(ctx context.Context, sessionID string) (*store.Session, error) {
	return s.store.GetSession(ctx, sessionID)
}

// List returns a user's sessions, most recently active first.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]*store.Session, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}
	return s.store.ListSessions(ctx, userID, limit)
}

// Rename changes a session's title.
func (s *Service) Rename(ctx context.Context, sessionID, title string) (*store.Session, error) {
	if strings.TrimSpace(title) == "" {
		return nil, apperr.Validation("session title must not be empty")
	}
	return s.store.RenameSession(ctx, sessionID, title)
}

// Delete removes a session with its messages and chat requests.
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	return s.store.DeleteSession(ctx, sessionID)
}

// Messages returns a session's messages oldest first.
func (s *Service) Messages(ctx context.Context, sessionID string) ([]*store.Message, error) {
	return s.store.ListMessages(ctx, sessionID)
}
