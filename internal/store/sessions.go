package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lakehouse-apps/chat-config-manager/internal/apperr"
)

const sessionColumns = `id, session_id, user_id, title, created_at, last_activity, is_processing`

func scanSession(row interface{ Scan(...interface{}) error }) (*Session, error) {
	var s Session
	var userID, title sql.NullString
	if err := row.Scan(&s.ID, &s.SessionID, &userID, &title, &s.CreatedAt, &s.LastActivity, &s.IsProcessing); err != nil {
		return nil, err
	}
	s.UserID = userID.String
	s.Title = title.String
	return &s, nil
}

// CreateSession persists a new chat session.
func (s *Store) CreateSession(ctx context.Context, sessionID, userID, title string) (*Session, error) {
	ts := now()
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO user_sessions (session_id, user_id, title, created_at, last_activity, is_processing)
		 VALUES (?, ?, ?, ?, ?, FALSE) RETURNING id`),
		sessionID, nullable(userID), nullable(title), ts, ts).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &Session{ID: id, SessionID: sessionID, UserID: userID, Title: title, CreatedAt: ts, LastActivity: ts}, nil
}

// GetSession looks up a session by its public identifier.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+sessionColumns+` FROM user_sessions WHERE session_id = ?`), sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("session %s not found", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return sess, nil
}

// ListSessions returns a user's sessions, most recently active first.
func (s *Store) ListSessions(ctx context.Context, userID string, limit int) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_sessions`
	var args []interface{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY last_activity DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and, by cascade, its messages and
// chat requests.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM user_sessions WHERE session_id = ?`), sessionID)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("session %s not found", sessionID)
	}
	return nil
}

// RenameSession updates a session title.
func (s *Store) RenameSession(ctx context.Context, sessionID, title string) (*Session, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE user_sessions SET title = ?, last_activity = ? WHERE session_id = ?`),
		nullable(title), now(), sessionID)
	if err != nil {
		return nil, fmt.Errorf("rename session %s: %w", sessionID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, apperr.NotFound("session %s not found", sessionID)
	}
	return s.GetSession(ctx, sessionID)
}

// SetSessionProcessing flips the busy flag and bumps last_activity.
func (s *Store) SetSessionProcessing(ctx context.Context, sessionID string, processing bool) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE user_sessions SET is_processing = ?, last_activity = ? WHERE session_id = ?`),
		processing, now(), sessionID)
	if err != nil {
		return fmt.Errorf("update session %s: %w", sessionID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("session %s not found", sessionID)
	}
	return nil
}

// AppendMessage stores a chat message and bumps the session's
// last_activity timestamp.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg Message) (*Message, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		ts := now()
		err := tx.QueryRowContext(ctx, s.rebind(
			`INSERT INTO session_messages (session_id, role, content, message_type, metadata, request_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			sess.ID, msg.Role, msg.Content, nullable(msg.MessageType), nullable(msg.Metadata), nullable(msg.RequestID), ts).
			Scan(&msg.ID)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		msg.SessionID = sess.ID
		msg.CreatedAt = ts
		if _, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE user_sessions SET last_activity = ? WHERE id = ?`), ts, sess.ID); err != nil {
			return fmt.Errorf("touch session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMessages returns a session's messages oldest first.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]*Message, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, session_id, role, content, message_type, metadata, request_id, created_at
		 FROM session_messages WHERE session_id = ? ORDER BY created_at, id`), sess.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		var m Message
		var msgType, metadata, requestID sql.NullString
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &msgType, &metadata, &requestID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.MessageType = msgType.String
		m.Metadata = metadata.String
		m.RequestID = requestID.String
		out = append(out, &m)
	}
	return out, rows.Err()
}

// CreateChatRequest records a new pending chat request for a session.
func (s *Store) CreateChatRequest(ctx context.Context, requestID, sessionID string) (*ChatRequest, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ts := now()
	var id int64
	err = s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO chat_requests (request_id, session_id, status, created_at)
		 VALUES (?, ?, ?, ?) RETURNING id`),
		requestID, sess.ID, ChatPending, ts).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	return &ChatRequest{ID: id, RequestID: requestID, SessionID: sess.ID, Status: ChatPending, CreatedAt: ts}, nil
}

// GetChatRequest looks up a chat request by its public identifier.
func (s *Store) GetChatRequest(ctx context.Context, requestID string) (*ChatRequest, error) {
	var r ChatRequest
	var errMsg, result sql.NullString
	var completedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, request_id, session_id, status, error_message, result, created_at, completed_at
		 FROM chat_requests WHERE request_id = ?`), requestID).
		Scan(&r.ID, &r.RequestID, &r.SessionID, &r.Status, &errMsg, &result, &r.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("chat request %s not found", requestID)
	}
	if err != nil {
		return nil, fmt.Errorf("get chat request %s: %w", requestID, err)
	}
	r.ErrorMessage = errMsg.String
	r.Result = result.String
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return &r, nil
}

// MarkChatRequestRunning transitions a request to the running state.
func (s *Store) MarkChatRequestRunning(ctx context.Context, requestID string) error {
	return s.setChatRequestStatus(ctx, requestID, ChatRunning, "", "", false)
}

// CompleteChatRequest stores the serialized result and marks the
// request completed.
func (s *Store) CompleteChatRequest(ctx context.Context, requestID, result string) error {
	return s.setChatRequestStatus(ctx, requestID, ChatCompleted, result, "", true)
}

// FailChatRequest records the error message and marks the request
// failed.
func (s *Store) FailChatRequest(ctx context.Context, requestID, errMsg string) error {
	return s.setChatRequestStatus(ctx, requestID, ChatError, "", errMsg, true)
}

func (s *Store) setChatRequestStatus(ctx context.Context, requestID, status, result, errMsg string, done bool) error {
	var completedAt interface{}
	if done {
		completedAt = now()
	}
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE chat_requests SET status = ?, result = ?, error_message = ?, completed_at = ? WHERE request_id = ?`),
		status, nullable(result), nullable(errMsg), completedAt, requestID)
	if err != nil {
		return fmt.Errorf("update chat request %s: %w", requestID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("chat request %s not found", requestID)
	}
	return nil
}
