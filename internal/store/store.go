// Package store implements relational persistence for configuration
// profiles, their sub-configs, change history, and chat sessions. It runs
// against PostgreSQL (Lakebase) in production and SQLite for local
// development and tests.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Store wraps the SQL database used for persistence.
type Store struct {
	db     *sql.DB
	driver string
}

// Open initializes the datastore using the supplied DSN and driver
// ("postgres" or "sqlite").
func Open(dsn string, driver string) (*Store, error) {
	if driver == "" {
		driver = "sqlite"
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("datastore DSN is required")
	}

	var db *sql.DB
	var err error
	switch driver {
	case "sqlite":
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create datastore directory: %w", err)
			}
		}
		conn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", dsn)
		db, err = sql.Open("sqlite", conn)
	case "postgres":
		db, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported datastore driver: %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s datastore: %w", driver, err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close shuts down the datastore.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver reports the active database driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) initSchema() error {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	ts := "TIMESTAMP"
	if s.driver == "postgres" {
		id = "BIGSERIAL PRIMARY KEY"
		ts = "TIMESTAMPTZ"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS config_profiles (
			id %s,
			name VARCHAR(100) NOT NULL UNIQUE,
			description TEXT,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			created_at %s NOT NULL,
			created_by VARCHAR(255),
			updated_at %s NOT NULL,
			updated_by VARCHAR(255)
		)`, id, ts, ts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS config_ai_infra (
			id %s,
			profile_id BIGINT NOT NULL UNIQUE REFERENCES config_profiles(id) ON DELETE CASCADE,
			llm_endpoint VARCHAR(255) NOT NULL,
			llm_temperature DECIMAL(3,2) NOT NULL CHECK (llm_temperature >= 0 AND llm_temperature <= 1),
			llm_max_tokens INTEGER NOT NULL CHECK (llm_max_tokens > 0),
			created_at %s NOT NULL,
			updated_at %s NOT NULL
		)`, id, ts, ts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS config_mlflow (
			id %s,
			profile_id BIGINT NOT NULL UNIQUE REFERENCES config_profiles(id) ON DELETE CASCADE,
			experiment_name VARCHAR(255) NOT NULL,
			created_at %s NOT NULL,
			updated_at %s NOT NULL
		)`, id, ts, ts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS config_prompts (
			id %s,
			profile_id BIGINT NOT NULL UNIQUE REFERENCES config_profiles(id) ON DELETE CASCADE,
			system_prompt TEXT NOT NULL,
			user_prompt_template TEXT NOT NULL,
			created_at %s NOT NULL,
			updated_at %s NOT NULL
		)`, id, ts, ts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS config_history (
			id %s,
			profile_id BIGINT NOT NULL REFERENCES config_profiles(id) ON DELETE CASCADE,
			domain VARCHAR(50) NOT NULL,
			action VARCHAR(50) NOT NULL,
			changed_by VARCHAR(255) NOT NULL,
			changes TEXT NOT NULL,
			timestamp %s NOT NULL
		)`, id, ts),
		`CREATE INDEX IF NOT EXISTS idx_config_history_profile ON config_history(profile_id)`,
		`CREATE INDEX IF NOT EXISTS idx_config_history_domain ON config_history(domain)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS user_sessions (
			id %s,
			session_id VARCHAR(64) NOT NULL UNIQUE,
			user_id VARCHAR(255),
			title VARCHAR(255),
			created_at %s NOT NULL,
			last_activity %s NOT NULL,
			is_processing BOOLEAN NOT NULL DEFAULT FALSE
		)`, id, ts, ts),
		`CREATE INDEX IF NOT EXISTS idx_user_sessions_user ON user_sessions(user_id, last_activity)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS session_messages (
			id %s,
			session_id BIGINT NOT NULL REFERENCES user_sessions(id) ON DELETE CASCADE,
			role VARCHAR(20) NOT NULL,
			content TEXT NOT NULL,
			message_type VARCHAR(50),
			metadata TEXT,
			request_id VARCHAR(64),
			created_at %s NOT NULL
		)`, id, ts),
		`CREATE INDEX IF NOT EXISTS idx_session_messages_session ON session_messages(session_id)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chat_requests (
			id %s,
			request_id VARCHAR(64) NOT NULL UNIQUE,
			session_id BIGINT NOT NULL REFERENCES user_sessions(id) ON DELETE CASCADE,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			error_message TEXT,
			result TEXT,
			created_at %s NOT NULL,
			completed_at %s
		)`, id, ts, ts),
		`CREATE INDEX IF NOT EXISTS idx_chat_requests_session ON chat_requests(session_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("schema apply failed: %w", err)
		}
	}
	return nil
}

// rebind converts ?-style placeholders to the $N form expected by pgx.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err stems from a unique constraint.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func now() time.Time {
	return time.Now().UTC()
}
