package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// HistoryFilter narrows ListHistory results. Zero values mean no filter.
type HistoryFilter struct {
	ProfileID int64
	Domain    string
	Limit     int
}

func (s *Store) appendHistoryTx(ctx context.Context, tx *sql.Tx, profileID int64, domain, action, actor string, changes ChangeSet) error {
	if actor == "" {
		actor = "system"
	}
	payload, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal history changes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO config_history (profile_id, domain, action, changed_by, changes, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		profileID, domain, action, actor, string(payload), now()); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// ListHistory returns change history entries newest first.
func (s *Store) ListHistory(ctx context.Context, filter HistoryFilter) ([]*HistoryEntry, error) {
	query := `SELECT id, profile_id, domain, action, changed_by, changes, timestamp FROM config_history`
	var args []interface{}
	var where []string
	if filter.ProfileID != 0 {
		where = append(where, "profile_id = ?")
		args = append(args, filter.ProfileID)
	}
	if filter.Domain != "" {
		where = append(where, "domain = ?")
		args = append(args, filter.Domain)
	}
	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []*HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var raw string
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.Domain, &e.Action, &e.ChangedBy, &raw, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &e.Changes); err != nil {
			return nil, fmt.Errorf("decode history changes: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
