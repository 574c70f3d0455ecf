package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lakehouse-apps/chat-config-manager/internal/apperr"
)

// CreateProfileParams carries the inputs for CreateProfile.
type CreateProfileParams struct {
	Name        string
	Description string
	Actor       string
	// CopyFromID, when non-zero, clones the sub-configs of that profile
	// instead of using Defaults.
	CopyFromID int64
	Defaults   SubConfigs
}

// UpdateProfileParams carries the optional fields for UpdateProfile.
// Nil pointers leave the field untouched.
type UpdateProfileParams struct {
	Name        *string
	Description *string
	Actor       string
}

const profileColumns = `id, name, description, is_default, created_at, created_by, updated_at, updated_by`

func scanProfile(row interface{ Scan(...interface{}) error }) (*Profile, error) {
	var p Profile
	var desc, createdBy, updatedBy sql.NullString
	err := row.Scan(&p.ID, &p.Name, &desc, &p.IsDefault, &p.CreatedAt, &createdBy, &p.UpdatedAt, &updatedBy)
	if err != nil {
		return nil, err
	}
	p.Description = desc.String
	p.CreatedBy = createdBy.String
	p.UpdatedBy = updatedBy.String
	return &p, nil
}

// ListProfiles returns all profiles ordered by name.
func (s *Store) ListProfiles(ctx context.Context) ([]*Profile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM config_profiles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProfile returns a profile with its sub-configs eagerly loaded.
func (s *Store) GetProfile(ctx context.Context, id int64) (*ProfileDetail, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+profileColumns+` FROM config_profiles WHERE id = ?`), id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("profile %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %d: %w", id, err)
	}
	return s.attachSubConfigs(ctx, p)
}

// GetDefaultProfile returns the profile currently marked default.
func (s *Store) GetDefaultProfile(ctx context.Context) (*ProfileDetail, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM config_profiles WHERE is_default = TRUE`)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("no default profile configured")
	}
	if err != nil {
		return nil, fmt.Errorf("get default profile: %w", err)
	}
	return s.attachSubConfigs(ctx, p)
}

func (s *Store) attachSubConfigs(ctx context.Context, p *Profile) (*ProfileDetail, error) {
	d := &ProfileDetail{Profile: *p}
	var err error
	if d.AIInfra, err = s.GetAIInfra(ctx, p.ID); err != nil && !apperr.IsNotFound(err) {
		return nil, err
	}
	if d.MLflow, err = s.GetMLflow(ctx, p.ID); err != nil && !apperr.IsNotFound(err) {
		return nil, err
	}
	if d.Prompts, err = s.GetPrompts(ctx, p.ID); err != nil && !apperr.IsNotFound(err) {
		return nil, err
	}
	return d, nil
}

// CreateProfile inserts a profile, its three sub-configs, and a create
// history entry in one transaction. The first profile ever created is
// automatically marked default. When CopyFromID is set the source
// profile's sub-configs are read inside the same transaction so a
// concurrent delete of the source fails the whole create.
func (s *Store) CreateProfile(ctx context.Context, params CreateProfileParams) (*ProfileDetail, error) {
	var newID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var taken int
		err := tx.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM config_profiles WHERE name = ?`), params.Name).Scan(&taken)
		if err != nil {
			return fmt.Errorf("check profile name: %w", err)
		}
		if taken > 0 {
			return apperr.Validation("profile name %q already exists", params.Name)
		}

		sub := params.Defaults
		if params.CopyFromID != 0 {
			src, err := s.readSubConfigsTx(ctx, tx, params.CopyFromID)
			if err != nil {
				return err
			}
			sub = *src
		}

		var defaults int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM config_profiles WHERE is_default = TRUE`).Scan(&defaults); err != nil {
			return fmt.Errorf("count default profiles: %w", err)
		}
		isDefault := defaults == 0

		ts := now()
		err = tx.QueryRowContext(ctx, s.rebind(
			`INSERT INTO config_profiles (name, description, is_default, created_at, created_by, updated_at, updated_by)
			 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			params.Name, nullable(params.Description), isDefault, ts, nullable(params.Actor), ts, nullable(params.Actor),
		).Scan(&newID)
		if err != nil {
			if isUniqueViolation(err) {
				return apperr.Validation("profile name %q already exists", params.Name)
			}
			return fmt.Errorf("insert profile: %w", err)
		}

		if _, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO config_ai_infra (profile_id, llm_endpoint, llm_temperature, llm_max_tokens, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`),
			newID, sub.LLMEndpoint, sub.LLMTemperature, sub.LLMMaxTokens, ts, ts); err != nil {
			return fmt.Errorf("insert ai infra config: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO config_mlflow (profile_id, experiment_name, created_at, updated_at)
			 VALUES (?, ?, ?, ?)`),
			newID, sub.ExperimentName, ts, ts); err != nil {
			return fmt.Errorf("insert mlflow config: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO config_prompts (profile_id, system_prompt, user_prompt_template, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`),
			newID, sub.SystemPrompt, sub.UserPromptTemplate, ts, ts); err != nil {
			return fmt.Errorf("insert prompts config: %w", err)
		}

		changes := ChangeSet{"name": {Old: nil, New: params.Name}}
		if params.CopyFromID != 0 {
			changes["copied_from"] = FieldChange{Old: nil, New: params.CopyFromID}
		}
		if isDefault {
			changes["is_default"] = FieldChange{Old: nil, New: true}
		}
		return s.appendHistoryTx(ctx, tx, newID, DomainProfile, ActionCreate, params.Actor, changes)
	})
	if err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, newID)
}

func (s *Store) readSubConfigsTx(ctx context.Context, tx *sql.Tx, profileID int64) (*SubConfigs, error) {
	var sub SubConfigs
	err := tx.QueryRowContext(ctx, s.rebind(
		`SELECT llm_endpoint, llm_temperature, llm_max_tokens FROM config_ai_infra WHERE profile_id = ?`), profileID).
		Scan(&sub.LLMEndpoint, &sub.LLMTemperature, &sub.LLMMaxTokens)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("source profile %d not found", profileID)
	}
	if err != nil {
		return nil, fmt.Errorf("read source ai infra config: %w", err)
	}
	err = tx.QueryRowContext(ctx, s.rebind(
		`SELECT experiment_name FROM config_mlflow WHERE profile_id = ?`), profileID).Scan(&sub.ExperimentName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("source profile %d not found", profileID)
	}
	if err != nil {
		return nil, fmt.Errorf("read source mlflow config: %w", err)
	}
	err = tx.QueryRowContext(ctx, s.rebind(
		`SELECT system_prompt, user_prompt_template FROM config_prompts WHERE profile_id = ?`), profileID).
		Scan(&sub.SystemPrompt, &sub.UserPromptTemplate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("source profile %d not found", profileID)
	}
	if err != nil {
		return nil, fmt.Errorf("read source prompts config: %w", err)
	}
	return &sub, nil
}

// UpdateProfile updates the provided fields and records only the fields
// that actually changed.
func (s *Store) UpdateProfile(ctx context.Context, id int64, params UpdateProfileParams) (*ProfileDetail, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, s.rebind(`SELECT `+profileColumns+` FROM config_profiles WHERE id = ?`), id)
		current, err := scanProfile(row)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("profile %d not found", id)
		}
		if err != nil {
			return fmt.Errorf("get profile %d: %w", id, err)
		}

		changes := ChangeSet{}
		name := current.Name
		desc := current.Description
		if params.Name != nil && *params.Name != current.Name {
			var taken int
			if err := tx.QueryRowContext(ctx, s.rebind(
				`SELECT COUNT(*) FROM config_profiles WHERE name = ? AND id <> ?`), *params.Name, id).Scan(&taken); err != nil {
				return fmt.Errorf("check profile name: %w", err)
			}
			if taken > 0 {
				return apperr.Validation("profile name %q already exists", *params.Name)
			}
			changes["name"] = FieldChange{Old: current.Name, New: *params.Name}
			name = *params.Name
		}
		if params.Description != nil && *params.Description != current.Description {
			changes["description"] = FieldChange{Old: current.Description, New: *params.Description}
			desc = *params.Description
		}
		if len(changes) == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE config_profiles SET name = ?, description = ?, updated_at = ?, updated_by = ? WHERE id = ?`),
			name, nullable(desc), now(), nullable(params.Actor), id); err != nil {
			if isUniqueViolation(err) {
				return apperr.Validation("profile name %q already exists", name)
			}
			return fmt.Errorf("update profile %d: %w", id, err)
		}
		return s.appendHistoryTx(ctx, tx, id, DomainProfile, ActionUpdate, params.Actor, changes)
	})
	if err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, id)
}

// DeleteProfile removes a profile, cascading to sub-configs and history.
// The default profile cannot be deleted.
func (s *Store) DeleteProfile(ctx context.Context, id int64, actor string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, s.rebind(`SELECT `+profileColumns+` FROM config_profiles WHERE id = ?`), id)
		current, err := scanProfile(row)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("profile %d not found", id)
		}
		if err != nil {
			return fmt.Errorf("get profile %d: %w", id, err)
		}
		if current.IsDefault {
			return apperr.Forbidden("cannot delete the default profile")
		}

		if err := s.appendHistoryTx(ctx, tx, id, DomainProfile, ActionDelete, actor,
			ChangeSet{"name": {Old: current.Name, New: nil}}); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM config_profiles WHERE id = ?`), id); err != nil {
			return fmt.Errorf("delete profile %d: %w", id, err)
		}
		return nil
	})
}

// SetDefaultProfile atomically clears is_default on every other profile
// and sets it on the target. Calling it on the already-default profile
// is a no-op and records no history.
func (s *Store) SetDefaultProfile(ctx context.Context, id int64, actor string) (*ProfileDetail, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, s.rebind(`SELECT `+profileColumns+` FROM config_profiles WHERE id = ?`), id)
		current, err := scanProfile(row)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("profile %d not found", id)
		}
		if err != nil {
			return fmt.Errorf("get profile %d: %w", id, err)
		}
		if current.IsDefault {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `UPDATE config_profiles SET is_default = FALSE WHERE is_default = TRUE`); err != nil {
			return fmt.Errorf("clear default profile: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE config_profiles SET is_default = TRUE, updated_at = ?, updated_by = ? WHERE id = ?`),
			now(), nullable(actor), id); err != nil {
			return fmt.Errorf("set default profile %d: %w", id, err)
		}
		return s.appendHistoryTx(ctx, tx, id, DomainProfile, ActionSetDefault, actor,
			ChangeSet{"is_default": {Old: false, New: true}})
	})
	if err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, id)
}

// CountProfiles returns the total number of profiles.
func (s *Store) CountProfiles(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM config_profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return n, nil
}

func nullable(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
