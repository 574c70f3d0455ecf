package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lakehouse-apps/chat-config-manager/internal/apperr"
)

// AIInfraUpdate carries the optional fields for UpdateAIInfra.
type AIInfraUpdate struct {
	LLMEndpoint    *string
	LLMTemperature *float64
	LLMMaxTokens   *int
}

// PromptsUpdate carries the optional fields for UpdatePrompts.
type PromptsUpdate struct {
	SystemPrompt       *string
	UserPromptTemplate *string
}

// GetAIInfra returns the AI infra sub-config for a profile.
func (s *Store) GetAIInfra(ctx context.Context, profileID int64) (*AIInfraConfig, error) {
	var c AIInfraConfig
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, profile_id, llm_endpoint, llm_temperature, llm_max_tokens, created_at, updated_at
		 FROM config_ai_infra WHERE profile_id = ?`), profileID).
		Scan(&c.ID, &c.ProfileID, &c.LLMEndpoint, &c.LLMTemperature, &c.LLMMaxTokens, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("ai infra config for profile %d not found", profileID)
	}
	if err != nil {
		return nil, fmt.Errorf("get ai infra config: %w", err)
	}
	return &c, nil
}

// GetMLflow returns the MLflow sub-config for a profile.
func (s *Store) GetMLflow(ctx context.Context, profileID int64) (*MLflowConfig, error) {
	var c MLflowConfig
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, profile_id, experiment_name, created_at, updated_at
		 FROM config_mlflow WHERE profile_id = ?`), profileID).
		Scan(&c.ID, &c.ProfileID, &c.ExperimentName, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("mlflow config for profile %d not found", profileID)
	}
	if err != nil {
		return nil, fmt.Errorf("get mlflow config: %w", err)
	}
	return &c, nil
}

// GetPrompts returns the prompts sub-config for a profile.
func (s *Store) GetPrompts(ctx context.Context, profileID int64) (*PromptsConfig, error) {
	var c PromptsConfig
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, profile_id, system_prompt, user_prompt_template, created_at, updated_at
		 FROM config_prompts WHERE profile_id = ?`), profileID).
		Scan(&c.ID, &c.ProfileID, &c.SystemPrompt, &c.UserPromptTemplate, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("prompts config for profile %d not found", profileID)
	}
	if err != nil {
		return nil, fmt.Errorf("get prompts config: %w", err)
	}
	return &c, nil
}

// UpdateAIInfra applies the provided fields, recording only fields that
// actually changed. No history entry is written when nothing changed.
func (s *Store) UpdateAIInfra(ctx context.Context, profileID int64, upd AIInfraUpdate, actor string) (*AIInfraConfig, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var cur AIInfraConfig
		err := tx.QueryRowContext(ctx, s.rebind(
			`SELECT llm_endpoint, llm_temperature, llm_max_tokens FROM config_ai_infra WHERE profile_id = ?`), profileID).
			Scan(&cur.LLMEndpoint, &cur.LLMTemperature, &cur.LLMMaxTokens)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("ai infra config for profile %d not found", profileID)
		}
		if err != nil {
			return fmt.Errorf("get ai infra config: %w", err)
		}

		changes := ChangeSet{}
		endpoint, temperature, maxTokens := cur.LLMEndpoint, cur.LLMTemperature, cur.LLMMaxTokens
		if upd.LLMEndpoint != nil && *upd.LLMEndpoint != cur.LLMEndpoint {
			changes["llm_endpoint"] = FieldChange{Old: cur.LLMEndpoint, New: *upd.LLMEndpoint}
			endpoint = *upd.LLMEndpoint
		}
		if upd.LLMTemperature != nil && *upd.LLMTemperature != cur.LLMTemperature {
			changes["llm_temperature"] = FieldChange{Old: cur.LLMTemperature, New: *upd.LLMTemperature}
			temperature = *upd.LLMTemperature
		}
		if upd.LLMMaxTokens != nil && *upd.LLMMaxTokens != cur.LLMMaxTokens {
			changes["llm_max_tokens"] = FieldChange{Old: cur.LLMMaxTokens, New: *upd.LLMMaxTokens}
			maxTokens = *upd.LLMMaxTokens
		}
		if len(changes) == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE config_ai_infra SET llm_endpoint = ?, llm_temperature = ?, llm_max_tokens = ?, updated_at = ?
			 WHERE profile_id = ?`),
			endpoint, temperature, maxTokens, now(), profileID); err != nil {
			return fmt.Errorf("update ai infra config: %w", err)
		}
		return s.appendHistoryTx(ctx, tx, profileID, DomainAIInfra, ActionUpdate, actor, changes)
	})
	if err != nil {
		return nil, err
	}
	return s.GetAIInfra(ctx, profileID)
}

// UpdateMLflow applies a new experiment name if it differs from the
// stored one.
func (s *Store) UpdateMLflow(ctx context.Context, profileID int64, experimentName string, actor string) (*MLflowConfig, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, s.rebind(
			`SELECT experiment_name FROM config_mlflow WHERE profile_id = ?`), profileID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("mlflow config for profile %d not found", profileID)
		}
		if err != nil {
			return fmt.Errorf("get mlflow config: %w", err)
		}
		if experimentName == current {
			return nil
		}

		if _, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE config_mlflow SET experiment_name = ?, updated_at = ? WHERE profile_id = ?`),
			experimentName, now(), profileID); err != nil {
			return fmt.Errorf("update mlflow config: %w", err)
		}
		return s.appendHistoryTx(ctx, tx, profileID, DomainMLflow, ActionUpdate, actor,
			ChangeSet{"experiment_name": {Old: current, New: experimentName}})
	})
	if err != nil {
		return nil, err
	}
	return s.GetMLflow(ctx, profileID)
}

// UpdatePrompts applies the provided prompt fields. Prompt text is
// redacted in the history entry to keep full prompts out of the audit
// log.
func (s *Store) UpdatePrompts(ctx context.Context, profileID int64, upd PromptsUpdate, actor string) (*PromptsConfig, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var cur PromptsConfig
		err := tx.QueryRowContext(ctx, s.rebind(
			`SELECT system_prompt, user_prompt_template FROM config_prompts WHERE profile_id = ?`), profileID).
			Scan(&cur.SystemPrompt, &cur.UserPromptTemplate)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("prompts config for profile %d not found", profileID)
		}
		if err != nil {
			return fmt.Errorf("get prompts config: %w", err)
		}

		changes := ChangeSet{}
		systemPrompt, template := cur.SystemPrompt, cur.UserPromptTemplate
		if upd.SystemPrompt != nil && *upd.SystemPrompt != cur.SystemPrompt {
			changes["system_prompt"] = FieldChange{Old: RedactedValue, New: RedactedValue}
			systemPrompt = *upd.SystemPrompt
		}
		if upd.UserPromptTemplate != nil && *upd.UserPromptTemplate != cur.UserPromptTemplate {
			changes["user_prompt_template"] = FieldChange{Old: RedactedValue, New: RedactedValue}
			template = *upd.UserPromptTemplate
		}
		if len(changes) == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE config_prompts SET system_prompt = ?, user_prompt_template = ?, updated_at = ? WHERE profile_id = ?`),
			systemPrompt, template, now(), profileID); err != nil {
			return fmt.Errorf("update prompts config: %w", err)
		}
		return s.appendHistoryTx(ctx, tx, profileID, DomainPrompts, ActionUpdate, actor, changes)
	})
	if err != nil {
		return nil, err
	}
	return s.GetPrompts(ctx, profileID)
}
