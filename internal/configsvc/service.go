// Package configsvc reads and writes the three sub-config domains of a
// profile and exposes the serving endpoint catalog.
package configsvc

import (
	"context"
	"log"

	"github.com/lakehouse-apps/chat-config-manager/internal/events"
	"github.com/lakehouse-apps/chat-config-manager/internal/store"
	"github.com/lakehouse-apps/chat-config-manager/internal/validator"
)

// Service provides sub-config access for the admin API.
type Service struct {
	store   *store.Store
	live    *validator.Live
	catalog *Catalog
	bus     *events.Bus
	logger  *log.Logger
}

// New builds the config service. live and catalog may be nil when the
// workspace client is not configured.
func New(st *store.Store, live *validator.Live, catalog *Catalog, bus *events.Bus, logger *log.Logger) *Service {
	return &Service{store: st, live: live, catalog: catalog, bus: bus, logger: logger}
}

// GetAIInfra returns the AI infra sub-config for a profile.
func (s *Service) GetAIInfra(ctx context.Context, profileID int64) (*store.AIInfraConfig, error) {
	return s.store.GetAIInfra(ctx, profileID)
}

// UpdateAIInfra validates and applies AI infra field updates.
func (s *Service) UpdateAIInfra(ctx context.Context, profileID int64, upd store.AIInfraUpdate, actor string) (*store.AIInfraConfig, error) {
	if upd.LLMEndpoint != nil {
		if err := validator.Endpoint(*upd.LLMEndpoint); err != nil {
			return nil, err
		}
	}
	if upd.LLMTemperature != nil {
		if err := validator.Temperature(*upd.LLMTemperature); err != nil {
			return nil, err
		}
	}
	if upd.LLMMaxTokens != nil {
		if err := validator.MaxTokens(*upd.LLMMaxTokens); err != nil {
			return nil, err
		}
	}
	cfg, err := s.store.UpdateAIInfra(ctx, profileID, upd, actor)
	if err != nil {
		return nil, err
	}
	s.publishUpdate(ctx, profileID, store.DomainAIInfra)
	return cfg, nil
}

// GetMLflow returns the MLflow sub-config for a profile.
func (s *Service) GetMLflow(ctx context.Context, profileID int64) (*store.MLflowConfig, error) {
	return s.store.GetMLflow(ctx, profileID)
}

// UpdateMLflow validates and applies a new experiment name.
func (s *Service) UpdateMLflow(ctx context.Context, profileID int64, experimentName, actor string) (*store.MLflowConfig, error) {
	if err := validator.ExperimentName(experimentName); err != nil {
		return nil, err
	}
	cfg, err := s.store.UpdateMLflow(ctx, profileID, experimentName, actor)
	if err != nil {
		return nil, err
	}
	s.publishUpdate(ctx, profileID, store.DomainMLflow)
	return cfg, nil
}

// GetPrompts returns the prompts sub-config for a profile.
func (s *Service) GetPrompts(ctx context.Context, profileID int64) (*store.PromptsConfig, error) {
	return s.store.GetPrompts(ctx, profileID)
}

// UpdatePrompts validates and applies prompt field updates.
func (s *Service) UpdatePrompts(ctx context.Context, profileID int64, upd store.PromptsUpdate, actor string) (*store.PromptsConfig, error) {
	if upd.UserPromptTemplate != nil {
		if err := validator.UserPromptTemplate(*upd.UserPromptTemplate); err != nil {
			return nil, err
		}
	}
	cfg, err := s.store.UpdatePrompts(ctx, profileID, upd, actor)
	if err != nil {
		return nil, err
	}
	s.publishUpdate(ctx, profileID, store.DomainPrompts)
	return cfg, nil
}

// ValidateEndpoint checks a serving endpoint against the workspace.
func (s *Service) ValidateEndpoint(ctx context.Context, name string) (*validator.Result, error) {
	if s.live == nil {
		return &validator.Result{Valid: false, Message: "workspace client is not configured"}, nil
	}
	return s.live.CheckEndpoint(ctx, name)
}

// ValidateExperiment checks an MLflow experiment against the workspace.
func (s *Service) ValidateExperiment(ctx context.Context, name string) (*validator.Result, error) {
	if s.live == nil {
		return &validator.Result{Valid: false, Message: "workspace client is not configured"}, nil
	}
	return s.live.CheckExperiment(ctx, name)
}

// AvailableEndpoints lists the serving endpoints visible to the app.
// Failures degrade to an empty list so the admin UI can still render.
func (s *Service) AvailableEndpoints(ctx context.Context) []EndpointInfo {
	if s.catalog == nil {
		return []EndpointInfo{}
	}
	return s.catalog.Available(ctx)
}

// History lists change history entries, optionally filtered.
func (s *Service) History(ctx context.Context, filter store.HistoryFilter) ([]*store.HistoryEntry, error) {
	return s.store.ListHistory(ctx, filter)
}

func (s *Service) publishUpdate(ctx context.Context, profileID int64, domain string) {
	if s.bus == nil {
		return
	}
	err := s.bus.Publish(ctx, events.TypeConfigUpdated, map[string]interface{}{
		"profileId": profileID,
		"domain":    domain,
	})
	if err != nil && s.logger != nil {
		s.logger.Printf("configsvc: publish config update event failed: %v", err)
	}
}
