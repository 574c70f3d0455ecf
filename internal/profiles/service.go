// Package profiles implements the profile lifecycle service on top of
// the datastore: create (optionally cloned), rename, delete,
// set-default, and duplicate.
package profiles

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/lakehouse-apps/chat-config-manager/internal/defaults"
	"github.com/lakehouse-apps/chat-config-manager/internal/events"
	"github.com/lakehouse-apps/chat-config-manager/internal/metrics"
	"github.com/lakehouse-apps/chat-config-manager/internal/store"
	"github.com/lakehouse-apps/chat-config-manager/internal/validator"
)

// Service manages configuration profiles.
type Service struct {
	store    *store.Store
	defaults defaults.ProfileDefaults
	bus      *events.Bus
	logger   *log.Logger

	// mu serializes create and set-default so two concurrent calls
	// cannot observe the same default-profile state and both act on it.
	mu sync.Mutex
}

// New builds the profile service.
func New(st *store.Store, def defaults.ProfileDefaults, bus *events.Bus, logger *log.Logger) *Service {
	return &Service{store: st, defaults: def, bus: bus, logger: logger}
}

// List returns all profiles ordered by name.
func (s *Service) List(ctx context.Context) ([]*store.Profile, error) {
	return s.store.ListProfiles(ctx)
}

// Get returns one profile with its sub-configs.
func (s *Service) Get(ctx context.Context, id int64) (*store.ProfileDetail, error) {
	return s.store.GetProfile(ctx, id)
}

// GetDefault returns the profile currently marked default.
func (s *Service) GetDefault(ctx context.Context) (*store.ProfileDetail, error) {
	return s.store.GetDefaultProfile(ctx)
}

// Create adds a new profile. When copyFromID is non-zero the source
// profile's sub-configs are cloned verbatim; otherwise static defaults
// are used. The first profile ever created becomes the default.
func (s *Service) Create(ctx context.Context, name, description string, copyFromID int64, actor string) (*store.ProfileDetail, error) {
	if err := validator.ProfileName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	detail, err := s.store.CreateProfile(ctx, store.CreateProfileParams{
		Name:        name,
		Description: description,
		Actor:       actor,
		CopyFromID:  copyFromID,
		Defaults: store.SubConfigs{
			LLMEndpoint:        s.defaults.LLMEndpoint,
			LLMTemperature:     s.defaults.LLMTemperature,
			LLMMaxTokens:       s.defaults.LLMMaxTokens,
			ExperimentName:     s.defaults.ExperimentName,
			SystemPrompt:       s.defaults.SystemPrompt,
			UserPromptTemplate: s.defaults.UserPromptTemplate,
		},
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveProfileOperation(store.ActionCreate)
	s.publish(ctx, events.TypeProfileCreated, map[string]interface{}{
		"profileId": detail.ID,
		"name":      detail.Name,
		"isDefault": detail.IsDefault,
	})
	if s.logger != nil {
		s.logger.Printf("profiles: created profile %d (%s) default=%v", detail.ID, detail.Name, detail.IsDefault)
	}
	return detail, nil
}

// Update renames a profile or changes its description. Only provided
// fields are touched.
func (s *Service) Update(ctx context.Context, id int64, name, description *string, actor string) (*store.ProfileDetail, error) {
	if name != nil {
		if err := validator.ProfileName(*name); err != nil {
			return nil, err
		}
	}
	detail, err := s.store.UpdateProfile(ctx, id, store.UpdateProfileParams{
		Name:        name,
		Description: description,
		Actor:       actor,
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveProfileOperation(store.ActionUpdate)
	s.publish(ctx, events.TypeProfileUpdated, map[string]interface{}{
		"profileId": detail.ID,
		"name":      detail.Name,
	})
	return detail, nil
}

// Delete removes a profile. The default profile cannot be deleted.
func (s *Service) Delete(ctx context.Context, id int64, actor string) error {
	if err := s.store.DeleteProfile(ctx, id, actor); err != nil {
		return err
	}

	metrics.ObserveProfileOperation(store.ActionDelete)
	s.publish(ctx, events.TypeProfileDeleted, map[string]interface{}{"profileId": id})
	if s.logger != nil {
		s.logger.Printf("profiles: deleted profile %d", id)
	}
	return nil
}

// SetDefault marks a profile as the default. Calling it on the current
// default is a no-op.
func (s *Service) SetDefault(ctx context.Context, id int64, actor string) (*store.ProfileDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	detail, err := s.store.SetDefaultProfile(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	metrics.ObserveProfileOperation(store.ActionSetDefault)
	s.publish(ctx, events.TypeProfileDefaultSet, map[string]interface{}{
		"profileId": detail.ID,
		"name":      detail.Name,
	})
	return detail, nil
}

// Duplicate clones a profile under a new name.
func (s *Service) Duplicate(ctx context.Context, id int64, newName, actor string) (*store.ProfileDetail, error) {
	return s.Create(ctx, newName, fmt.Sprintf("Copy of profile %d", id), id, actor)
}

// History lists change history entries, optionally filtered.
func (s *Service) History(ctx context.Context, filter store.HistoryFilter) ([]*store.HistoryEntry, error) {
	return s.store.ListHistory(ctx, filter)
}

func (s *Service) publish(ctx context.Context, eventType string, data interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, eventType, data); err != nil && s.logger != nil {
		s.logger.Printf("profiles: publish %s event failed: %v", eventType, err)
	}
}
