// Package settings resolves the active configuration profile into an
// immutable snapshot consumed by the chat pipeline. The snapshot is
// cached process-wide and swapped atomically on reload, so readers
// never observe a partially-updated view.
package settings

import (
	"context"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lakehouse-apps/chat-config-manager/internal/apperr"
	"github.com/lakehouse-apps/chat-config-manager/internal/metrics"
	"github.com/lakehouse-apps/chat-config-manager/internal/store"
)

// UsernamePlaceholder in experiment names is replaced with the
// workspace user at resolution time.
const UsernamePlaceholder = "{username}"

// Snapshot is the fully-resolved view of one profile's configuration.
type Snapshot struct {
	ProfileID          int64     `json:"profileId"`
	ProfileName        string    `json:"profileName"`
	LLMEndpoint        string    `json:"llmEndpoint"`
	LLMTemperature     float64   `json:"llmTemperature"`
	LLMMaxTokens       int       `json:"llmMaxTokens"`
	ExperimentName     string    `json:"experimentName"`
	SystemPrompt       string    `json:"systemPrompt"`
	UserPromptTemplate string    `json:"userPromptTemplate"`
	LoadedAt           time.Time `json:"loadedAt"`
}

// UserResolver returns the workspace user name for experiment path
// substitution.
type UserResolver interface {
	CurrentUser(ctx context.Context) (string, error)
}

// Loader materializes and caches settings snapshots.
type Loader struct {
	store        *store.Store
	users        UserResolver
	fallbackUser string
	logger       *log.Logger

	snapshot atomic.Pointer[Snapshot]

	// mu serializes reloads and guards activeProfileID and username.
	mu              sync.Mutex
	activeProfileID int64
	username        string
}

// NewLoader builds a settings loader. users may be nil; the fallback
// user is then always substituted into experiment names.
func NewLoader(st *store.Store, users UserResolver, fallbackUser string, logger *log.Logger) *Loader {
	if fallbackUser == "" {
		fallbackUser = "default_user"
	}
	return &Loader{store: st, users: users, fallbackUser: fallbackUser, logger: logger}
}

// Get returns the current snapshot, resolving the active profile on
// first use.
func (l *Loader) Get(ctx context.Context) (*Snapshot, error) {
	if snap := l.snapshot.Load(); snap != nil {
		return snap, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if snap := l.snapshot.Load(); snap != nil {
		return snap, nil
	}
	snap, err := l.resolve(ctx)
	if err != nil {
		return nil, err
	}
	l.snapshot.Store(snap)
	return snap, nil
}

// Reload re-resolves settings and swaps the cached snapshot. When
// profileID is non-zero the active profile switches to it; on failure
// the previous snapshot and active profile are kept.
func (l *Loader) Reload(ctx context.Context, profileID int64) (*Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	previous := l.activeProfileID
	if profileID != 0 {
		l.activeProfileID = profileID
	}

	snap, err := l.resolve(ctx)
	if err != nil {
		l.activeProfileID = previous
		metrics.ObserveSettingsReload(false)
		if l.logger != nil {
			l.logger.Printf("settings: reload failed, keeping previous snapshot: %v", err)
		}
		return nil, err
	}

	l.snapshot.Store(snap)
	metrics.ObserveSettingsReload(true)
	if l.logger != nil {
		l.logger.Printf("settings: loaded profile %d (%s)", snap.ProfileID, snap.ProfileName)
	}
	return snap, nil
}

// ActiveProfileID reports the explicitly selected profile, or zero when
// the default profile is in effect.
func (l *Loader) ActiveProfileID() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activeProfileID
}

// Current returns the cached snapshot without resolving, or nil.
func (l *Loader) Current() *Snapshot {
	return l.snapshot.Load()
}

// resolve loads the active (or default) profile and materializes a
// snapshot. Callers must hold mu.
func (l *Loader) resolve(ctx context.Context) (*Snapshot, error) {
	var detail *store.ProfileDetail
	var err error
	if l.activeProfileID != 0 {
		detail, err = l.store.GetProfile(ctx, l.activeProfileID)
	} else {
		detail, err = l.store.GetDefaultProfile(ctx)
	}
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Wrap(apperr.KindConfiguration, err, "no usable configuration profile")
		}
		return nil, err
	}
	if detail.AIInfra == nil || detail.MLflow == nil || detail.Prompts == nil {
		return nil, apperr.Configuration("profile %d is missing sub-configs", detail.ID)
	}

	experiment := detail.MLflow.ExperimentName
	if strings.Contains(experiment, UsernamePlaceholder) {
		experiment = strings.ReplaceAll(experiment, UsernamePlaceholder, l.resolveUser(ctx))
	}

	return &Snapshot{
		ProfileID:          detail.ID,
		ProfileName:        detail.Name,
		LLMEndpoint:        detail.AIInfra.LLMEndpoint,
		LLMTemperature:     detail.AIInfra.LLMTemperature,
		LLMMaxTokens:       detail.AIInfra.LLMMaxTokens,
		ExperimentName:     experiment,
		SystemPrompt:       detail.Prompts.SystemPrompt,
		UserPromptTemplate: detail.Prompts.UserPromptTemplate,
		LoadedAt:           time.Now().UTC(),
	}, nil
}

// resolveUser looks up the workspace user once and remembers it.
// Callers must hold mu.
func (l *Loader) resolveUser(ctx context.Context) string {
	if l.username != "" {
		return l.username
	}
	if l.users != nil {
		name, err := l.users.CurrentUser(ctx)
		if err == nil && name != "" {
			l.username = name
			return name
		}
		if err != nil && l.logger != nil {
			l.logger.Printf("settings: workspace user lookup failed, using %q: %v", l.fallbackUser, err)
		}
	}
	l.username = l.fallbackUser
	return l.username
}

// Describe summarizes the loader state for diagnostics.
func (l *Loader) Describe() map[string]interface{} {
	out := map[string]interface{}{
		"activeProfileId": l.ActiveProfileID(),
		"loaded":          false,
	}
	if snap := l.snapshot.Load(); snap != nil {
		out["loaded"] = true
		out["profileId"] = snap.ProfileID
		out["profileName"] = snap.ProfileName
		out["loadedAt"] = snap.LoadedAt.Format(time.RFC3339)
	}
	return out
}
