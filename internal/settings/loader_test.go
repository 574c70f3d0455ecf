package settings

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/lakehouse-apps/chat-config-manager/internal/apperr"
	"github.com/lakehouse-apps/chat-config-manager/internal/store"
)

type fakeUsers struct {
	name string
	err  error
}

func (f *fakeUsers) CurrentUser(ctx context.Context) (string, error) {
	return f.name, f.err
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "state.db"), "sqlite")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func seedProfile(t *testing.T, s *store.Store, name, experiment string) *store.ProfileDetail {
	t.Helper()
	detail, err := s.CreateProfile(context.Background(), store.CreateProfileParams{
		Name:  name,
		Actor: "tester",
		Defaults: store.SubConfigs{
			LLMEndpoint:        "databricks-claude-sonnet-4-5",
			LLMTemperature:     0.7,
			LLMMaxTokens:       2048,
			ExperimentName:     experiment,
			SystemPrompt:       "You are a helpful assistant.",
			UserPromptTemplate: "{question}",
		},
	})
	if err != nil {
		t.Fatalf("CreateProfile(%s): %v", name, err)
	}
	return detail
}

func TestGetResolvesDefaultProfile(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	profile := seedProfile(t, s, "alpha", "/Shared/experiments")
	loader := NewLoader(s, nil, "fallback", nil)

	snap, err := loader.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.ProfileID != profile.ID || snap.ProfileName != "alpha" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.LLMEndpoint != "databricks-claude-sonnet-4-5" {
		t.Fatalf("unexpected endpoint: %s", snap.LLMEndpoint)
	}
	if loader.ActiveProfileID() != 0 {
		t.Fatalf("implicit default must keep active id at zero")
	}
}

func TestGetWithoutProfilesIsConfigurationError(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	loader := NewLoader(s, nil, "fallback", nil)

	_, err := loader.Get(context.Background())
	if !apperr.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestReloadSwitchesProfile(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	seedProfile(t, s, "alpha", "/Shared/a")
	other := seedProfile(t, s, "beta", "/Shared/b")
	loader := NewLoader(s, nil, "fallback", nil)

	snap, err := loader.Reload(context.Background(), other.ID)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if snap.ProfileID != other.ID || snap.ExperimentName != "/Shared/b" {
		t.Fatalf("unexpected snapshot after reload: %+v", snap)
	}
	if loader.ActiveProfileID() != other.ID {
		t.Fatalf("expected active profile %d, got %d", other.ID, loader.ActiveProfileID())
	}
}

func TestFailedReloadKeepsPreviousSnapshot(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	profile := seedProfile(t, s, "alpha", "/Shared/a")
	loader := NewLoader(s, nil, "fallback", nil)

	if _, err := loader.Get(context.Background()); err != nil {
		t.Fatalf("Get: %v", err)
	}

	_, err := loader.Reload(context.Background(), 9999)
	if !apperr.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if loader.ActiveProfileID() != 0 {
		t.Fatalf("failed reload must restore the previous active id")
	}
	current := loader.Current()
	if current == nil || current.ProfileID != profile.ID {
		t.Fatalf("failed reload must keep the previous snapshot, got %+v", current)
	}
}

func TestExperimentUsernameSubstitution(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	seedProfile(t, s, "alpha", "/Workspace/Users/{username}/experiments")

	loader := NewLoader(s, &fakeUsers{name: "alice@example.com"}, "fallback", nil)
	snap, err := loader.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.ExperimentName != "/Workspace/Users/alice@example.com/experiments" {
		t.Fatalf("unexpected experiment name: %s", snap.ExperimentName)
	}
}

func TestExperimentUsernameFallback(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	seedProfile(t, s, "alpha", "/Workspace/Users/{username}/experiments")

	loader := NewLoader(s, &fakeUsers{err: errors.New("scim unavailable")}, "svc-account", nil)
	snap, err := loader.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.ExperimentName != "/Workspace/Users/svc-account/experiments" {
		t.Fatalf("expected fallback user in experiment name, got %s", snap.ExperimentName)
	}
}

func TestConcurrentGet(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	profile := seedProfile(t, s, "alpha", "/Shared/a")
	loader := NewLoader(s, nil, "fallback", nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := loader.Get(context.Background())
			if err != nil || snap.ProfileID != profile.ID {
				t.Errorf("concurrent Get: %+v %v", snap, err)
			}
		}()
	}
	wg.Wait()
}
