package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lakehouse-apps/chat-config-manager/internal/apperr"
)

func testDefaults() SubConfigs {
	return SubConfigs{
		LLMEndpoint:        "databricks-claude-sonnet-4-5",
		LLMTemperature:     0.7,
		LLMMaxTokens:       2048,
		ExperimentName:     "/Workspace/Users/{username}/chat-template-experiments",
		SystemPrompt:       "You are a helpful assistant.",
		UserPromptTemplate: "{question}",
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "state.db"), "sqlite")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func mustCreateProfile(t *testing.T, s *Store, name string) *ProfileDetail {
	t.Helper()
	detail, err := s.CreateProfile(context.Background(), CreateProfileParams{
		Name:     name,
		Actor:    "tester",
		Defaults: testDefaults(),
	})
	if err != nil {
		t.Fatalf("CreateProfile(%s): %v", name, err)
	}
	return detail
}

func TestCreateProfileFirstBecomesDefault(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	first := mustCreateProfile(t, s, "alpha")
	if !first.IsDefault {
		t.Fatalf("expected first profile to be default")
	}
	if first.AIInfra == nil || first.AIInfra.LLMEndpoint != "databricks-claude-sonnet-4-5" {
		t.Fatalf("unexpected ai infra config: %+v", first.AIInfra)
	}
	if first.MLflow == nil || first.Prompts == nil {
		t.Fatalf("expected all sub-configs to be created")
	}

	second := mustCreateProfile(t, s, "beta")
	if second.IsDefault {
		t.Fatalf("second profile must not become default")
	}

	def, err := s.GetDefaultProfile(ctx)
	if err != nil {
		t.Fatalf("GetDefaultProfile: %v", err)
	}
	if def.ID != first.ID {
		t.Fatalf("expected default %d got %d", first.ID, def.ID)
	}
}

func TestCreateProfileDuplicateName(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	mustCreateProfile(t, s, "alpha")
	_, err := s.CreateProfile(context.Background(), CreateProfileParams{
		Name:     "alpha",
		Actor:    "tester",
		Defaults: testDefaults(),
	})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateProfileClonesSource(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	source := mustCreateProfile(t, s, "source")
	endpoint := "databricks-gpt-oss"
	temp := 0.2
	if _, err := s.UpdateAIInfra(ctx, source.ID, AIInfraUpdate{LLMEndpoint: &endpoint, LLMTemperature: &temp}, "tester"); err != nil {
		t.Fatalf("UpdateAIInfra: %v", err)
	}

	clone, err := s.CreateProfile(ctx, CreateProfileParams{
		Name:       "clone",
		Actor:      "tester",
		CopyFromID: source.ID,
		Defaults:   testDefaults(),
	})
	if err != nil {
		t.Fatalf("CreateProfile clone: %v", err)
	}
	if clone.AIInfra.LLMEndpoint != endpoint {
		t.Fatalf("expected cloned endpoint %s got %s", endpoint, clone.AIInfra.LLMEndpoint)
	}
	if clone.AIInfra.LLMTemperature != temp {
		t.Fatalf("expected cloned temperature %v got %v", temp, clone.AIInfra.LLMTemperature)
	}

	_, err = s.CreateProfile(ctx, CreateProfileParams{
		Name:       "orphan",
		Actor:      "tester",
		CopyFromID: 9999,
		Defaults:   testDefaults(),
	})
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not found for missing clone source, got %v", err)
	}
}

func TestUpdateProfileRecordsOnlyChangedFields(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	p := mustCreateProfile(t, s, "alpha")

	newName := "alpha-renamed"
	updated, err := s.UpdateProfile(ctx, p.ID, UpdateProfileParams{Name: &newName, Actor: "editor"})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.Name != newName {
		t.Fatalf("expected name %s got %s", newName, updated.Name)
	}

	entries, err := s.ListHistory(ctx, HistoryFilter{ProfileID: p.ID, Domain: DomainProfile})
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	var update *HistoryEntry
	for _, e := range entries {
		if e.Action == ActionUpdate {
			update = e
		}
	}
	if update == nil {
		t.Fatalf("expected an update history entry, got %+v", entries)
	}
	if len(update.Changes) != 1 {
		t.Fatalf("expected exactly one changed field, got %+v", update.Changes)
	}
	change, ok := update.Changes["name"]
	if !ok || change.Old != "alpha" || change.New != newName {
		t.Fatalf("unexpected name change: %+v", update.Changes)
	}

	// Same value again: no-op, no history.
	before := len(entries)
	if _, err := s.UpdateProfile(ctx, p.ID, UpdateProfileParams{Name: &newName, Actor: "editor"}); err != nil {
		t.Fatalf("no-op UpdateProfile: %v", err)
	}
	entries, err = s.ListHistory(ctx, HistoryFilter{ProfileID: p.ID, Domain: DomainProfile})
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(entries) != before {
		t.Fatalf("no-op update must not write history: %d -> %d", before, len(entries))
	}
}

func TestDeleteProfileRules(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	def := mustCreateProfile(t, s, "alpha")
	other := mustCreateProfile(t, s, "beta")

	if err := s.DeleteProfile(ctx, def.ID, "tester"); !apperr.IsForbidden(err) {
		t.Fatalf("deleting the default profile must be forbidden, got %v", err)
	}
	if err := s.DeleteProfile(ctx, other.ID, "tester"); err != nil {
		t.Fatalf("DeleteProfile: %v", err)
	}
	if _, err := s.GetProfile(ctx, other.ID); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if _, err := s.GetAIInfra(ctx, other.ID); !apperr.IsNotFound(err) {
		t.Fatalf("expected cascaded sub-config delete, got %v", err)
	}
	if err := s.DeleteProfile(ctx, 9999, "tester"); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
}

func TestSetDefaultProfile(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	a := mustCreateProfile(t, s, "alpha")
	b := mustCreateProfile(t, s, "beta")

	promoted, err := s.SetDefaultProfile(ctx, b.ID, "tester")
	if err != nil {
		t.Fatalf("SetDefaultProfile: %v", err)
	}
	if !promoted.IsDefault {
		t.Fatalf("expected promoted profile to be default")
	}
	prev, err := s.GetProfile(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if prev.IsDefault {
		t.Fatalf("previous default must be cleared")
	}

	entries, err := s.ListHistory(ctx, HistoryFilter{ProfileID: b.ID})
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	count := 0
	for _, e := range entries {
		if e.Action == ActionSetDefault {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected one set_default entry, got %d", count)
	}

	// Idempotent: setting the current default again writes no history.
	if _, err := s.SetDefaultProfile(ctx, b.ID, "tester"); err != nil {
		t.Fatalf("idempotent SetDefaultProfile: %v", err)
	}
	entries, _ = s.ListHistory(ctx, HistoryFilter{ProfileID: b.ID})
	count = 0
	for _, e := range entries {
		if e.Action == ActionSetDefault {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("idempotent set-default must not add history, got %d entries", count)
	}
}

func TestUpdatePromptsRedactsHistory(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	p := mustCreateProfile(t, s, "alpha")
	system := "New system prompt with sensitive wording."
	if _, err := s.UpdatePrompts(ctx, p.ID, PromptsUpdate{SystemPrompt: &system}, "editor"); err != nil {
		t.Fatalf("UpdatePrompts: %v", err)
	}

	entries, err := s.ListHistory(ctx, HistoryFilter{ProfileID: p.ID, Domain: DomainPrompts})
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one prompts entry, got %d", len(entries))
	}
	change, ok := entries[0].Changes["system_prompt"]
	if !ok {
		t.Fatalf("expected system_prompt change, got %+v", entries[0].Changes)
	}
	if change.Old != RedactedValue || change.New != RedactedValue {
		t.Fatalf("prompt text must be redacted in history, got %+v", change)
	}

	cfg, err := s.GetPrompts(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPrompts: %v", err)
	}
	if cfg.SystemPrompt != system {
		t.Fatalf("stored prompt must keep the real text")
	}
}

func TestUpdateAIInfraHistoryValues(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	p := mustCreateProfile(t, s, "alpha")
	tokens := 512
	if _, err := s.UpdateAIInfra(ctx, p.ID, AIInfraUpdate{LLMMaxTokens: &tokens}, "editor"); err != nil {
		t.Fatalf("UpdateAIInfra: %v", err)
	}

	entries, err := s.ListHistory(ctx, HistoryFilter{ProfileID: p.ID, Domain: DomainAIInfra})
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one ai_infra entry, got %d", len(entries))
	}
	if _, ok := entries[0].Changes["llm_max_tokens"]; !ok {
		t.Fatalf("expected llm_max_tokens change, got %+v", entries[0].Changes)
	}
	if len(entries[0].Changes) != 1 {
		t.Fatalf("unchanged fields must not appear: %+v", entries[0].Changes)
	}
}

func TestHistoryFilters(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	a := mustCreateProfile(t, s, "alpha")
	b := mustCreateProfile(t, s, "beta")
	experiment := "/Shared/chat-experiments"
	if _, err := s.UpdateMLflow(ctx, b.ID, experiment, "editor"); err != nil {
		t.Fatalf("UpdateMLflow: %v", err)
	}

	all, err := s.ListHistory(ctx, HistoryFilter{})
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(all) < 3 {
		t.Fatalf("expected at least 3 entries, got %d", len(all))
	}

	onlyA, err := s.ListHistory(ctx, HistoryFilter{ProfileID: a.ID})
	if err != nil {
		t.Fatalf("ListHistory by profile: %v", err)
	}
	for _, e := range onlyA {
		if e.ProfileID != a.ID {
			t.Fatalf("profile filter leaked entry %+v", e)
		}
	}

	mlflowOnly, err := s.ListHistory(ctx, HistoryFilter{Domain: DomainMLflow})
	if err != nil {
		t.Fatalf("ListHistory by domain: %v", err)
	}
	if len(mlflowOnly) != 1 || mlflowOnly[0].Domain != DomainMLflow {
		t.Fatalf("unexpected mlflow entries: %+v", mlflowOnly)
	}

	limited, err := s.ListHistory(ctx, HistoryFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListHistory with limit: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(limited))
	}
}

func TestSessionsAndMessages(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "sess-1", "alice", "First chat")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.SessionID != "sess-1" || sess.Title != "First chat" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	if _, err := s.AppendMessage(ctx, "sess-1", Message{Role: "user", Content: "hello"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if _, err := s.AppendMessage(ctx, "sess-1", Message{Role: "assistant", Content: "hi", RequestID: "req-1"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	msgs, err := s.ListMessages(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Fatalf("unexpected transcript: %+v", msgs)
	}

	renamed, err := s.RenameSession(ctx, "sess-1", "Renamed")
	if err != nil {
		t.Fatalf("RenameSession: %v", err)
	}
	if renamed.Title != "Renamed" {
		t.Fatalf("expected renamed title, got %q", renamed.Title)
	}

	list, err := s.ListSessions(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 session, got %d", len(list))
	}

	if err := s.DeleteSession(ctx, "sess-1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if err := s.DeleteSession(ctx, "sess-1"); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if msgs, err := s.ListMessages(ctx, "sess-1"); err != nil || len(msgs) != 0 {
		t.Fatalf("messages must cascade on session delete: %v %+v", err, msgs)
	}
}

func TestChatRequestLifecycle(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateSession(ctx, "sess-1", "alice", "chat"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	req, err := s.CreateChatRequest(ctx, "req-1", "sess-1")
	if err != nil {
		t.Fatalf("CreateChatRequest: %v", err)
	}
	if req.Status != ChatPending {
		t.Fatalf("expected pending status, got %s", req.Status)
	}

	if err := s.MarkChatRequestRunning(ctx, "req-1"); err != nil {
		t.Fatalf("MarkChatRequestRunning: %v", err)
	}
	if err := s.CompleteChatRequest(ctx, "req-1", `{"content":"hi"}`); err != nil {
		t.Fatalf("CompleteChatRequest: %v", err)
	}

	stored, err := s.GetChatRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("GetChatRequest: %v", err)
	}
	if stored.Status != ChatCompleted || stored.Result == "" || stored.CompletedAt == nil {
		t.Fatalf("unexpected completed request: %+v", stored)
	}

	if _, err := s.CreateChatRequest(ctx, "req-2", "sess-1"); err != nil {
		t.Fatalf("CreateChatRequest: %v", err)
	}
	if err := s.FailChatRequest(ctx, "req-2", "endpoint unavailable"); err != nil {
		t.Fatalf("FailChatRequest: %v", err)
	}
	failed, err := s.GetChatRequest(ctx, "req-2")
	if err != nil {
		t.Fatalf("GetChatRequest: %v", err)
	}
	if failed.Status != ChatError || failed.ErrorMessage != "endpoint unavailable" {
		t.Fatalf("unexpected failed request: %+v", failed)
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(filepath.Join(dir, "nested", "state.db"), "sqlite")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
