package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/lakehouse-apps/chat-config-manager/internal/configsvc"
	"github.com/lakehouse-apps/chat-config-manager/internal/defaults"
	"github.com/lakehouse-apps/chat-config-manager/internal/events"
	"github.com/lakehouse-apps/chat-config-manager/internal/profiles"
	"github.com/lakehouse-apps/chat-config-manager/internal/sessions"
	"github.com/lakehouse-apps/chat-config-manager/internal/settings"
	"github.com/lakehouse-apps/chat-config-manager/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestHandler(t *testing.T) (*Handler, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"), "sqlite")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	bus := events.NewBus(events.Options{})
	loader := settings.NewLoader(st, nil, "tester", nil)
	ps := profiles.New(st, defaults.Builtin(), bus, nil)
	cs := configsvc.New(st, nil, nil, bus, nil)
	ss := sessions.New(st, 50)

	handler := New(ps, cs, ss, nil, loader, bus, st, nil, Options{
		Environment: "test",
		Version:     "test",
	})
	return handler, st
}

func performRequest(handler *Handler, register func(*gin.Engine), method, path, body string) *httptest.ResponseRecorder {
	engine := gin.New()
	register(engine)
	w := httptest.NewRecorder()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

func TestCreateAndListProfiles(t *testing.T) {
	t.Parallel()
	handler, _ := newTestHandler(t)

	register := func(e *gin.Engine) {
		e.POST("/profiles", handler.CreateProfile)
		e.GET("/profiles", handler.ListProfiles)
	}

	w := performRequest(handler, register, http.MethodPost, "/profiles", `{"name":"production","description":"Prod settings"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID        int64 `json:"id"`
		IsDefault bool  `json:"isDefault"`
		AIInfra   *struct {
			LLMEndpoint string `json:"llmEndpoint"`
		} `json:"aiInfra"`
	}
	decodeBody(t, w, &created)
	if created.ID == 0 || !created.IsDefault || created.AIInfra == nil {
		t.Fatalf("unexpected create payload: %s", w.Body.String())
	}

	w = performRequest(handler, register, http.MethodGet, "/profiles", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	var list struct {
		Profiles []json.RawMessage `json:"profiles"`
		Count    int               `json:"count"`
	}
	decodeBody(t, w, &list)
	if list.Count != 1 || len(list.Profiles) != 1 {
		t.Fatalf("unexpected list payload: %s", w.Body.String())
	}
}

func TestCreateProfileValidation(t *testing.T) {
	t.Parallel()
	handler, _ := newTestHandler(t)

	register := func(e *gin.Engine) {
		e.POST("/profiles", handler.CreateProfile)
	}

	w := performRequest(handler, register, http.MethodPost, "/profiles", `{"description":"missing name"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, w, &body)
	if body.Error.Code != "validation_error" {
		t.Fatalf("unexpected error code: %s", w.Body.String())
	}
}

func TestGetProfileNotFound(t *testing.T) {
	t.Parallel()
	handler, _ := newTestHandler(t)

	register := func(e *gin.Engine) {
		e.GET("/profiles/:id", handler.GetProfile)
	}

	w := performRequest(handler, register, http.MethodGet, "/profiles/42", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, w, &body)
	if body.Error.Code != "not_found" {
		t.Fatalf("unexpected error code: %s", w.Body.String())
	}
}

func TestDeleteDefaultProfileForbidden(t *testing.T) {
	t.Parallel()
	handler, _ := newTestHandler(t)

	register := func(e *gin.Engine) {
		e.POST("/profiles", handler.CreateProfile)
		e.DELETE("/profiles/:id", handler.DeleteProfile)
	}

	w := performRequest(handler, register, http.MethodPost, "/profiles", `{"name":"only"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", w.Code)
	}
	var created struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, w, &created)

	w = performRequest(handler, register, http.MethodDelete, "/profiles/1", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d: %s", w.Code, w.Body.String())
	}
}

func TestUpdateAIInfraRejectsBadTemperature(t *testing.T) {
	t.Parallel()
	handler, _ := newTestHandler(t)

	register := func(e *gin.Engine) {
		e.POST("/profiles", handler.CreateProfile)
		e.PUT("/ai-infra/:profileId", handler.UpdateAIInfraConfig)
		e.GET("/ai-infra/:profileId", handler.GetAIInfraConfig)
	}

	w := performRequest(handler, register, http.MethodPost, "/profiles", `{"name":"alpha"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", w.Code)
	}

	w = performRequest(handler, register, http.MethodPut, "/ai-infra/1", `{"llmTemperature":1.5}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", w.Code, w.Body.String())
	}

	w = performRequest(handler, register, http.MethodPut, "/ai-infra/1", `{"llmTemperature":0.9,"llmMaxTokens":512}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}
	var cfg struct {
		LLMTemperature float64 `json:"llmTemperature"`
		LLMMaxTokens   int     `json:"llmMaxTokens"`
	}
	decodeBody(t, w, &cfg)
	if cfg.LLMTemperature != 0.9 || cfg.LLMMaxTokens != 512 {
		t.Fatalf("unexpected config: %s", w.Body.String())
	}
}

func TestHistoryEndpointFilters(t *testing.T) {
	t.Parallel()
	handler, _ := newTestHandler(t)

	register := func(e *gin.Engine) {
		e.POST("/profiles", handler.CreateProfile)
		e.GET("/history", handler.ListHistory)
	}

	w := performRequest(handler, register, http.MethodPost, "/profiles", `{"name":"alpha"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", w.Code)
	}

	w = performRequest(handler, register, http.MethodGet, "/history?domain=profile", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		History []struct {
			Domain string `json:"domain"`
			Action string `json:"action"`
		} `json:"history"`
		Count int `json:"count"`
	}
	decodeBody(t, w, &body)
	if body.Count != 1 || body.History[0].Action != "create" {
		t.Fatalf("unexpected history payload: %s", w.Body.String())
	}

	w = performRequest(handler, register, http.MethodGet, "/history?domain=bogus", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown domain, got %d", w.Code)
	}
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	t.Parallel()
	handler, _ := newTestHandler(t)

	register := func(e *gin.Engine) {
		e.POST("/sessions", handler.CreateSession)
		e.GET("/sessions", handler.ListSessions)
		e.GET("/sessions/:id", handler.GetSession)
		e.PUT("/sessions/:id", handler.RenameSession)
		e.DELETE("/sessions/:id", handler.DeleteSession)
	}

	w := performRequest(handler, register, http.MethodPost, "/sessions", `{"userId":"alice","title":"First"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", w.Code, w.Body.String())
	}
	var sess struct {
		SessionID string `json:"sessionId"`
	}
	decodeBody(t, w, &sess)
	if sess.SessionID == "" {
		t.Fatalf("missing session id: %s", w.Body.String())
	}

	w = performRequest(handler, register, http.MethodPut, "/sessions/"+sess.SessionID, `{"title":"Renamed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}

	w = performRequest(handler, register, http.MethodGet, "/sessions?user_id=alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	var list struct {
		Count int `json:"count"`
	}
	decodeBody(t, w, &list)
	if list.Count != 1 {
		t.Fatalf("expected 1 session, got %s", w.Body.String())
	}

	w = performRequest(handler, register, http.MethodDelete, "/sessions/"+sess.SessionID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	w = performRequest(handler, register, http.MethodGet, "/sessions/"+sess.SessionID, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestImportRejectsInvalidPayload(t *testing.T) {
	t.Parallel()
	handler, _ := newTestHandler(t)

	register := func(e *gin.Engine) {
		e.POST("/profiles/import", handler.ImportProfiles)
	}

	w := performRequest(handler, register, http.MethodPost, "/profiles/import", `{"version":2,"profiles":[]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong version, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, w, &body)
	if body.Error.Code != "validation_error" {
		t.Fatalf("unexpected error code: %s", w.Body.String())
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	t.Parallel()
	source, _ := newTestHandler(t)
	target, _ := newTestHandler(t)

	registerSource := func(e *gin.Engine) {
		e.POST("/profiles", source.CreateProfile)
		e.GET("/profiles/export", source.ExportProfiles)
	}
	registerTarget := func(e *gin.Engine) {
		e.POST("/profiles/import", target.ImportProfiles)
		e.GET("/profiles", target.ListProfiles)
	}

	w := performRequest(source, registerSource, http.MethodPost, "/profiles", `{"name":"alpha"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", w.Code)
	}
	w = performRequest(source, registerSource, http.MethodGet, "/profiles/export", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}
	export := w.Body.String()

	w = performRequest(target, registerTarget, http.MethodPost, "/profiles/import", export)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}
	var result struct {
		Created []string `json:"created"`
		Skipped []string `json:"skipped"`
	}
	decodeBody(t, w, &result)
	if len(result.Created) != 1 || len(result.Skipped) != 0 {
		t.Fatalf("unexpected import result: %s", w.Body.String())
	}

	// Importing the same document again skips the existing name.
	w = performRequest(target, registerTarget, http.MethodPost, "/profiles/import", export)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	decodeBody(t, w, &result)
	if len(result.Created) != 0 || len(result.Skipped) != 1 {
		t.Fatalf("expected skip on re-import: %s", w.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	handler, _ := newTestHandler(t)

	register := func(e *gin.Engine) {
		e.GET("/healthz", handler.Health)
	}

	w := performRequest(handler, register, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	decodeBody(t, w, &body)
	if body.Status != "ok" || body.Database != "ok" {
		t.Fatalf("unexpected health payload: %s", w.Body.String())
	}
}
