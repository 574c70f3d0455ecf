package dbx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestListEndpointsSortsFoundationModelsFirst(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/2.0/serving-endpoints" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected auth header %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"endpoints": []map[string]interface{}{
				{"name": "zeta-custom"},
				{"name": "databricks-gpt-oss"},
				{"name": "alpha-custom"},
				{"name": "databricks-claude-sonnet-4-5"},
			},
		})
	}))
	t.Cleanup(server.Close)

	client := New(server.URL, "test-token", time.Second)
	endpoints, err := client.ListEndpoints(context.Background())
	if err != nil {
		t.Fatalf("ListEndpoints: %v", err)
	}

	want := []string{"databricks-claude-sonnet-4-5", "databricks-gpt-oss", "alpha-custom", "zeta-custom"}
	if len(endpoints) != len(want) {
		t.Fatalf("expected %d endpoints got %d", len(want), len(endpoints))
	}
	for i, name := range want {
		if endpoints[i].Name != name {
			t.Fatalf("position %d: expected %s got %s", i, name, endpoints[i].Name)
		}
	}
}

func TestChatParsesChoicesResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/serving-endpoints/databricks-claude-sonnet-4-5/invocations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["max_tokens"].(float64) != 128 {
			t.Errorf("unexpected max_tokens %v", body["max_tokens"])
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "claude-sonnet-4-5",
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "hello there"}},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13},
		})
	}))
	t.Cleanup(server.Close)

	client := New(server.URL, "test-token", time.Second)
	result, err := client.Chat(context.Background(), "databricks-claude-sonnet-4-5",
		[]ChatMessage{{Role: "user", Content: "hi"}}, ChatParams{Temperature: 0.5, MaxTokens: 128})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if result.Content != "hello there" || result.Model != "claude-sonnet-4-5" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Usage == nil || result.Usage.TotalTokens != 13 {
		t.Fatalf("unexpected usage: %+v", result.Usage)
	}
}

func TestChatParsesPredictionsResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"predictions": []string{"pyfunc answer"},
		})
	}))
	t.Cleanup(server.Close)

	client := New(server.URL, "test-token", time.Second)
	result, err := client.Chat(context.Background(), "custom-model", nil, ChatParams{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if result.Content != "pyfunc answer" {
		t.Fatalf("unexpected content: %q", result.Content)
	}
}

func TestChatRejectsEmptyResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{})
	}))
	t.Cleanup(server.Close)

	client := New(server.URL, "test-token", time.Second)
	if _, err := client.Chat(context.Background(), "custom-model", nil, ChatParams{}); err == nil {
		t.Fatalf("expected error for empty completion")
	}
}

func TestExperimentExists(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("experiment_name")
		switch name {
		case "/Shared/present":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"experiment": map[string]string{"experiment_id": "123"},
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error_code": "RESOURCE_DOES_NOT_EXIST",
				"message":    "experiment not found",
			})
		}
	}))
	t.Cleanup(server.Close)

	client := New(server.URL, "test-token", time.Second)

	exists, err := client.ExperimentExists(context.Background(), "/Shared/present")
	if err != nil || !exists {
		t.Fatalf("expected present experiment: %v %v", exists, err)
	}
	exists, err = client.ExperimentExists(context.Background(), "/Shared/absent")
	if err != nil || exists {
		t.Fatalf("expected absent experiment: %v %v", exists, err)
	}
}

func TestCurrentUser(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/2.0/preview/scim/v2/Me" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"userName": "alice@example.com"})
	}))
	t.Cleanup(server.Close)

	client := New(server.URL, "test-token", time.Second)
	name, err := client.CurrentUser(context.Background())
	if err != nil || name != "alice@example.com" {
		t.Fatalf("unexpected user: %q %v", name, err)
	}
}
