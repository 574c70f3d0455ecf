package defaults

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesBuiltin(t *testing.T) {
	t.Parallel()

	d, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d != Builtin() {
		t.Fatalf("missing file must yield builtin defaults: %+v", d)
	}
}

func TestLoadOverridesFieldByField(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "defaults.yaml")
	doc := "llmEndpoint: databricks-gpt-oss\nllmMaxTokens: 512\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.LLMEndpoint != "databricks-gpt-oss" || d.LLMMaxTokens != 512 {
		t.Fatalf("overrides not applied: %+v", d)
	}
	builtin := Builtin()
	if d.LLMTemperature != builtin.LLMTemperature || d.SystemPrompt != builtin.SystemPrompt {
		t.Fatalf("untouched fields must keep builtin values: %+v", d)
	}
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "defaults.yaml")
	if err := os.WriteFile(path, []byte("llmEndpoint: [unclosed"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
