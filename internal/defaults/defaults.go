// Package defaults holds the sub-config values used when a profile is
// created without a source to copy from.
package defaults

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// ProfileDefaults contains the initial values for a new profile's sub-configs.
type ProfileDefaults struct {
	LLMEndpoint        string  `json:"llmEndpoint"`
	LLMTemperature     float64 `json:"llmTemperature"`
	LLMMaxTokens       int     `json:"llmMaxTokens"`
	ExperimentName     string  `json:"experimentName"`
	SystemPrompt       string  `json:"systemPrompt"`
	UserPromptTemplate string  `json:"userPromptTemplate"`
}

const defaultSystemPrompt = `You are a helpful AI assistant powered by Databricks. You provide clear, accurate, and concise responses to user questions.

Format your responses using markdown for better readability:
- Use **bold** for emphasis
- Use bullet points for lists
- Use code blocks with syntax highlighting for code snippets
- Use headings to organize longer responses

Be friendly, professional, and helpful. If you don't know something, admit it rather than making up information.`

// Builtin returns the compiled-in defaults.
func Builtin() ProfileDefaults {
	return ProfileDefaults{
		LLMEndpoint:        "databricks-claude-sonnet-4-5",
		LLMTemperature:     0.7,
		LLMMaxTokens:       2048,
		ExperimentName:     "/Workspace/Users/{username}/chat-template-experiments",
		SystemPrompt:       defaultSystemPrompt,
		UserPromptTemplate: "{question}",
	}
}

// Load returns the builtin defaults, overridden field-by-field from the YAML
// file at path when one is configured. A missing file is not an error.
func Load(path string) (ProfileDefaults, error) {
	d := Builtin()
	if path == "" {
		return d, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return d, fmt.Errorf("read profile defaults: %w", err)
	}
	var override ProfileDefaults
	if err := yaml.Unmarshal(data, &override); err != nil {
		return d, fmt.Errorf("parse profile defaults %s: %w", path, err)
	}
	if override.LLMEndpoint != "" {
		d.LLMEndpoint = override.LLMEndpoint
	}
	if override.LLMTemperature != 0 {
		d.LLMTemperature = override.LLMTemperature
	}
	if override.LLMMaxTokens != 0 {
		d.LLMMaxTokens = override.LLMMaxTokens
	}
	if override.ExperimentName != "" {
		d.ExperimentName = override.ExperimentName
	}
	if override.SystemPrompt != "" {
		d.SystemPrompt = override.SystemPrompt
	}
	if override.UserPromptTemplate != "" {
		d.UserPromptTemplate = override.UserPromptTemplate
	}
	return d, nil
}
