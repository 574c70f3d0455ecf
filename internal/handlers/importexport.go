package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"

	"github.com/lakehouse-apps/chat-config-manager/internal/apperr"
	"github.com/lakehouse-apps/chat-config-manager/internal/store"
)

// profileExportSchema validates import payloads before any profile is
// touched.
const profileExportSchema = `{
	"type": "object",
	"required": ["version", "profiles"],
	"properties": {
		"version": {"type": "integer", "enum": [1]},
		"profiles": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "aiInfra", "mlflow", "prompts"],
				"properties": {
					"name": {"type": "string", "minLength": 1, "maxLength": 100},
					"description": {"type": "string"},
					"aiInfra": {
						"type": "object",
						"required": ["llmEndpoint", "llmTemperature", "llmMaxTokens"],
						"properties": {
							"llmEndpoint": {"type": "string", "minLength": 1},
							"llmTemperature": {"type": "number", "minimum": 0, "maximum": 1},
							"llmMaxTokens": {"type": "integer", "minimum": 1}
						}
					},
					"mlflow": {
						"type": "object",
						"required": ["experimentName"],
						"properties": {
							"experimentName": {"type": "string", "pattern": "^/"}
						}
					},
					"prompts": {
						"type": "object",
						"required": ["systemPrompt", "userPromptTemplate"],
						"properties": {
							"systemPrompt": {"type": "string"},
							"userPromptTemplate": {"type": "string", "pattern": "\\{question\\}"}
						}
					}
				}
			}
		}
	}
}`

type exportedProfile struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsDefault   bool   `json:"isDefault,omitempty"`
	AIInfra     struct {
		LLMEndpoint    string  `json:"llmEndpoint"`
		LLMTemperature float64 `json:"llmTemperature"`
		LLMMaxTokens   int     `json:"llmMaxTokens"`
	} `json:"aiInfra"`
	MLflow struct {
		ExperimentName string `json:"experimentName"`
	} `json:"mlflow"`
	Prompts struct {
		SystemPrompt       string `json:"systemPrompt"`
		UserPromptTemplate string `json:"userPromptTemplate"`
	} `json:"prompts"`
}

type profileExport struct {
	Version    int               `json:"version"`
	ExportedAt string            `json:"exportedAt,omitempty"`
	Profiles   []exportedProfile `json:"profiles"`
}

// ExportProfiles dumps every profile with its sub-configs as a portable
// document.
func (h *Handler) ExportProfiles(c *gin.Context) {
	list, err := h.profiles.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := profileExport{Version: 1, ExportedAt: time.Now().UTC().Format(time.RFC3339)}
	for _, p := range list {
		detail, err := h.profiles.Get(c.Request.Context(), p.ID)
		if err != nil {
			h.writeError(c, err)
			return
		}
		var ep exportedProfile
		ep.Name = detail.Name
		ep.Description = detail.Description
		ep.IsDefault = detail.IsDefault
		if detail.AIInfra != nil {
			ep.AIInfra.LLMEndpoint = detail.AIInfra.LLMEndpoint
			ep.AIInfra.LLMTemperature = detail.AIInfra.LLMTemperature
			ep.AIInfra.LLMMaxTokens = detail.AIInfra.LLMMaxTokens
		}
		if detail.MLflow != nil {
			ep.MLflow.ExperimentName = detail.MLflow.ExperimentName
		}
		if detail.Prompts != nil {
			ep.Prompts.SystemPrompt = detail.Prompts.SystemPrompt
			ep.Prompts.UserPromptTemplate = detail.Prompts.UserPromptTemplate
		}
		out.Profiles = append(out.Profiles, ep)
	}
	if out.Profiles == nil {
		out.Profiles = []exportedProfile{}
	}
	c.JSON(http.StatusOK, out)
}

// ImportProfiles creates profiles from an export document. Profiles
// whose name already exists are skipped. The payload is validated
// against the export schema before anything is written.
func (h *Handler) ImportProfiles(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		h.writeError(c, apperr.Validation("unreadable request body"))
		return
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(profileExportSchema),
		gojsonschema.NewBytesLoader(body),
	)
	if err != nil {
		h.writeError(c, apperr.Validation("invalid import payload: %v", err))
		return
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  gin.H{"code": "validation_error", "message": "import payload failed schema validation"},
			"issues": issues,
		})
		return
	}

	var doc profileExport
	if err := json.Unmarshal(body, &doc); err != nil {
		h.writeError(c, apperr.Validation("invalid import payload: %v", err))
		return
	}

	existing := map[string]bool{}
	list, err := h.profiles.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	for _, p := range list {
		existing[p.Name] = true
	}

	who := actor(c)
	created := []string{}
	skipped := []string{}
	for _, ep := range doc.Profiles {
		if existing[ep.Name] {
			skipped = append(skipped, ep.Name)
			continue
		}
		detail, err := h.profiles.Create(c.Request.Context(), ep.Name, ep.Description, 0, who)
		if err != nil {
			h.writeError(c, err)
			return
		}
		if _, err := h.configs.UpdateAIInfra(c.Request.Context(), detail.ID, store.AIInfraUpdate{
			LLMEndpoint:    &ep.AIInfra.LLMEndpoint,
			LLMTemperature: &ep.AIInfra.LLMTemperature,
			LLMMaxTokens:   &ep.AIInfra.LLMMaxTokens,
		}, who); err != nil {
			h.writeError(c, err)
			return
		}
		if _, err := h.configs.UpdateMLflow(c.Request.Context(), detail.ID, ep.MLflow.ExperimentName, who); err != nil {
			h.writeError(c, err)
			return
		}
		if _, err := h.configs.UpdatePrompts(c.Request.Context(), detail.ID, store.PromptsUpdate{
			SystemPrompt:       &ep.Prompts.SystemPrompt,
			UserPromptTemplate: &ep.Prompts.UserPromptTemplate,
		}, who); err != nil {
			h.writeError(c, err)
			return
		}
		created = append(created, ep.Name)
	}

	c.JSON(http.StatusOK, gin.H{"created": created, "skipped": skipped})
}
