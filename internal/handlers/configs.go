package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lakehouse-apps/chat-config-manager/internal/apperr"
	"github.com/lakehouse-apps/chat-config-manager/internal/store"
)

type aiInfraUpdateRequest struct {
	LLMEndpoint    *string  `json:"llmEndpoint,omitempty"`
	LLMTemperature *float64 `json:"llmTemperature,omitempty"`
	LLMMaxTokens   *int     `json:"llmMaxTokens,omitempty"`
}

type mlflowUpdateRequest struct {
	ExperimentName string `json:"experimentName" binding:"required"`
}

type promptsUpdateRequest struct {
	SystemPrompt       *string `json:"systemPrompt,omitempty"`
	UserPromptTemplate *string `json:"userPromptTemplate,omitempty"`
}

// GetAIInfraConfig returns the AI infra sub-config of a profile.
func (h *Handler) GetAIInfraConfig(c *gin.Context) {
	id, err := pathID(c, "profileId")
	if err != nil {
		h.writeError(c, err)
		return
	}
	cfg, err := h.configs.GetAIInfra(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateAIInfraConfig applies AI infra field updates.
func (h *Handler) UpdateAIInfraConfig(c *gin.Context) {
	id, err := pathID(c, "profileId")
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req aiInfraUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "validation_error", "message": err.Error()}})
		return
	}
	cfg, err := h.configs.UpdateAIInfra(c.Request.Context(), id, store.AIInfraUpdate{
		LLMEndpoint:    req.LLMEndpoint,
		LLMTemperature: req.LLMTemperature,
		LLMMaxTokens:   req.LLMMaxTokens,
	}, actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// ValidateEndpoint checks a serving endpoint against the workspace.
func (h *Handler) ValidateEndpoint(c *gin.Context) {
	name := c.Query("endpoint")
	result, err := h.configs.ValidateEndpoint(c.Request.Context(), name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AvailableEndpoints lists serving endpoints visible to the app.
func (h *Handler) AvailableEndpoints(c *gin.Context) {
	endpoints := h.configs.AvailableEndpoints(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"endpoints": endpoints, "count": len(endpoints)})
}

// GetMLflowConfig returns the MLflow sub-config of a profile.
func (h *Handler) GetMLflowConfig(c *gin.Context) {
	id, err := pathID(c, "profileId")
	if err != nil {
		h.writeError(c, err)
		return
	}
	cfg, err := h.configs.GetMLflow(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateMLflowConfig applies a new experiment name.
func (h *Handler) UpdateMLflowConfig(c *gin.Context) {
	id, err := pathID(c, "profileId")
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req mlflowUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "validation_error", "message": err.Error()}})
		return
	}
	cfg, err := h.configs.UpdateMLflow(c.Request.Context(), id, req.ExperimentName, actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// ValidateExperiment checks an MLflow experiment against the workspace.
func (h *Handler) ValidateExperiment(c *gin.Context) {
	name := c.Query("experiment_name")
	result, err := h.configs.ValidateExperiment(c.Request.Context(), name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetPromptsConfig returns the prompts sub-config of a profile.
func (h *Handler) GetPromptsConfig(c *gin.Context) {
	id, err := pathID(c, "profileId")
	if err != nil {
		h.writeError(c, err)
		return
	}
	cfg, err := h.configs.GetPrompts(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdatePromptsConfig applies prompt field updates.
func (h *Handler) UpdatePromptsConfig(c *gin.Context) {
	id, err := pathID(c, "profileId")
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req promptsUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "validation_error", "message": err.Error()}})
		return
	}
	cfg, err := h.configs.UpdatePrompts(c.Request.Context(), id, store.PromptsUpdate{
		SystemPrompt:       req.SystemPrompt,
		UserPromptTemplate: req.UserPromptTemplate,
	}, actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// ListHistory returns change history entries, newest first.
func (h *Handler) ListHistory(c *gin.Context) {
	filter := store.HistoryFilter{Limit: h.opts.HistoryLimit}
	if raw := c.Query("profile_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			h.writeError(c, apperr.Validation("invalid profile_id: %s", raw))
			return
		}
		filter.ProfileID = id
	}
	if domain := c.Query("domain"); domain != "" {
		switch domain {
		case store.DomainProfile, store.DomainAIInfra, store.DomainMLflow, store.DomainPrompts:
			filter.Domain = domain
		default:
			h.writeError(c, apperr.Validation("invalid domain: %s", domain))
			return
		}
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			h.writeError(c, apperr.Validation("invalid limit: %s", raw))
			return
		}
		if limit < filter.Limit {
			filter.Limit = limit
		}
	}

	entries, err := h.configs.History(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if entries == nil {
		entries = []*store.HistoryEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"history": entries, "count": len(entries)})
}
