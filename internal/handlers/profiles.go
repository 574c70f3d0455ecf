package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lakehouse-apps/chat-config-manager/internal/events"
	"github.com/lakehouse-apps/chat-config-manager/internal/store"
)

type createProfileRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description,omitempty"`
	CopyFromID  int64  `json:"copyFromId,omitempty"`
}

type updateProfileRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type duplicateProfileRequest struct {
	NewName string `json:"newName" binding:"required"`
}

// ListProfiles returns all profiles ordered by name.
func (h *Handler) ListProfiles(c *gin.Context) {
	list, err := h.profiles.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if list == nil {
		list = []*store.Profile{}
	}
	c.JSON(http.StatusOK, gin.H{"profiles": list, "count": len(list)})
}

// GetProfile returns one profile with its sub-configs.
func (h *Handler) GetProfile(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	detail, err := h.profiles.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GetDefaultProfile returns the profile currently marked default.
func (h *Handler) GetDefaultProfile(c *gin.Context) {
	detail, err := h.profiles.GetDefault(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// CreateProfile adds a new profile, optionally cloned from another.
func (h *Handler) CreateProfile(c *gin.Context) {
	var req createProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "validation_error", "message": err.Error()}})
		return
	}
	detail, err := h.profiles.Create(c.Request.Context(), req.Name, req.Description, req.CopyFromID, actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

// UpdateProfile renames a profile or changes its description.
func (h *Handler) UpdateProfile(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "validation_error", "message": err.Error()}})
		return
	}
	detail, err := h.profiles.Update(c.Request.Context(), id, req.Name, req.Description, actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// DeleteProfile removes a profile. Deleting the default is forbidden.
func (h *Handler) DeleteProfile(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.profiles.Delete(c.Request.Context(), id, actor(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// SetDefaultProfile marks a profile as the default.
func (h *Handler) SetDefaultProfile(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	detail, err := h.profiles.SetDefault(c.Request.Context(), id, actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// DuplicateProfile clones a profile under a new name.
func (h *Handler) DuplicateProfile(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req duplicateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "validation_error", "message": err.Error()}})
		return
	}
	detail, err := h.profiles.Duplicate(c.Request.Context(), id, req.NewName, actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

// LoadProfile switches the active settings snapshot to a profile.
func (h *Handler) LoadProfile(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	snap, err := h.loader.Reload(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.publishReload(c, snap.ProfileID)
	c.JSON(http.StatusOK, gin.H{"loaded": true, "settings": snap})
}

// ReloadSettings re-resolves the active profile into a fresh snapshot.
func (h *Handler) ReloadSettings(c *gin.Context) {
	snap, err := h.loader.Reload(c.Request.Context(), 0)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.publishReload(c, snap.ProfileID)
	c.JSON(http.StatusOK, gin.H{"reloaded": true, "settings": snap})
}

func (h *Handler) publishReload(c *gin.Context, profileID int64) {
	if h.bus == nil {
		return
	}
	err := h.bus.Publish(c.Request.Context(), events.TypeSettingsReloaded,
		map[string]interface{}{"profileId": profileID})
	if err != nil {
		h.logger.Printf("handlers: publish reload event failed: %v", err)
	}
}
