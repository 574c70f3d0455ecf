package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lakehouse-apps/chat-config-manager/internal/apperr"
	"github.com/lakehouse-apps/chat-config-manager/internal/store"
)

type createSessionRequest struct {
	UserID string `json:"userId,omitempty"`
	Title  string `json:"title,omitempty"`
}

type renameSessionRequest struct {
	Title string `json:"title" binding:"required"`
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

// CreateSession starts a new chat session.
func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "validation_error", "message": err.Error()}})
		return
	}
	sess, err := h.sessions.Create(c.Request.Context(), req.UserID, req.Title)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// ListSessions returns sessions, most recently active first.
func (h *Handler) ListSessions(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(c, apperr.Validation("invalid limit: %s", raw))
			return
		}
		limit = n
	}
	list, err := h.sessions.List(c.Request.Context(), c.Query("user_id"), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if list == nil {
		list = []*store.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list, "count": len(list)})
}

// GetSession returns one session.
func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// RenameSession changes a session title.
func (h *Handler) RenameSession(c *gin.Context) {
	var req renameSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "validation_error", "message": err.Error()}})
		return
	}
	sess, err := h.sessions.Rename(c.Request.Context(), c.Param("id"), req.Title)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// DeleteSession removes a session with its messages and requests.
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

// ListMessages returns a session's messages oldest first.
func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.sessions.Messages(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if msgs == nil {
		msgs = []*store.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "count": len(msgs)})
}

// Ask accepts a question for asynchronous completion and returns the
// request id to poll.
func (h *Handler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "validation_error", "message": err.Error()}})
		return
	}
	request, err := h.chat.Ask(c.Request.Context(), c.Param("id"), req.Question)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, request)
}

// ChatRequestStatus reports the state of an asynchronous chat request.
func (h *Handler) ChatRequestStatus(c *gin.Context) {
	request, err := h.chat.Status(c.Request.Context(), c.Param("requestId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}
