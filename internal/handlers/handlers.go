// Package handlers provides HTTP request handlers for the chat config
// manager API.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lakehouse-apps/chat-config-manager/internal/apperr"
	"github.com/lakehouse-apps/chat-config-manager/internal/chat"
	"github.com/lakehouse-apps/chat-config-manager/internal/configsvc"
	"github.com/lakehouse-apps/chat-config-manager/internal/events"
	"github.com/lakehouse-apps/chat-config-manager/internal/profiles"
	"github.com/lakehouse-apps/chat-config-manager/internal/sessions"
	"github.com/lakehouse-apps/chat-config-manager/internal/settings"
)

// Pinger checks datastore connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
	Driver() string
}

// Options configures handler runtime behavior.
type Options struct {
	Environment  string
	Version      string
	HistoryLimit int
}

// Handler encapsulates dependencies for HTTP handlers.
type Handler struct {
	profiles *profiles.Service
	configs  *configsvc.Service
	sessions *sessions.Service
	chat     *chat.Service
	loader   *settings.Loader
	bus      *events.Bus
	db       Pinger
	logger   *log.Logger
	opts     Options
	started  time.Time
}

// New creates a new Handler instance.
func New(ps *profiles.Service, cs *configsvc.Service, ss *sessions.Service, ch *chat.Service,
	loader *settings.Loader, bus *events.Bus, db Pinger, logger *log.Logger, opts Options) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 100
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &Handler{
		profiles: ps,
		configs:  cs,
		sessions: ss,
		chat:     ch,
		loader:   loader,
		bus:      bus,
		db:       db,
		logger:   logger,
		opts:     opts,
		started:  time.Now(),
	}
}

// writeError maps an application error to its HTTP status and wire code.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Printf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    apperr.Code(err),
			"message": err.Error(),
		},
	})
}

// actor returns the identity recorded in change history.
func actor(c *gin.Context) string {
	if user := c.GetHeader("X-User"); user != "" {
		return user
	}
	return "system"
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s: %s", name, c.Param(name))
	}
	return id, nil
}

// Health reports service liveness and datastore connectivity.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	status := http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		dbStatus = fmt.Sprintf("unavailable: %v", err)
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":   "ok",
		"database": dbStatus,
		"uptime":   time.Since(h.started).Round(time.Second).String(),
	})
}

// SystemInfo describes the running service and its active settings.
func (h *Handler) SystemInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     "chat-config-manager",
		"version":     h.opts.Version,
		"environment": h.opts.Environment,
		"goVersion":   runtime.Version(),
		"database":    h.db.Driver(),
		"settings":    h.loader.Describe(),
	})
}

// StreamEvents pushes configuration change events to the client as SSE.
func (h *Handler) StreamEvents(c *gin.Context) {
	ch, cancel := h.bus.Subscribe(c.Request.Context())
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case evt, ok := <-ch:
			if !ok {
				return false
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				return true
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload)
			return true
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
