// Package api wires the HTTP surface: routes, middleware, and server
// lifecycle.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lakehouse-apps/chat-config-manager/internal/handlers"
)

// Options configures the HTTP server wiring.
type Options struct {
	APIToken       string
	GraphQLHandler http.Handler
}

// Server wraps the Gin engine and associated configuration.
type Server struct {
	engine *gin.Engine
}

// NewServer constructs a Server with all HTTP routes configured.
func NewServer(handler *handlers.Handler, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), requestIDMiddleware(), metricsMiddleware(), requestLogger())

	// Health + meta
	engine.GET("/healthz", handler.Health)
	engine.GET("/system/info", handler.SystemInfo)
	engine.GET("/openapi", handler.OpenAPISpec)
	engine.GET("/docs", handler.APIDocs)
	engine.GET("/events", handler.StreamEvents)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if opts.GraphQLHandler != nil {
		engine.GET("/graphql", gin.WrapH(opts.GraphQLHandler))
		engine.POST("/graphql", gin.WrapH(opts.GraphQLHandler))
	}

	// Chat sessions (end-user surface)
	sessions := engine.Group("/api/sessions")
	sessions.POST("", handler.CreateSession)
	sessions.GET("", handler.ListSessions)
	sessions.GET("/:id", handler.GetSession)
	sessions.PUT("/:id", handler.RenameSession)
	sessions.DELETE("/:id", handler.DeleteSession)
	sessions.GET("/:id/messages", handler.ListMessages)
	sessions.POST("/:id/chat", handler.Ask)
	engine.GET("/api/chat/requests/:requestId", handler.ChatRequestStatus)

	// Admin settings surface, token-protected when a token is set.
	settings := engine.Group("/api/settings")
	settings.Use(authMiddleware(opts.APIToken))

	settings.GET("/profiles", handler.ListProfiles)
	settings.POST("/profiles", handler.CreateProfile)
	settings.GET("/profiles/default", handler.GetDefaultProfile)
	settings.GET("/profiles/export", handler.ExportProfiles)
	settings.POST("/profiles/import", handler.ImportProfiles)
	settings.POST("/profiles/reload", handler.ReloadSettings)
	settings.GET("/profiles/:id", handler.GetProfile)
	settings.PUT("/profiles/:id", handler.UpdateProfile)
	settings.DELETE("/profiles/:id", handler.DeleteProfile)
	settings.POST("/profiles/:id/set-default", handler.SetDefaultProfile)
	settings.POST("/profiles/:id/duplicate", handler.DuplicateProfile)
	settings.POST("/profiles/:id/load", handler.LoadProfile)

	settings.GET("/ai-infra/:profileId", handler.GetAIInfraConfig)
	settings.PUT("/ai-infra/:profileId", handler.UpdateAIInfraConfig)
	settings.POST("/ai-infra/validate", handler.ValidateEndpoint)
	settings.GET("/ai-infra/endpoints/available", handler.AvailableEndpoints)

	settings.GET("/mlflow/:profileId", handler.GetMLflowConfig)
	settings.PUT("/mlflow/:profileId", handler.UpdateMLflowConfig)
	settings.POST("/mlflow/validate", handler.ValidateExperiment)

	settings.GET("/prompts/:profileId", handler.GetPromptsConfig)
	settings.PUT("/prompts/:profileId", handler.UpdatePromptsConfig)

	settings.GET("/history", handler.ListHistory)

	return &Server{engine: engine}
}

// Engine exposes the underlying Gin engine for advanced use (testing, etc.).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start launches the HTTP server on the provided address.
func (s *Server) Start(addr string) *http.Server {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()
	return srv
}
