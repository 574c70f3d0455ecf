// Package main is the entry point for the chat config manager service.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lakehouse-apps/chat-config-manager/config"
	"github.com/lakehouse-apps/chat-config-manager/internal/api"
	"github.com/lakehouse-apps/chat-config-manager/internal/chat"
	"github.com/lakehouse-apps/chat-config-manager/internal/configsvc"
	"github.com/lakehouse-apps/chat-config-manager/internal/dbx"
	"github.com/lakehouse-apps/chat-config-manager/internal/defaults"
	"github.com/lakehouse-apps/chat-config-manager/internal/events"
	"github.com/lakehouse-apps/chat-config-manager/internal/graphqlapi"
	"github.com/lakehouse-apps/chat-config-manager/internal/handlers"
	"github.com/lakehouse-apps/chat-config-manager/internal/profiles"
	"github.com/lakehouse-apps/chat-config-manager/internal/queue"
	"github.com/lakehouse-apps/chat-config-manager/internal/redisx"
	"github.com/lakehouse-apps/chat-config-manager/internal/sessions"
	"github.com/lakehouse-apps/chat-config-manager/internal/settings"
	"github.com/lakehouse-apps/chat-config-manager/internal/store"
	"github.com/lakehouse-apps/chat-config-manager/internal/validator"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 5 * time.Second
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting Chat Config Manager v%s", version)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	cfg := config.Load()
	log.Printf("Configuration loaded - database: %s, environment: %s", cfg.DatabaseDriver, cfg.Environment)

	st, err := store.Open(cfg.DatabaseDSN, cfg.DatabaseDriver)
	if err != nil {
		log.Fatalf("Failed to open datastore: %v", err)
	}
	defer st.Close()

	redisClient, err := redisx.NewClient(redisx.Config{
		Addr:        cfg.RedisAddr,
		Username:    cfg.RedisUsername,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		TLSEnabled:  cfg.RedisTLSEnabled,
		TLSInsecure: cfg.RedisTLSInsecure,
	})
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	if redisClient == nil {
		log.Println("Redis disabled (REDIS_ADDR not set); chat requests run in-process")
	}

	bus := events.NewBus(events.Options{
		Client:  redisClient,
		Logger:  log.Default(),
		Channel: cfg.EventsChannel,
	})

	workspace := dbx.New(cfg.DatabricksHost, cfg.DatabricksToken, 30*time.Second)
	var live *validator.Live
	var catalog *configsvc.Catalog
	var users settings.UserResolver
	var experiments chat.ExperimentEnsurer
	if workspace.Configured() {
		live = &validator.Live{Endpoints: workspace, Experiments: workspace}
		catalog = configsvc.NewCatalog(configsvc.CatalogOptions{
			Source: workspace,
			Redis:  redisClient,
			Logger: log.Default(),
			TTL:    cfg.EndpointCacheTTL,
		})
		users = workspace
		experiments = workspace
	} else {
		log.Println("Databricks workspace not configured; endpoint validation and chat are unavailable")
	}

	profileDefaults, err := defaults.Load(cfg.DefaultsPath)
	if err != nil {
		log.Fatalf("Failed to load profile defaults: %v", err)
	}

	loader := settings.NewLoader(st, users, cfg.FallbackUser, log.Default())
	if _, err := loader.Reload(rootCtx, 0); err != nil {
		log.Printf("Settings not loaded yet (create a profile to fix this): %v", err)
	}

	profileSvc := profiles.New(st, profileDefaults, bus, log.Default())
	configSvc := configsvc.New(st, live, catalog, bus, log.Default())
	sessionSvc := sessions.New(st, cfg.SessionLimit)

	var producer *queue.Producer
	if redisClient != nil {
		producer = queue.NewProducer(redisClient, cfg.ChatStream)
	}
	chatModel := chat.NewModel(workspace, cfg.ServingCallTimeout)
	chatSvc := chat.NewService(chat.Options{
		Store:       st,
		Loader:      loader,
		Model:       chatModel,
		Producer:    producer,
		Experiments: experiments,
		Bus:         bus,
		Logger:      log.Default(),
	})

	gqlHandler, err := graphqlapi.NewHandler(graphqlapi.Config{Store: st, Loader: loader})
	if err != nil {
		log.Fatalf("Failed to build GraphQL schema: %v", err)
	}

	handler := handlers.New(profileSvc, configSvc, sessionSvc, chatSvc, loader, bus, st, log.Default(), handlers.Options{
		Environment:  cfg.Environment,
		Version:      version,
		HistoryLimit: cfg.HistoryLimit,
	})

	server := api.NewServer(handler, api.Options{
		APIToken:       cfg.APIToken,
		GraphQLHandler: gqlHandler,
	})

	// Other replicas publish reload events through Redis; follow them
	// so every instance serves the same snapshot.
	go followReloads(rootCtx, bus, loader)

	srv := server.Start(":" + cfg.ServerPort)
	log.Printf("Server started on :%s", cfg.ServerPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	rootCancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && err != http.ErrServerClosed {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}

func followReloads(ctx context.Context, bus *events.Bus, loader *settings.Loader) {
	ch, cancel := bus.Subscribe(ctx)
	defer cancel()

	for evt := range ch {
		if evt.Type != events.TypeSettingsReloaded {
			continue
		}
		var profileID int64
		if data, ok := evt.Data.(map[string]interface{}); ok {
			// Numbers arrive as float64 after the JSON round trip.
			if v, ok := data["profileId"].(float64); ok {
				profileID = int64(v)
			}
		}
		if _, err := loader.Reload(ctx, profileID); err != nil {
			log.Printf("Snapshot refresh after reload event failed: %v", err)
		}
	}
}
