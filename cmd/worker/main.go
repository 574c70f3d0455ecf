// Package main runs the background worker that executes queued chat
// requests.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lakehouse-apps/chat-config-manager/config"
	"github.com/lakehouse-apps/chat-config-manager/internal/chat"
	"github.com/lakehouse-apps/chat-config-manager/internal/dbx"
	"github.com/lakehouse-apps/chat-config-manager/internal/events"
	"github.com/lakehouse-apps/chat-config-manager/internal/logutil"
	"github.com/lakehouse-apps/chat-config-manager/internal/queue"
	"github.com/lakehouse-apps/chat-config-manager/internal/redisx"
	"github.com/lakehouse-apps/chat-config-manager/internal/settings"
	"github.com/lakehouse-apps/chat-config-manager/internal/store"
	"github.com/lakehouse-apps/chat-config-manager/internal/worker"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting chat worker")

	cfg := config.Load()
	logutil.Info("worker_bootstrap", map[string]interface{}{
		"redisAddr":   cfg.RedisAddr,
		"chatStream":  cfg.ChatStream,
		"chatGroup":   cfg.ChatGroup,
		"concurrency": cfg.ChatWorkerCount,
		"database":    cfg.DatabaseDriver,
	})

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
		log.Fatal("REDIS_ADDR is required for the worker")
	}

	workspace := dbx.New(cfg.DatabricksHost, cfg.DatabricksToken, 30*time.Second)
	if !workspace.Configured() {
		log.Fatal("DATABRICKS_HOST and DATABRICKS_TOKEN are required for the worker")
	}

	bus := events.NewBus(events.Options{
		Client:  redisClient,
		Logger:  log.Default(),
		Channel: cfg.EventsChannel,
	})

	loader := settings.NewLoader(st, workspace, cfg.FallbackUser, log.Default())
	chatSvc := chat.NewService(chat.Options{
		Store:       st,
		Loader:      loader,
		Model:       chat.NewModel(workspace, cfg.ServingCallTimeout),
		Experiments: workspace,
		Bus:         bus,
		Logger:      log.Default(),
	})

	// Track reloads triggered through the API so queued requests use
	// the same snapshot the server does.
	go func() {
		ch, unsubscribe := bus.Subscribe(context.Background())
		defer unsubscribe()
		for evt := range ch {
			if evt.Type != events.TypeSettingsReloaded {
				continue
			}
			var profileID int64
			if data, ok := evt.Data.(map[string]interface{}); ok {
				if v, ok := data["profileId"].(float64); ok {
					profileID = int64(v)
				}
			}
			if _, err := loader.Reload(context.Background(), profileID); err != nil {
				log.Printf("Snapshot refresh failed: %v", err)
			}
		}
	}()

	consumer := queue.NewConsumer(redisClient, cfg.ChatStream, cfg.ChatGroup, "")
	runner := worker.New(worker.Options{
		Consumer:    consumer,
		Chat:        chatSvc,
		Logger:      log.Default(),
		Concurrency: cfg.ChatWorkerCount,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Worker shutting down...")
		cancel()
	}()

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Worker stopped: %v", err)
	}
}
