// Package main initializes the database schema and seeds the first
// configuration profile so the app starts with a usable default.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/lakehouse-apps/chat-config-manager/config"
	"github.com/lakehouse-apps/chat-config-manager/internal/defaults"
	"github.com/lakehouse-apps/chat-config-manager/internal/profiles"
	"github.com/lakehouse-apps/chat-config-manager/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	name := flag.String("name", "Default", "name of the seeded profile")
	description := flag.String("description", "Initial configuration profile", "description of the seeded profile")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	st, err := store.Open(cfg.DatabaseDSN, cfg.DatabaseDriver)
	if err != nil {
		log.Fatalf("Failed to open datastore: %v", err)
	}
	defer st.Close()
	log.Printf("Schema applied (%s)", cfg.DatabaseDriver)

	count, err := st.CountProfiles(ctx)
	if err != nil {
		log.Fatalf("Failed to inspect profiles: %v", err)
	}
	if count > 0 {
		log.Printf("Found %d existing profile(s), nothing to seed", count)
		return
	}

	profileDefaults, err := defaults.Load(cfg.DefaultsPath)
	if err != nil {
		log.Fatalf("Failed to load profile defaults: %v", err)
	}

	svc := profiles.New(st, profileDefaults, nil, log.Default())
	detail, err := svc.Create(ctx, *name, *description, 0, "initdb")
	if err != nil {
		log.Fatalf("Failed to seed profile: %v", err)
	}
	log.Printf("Seeded profile %d (%s), default=%v, endpoint=%s",
		detail.ID, detail.Name, detail.IsDefault, detail.AIInfra.LLMEndpoint)
}
