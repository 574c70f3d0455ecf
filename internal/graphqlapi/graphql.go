// Package graphqlapi serves a read-only GraphQL view over profiles,
// change history, chat sessions, and the active settings snapshot.
package graphqlapi

import (
	"net/http"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"

	"github.com/lakehouse-apps/chat-config-manager/internal/settings"
	"github.com/lakehouse-apps/chat-config-manager/internal/store"
)

// Config wires the GraphQL schema.
type Config struct {
	Store  *store.Store
	Loader *settings.Loader
}

// NewHandler returns an http.Handler that serves /graphql requests.
func NewHandler(cfg Config) (http.Handler, error) {
	builder := schemaBuilder{cfg: cfg}
	schema, err := builder.buildSchema()
	if err != nil {
		return nil, err
	}

	return handler.New(&handler.Config{
		Schema:   schema,
		Pretty:   true,
		GraphiQL: true,
	}), nil
}

type schemaBuilder struct {
	cfg Config
}

func (b schemaBuilder) buildSchema() (*graphql.Schema, error) {
	jsonScalar := graphql.NewScalar(graphql.ScalarConfig{
		Name: "JSON",
		Serialize: func(value interface{}) interface{} {
			return value
		},
	})

	aiInfraType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AIInfraConfig",
		Fields: graphql.Fields{
			"llmEndpoint":    {Type: graphql.NewNonNull(graphql.String)},
			"llmTemperature": {Type: graphql.NewNonNull(graphql.Float)},
			"llmMaxTokens":   {Type: graphql.NewNonNull(graphql.Int)},
		},
	})

	mlflowType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MLflowConfig",
		Fields: graphql.Fields{
			"experimentName": {Type: graphql.NewNonNull(graphql.String)},
		},
	})

	promptsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PromptsConfig",
		Fields: graphql.Fields{
			"systemPrompt":       {Type: graphql.NewNonNull(graphql.String)},
			"userPromptTemplate": {Type: graphql.NewNonNull(graphql.String)},
		},
	})

	profileType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Profile",
		Fields: graphql.Fields{
			"id":          {Type: graphql.NewNonNull(graphql.ID)},
			"name":        {Type: graphql.NewNonNull(graphql.String)},
			"description": {Type: graphql.String},
			"isDefault":   {Type: graphql.NewNonNull(graphql.Boolean)},
			"createdAt":   {Type: graphql.String},
			"createdBy":   {Type: graphql.String},
			"updatedAt":   {Type: graphql.String},
			"updatedBy":   {Type: graphql.String},
			"aiInfra":     {Type: aiInfraType},
			"mlflow":      {Type: mlflowType},
			"prompts":     {Type: promptsType},
		},
	})

	historyType := graphql.NewObject(graphql.ObjectConfig{
		Name: "HistoryEntry",
		Fields: graphql.Fields{
			"id":        {Type: graphql.NewNonNull(graphql.ID)},
			"profileId": {Type: graphql.NewNonNull(graphql.Int)},
			"domain":    {Type: graphql.NewNonNull(graphql.String)},
			"action":    {Type: graphql.NewNonNull(graphql.String)},
			"changedBy": {Type: graphql.NewNonNull(graphql.String)},
			"changes":   {Type: jsonScalar},
			"timestamp": {Type: graphql.String},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"sessionId":    {Type: graphql.NewNonNull(graphql.ID)},
			"userId":       {Type: graphql.String},
			"title":        {Type: graphql.String},
			"createdAt":    {Type: graphql.String},
			"lastActivity": {Type: graphql.String},
			"isProcessing": {Type: graphql.Boolean},
		},
	})

	snapshotType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SettingsSnapshot",
		Fields: graphql.Fields{
			"profileId":      {Type: graphql.NewNonNull(graphql.Int)},
			"profileName":    {Type: graphql.NewNonNull(graphql.String)},
			"llmEndpoint":    {Type: graphql.NewNonNull(graphql.String)},
			"llmTemperature": {Type: graphql.NewNonNull(graphql.Float)},
			"llmMaxTokens":   {Type: graphql.NewNonNull(graphql.Int)},
			"experimentName": {Type: graphql.NewNonNull(graphql.String)},
			"loadedAt":       {Type: graphql.String},
		},
	})

	queryFields := graphql.Fields{
		"profiles": {
			Type: graphql.NewList(profileType),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				list, err := b.cfg.Store.ListProfiles(p.Context)
				if err != nil {
					return nil, err
				}
				out := make([]interface{}, 0, len(list))
				for _, prof := range list {
					detail, err := b.cfg.Store.GetProfile(p.Context, prof.ID)
					if err != nil {
						return nil, err
					}
					out = append(out, mapProfile(detail))
				}
				return out, nil
			},
		},
		"profile": {
			Type: profileType,
			Args: graphql.FieldConfigArgument{
				"id": {Type: graphql.NewNonNull(graphql.Int)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				id, _ := p.Args["id"].(int)
				detail, err := b.cfg.Store.GetProfile(p.Context, int64(id))
				if err != nil {
					return nil, err
				}
				return mapProfile(detail), nil
			},
		},
		"defaultProfile": {
			Type: profileType,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				detail, err := b.cfg.Store.GetDefaultProfile(p.Context)
				if err != nil {
					return nil, err
				}
				return mapProfile(detail), nil
			},
		},
		"history": {
			Type: graphql.NewList(historyType),
			Args: graphql.FieldConfigArgument{
				"profileId": {Type: graphql.Int},
				"domain":    {Type: graphql.String},
				"limit":     {Type: graphql.Int},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				filter := store.HistoryFilter{Limit: 100}
				if id, ok := p.Args["profileId"].(int); ok {
					filter.ProfileID = int64(id)
				}
				if domain, ok := p.Args["domain"].(string); ok {
					filter.Domain = domain
				}
				if limit, ok := p.Args["limit"].(int); ok && limit > 0 {
					filter.Limit = limit
				}
				entries, err := b.cfg.Store.ListHistory(p.Context, filter)
				if err != nil {
					return nil, err
				}
				out := make([]interface{}, 0, len(entries))
				for _, e := range entries {
					out = append(out, mapHistory(e))
				}
				return out, nil
			},
		},
		"sessions": {
			Type: graphql.NewList(sessionType),
			Args: graphql.FieldConfigArgument{
				"userId": {Type: graphql.String},
				"limit":  {Type: graphql.Int},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				userID, _ := p.Args["userId"].(string)
				limit := 50
				if l, ok := p.Args["limit"].(int); ok && l > 0 {
					limit = l
				}
				list, err := b.cfg.Store.ListSessions(p.Context, userID, limit)
				if err != nil {
					return nil, err
				}
				out := make([]interface{}, 0, len(list))
				for _, s := range list {
					out = append(out, mapSession(s))
				}
				return out, nil
			},
		},
		"activeSettings": {
			Type: snapshotType,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				if b.cfg.Loader == nil {
					return nil, nil
				}
				snap := b.cfg.Loader.Current()
				if snap == nil {
					return nil, nil
				}
				return mapSnapshot(snap), nil
			},
		},
	}

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: queryFields,
		}),
	})
	if err != nil {
		return nil, err
	}
	return &schema, nil
}

func mapProfile(detail *store.ProfileDetail) map[string]interface{} {
	if detail == nil {
		return nil
	}
	out := map[string]interface{}{
		"id":          detail.ID,
		"name":        detail.Name,
		"description": detail.Description,
		"isDefault":   detail.IsDefault,
		"createdAt":   detail.CreatedAt.Format(time.RFC3339),
		"createdBy":   detail.CreatedBy,
		"updatedAt":   detail.UpdatedAt.Format(time.RFC3339),
		"updatedBy":   detail.UpdatedBy,
	}
	if detail.AIInfra != nil {
		out["aiInfra"] = map[string]interface{}{
			"llmEndpoint":    detail.AIInfra.LLMEndpoint,
			"llmTemperature": detail.AIInfra.LLMTemperature,
			"llmMaxTokens":   detail.AIInfra.LLMMaxTokens,
		}
	}
	if detail.MLflow != nil {
		out["mlflow"] = map[string]interface{}{
			"experimentName": detail.MLflow.ExperimentName,
		}
	}
	if detail.Prompts != nil {
		out["prompts"] = map[string]interface{}{
			"systemPrompt":       detail.Prompts.SystemPrompt,
			"userPromptTemplate": detail.Prompts.UserPromptTemplate,
		}
	}
	return out
}

func mapHistory(e *store.HistoryEntry) map[string]interface{} {
	return map[string]interface{}{
		"id":        e.ID,
		"profileId": e.ProfileID,
		"domain":    e.Domain,
		"action":    e.Action,
		"changedBy": e.ChangedBy,
		"changes":   e.Changes,
		"timestamp": e.Timestamp.Format(time.RFC3339),
	}
}

func mapSession(s *store.Session) map[string]interface{} {
	return map[string]interface{}{
		"sessionId":    s.SessionID,
		"userId":       s.UserID,
		"title":        s.Title,
		"createdAt":    s.CreatedAt.Format(time.RFC3339),
		"lastActivity": s.LastActivity.Format(time.RFC3339),
		"isProcessing": s.IsProcessing,
	}
}

func mapSnapshot(snap *settings.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"profileId":      snap.ProfileID,
		"profileName":    snap.ProfileName,
		"llmEndpoint":    snap.LLMEndpoint,
		"llmTemperature": snap.LLMTemperature,
		"llmMaxTokens":   snap.LLMMaxTokens,
		"experimentName": snap.ExperimentName,
		"loadedAt":       snap.LoadedAt.Format(time.RFC3339),
	}
}
