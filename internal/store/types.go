package store

import "time"

// Configuration domains recorded in change history.
const (
	DomainProfile = "profile"
	DomainAIInfra = "ai_infra"
	DomainMLflow  = "mlflow"
	DomainPrompts = "prompts"
)

// History actions.
const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionSetDefault = "set_default"
)

// Chat request lifecycle states.
const (
	ChatPending   = "pending"
	ChatRunning   = "running"
	ChatCompleted = "completed"
	ChatError     = "error"
)

// RedactedValue replaces sensitive prompt text in history entries.
const RedactedValue = "..."

// FieldChange captures the before and after value of a changed field.
type FieldChange struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// ChangeSet maps changed field names to their old and new values.
type ChangeSet map[string]FieldChange

// Profile is a named configuration profile.
type Profile struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsDefault   bool      `json:"isDefault"`
	CreatedAt   time.Time `json:"createdAt"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
	UpdatedBy   string    `json:"updatedBy,omitempty"`
}

// AIInfraConfig holds the LLM serving parameters for a profile.
type AIInfraConfig struct {
	ID             int64     `json:"id"`
	ProfileID      int64     `json:"profileId"`
	LLMEndpoint    string    `json:"llmEndpoint"`
	LLMTemperature float64   `json:"llmTemperature"`
	LLMMaxTokens   int       `json:"llmMaxTokens"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// MLflowConfig holds the experiment tracking target for a profile.
type MLflowConfig struct {
	ID             int64     `json:"id"`
	ProfileID      int64     `json:"profileId"`
	ExperimentName string    `json:"experimentName"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// PromptsConfig holds the prompt texts for a profile.
type PromptsConfig struct {
	ID                 int64     `json:"id"`
	ProfileID          int64     `json:"profileId"`
	SystemPrompt       string    `json:"systemPrompt"`
	UserPromptTemplate string    `json:"userPromptTemplate"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// ProfileDetail is a profile together with its three sub-configs.
type ProfileDetail struct {
	Profile
	AIInfra *AIInfraConfig `json:"aiInfra,omitempty"`
	MLflow  *MLflowConfig  `json:"mlflow,omitempty"`
	Prompts *PromptsConfig `json:"prompts,omitempty"`
}

// SubConfigs is the flat bundle of sub-config values used when creating
// a profile.
type SubConfigs struct {
	LLMEndpoint        string
	LLMTemperature     float64
	LLMMaxTokens       int
	ExperimentName     string
	SystemPrompt       string
	UserPromptTemplate string
}

// HistoryEntry is one recorded configuration change.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	ProfileID int64     `json:"profileId"`
	Domain    string    `json:"domain"`
	Action    string    `json:"action"`
	ChangedBy string    `json:"changedBy"`
	Changes   ChangeSet `json:"changes"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a persisted chat session.
type Session struct {
	ID           int64     `json:"-"`
	SessionID    string    `json:"sessionId"`
	UserID       string    `json:"userId,omitempty"`
	Title        string    `json:"title,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	IsProcessing bool      `json:"isProcessing"`
}

// Message is one chat message within a session.
type Message struct {
	ID          int64     `json:"id"`
	SessionID   int64     `json:"-"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	MessageType string    `json:"messageType,omitempty"`
	Metadata    string    `json:"metadata,omitempty"`
	RequestID   string    `json:"requestId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ChatRequest tracks one asynchronous chat completion request.
type ChatRequest struct {
	ID           int64      `json:"-"`
	RequestID    string     `json:"requestId"`
	SessionID    int64      `json:"-"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	Result       string     `json:"result,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}
