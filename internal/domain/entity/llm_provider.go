package entity

import "time"

// LLMProviderConfig is a stored credential/config record for one named model
// provider. The registry (internal/infra/llm) looks these up by ProviderType
// and, when no name is requested, picks the first active row.
type LLMProviderConfig struct {
	ID             int64
	ProviderType   string // "openai", "anthropic", "gemini", "volcengine"
	APIKey         string
	APISecret      string
	AppID          string
	AppSecret      string
	APIBaseURL     string
	APIVersion     string
	Region         string
	RequestTimeout time.Duration
	MaxRetries     int
	DefaultModel   string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
