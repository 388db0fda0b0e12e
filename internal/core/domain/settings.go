package domain

import "time"

// AIProvider identifies the language model provider
type AIProvider string

const (
	AIProviderOpenAI AIProvider = "openai"
	AIProviderOllama AIProvider = "ollama"
)

// LLMSettings configures a text generator endpoint
type LLMSettings struct {
	Provider AIProvider    `json:"provider"`
	Model    string        `json:"model"`
	APIKey   string        `json:"-"` // Never serialize to JSON
	BaseURL  string        `json:"base_url,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}

// IsConfigured returns true if LLM settings are properly configured
func (l *LLMSettings) IsConfigured() bool {
	if l.Provider == "" {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RequiresAPIKey returns true if this provider requires an API key
func (p AIProvider) RequiresAPIKey() bool {
	switch p {
	case AIProviderOllama:
		return false // Self-hosted, no API key needed
	default:
		return true
	}
}

// IsValid returns true if this is a known provider
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOpenAI, AIProviderOllama:
		return true
	default:
		return false
	}
}

// WebSearchProviderType identifies the web search backend
type WebSearchProviderType string

const (
	WebSearchDuckDuckGo WebSearchProviderType = "duckduckgo"
	WebSearchTavily     WebSearchProviderType = "tavily"
	WebSearchNone       WebSearchProviderType = "none"
)

// IsValid returns true if this is a known web search provider
func (p WebSearchProviderType) IsValid() bool {
	switch p {
	case WebSearchDuckDuckGo, WebSearchTavily, WebSearchNone:
		return true
	default:
		return false
	}
}
