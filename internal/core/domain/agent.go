package domain

import (
	"strings"
	"time"
)

// AgentRole is one of the fixed domain-expert roles an agent can take
type AgentRole string

const (
	AgentRoleCropSpecialist    AgentRole = "crop_specialist"
	AgentRoleDiseaseExpert     AgentRole = "disease_expert"
	AgentRoleEconomicsAnalyst  AgentRole = "economics_analyst"
	AgentRoleClimateResearcher AgentRole = "climate_researcher"
	AgentRoleTechnologyAdvisor AgentRole = "technology_advisor"
	AgentRolePolicyAnalyst     AgentRole = "policy_analyst"
)

// roleProfile holds the prompt and keyword hints for a role
type roleProfile struct {
	systemPrompt string
	keywords     []string
}

var roleProfiles = map[AgentRole]roleProfile{
	AgentRoleCropSpecialist: {
		systemPrompt: "You are an agricultural crop specialist. Focus on crop varieties, cultivation practices, yield optimization, and crop management techniques.",
		keywords:     []string{"crop", "variety", "yield", "planting", "harvest", "seed", "cultivation", "rice", "wheat", "maize"},
	},
	AgentRoleDiseaseExpert: {
		systemPrompt: "You are a plant pathology expert. Focus on plant diseases, pest management, diagnosis, and treatment options.",
		keywords:     []string{"disease", "pest", "infection", "fungus", "blight", "insect", "yellow", "spots", "wilt", "rot"},
	},
	AgentRoleEconomicsAnalyst: {
		systemPrompt: "You are an agricultural economics analyst. Focus on market trends, pricing, economic impacts, and financial aspects of agriculture.",
		keywords:     []string{"price", "cost", "market", "profit", "economic", "subsidy", "income", "loan"},
	},
	AgentRoleClimateResearcher: {
		systemPrompt: "You are a climate and agriculture researcher. Focus on climate impacts, weather patterns, adaptation strategies, and environmental factors.",
		keywords:     []string{"climate", "weather", "rain", "drought", "temperature", "flood", "monsoon", "season"},
	},
	AgentRoleTechnologyAdvisor: {
		systemPrompt: "You are an agricultural technology advisor. Focus on modern farming technologies, precision agriculture, and innovative solutions.",
		keywords:     []string{"technology", "drone", "sensor", "precision", "irrigation", "machine", "tractor", "app"},
	},
	AgentRolePolicyAnalyst: {
		systemPrompt: "You are an agricultural policy analyst. Focus on policies, regulations, government programs, and institutional factors.",
		keywords:     []string{"policy", "regulation", "government", "scheme", "program", "law", "insurance"},
	},
}

// AllAgentRoles returns every role in its canonical order
func AllAgentRoles() []AgentRole {
	return []AgentRole{
		AgentRoleCropSpecialist,
		AgentRoleDiseaseExpert,
		AgentRoleEconomicsAnalyst,
		AgentRoleClimateResearcher,
		AgentRoleTechnologyAdvisor,
		AgentRolePolicyAnalyst,
	}
}

// IsValid checks if the role is one of the known roles
func (r AgentRole) IsValid() bool {
	_, ok := roleProfiles[r]
	return ok
}

// SystemPrompt returns the fixed prompt for the role
func (r AgentRole) SystemPrompt() string {
	return roleProfiles[r].systemPrompt
}

// Keywords returns the topic hints used by role suggestion
func (r AgentRole) Keywords() []string {
	return roleProfiles[r].keywords
}

// DisplayName returns the role as title-cased words, e.g. "Crop Specialist"
func (r AgentRole) DisplayName() string {
	words := strings.Split(string(r), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// AgentConfig assigns a role to a language model endpoint
type AgentConfig struct {
	Role     AgentRole `json:"role" yaml:"role"`
	Endpoint string    `json:"endpoint" yaml:"endpoint"`
	Model    string    `json:"model,omitempty" yaml:"model"`
}

// AgentResponse is the outcome of one agent in a multi-agent dispatch
type AgentResponse struct {
	Role          AgentRole     `json:"agent_role"`
	EndpointID    string        `json:"endpoint_id"`
	AnswerText    string        `json:"answer_text"`
	Citations     []string      `json:"citations"`
	SearchResults []WebResult   `json:"search_results,omitempty"`
	Succeeded     bool          `json:"succeeded"`
	Error         string        `json:"error,omitempty"`
	Duration      time.Duration `json:"-"`
}

// MergeMode selects how agent outputs are combined
type MergeMode string

const (
	// MergeModeDetailed concatenates role-labelled sections
	MergeModeDetailed MergeMode = "detailed"
	// MergeModeConcise compresses all outputs with one more model call
	MergeModeConcise MergeMode = "concise"
)

// IsValid checks if the merge mode is known
func (m MergeMode) IsValid() bool {
	return m == MergeModeDetailed || m == MergeModeConcise
}

// MultiAgentResult is the merged output of a multi-agent consultation
type MultiAgentResult struct {
	Query        string          `json:"query"`
	Mode         MergeMode       `json:"mode"`
	Answer       string          `json:"answer"`
	Citations    []string        `json:"citations"`
	Responses    []AgentResponse `json:"responses"`
	AgentCount   int             `json:"agent_count"`
	FailedAgents int             `json:"failed_agents"`
	TotalTime    time.Duration   `json:"-"`
}
