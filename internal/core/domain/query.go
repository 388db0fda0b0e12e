package domain

import (
	"strings"
	"time"
)

const (
	// DefaultSubQueries is the number of sub-queries generated when none is requested
	DefaultSubQueries = 3
	// MaxSubQueries is the upper bound for sub-query generation
	MaxSubQueries = 5
	// DefaultDBResults is the default top-k for the local store
	DefaultDBResults = 3
	// DefaultWebResults is the default top-k for web search
	DefaultWebResults = 3
	// MaxResultsPerSource bounds db_k and web_k
	MaxResultsPerSource = 20
)

// Query is the per-request view of the user's question
type Query struct {
	RawText     string   `json:"raw_text"`
	RefinedText string   `json:"refined_text,omitempty"`
	SubQueries  []string `json:"sub_queries"`
}

// Effective returns the refined text when present, otherwise the raw text
func (q Query) Effective() string {
	if q.RefinedText != "" {
		return q.RefinedText
	}
	return q.RawText
}

// AnswerOptions configures a single answer request
type AnswerOptions struct {
	EnableDB      bool   `json:"enable_db"`
	EnableWeb     bool   `json:"enable_web"`
	NumSubQueries int    `json:"num_sub_queries"`
	DBK           int    `json:"db_k"`
	WebK          int    `json:"web_k"`
	ModelID       string `json:"model_id,omitempty"`
}

// DefaultAnswerOptions returns options with both sources enabled
func DefaultAnswerOptions() AnswerOptions {
	return AnswerOptions{
		EnableDB:      true,
		EnableWeb:     true,
		NumSubQueries: DefaultSubQueries,
		DBK:           DefaultDBResults,
		WebK:          DefaultWebResults,
	}
}

// Normalize fills zero values with defaults and clamps out-of-range values
func (o AnswerOptions) Normalize() AnswerOptions {
	if o.NumSubQueries <= 0 {
		o.NumSubQueries = DefaultSubQueries
	}
	if o.NumSubQueries > MaxSubQueries {
		o.NumSubQueries = MaxSubQueries
	}
	if o.DBK <= 0 {
		o.DBK = DefaultDBResults
	}
	if o.DBK > MaxResultsPerSource {
		o.DBK = MaxResultsPerSource
	}
	if o.WebK <= 0 {
		o.WebK = DefaultWebResults
	}
	if o.WebK > MaxResultsPerSource {
		o.WebK = MaxResultsPerSource
	}
	o.ModelID = strings.TrimSpace(o.ModelID)
	return o
}

// Validate checks that at least one evidence source is enabled
func (o AnswerOptions) Validate() error {
	if !o.EnableDB && !o.EnableWeb {
		return ErrNoSourcesEnabled
	}
	return nil
}

// SynthesisResult is the output of answer synthesis
type SynthesisResult struct {
	AnswerText        string `json:"answer_text"`
	CitedIndices      []int  `json:"cited_indices"`
	UsedFallbackModel bool   `json:"used_fallback_model"`
	// GenerationFailed is set when both the primary and fallback model failed
	// and AnswerText holds the canned apology.
	GenerationFailed bool `json:"generation_failed"`
}

// Timings records per-stage durations of the pipeline
type Timings struct {
	Refine    time.Duration
	SubQuery  time.Duration
	Retrieval time.Duration
	Synthesis time.Duration
	Total     time.Duration
}

// Milliseconds returns the timings keyed by stage in milliseconds
func (t Timings) Milliseconds() map[string]int64 {
	return map[string]int64{
		"refine":    t.Refine.Milliseconds(),
		"subquery":  t.SubQuery.Milliseconds(),
		"retrieval": t.Retrieval.Milliseconds(),
		"synthesis": t.Synthesis.Milliseconds(),
		"total":     t.Total.Milliseconds(),
	}
}

// AnswerStats summarises the evidence behind an answer
type AnswerStats struct {
	TotalDBChunks   int `json:"total_db_chunks"`
	TotalWebResults int `json:"total_web_results"`
	NumSubQueries   int `json:"num_sub_queries"`
	PartialFailures int `json:"partial_failures"`
}

// AnswerResult is the single output shape of the answering pipeline
type AnswerResult struct {
	RequestID         string           `json:"request_id"`
	Query             Query            `json:"query"`
	RefinedQuery      string           `json:"refined_query"`
	SubQueries        []string         `json:"sub_queries"`
	Answer            string           `json:"answer"`
	Citations         []Citation       `json:"citations"`
	CitedIndices      []int            `json:"cited_indices"`
	Report            *EvidenceReport  `json:"evidence_report"`
	ReportMarkdown    string           `json:"report_markdown"`
	Timings           Timings          `json:"-"`
	TimingsMS         map[string]int64 `json:"timings_ms"`
	Stats             AnswerStats      `json:"stats"`
	UsedFallbackModel bool             `json:"used_fallback_model"`
	CreatedAt         time.Time        `json:"created_at"`
}

// AnswerRecord is a persisted answer, produced by an async job
type AnswerRecord struct {
	ID        string        `json:"id"`
	TaskID    string        `json:"task_id,omitempty"`
	Query     string        `json:"query"`
	Options   AnswerOptions `json:"options"`
	Result    *AnswerResult `json:"result"`
	CreatedAt time.Time     `json:"created_at"`
}
