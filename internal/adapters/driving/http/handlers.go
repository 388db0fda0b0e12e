package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/services"
)

const readyCheckTimeout = 3 * time.Second

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ComponentHealth is the status of one dependency
type ComponentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ReadyResponse reports the readiness of every dependency
type ReadyResponse struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// AnswerRequest is the body of POST /api/v1/answer and POST /api/v1/jobs.
// Omitted source flags default to enabled.
type AnswerRequest struct {
	Query         string `json:"query"`
	EnableDB      *bool  `json:"enable_db,omitempty"`
	EnableWeb     *bool  `json:"enable_web,omitempty"`
	NumSubQueries int    `json:"num_sub_queries,omitempty"`
	DBK           int    `json:"db_k,omitempty"`
	WebK          int    `json:"web_k,omitempty"`
	ModelID       string `json:"model_id,omitempty"`
}

// Options converts the request into answer options
func (r AnswerRequest) Options() domain.AnswerOptions {
	opts := domain.AnswerOptions{
		EnableDB:      true,
		EnableWeb:     true,
		NumSubQueries: r.NumSubQueries,
		DBK:           r.DBK,
		WebK:          r.WebK,
		ModelID:       r.ModelID,
	}
	if r.EnableDB != nil {
		opts.EnableDB = *r.EnableDB
	}
	if r.EnableWeb != nil {
		opts.EnableWeb = *r.EnableWeb
	}
	return opts
}

// AgentsRequest is the body of POST /api/v1/agents.
// AutoRoles > 0 picks that many roles from the query's keywords and
// assigns them to the configured endpoints; explicit Agents win.
type AgentsRequest struct {
	Query     string               `json:"query"`
	Mode      domain.MergeMode     `json:"mode,omitempty"`
	Agents    []domain.AgentConfig `json:"agents,omitempty"`
	AutoRoles int                  `json:"auto_roles,omitempty"`
}

// ModelsResponse lists the available models
type ModelsResponse struct {
	Models []string `json:"models"`
}

// JobResponse is the client view of an answer task
type JobResponse struct {
	ID          string            `json:"id"`
	Status      domain.TaskStatus `json:"status"`
	Attempts    int               `json:"attempts"`
	Error       string            `json:"error,omitempty"`
	AnswerID    string            `json:"answer_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

func newJobResponse(task *domain.Task) JobResponse {
	return JobResponse{
		ID:          task.ID,
		Status:      task.Status,
		Attempts:    task.Attempts,
		Error:       task.Error,
		AnswerID:    task.ResultID,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
		CompletedAt: task.CompletedAt,
	}
}

// AnswerListResponse is a page of stored answers
type AnswerListResponse struct {
	Answers []*domain.AnswerRecord `json:"answers"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

// Health endpoints

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady pings every registered dependency
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Components: make(map[string]ComponentHealth, len(s.checks))}
	status := http.StatusOK
	for name, check := range s.checks {
		if check == nil {
			continue
		}
		if err := check.Ping(ctx); err != nil {
			resp.Components[name] = ComponentHealth{Status: "unavailable", Error: err.Error()}
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Components[name] = ComponentHealth{Status: "ok"}
	}

	writeJSON(w, status, resp)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Auth endpoints

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if s.authService == nil {
		writeError(w, http.StatusNotFound, "authentication is disabled")
		return
	}

	var req domain.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.authService.IssueToken(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Answer endpoints

// handleAnswer runs the pipeline synchronously
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := s.answerService.Answer(r.Context(), req.Query, req.Options())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.answerService.Models(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if models == nil {
		models = []string{}
	}
	writeJSON(w, http.StatusOK, ModelsResponse{Models: models})
}

// Multi-agent endpoints

func (s *Server) handleConsultAgents(w http.ResponseWriter, r *http.Request) {
	if s.agentService == nil {
		writeError(w, http.StatusServiceUnavailable, "multi-agent mode is not configured")
		return
	}

	var req AgentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Mode == "" {
		req.Mode = domain.MergeModeDetailed
	}
	if !req.Mode.IsValid() {
		writeError(w, http.StatusBadRequest, "mode must be detailed or concise")
		return
	}
	agents := req.Agents
	if len(agents) == 0 {
		agents = s.agentService.DefaultAgents()
		if req.AutoRoles > 0 {
			agents = assignRoles(services.SuggestRoles(req.Query, req.AutoRoles), agents)
		}
	}

	result, err := s.agentService.Consult(r.Context(), req.Query, agents, req.Mode)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	if s.agentService == nil {
		writeJSON(w, http.StatusOK, []domain.AgentConfig{})
		return
	}
	agents := s.agentService.DefaultAgents()
	if agents == nil {
		agents = []domain.AgentConfig{}
	}
	writeJSON(w, http.StatusOK, agents)
}

// Job endpoints

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var clientID string
	if authCtx := GetAuthContext(r.Context()); authCtx != nil {
		clientID = authCtx.ClientID
	}

	task, err := s.jobService.Submit(r.Context(), clientID, req.Query, req.Options())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, newJobResponse(task))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	task, err := s.jobService.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobResponse(task))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	if err := s.jobService.Cancel(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stored answer endpoints

func (s *Server) handleListAnswers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	answers, err := s.jobService.ListAnswers(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AnswerListResponse{Answers: answers, Limit: limit, Offset: offset})
}

func (s *Server) handleGetAnswer(w http.ResponseWriter, r *http.Request) {
	record, err := s.jobService.GetAnswer(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// Helpers

// assignRoles spreads roles over the endpoints of the configured agents
func assignRoles(roles []domain.AgentRole, configured []domain.AgentConfig) []domain.AgentConfig {
	if len(configured) == 0 {
		return nil
	}
	agents := make([]domain.AgentConfig, len(roles))
	for i, role := range roles {
		base := configured[i%len(configured)]
		agents[i] = domain.AgentConfig{Role: role, Endpoint: base.Endpoint, Model: base.Model}
	}
	return agents
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, domain.ErrInvalidInput
	}
	return n, nil
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrNoSourcesEnabled):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its mapped status.
// Internal errors are not echoed to the client.
func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
