package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driving"
	"github.com/custodia-labs/agrisearch-core/internal/runtime"
)

// Ensure ragOrchestrator implements AnswerService
var _ driving.AnswerService = (*ragOrchestrator)(nil)

// DefaultPipelineBudget bounds every stage before synthesis
const DefaultPipelineBudget = 60 * time.Second

// StageObserver is notified of each pipeline stage duration
type StageObserver func(stage string, d time.Duration)

// OrchestratorConfig configures the answering pipeline
type OrchestratorConfig struct {
	// Budget bounds refinement, sub-query generation and retrieval together
	Budget time.Duration

	// Defaults fill options the caller left unset
	Defaults domain.AnswerOptions

	// Observer receives stage timings (optional)
	Observer StageObserver
}

// ragOrchestrator implements the AnswerService interface
type ragOrchestrator struct {
	refiner     *QueryRefiner
	subQueries  *SubQueryGenerator
	aggregator  *EvidenceAggregator
	synthesizer *AnswerSynthesizer
	services    *runtime.Services
	config      OrchestratorConfig
	logger      *slog.Logger
}

// NewRAGOrchestrator creates an AnswerService.
// services is consulted for model listing and source availability and may be nil.
func NewRAGOrchestrator(
	refiner *QueryRefiner,
	subQueries *SubQueryGenerator,
	aggregator *EvidenceAggregator,
	synthesizer *AnswerSynthesizer,
	services *runtime.Services,
	config OrchestratorConfig,
	logger *slog.Logger,
) driving.AnswerService {
	if config.Budget <= 0 {
		config.Budget = DefaultPipelineBudget
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ragOrchestrator{
		refiner:     refiner,
		subQueries:  subQueries,
		aggregator:  aggregator,
		synthesizer: synthesizer,
		services:    services,
		config:      config,
		logger:      logger,
	}
}

// Answer runs the full pipeline for one question
func (o *ragOrchestrator) Answer(ctx context.Context, rawQuery string, opts domain.AnswerOptions) (*domain.AnswerResult, error) {
	start := time.Now()

	rawQuery = strings.TrimSpace(rawQuery)
	if rawQuery == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = o.applyDefaults(opts).Normalize()
	if o.services != nil {
		opts = o.services.Config().EffectiveOptions(opts)
	}

	requestID := domain.GenerateID()
	logger := o.logger.With("request_id", requestID)
	logger.Info("answering query",
		"enable_db", opts.EnableDB,
		"enable_web", opts.EnableWeb,
		"num_sub_queries", opts.NumSubQueries,
	)

	budgetCtx, cancel := context.WithTimeout(ctx, o.config.Budget)
	defer cancel()

	var timings domain.Timings
	query := domain.Query{RawText: rawQuery}

	// Refinement
	stageStart := time.Now()
	var refineErr error
	if budgetCtx.Err() == nil {
		var refined string
		refined, refineErr = o.refiner.refine(budgetCtx, rawQuery)
		if refined != rawQuery {
			query.RefinedText = refined
		}
	}
	timings.Refine = o.observe("refine", stageStart)

	// Sub-query generation
	stageStart = time.Now()
	query.SubQueries = []string{query.Effective()}
	var subQueryErr error
	if budgetCtx.Err() == nil {
		query.SubQueries, subQueryErr = o.subQueries.generate(budgetCtx, query.Effective(), opts.NumSubQueries)
	}
	timings.SubQuery = o.observe("subquery", stageStart)

	// A model call cut off by the budget does not indicate a dead backend.
	llmUnreachable := budgetCtx.Err() == nil && (refineErr != nil || subQueryErr != nil)

	// Retrieval
	stageStart = time.Now()
	report := &domain.EvidenceReport{SubQueries: query.SubQueries, Items: []domain.EvidenceItem{}}
	if budgetCtx.Err() == nil {
		report = o.aggregator.Aggregate(budgetCtx, query.SubQueries, AggregateOptions{
			EnableDB:  opts.EnableDB,
			EnableWeb: opts.EnableWeb,
			DBK:       opts.DBK,
			WebK:      opts.WebK,
		})
	}
	timings.Retrieval = o.observe("retrieval", stageStart)

	if budgetCtx.Err() != nil {
		logger.Warn("pipeline budget exhausted before synthesis, continuing with gathered evidence",
			"budget", o.config.Budget,
			"evidence_items", len(report.Items),
		)
	}

	// Synthesis runs outside the budget, on the caller's context.
	stageStart = time.Now()
	synthesis := o.synthesizer.Synthesize(ctx, rawQuery, report, opts.ModelID)
	timings.Synthesis = o.observe("synthesis", stageStart)

	if synthesis.GenerationFailed && llmUnreachable {
		logger.Error("no language model backend reachable",
			"refine_error", errString(refineErr),
			"subquery_error", errString(subQueryErr),
		)
		return nil, fmt.Errorf("%w: no language model backend reachable", domain.ErrServiceUnavailable)
	}

	timings.Total = o.observe("total", start)

	result := &domain.AnswerResult{
		RequestID:      requestID,
		Query:          query,
		RefinedQuery:   query.Effective(),
		SubQueries:     query.SubQueries,
		Answer:         synthesis.AnswerText,
		Citations:      report.Citations(synthesis.CitedIndices),
		CitedIndices:   synthesis.CitedIndices,
		Report:         report,
		ReportMarkdown: BuildMarkdownReport(query, report),
		Timings:        timings,
		TimingsMS:      timings.Milliseconds(),
		Stats: domain.AnswerStats{
			TotalDBChunks:   report.CountByKind(domain.SourceKindDatabase),
			TotalWebResults: report.CountByKind(domain.SourceKindWeb),
			NumSubQueries:   len(query.SubQueries),
			PartialFailures: len(report.Failures),
		},
		UsedFallbackModel: synthesis.UsedFallbackModel,
		CreatedAt:         time.Now(),
	}

	logger.Info("query answered",
		"sub_queries", result.Stats.NumSubQueries,
		"evidence_items", len(report.Items),
		"cited", len(result.CitedIndices),
		"partial_failures", result.Stats.PartialFailures,
		"used_fallback_model", result.UsedFallbackModel,
		"total_ms", result.TimingsMS["total"],
	)
	return result, nil
}

// Models lists the models available on the primary generator
func (o *ragOrchestrator) Models(ctx context.Context) ([]string, error) {
	if o.services == nil || o.services.Generator() == nil {
		return nil, fmt.Errorf("%w: no text generator configured", domain.ErrServiceUnavailable)
	}
	models, err := o.services.Generator().ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	return models, nil
}

// applyDefaults fills zero-valued counts from the configured defaults
func (o *ragOrchestrator) applyDefaults(opts domain.AnswerOptions) domain.AnswerOptions {
	d := o.config.Defaults
	if opts.NumSubQueries <= 0 {
		opts.NumSubQueries = d.NumSubQueries
	}
	if opts.DBK <= 0 {
		opts.DBK = d.DBK
	}
	if opts.WebK <= 0 {
		opts.WebK = d.WebK
	}
	if opts.ModelID == "" {
		opts.ModelID = d.ModelID
	}
	return opts
}

func (o *ragOrchestrator) observe(stage string, since time.Time) time.Duration {
	d := time.Since(since)
	if o.config.Observer != nil {
		o.config.Observer(stage, d)
	}
	return d
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
