package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

// AggregatorConfig bounds the retrieval fan-out
type AggregatorConfig struct {
	// DBTimeout bounds each vector store call
	DBTimeout time.Duration

	// WebTimeout bounds each web search call
	WebTimeout time.Duration

	// MaxConcurrency caps simultaneous retrieval calls
	MaxConcurrency int
}

// DefaultAggregatorConfig returns the default per-call timeouts and cap
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		DBTimeout:      10 * time.Second,
		WebTimeout:     15 * time.Second,
		MaxConcurrency: 8,
	}
}

// AggregateOptions selects sources and result counts for one aggregation
type AggregateOptions struct {
	EnableDB  bool
	EnableWeb bool
	DBK       int
	WebK      int
}

// EvidenceAggregator retrieves evidence for every sub-query from every
// enabled source and builds a numbered EvidenceReport.
type EvidenceAggregator struct {
	db     driven.Retriever
	web    driven.Retriever
	config AggregatorConfig
	logger *slog.Logger
}

// NewEvidenceAggregator creates an EvidenceAggregator. Either retriever may be nil.
func NewEvidenceAggregator(db, web driven.Retriever, config AggregatorConfig, logger *slog.Logger) *EvidenceAggregator {
	defaults := DefaultAggregatorConfig()
	if config.DBTimeout <= 0 {
		config.DBTimeout = defaults.DBTimeout
	}
	if config.WebTimeout <= 0 {
		config.WebTimeout = defaults.WebTimeout
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EvidenceAggregator{db: db, web: web, config: config, logger: logger}
}

// retrievalSlot holds the outcome of one (sub-query, source) call
type retrievalSlot struct {
	subQueryIndex int
	subQuery      string
	kind          domain.SourceKind
	retriever     driven.Retriever
	k             int
	timeout       time.Duration

	items []domain.EvidenceItem
	err   error
}

// Aggregate never fails: failed or timed-out calls contribute no items and
// are recorded in the report's failures.
func (a *EvidenceAggregator) Aggregate(ctx context.Context, subQueries []string, opts AggregateOptions) *domain.EvidenceReport {
	report := &domain.EvidenceReport{
		SubQueries: append([]string(nil), subQueries...),
		Items:      []domain.EvidenceItem{},
	}

	slots := a.plan(subQueries, opts)
	if len(slots) == 0 {
		return report
	}

	limit := 2 * len(subQueries)
	if limit > a.config.MaxConcurrency {
		limit = a.config.MaxConcurrency
	}
	if limit < 1 {
		limit = 1
	}
	sem := semaphore.NewWeighted(int64(limit))

	// Siblings never cancel each other, so the group context is not used.
	var g errgroup.Group
	for i := range slots {
		slot := &slots[i]
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				slot.err = domain.NewRetrievalError(slot.kind, slot.subQuery, err)
				return nil
			}
			defer sem.Release(1)
			a.run(ctx, slot)
			return nil
		})
	}
	_ = g.Wait()

	report.Items, report.Failures = a.merge(slots)

	a.logger.Debug("evidence aggregated",
		"sub_queries", len(subQueries),
		"calls", len(slots),
		"items", len(report.Items),
		"failures", len(report.Failures),
	)
	return report
}

// plan lays out slots in encounter order: sub-query order, database before web
func (a *EvidenceAggregator) plan(subQueries []string, opts AggregateOptions) []retrievalSlot {
	var slots []retrievalSlot
	for i, sq := range subQueries {
		if opts.EnableDB {
			slots = append(slots, retrievalSlot{
				subQueryIndex: i, subQuery: sq, kind: domain.SourceKindDatabase,
				retriever: a.db, k: opts.DBK, timeout: a.config.DBTimeout,
			})
		}
		if opts.EnableWeb {
			slots = append(slots, retrievalSlot{
				subQueryIndex: i, subQuery: sq, kind: domain.SourceKindWeb,
				retriever: a.web, k: opts.WebK, timeout: a.config.WebTimeout,
			})
		}
	}
	return slots
}

func (a *EvidenceAggregator) run(ctx context.Context, slot *retrievalSlot) {
	if slot.retriever == nil {
		slot.err = domain.NewRetrievalError(slot.kind, slot.subQuery, errors.New("source not configured"))
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, slot.timeout)
	defer cancel()

	type outcome struct {
		items []domain.EvidenceItem
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		items, err := slot.retriever.Retrieve(callCtx, slot.subQuery, slot.k)
		done <- outcome{items: items, err: err}
	}()

	// A retriever that ignores its context still cannot hold the slot past the timeout.
	select {
	case out := <-done:
		slot.items, slot.err = out.items, out.err
	case <-callCtx.Done():
		slot.err = domain.NewRetrievalError(slot.kind, slot.subQuery, callCtx.Err())
	}
	if slot.err != nil {
		var re *domain.RetrievalError
		if !errors.As(slot.err, &re) {
			slot.err = domain.NewRetrievalError(slot.kind, slot.subQuery, slot.err)
		}
		slot.items = nil
	}
}

// merge deduplicates items in slot order and numbers them
func (a *EvidenceAggregator) merge(slots []retrievalSlot) ([]domain.EvidenceItem, []domain.RetrievalFailure) {
	var (
		items    []domain.EvidenceItem
		failures []domain.RetrievalFailure
	)
	seenURL := make(map[string]bool)
	seenContent := make(map[string]bool)

	for _, slot := range slots {
		if slot.err != nil {
			a.logger.Warn("retrieval failed",
				"source", string(slot.kind),
				"sub_query", slot.subQuery,
				"error", slot.err,
			)
			failures = append(failures, domain.RetrievalFailure{
				Source:   slot.kind,
				SubQuery: slot.subQuery,
				Error:    slot.err.Error(),
			})
			continue
		}

		for _, item := range slot.items {
			item.SourceKind = slot.kind
			item.OriginSubQuery = slot.subQuery
			item.SubQueryIndex = slot.subQueryIndex

			normalized := item.NormalizedContent()
			urlKey := string(item.SourceKind) + "|" + item.URL
			contentKey := string(item.SourceKind) + "|" + normalized
			if (item.URL != "" && seenURL[urlKey]) || (normalized != "" && seenContent[contentKey]) {
				continue
			}
			if item.URL != "" {
				seenURL[urlKey] = true
			}
			if normalized != "" {
				seenContent[contentKey] = true
			}
			items = append(items, item)
		}
	}

	return domain.NumberEvidence(items), failures
}
