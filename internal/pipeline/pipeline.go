// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives a research run through its stages: topic planning,
// query generation, candidate collection, relevance filtering, per-topic
// analysis, and aggregation. Planning, query generation, and collection are
// run-fatal; filtering and analysis isolate failures to the topic they
// occurred in.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// State is the externally observable stage of a run.
type State string

const (
	StateIdle        State = "IDLE"
	StatePlanning    State = "PLANNING"
	StateQueryGen    State = "QUERY_GEN"
	StateCollecting  State = "COLLECTING"
	StateFiltering   State = "FILTERING"
	StateAnalyzing   State = "ANALYZING"
	StateAggregating State = "AGGREGATING"
	StateDone        State = "DONE"
	StateFailed      State = "FAILED"
)

// TopicPlanner decomposes the root question into topics, then queries.
type TopicPlanner interface {
	PlanTopics(ctx context.Context, question string, count int) ([]types.ResearchTopic, error)
	PlanQueries(ctx context.Context, question string, topics []types.ResearchTopic) error
}

// Collector gathers candidate documents for one topic query.
type Collector interface {
	Collect(ctx context.Context, query string) ([]types.Document, error)
}

// Filterer narrows the shared candidate list down to one topic's documents.
type Filterer interface {
	FilterTopic(ctx context.Context, topic types.ResearchTopic, candidates []types.Document) ([]types.Document, error)
}

// Analyzer produces the completed analysis for one topic.
type Analyzer interface {
	Analyze(ctx context.Context, question string, topic types.ResearchTopic) (types.TopicAnalysis, error)
}

const (
	defaultTopicCount = 5
	defaultWorkers    = 4
)

// Orchestrator owns one research run at a time.
type Orchestrator struct {
	planner   TopicPlanner
	collector Collector
	filter    Filterer
	analyzer  Analyzer
	topics    int
	workers   int
	logger    *zap.Logger

	mu    sync.Mutex
	state State
}

// NewOrchestrator wires the four stage implementations into an orchestrator.
// cfg.Topics defaults to 5 and cfg.Workers to 4; a nil logger disables
// logging.
func NewOrchestrator(planner TopicPlanner, collector Collector, filter Filterer, analyzer Analyzer, cfg types.PipelineConfig, logger *zap.Logger) *Orchestrator {
	if cfg.Topics <= 0 {
		cfg.Topics = defaultTopicCount
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		planner:   planner,
		collector: collector,
		filter:    filter,
		analyzer:  analyzer,
		topics:    cfg.Topics,
		workers:   cfg.Workers,
		logger:    logger,
		state:     StateIdle,
	}
}

// State returns the current stage of the run.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(logger *zap.Logger, s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	logger.Info("pipeline state", zap.String("state", string(s)))
}

// Run executes one research run for question. Analyses arrive in completion
// order; a run where every topic failed returns an empty result, not an
// error. On error the returned result is zero and the state is FAILED.
func (o *Orchestrator) Run(ctx context.Context, question string) (types.ResearchResult, error) {
	runID := uuid.NewString()
	logger := o.logger.With(zap.String("run_id", runID))
	started := time.Now()

	logger.Info("run started",
		zap.String("question", question),
		zap.Int("topics", o.topics),
		zap.Int("workers", o.workers))

	result, err := o.run(ctx, logger, runID, question, started)
	if err != nil {
		o.setState(logger, StateFailed)
		return types.ResearchResult{}, err
	}
	o.setState(logger, StateDone)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, logger *zap.Logger, runID, question string, started time.Time) (types.ResearchResult, error) {
	o.setState(logger, StatePlanning)
	topics, err := o.planner.PlanTopics(ctx, question, o.topics)
	if err != nil {
		return types.ResearchResult{}, fmt.Errorf("planning: %w", err)
	}
	logger.Info("topics planned", zap.Int("count", len(topics)))

	o.setState(logger, StateQueryGen)
	if err := o.planner.PlanQueries(ctx, question, topics); err != nil {
		return types.ResearchResult{}, fmt.Errorf("query generation: %w", err)
	}

	o.setState(logger, StateCollecting)
	candidates, err := o.collectAll(ctx, logger, topics)
	if err != nil {
		return types.ResearchResult{}, fmt.Errorf("collecting: %w", err)
	}

	o.setState(logger, StateFiltering)
	filtered, err := o.filterAll(ctx, logger, topics, candidates)
	if err != nil {
		return types.ResearchResult{}, err
	}

	o.setState(logger, StateAnalyzing)
	analyses, err := o.analyzeAll(ctx, logger, question, filtered)
	if err != nil {
		return types.ResearchResult{}, err
	}

	o.setState(logger, StateAggregating)
	result := types.ResearchResult{
		RunID:        runID,
		RootQuestion: question,
		Analyses:     analyses,
		CreatedAt:    started,
		CompletedAt:  time.Now(),
	}
	logger.Info("run aggregated",
		zap.Int("topics_planned", len(topics)),
		zap.Int("topics_analyzed", len(analyses)))
	return result, nil
}

// collectAll gathers candidates for every topic query with bounded
// concurrency. The combined list is ordered by topic so filtering sees a
// stable candidate indexing. Any collection failure fails the run.
func (o *Orchestrator) collectAll(ctx context.Context, logger *zap.Logger, topics []types.ResearchTopic) ([]types.Document, error) {
	perTopic := make([][]types.Document, len(topics))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i := range topics {
		i := i
		g.Go(func() error {
			docs, err := o.collector.Collect(gctx, topics[i].Query)
			if err != nil {
				return fmt.Errorf("topic %q: %w", topics[i].Text, err)
			}
			perTopic[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var candidates []types.Document
	for _, docs := range perTopic {
		candidates = append(candidates, docs...)
	}
	logger.Info("candidates collected", zap.Int("count", len(candidates)))
	return candidates, nil
}

// filterAll runs relevance filtering per topic with bounded concurrency.
// Every topic sees the same shared candidate list. A filter failure drops
// its topic and the run continues; only context cancellation is fatal.
func (o *Orchestrator) filterAll(ctx context.Context, logger *zap.Logger, topics []types.ResearchTopic, candidates []types.Document) ([]types.ResearchTopic, error) {
	kept := make([]*types.ResearchTopic, len(topics))

	var wg sync.WaitGroup
	sem := make(chan struct{}, o.workers)
	for i := range topics {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			topic := topics[i]
			docs, err := o.filter.FilterTopic(ctx, topic, candidates)
			if err != nil {
				logger.Warn("topic dropped in filtering",
					zap.String("topic", topic.Text),
					zap.Error(err))
				return
			}
			topic.Documents = docs
			kept[i] = &topic
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []types.ResearchTopic
	for _, t := range kept {
		if t != nil {
			out = append(out, *t)
		}
	}
	logger.Info("topics filtered",
		zap.Int("kept", len(out)),
		zap.Int("dropped", len(topics)-len(out)))
	return out, nil
}

// analyzeAll fans topics out to the analyzer with bounded concurrency and
// collects analyses in completion order. An analysis failure drops its topic
// and the run continues; only context cancellation is fatal.
func (o *Orchestrator) analyzeAll(ctx context.Context, logger *zap.Logger, question string, topics []types.ResearchTopic) ([]types.TopicAnalysis, error) {
	type outcome struct {
		topic    string
		analysis types.TopicAnalysis
		err      error
	}

	ch := make(chan outcome, len(topics))
	var wg sync.WaitGroup
	sem := make(chan struct{}, o.workers)

	for _, topic := range topics {
		wg.Add(1)
		go func(topic types.ResearchTopic) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			analysis, err := o.analyzer.Analyze(ctx, question, topic)
			ch <- outcome{topic: topic.Text, analysis: analysis, err: err}
		}(topic)
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	var analyses []types.TopicAnalysis
	for out := range ch {
		if out.err != nil {
			logger.Warn("topic dropped in analysis",
				zap.String("topic", out.topic),
				zap.Error(out.err))
			continue
		}
		analyses = append(analyses, out.analysis)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return analyses, nil
}
