package research

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/fathomlabs/fathom/internal/errors"
	"github.com/fathomlabs/fathom/pkg/archive"
	"github.com/fathomlabs/fathom/pkg/jobstore"
	"github.com/fathomlabs/fathom/pkg/llm"
	"github.com/fathomlabs/fathom/pkg/trace"
	"go.uber.org/zap"
)

// Orchestrator runs research jobs end to end: both strategy branches,
// the merge, the synthesis, and the terminal status transition on the
// job record.
type Orchestrator struct {
	store    *jobstore.Store
	gen      Generator
	searcher Searcher
	tracer   trace.Writer
	archiver archive.Archiver
	logger   *zap.Logger
}

// OrchestratorConfig wires an orchestrator's collaborators.
type OrchestratorConfig struct {
	// Store persists job status and results. Required.
	Store *jobstore.Store

	// Generator is the LLM surface. Required.
	Generator Generator

	// Searcher is the web search surface for the deep engine. Required
	// unless every job is direct-search.
	Searcher Searcher

	// Tracer receives pipeline records. Nil disables tracing.
	Tracer trace.Writer

	// Archiver receives completed reports. Nil disables archival.
	Archiver archive.Archiver

	// Logger receives run logging. Nil disables logging.
	Logger *zap.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("orchestrator requires a job store")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("orchestrator requires a generator")
	}
	if cfg.Tracer == nil {
		cfg.Tracer = trace.NopWriter{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Orchestrator{
		store:    cfg.Store,
		gen:      cfg.Generator,
		searcher: cfg.Searcher,
		tracer:   cfg.Tracer,
		archiver: cfg.Archiver,
		logger:   cfg.Logger,
	}, nil
}

// Run executes the job and persists its terminal state.
//
// The full flow runs the deep and grounded branches concurrently,
// merges their findings, and synthesizes the report. Direct-search jobs
// skip the deep branch and the merge: one grounded call produces the
// report directly and its sources section is rebuilt from structured
// grounding sources.
//
// On failure the job record is transitioned to error with a user-facing
// error report BEFORE the failure is returned, so pollers always reach
// a terminal state.
func (o *Orchestrator) Run(ctx context.Context, job *jobstore.Job) error {
	started := time.Now()
	combined := CombinedQuery(job.Query, job.Questions)

	o.logger.Info("research job started",
		zap.String("job_id", job.ID),
		zap.Int("breadth", job.Breadth),
		zap.Int("depth", job.Depth),
		zap.Bool("direct_search", job.DirectSearch))

	var (
		report   string
		appended bool
		err      error
	)
	if job.DirectSearch {
		report, appended, err = o.runDirect(ctx, combined)
	} else {
		report, appended, err = o.runFull(ctx, combined, job.Breadth, job.Depth)
	}
	if err != nil {
		return o.fail(ctx, job.ID, err)
	}

	if err := o.store.Complete(ctx, job.ID, report); err != nil {
		return o.fail(ctx, job.ID, apperrors.WrapInternal(ctx, err, "persist report"))
	}

	duration := time.Since(started)
	_ = o.tracer.WriteReport(ctx, &trace.ReportRecord{
		Chars:           len(report),
		SourcesAppended: appended,
		Duration:        duration,
		DurationHuman:   duration.Round(time.Millisecond).String(),
	})

	if o.archiver != nil {
		if location, archiveErr := o.archiver.Store(ctx, job.ID, report); archiveErr != nil {
			o.logger.Warn("report archival failed", zap.String("job_id", job.ID), zap.Error(archiveErr))
		} else {
			o.logger.Info("report archived", zap.String("job_id", job.ID), zap.String("location", location))
		}
	}

	o.logger.Info("research job complete",
		zap.String("job_id", job.ID),
		zap.Duration("duration", duration),
		zap.Int("report_chars", len(report)))
	return nil
}

// runFull executes the dual-strategy flow and synthesizes the report.
func (o *Orchestrator) runFull(ctx context.Context, query string, breadth, depth int) (string, bool, error) {
	deep := NewDeepEngine(o.gen, o.searcher, o.tracer, o.logger)
	grounded := NewGroundedEngine(o.gen, o.tracer, o.logger)

	var (
		wg            sync.WaitGroup
		deepState     State
		groundedState State
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		deepState = deep.Research(ctx, query, breadth, depth, State{})
	}()
	go func() {
		defer wg.Done()
		groundedState = grounded.Research(ctx, query)
	}()
	wg.Wait()

	merged := Merge(deepState, groundedState)
	_ = o.tracer.WriteMerge(ctx, &trace.MergeRecord{
		DeepLearnings:     len(deepState.Learnings),
		GroundedLearnings: len(groundedState.Learnings),
		MergedLearnings:   len(merged.Learnings),
		MergedSources:     len(merged.VisitedURLs),
	})

	return NewSynthesizer(o.gen).Synthesize(ctx, query, merged.Learnings, merged.VisitedURLs)
}

// runDirect executes the grounded-only flow: one grounded call produces
// the report, then the model's own sources section is stripped and
// rebuilt from the structured grounding sources.
func (o *Orchestrator) runDirect(ctx context.Context, query string) (string, bool, error) {
	result, err := o.gen.GenerateGrounded(ctx, directReportPrompt(query))
	if err != nil {
		return "", false, apperrors.NewGenerationError("direct_report", err)
	}

	_ = o.tracer.WriteSearch(ctx, StrategyGrounded, &trace.SearchRecord{
		Query: query,
		URLs:  sourceURLs(result.Sources),
	})

	report := StripSourcesSection(result.Text)
	report += GroundedSourcesSection(result.Sources, result.SearchQueries)
	return report, true, nil
}

// fail persists the error report and wraps err for the caller.
//
// Persistence uses a context detached from cancellation so the terminal
// transition lands even when the run's context is already done.
func (o *Orchestrator) fail(ctx context.Context, jobID string, err error) error {
	_ = o.tracer.WriteError(ctx, "orchestrator", &trace.ErrorRecord{
		Stage:   "run",
		Message: err.Error(),
	})

	persistCtx := context.WithoutCancel(ctx)
	if failErr := o.store.Fail(persistCtx, jobID, errorReport(err)); failErr != nil {
		o.logger.Error("failed to persist error report",
			zap.String("job_id", jobID), zap.Error(failErr))
	}

	o.logger.Error("research job failed", zap.String("job_id", jobID), zap.Error(err))
	return apperrors.NewOrchestrationError(jobID, err)
}

// errorReport builds the user-facing markdown shown in place of the
// report when a run fails.
func errorReport(err error) string {
	return fmt.Sprintf(`## Error Generating Research Report

The research run could not be completed.

Error details: %v

Suggested next steps:

- Retry the request; transient provider outages are the most common cause.
- Narrow the research query or reduce its breadth and depth.
- Check service logs for the full failure chain.
`, err)
}

func sourceURLs(sources []llm.Source) []string {
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		if s.URL != "" {
			out = append(out, s.URL)
		}
	}
	return out
}
