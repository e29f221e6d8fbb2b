// Package query resolves a tenant's question by trying strategies in a fixed
// order and grading whichever one answers first.
//
// The order is TEMPLATE_OR_GENERATED_SQL, SEMANTIC_ONLY, TEXTUAL_ONLY and
// AGGREGATE_FALLBACK. Every state appends exactly one Attempt. A state that
// errors or panics is recorded and the machine advances, so Resolve always
// returns a graded result.
package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/aggregate"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/executor"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/quality"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/search/semantic"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/search/textual"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/sqlgen"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/logger"
)

const tracerName = "github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/query"

type SQLResolver interface {
	Resolve(ctx context.Context, question, tenantID string) sqlgen.GeneratedSQL
}

type SQLExecutor interface {
	Execute(ctx context.Context, sql, tenantID string) ([]executor.Row, error)
}

type SemanticSearcher interface {
	Search(ctx context.Context, question, tenantID string) semantic.Outcome
}

type TextualSearcher interface {
	Search(ctx context.Context, question, tenantID string) (*textual.Result, error)
}

type AggregateProvider interface {
	Snapshot(ctx context.Context, tenantID string) (*aggregate.Snapshot, error)
}

type Engine struct {
	sql       SQLResolver
	executor  SQLExecutor
	semantic  SemanticSearcher
	textual   TextualSearcher
	aggregate AggregateProvider
	tracer    trace.Tracer
	now       func() time.Time
}

func NewEngine(sql SQLResolver, exec SQLExecutor, sem SemanticSearcher, text TextualSearcher, agg AggregateProvider) *Engine {
	return &Engine{
		sql:       sql,
		executor:  exec,
		semantic:  sem,
		textual:   text,
		aggregate: agg,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
}

// Resolve never returns an error and never panics. The result always carries
// one quality tier and at least one Attempt.
func (e *Engine) Resolve(ctx context.Context, q Question) *ResolutionResult {
	started := e.now()
	if q.AskedAt.IsZero() {
		q.AskedAt = started
	}
	res := &ResolutionResult{
		ID:       uuid.New().String(),
		Question: q,
		Quality:  quality.None,
	}

	ctx, span := e.tracer.Start(ctx, "query.Resolve", trace.WithAttributes(
		attribute.String("tenant_id", q.TenantID),
		attribute.String("resolution_id", res.ID),
	))
	defer span.End()

	if err := q.Validate(); err != nil {
		e.record(res, quality.StrategyValidation, 0, err, started)
		e.finish(res, quality.StrategyValidation, err, started)
		return res
	}

	pending := e.startSemantic(ctx, q)

	if n, _ := e.step(ctx, res, quality.StrategySQL, func(ctx context.Context) (int, error) {
		return e.runSQL(ctx, q, res, pending)
	}); n > 0 {
		e.finish(res, quality.StrategySQL, nil, started)
		return res
	}

	if n, _ := e.step(ctx, res, quality.StrategySemantic, func(ctx context.Context) (int, error) {
		return e.runSemantic(res, pending.wait())
	}); n > 0 {
		e.finish(res, quality.StrategySemantic, nil, started)
		return res
	}

	if n, _ := e.step(ctx, res, quality.StrategyTextual, func(ctx context.Context) (int, error) {
		return e.runTextual(ctx, q, res)
	}); n > 0 {
		e.finish(res, quality.StrategyTextual, nil, started)
		return res
	}

	_, err := e.step(ctx, res, quality.StrategyAggregate, func(ctx context.Context) (int, error) {
		return e.runAggregate(ctx, q, res)
	})
	e.finish(res, quality.StrategyAggregate, err, started)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return res
}

// RunStrategy attempts a single strategy. It returns an error when the
// strategy failed; an empty but successful run grades NONE with a nil error.
func (e *Engine) RunStrategy(ctx context.Context, q Question, strategy quality.Strategy) (*ResolutionResult, error) {
	started := e.now()
	if q.AskedAt.IsZero() {
		q.AskedAt = started
	}
	res := &ResolutionResult{ID: uuid.New().String(), Question: q, Quality: quality.None}

	if err := q.Validate(); err != nil {
		e.record(res, quality.StrategyValidation, 0, err, started)
		e.finish(res, quality.StrategyValidation, err, started)
		return res, err
	}

	var run func(ctx context.Context) (int, error)
	switch strategy {
	case quality.StrategySQL:
		run = func(ctx context.Context) (int, error) { return e.runSQL(ctx, q, res, nil) }
	case quality.StrategySemantic:
		run = func(ctx context.Context) (int, error) {
			return e.runSemantic(res, e.semantic.Search(ctx, q.Text, q.TenantID))
		}
	case quality.StrategyTextual:
		run = func(ctx context.Context) (int, error) { return e.runTextual(ctx, q, res) }
	case quality.StrategyAggregate:
		run = func(ctx context.Context) (int, error) { return e.runAggregate(ctx, q, res) }
	default:
		err := fmt.Errorf("unknown strategy %q", strategy)
		e.record(res, strategy, 0, err, started)
		e.finish(res, strategy, err, started)
		return res, err
	}

	n, err := e.step(ctx, res, strategy, run)
	e.finish(res, strategy, err, started)
	if err == nil && n == 0 {
		res.Quality = quality.None
	}
	return res, err
}

// step runs one state inside its own span and records exactly one Attempt.
func (e *Engine) step(ctx context.Context, res *ResolutionResult, strategy quality.Strategy, fn func(ctx context.Context) (int, error)) (n int, err error) {
	ctx, span := e.tracer.Start(ctx, "query."+string(strategy))
	started := e.now()

	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("panic in %s: %v", strategy, r)
			logger.Error("Strategy panicked",
				zap.String("resolution_id", res.ID),
				zap.String("strategy", string(strategy)),
				zap.Any("panic", r),
			)
		}
		if err != nil {
			n = 0
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("rows", n))
		span.End()
		e.record(res, strategy, n, err, started)
	}()

	return fn(ctx)
}

func (e *Engine) record(res *ResolutionResult, strategy quality.Strategy, n int, err error, started time.Time) {
	at := e.now()
	attempt := Attempt{
		Strategy:   strategy,
		RowCount:   n,
		At:         at,
		DurationMs: at.Sub(started).Milliseconds(),
	}
	switch {
	case err != nil:
		attempt.Outcome = OutcomeError
		attempt.Error = err.Error()
	case n == 0:
		attempt.Outcome = OutcomeEmpty
	default:
		attempt.Outcome = OutcomeSuccess
	}
	res.Attempts = res.Attempts.Append(attempt)

	logger.Debug("Strategy attempted",
		zap.String("resolution_id", res.ID),
		zap.String("strategy", string(strategy)),
		zap.String("outcome", string(attempt.Outcome)),
		zap.Int("rows", n),
	)
}

func (e *Engine) finish(res *ResolutionResult, strategy quality.Strategy, err error, started time.Time) {
	res.Strategy = strategy
	res.Quality = quality.Grade(strategy, err == nil)
	if err != nil {
		res.Err = err
		res.Error = err.Error()
	}
	res.ResolvedAt = e.now()
	res.LatencyMs = res.ResolvedAt.Sub(started).Milliseconds()

	logger.Info("Question resolved",
		zap.String("resolution_id", res.ID),
		zap.String("tenant_id", res.Question.TenantID),
		zap.String("strategy", string(res.Strategy)),
		zap.String("quality", string(res.Quality)),
		zap.Int("attempts", len(res.Attempts)),
		zap.Int64("latency_ms", res.LatencyMs),
	)
}

// runSQL resolves, gates on validation and executes. Semantic candidates are
// attached as recommendations when rows come back.
func (e *Engine) runSQL(ctx context.Context, q Question, res *ResolutionResult, pending *pendingSemantic) (int, error) {
	gen := e.sql.Resolve(ctx, q.Text, q.TenantID)
	res.Payload.SQL = &gen

	if !gen.Validated {
		return 0, ErrUnvalidatedSQL
	}

	rows, err := e.executor.Execute(ctx, gen.Text, q.TenantID)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	res.Payload.Rows = rows
	if pending != nil {
		res.Payload.Candidates = pending.wait().Candidates
	}
	return len(rows), nil
}

func (e *Engine) runSemantic(res *ResolutionResult, out semantic.Outcome) (int, error) {
	if len(out.Candidates) > 0 {
		res.Payload.Candidates = out.Candidates
		return len(out.Candidates), nil
	}
	if out.Err != nil {
		return 0, out.Err
	}
	if out.Unavailable {
		return 0, errors.New("semantic unavailable")
	}
	return 0, nil
}

func (e *Engine) runTextual(ctx context.Context, q Question, res *ResolutionResult) (int, error) {
	result, err := e.textual.Search(ctx, q.Text, q.TenantID)
	if err != nil {
		return 0, fmt.Errorf("textual search failed: %w", err)
	}
	if result == nil || len(result.Matches) == 0 {
		return 0, nil
	}
	res.Payload.Matches = result.Matches
	return len(result.Matches), nil
}

func (e *Engine) runAggregate(ctx context.Context, q Question, res *ResolutionResult) (int, error) {
	snap, err := e.aggregate.Snapshot(ctx, q.TenantID)
	if err != nil {
		return 0, err
	}
	res.Payload.Aggregate = snap
	// An empty snapshot is still a valid answer for a tenant with no data.
	return 1, nil
}

// pendingSemantic is the semantic search started alongside SQL resolution.
type pendingSemantic struct {
	ch   chan semantic.Outcome
	once sync.Once
	out  semantic.Outcome
}

func (e *Engine) startSemantic(ctx context.Context, q Question) *pendingSemantic {
	p := &pendingSemantic{ch: make(chan semantic.Outcome, 1)}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.ch <- semantic.Outcome{Unavailable: true, Err: fmt.Errorf("panic in semantic search: %v", r)}
			}
		}()
		p.ch <- e.semantic.Search(ctx, q.Text, q.TenantID)
	}()
	return p
}

func (p *pendingSemantic) wait() semantic.Outcome {
	p.once.Do(func() { p.out = <-p.ch })
	return p.out
}
