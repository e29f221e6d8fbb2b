// Package assistant is the caller-facing facade: it validates the question,
// resolves it, phrases the answer and reports the outcome to the metrics
// recorder.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/metrics"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/quality"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/query"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/recovery"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/storage/models"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/logger"
)

// ErrNoRows marks a SQL-only question that executed but matched nothing.
var ErrNoRows = errors.New("sql strategy returned no rows")

type Resolver interface {
	Resolve(ctx context.Context, q query.Question) *query.ResolutionResult
	RunStrategy(ctx context.Context, q query.Question, strategy quality.Strategy) (*query.ResolutionResult, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, question string, res *query.ResolutionResult) string
	Explain(ctx context.Context, question string, resp recovery.Response) string
}

type Recoverer interface {
	Recover(ctx context.Context, q query.Question, cause error) recovery.Response
}

type EventRecorder interface {
	Record(e metrics.Event)
}

type HistoryStore interface {
	History(ctx context.Context, tenantID string, limit int) ([]models.ResolutionRecord, error)
	StoreFeedback(ctx context.Context, feedback *models.Feedback) error
}

// Answer is what callers render. Result is nil when the question was
// rejected before any strategy ran.
type Answer struct {
	Text     string                  `json:"answer"`
	Quality  quality.Tier            `json:"quality"`
	Strategy quality.Strategy        `json:"strategy,omitempty"`
	Result   *query.ResolutionResult `json:"result,omitempty"`
	Recovery *recovery.Response      `json:"recovery,omitempty"`
}

type Service struct {
	resolver    Resolver
	synthesizer Synthesizer
	recoverer   Recoverer
	recorder    EventRecorder
	history     HistoryStore
	now         func() time.Time
}

// NewService accepts nil recorder and history store.
func NewService(resolver Resolver, synthesizer Synthesizer, recoverer Recoverer, recorder EventRecorder, history HistoryStore) *Service {
	return &Service{
		resolver:    resolver,
		synthesizer: synthesizer,
		recoverer:   recoverer,
		recorder:    recorder,
		history:     history,
		now:         time.Now,
	}
}

// Ask runs the full hybrid resolution.
func (s *Service) Ask(ctx context.Context, question, tenantID string) Answer {
	q := query.Question{Text: question, TenantID: tenantID, AskedAt: s.now()}
	if err := q.Validate(); err != nil {
		return s.reject(ctx, q, err)
	}

	res := s.resolver.Resolve(ctx, q)
	res.Narrative = s.synthesizer.Synthesize(ctx, q.Text, res)
	s.record(res)

	return Answer{
		Text:     res.Narrative,
		Quality:  res.Quality,
		Strategy: res.Strategy,
		Result:   res,
	}
}

// AskSQL answers through the SQL strategy alone. A failure is classified and
// recovered with one alternative strategy.
func (s *Service) AskSQL(ctx context.Context, question, tenantID string) Answer {
	q := query.Question{Text: question, TenantID: tenantID, AskedAt: s.now()}
	if err := q.Validate(); err != nil {
		return s.reject(ctx, q, err)
	}

	res, err := s.resolver.RunStrategy(ctx, q, quality.StrategySQL)
	if err == nil && res != nil && res.Succeeded() {
		res.Narrative = s.synthesizer.Synthesize(ctx, q.Text, res)
		s.record(res)
		return Answer{Text: res.Narrative, Quality: res.Quality, Strategy: res.Strategy, Result: res}
	}

	cause := err
	if cause == nil && res != nil {
		cause = res.Err
	}
	if cause == nil {
		cause = ErrNoRows
	}

	resp := s.recoverer.Recover(ctx, q, cause)
	metrics.ObserveRecovery(string(resp.Category), resp.Recovered)

	final := res
	if resp.Recovered && resp.Result != nil {
		final = resp.Result
	}
	text := s.synthesizer.Explain(ctx, q.Text, resp)
	if final != nil {
		final.Narrative = text
		s.record(final)
	}

	logger.Info("SQL question recovered",
		zap.String("tenant_id", tenantID),
		zap.String("category", string(resp.Category)),
		zap.Bool("recovered", resp.Recovered),
		zap.String("detail", resp.TechnicalDetail),
	)

	answer := Answer{Text: text, Quality: quality.None, Result: final, Recovery: &resp}
	if final != nil {
		answer.Quality = final.Quality
		answer.Strategy = final.Strategy
	}
	return answer
}

// reject answers invalid input without attempting any strategy.
func (s *Service) reject(ctx context.Context, q query.Question, cause error) Answer {
	resp := s.recoverer.Recover(ctx, q, cause)
	metrics.ObserveRecovery(string(resp.Category), resp.Recovered)

	s.emit(metrics.Event{
		ID:        uuid.New().String(),
		Timestamp: s.now(),
		Question:  q.Text,
		TenantID:  q.TenantID,
		Strategy:  string(quality.StrategyValidation),
		Quality:   string(quality.None),
		Error:     cause.Error(),
	})

	return Answer{
		Text:     s.synthesizer.Explain(ctx, q.Text, resp),
		Quality:  quality.None,
		Recovery: &resp,
	}
}

func (s *Service) record(res *query.ResolutionResult) {
	attempts := make([]metrics.AttemptSummary, 0, len(res.Attempts))
	for _, a := range res.Attempts {
		attempts = append(attempts, metrics.AttemptSummary{Strategy: string(a.Strategy), Outcome: string(a.Outcome)})
	}

	s.emit(metrics.Event{
		ID:           res.ID,
		Timestamp:    res.ResolvedAt,
		Question:     res.Question.Text,
		TenantID:     res.Question.TenantID,
		Strategy:     string(res.Strategy),
		Quality:      string(res.Quality),
		LatencyMs:    res.LatencyMs,
		AttemptCount: len(res.Attempts),
		Success:      res.Succeeded(),
		Error:        res.Error,
		Attempts:     attempts,
	})
}

func (s *Service) emit(e metrics.Event) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(e)
}

// History returns durable summaries of a tenant's recent questions.
func (s *Service) History(ctx context.Context, tenantID string, limit int) ([]models.ResolutionRecord, error) {
	if s.history == nil {
		return nil, fmt.Errorf("resolution history is not configured")
	}
	return s.history.History(ctx, tenantID, limit)
}

// Report summarizes the quality tiers of a tenant's recent questions.
func (s *Service) Report(ctx context.Context, tenantID string, limit int) (quality.Report, error) {
	records, err := s.History(ctx, tenantID, limit)
	if err != nil {
		return quality.Report{}, err
	}

	samples := make([]quality.Sample, 0, len(records))
	for _, r := range records {
		samples = append(samples, quality.Sample{Tier: quality.ParseTier(r.Quality), LatencyMs: r.LatencyMs})
	}
	return quality.Summarize(samples), nil
}

func (s *Service) Feedback(ctx context.Context, feedback *models.Feedback) error {
	if s.history == nil {
		return fmt.Errorf("resolution history is not configured")
	}
	return s.history.StoreFeedback(ctx, feedback)
}
