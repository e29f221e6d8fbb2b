package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/executor"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/metrics"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/quality"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/query"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/recovery"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/search/semantic"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/search/textual"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/storage/models"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/synthesis"
)

type fakeResolver struct {
	resolved   *query.ResolutionResult
	byStrategy map[quality.Strategy]*query.ResolutionResult
	errs       map[quality.Strategy]error

	resolveCalls int
	strategies   []quality.Strategy
}

func (f *fakeResolver) Resolve(ctx context.Context, q query.Question) *query.ResolutionResult {
	f.resolveCalls++
	res := *f.resolved
	res.Question = q
	return &res
}

func (f *fakeResolver) RunStrategy(ctx context.Context, q query.Question, strategy quality.Strategy) (*query.ResolutionResult, error) {
	f.strategies = append(f.strategies, strategy)
	res := f.byStrategy[strategy]
	if res == nil {
		res = &query.ResolutionResult{Quality: quality.None, Strategy: strategy}
	}
	res.Question = q
	return res, f.errs[strategy]
}

type captureRecorder struct {
	mu     sync.Mutex
	events []metrics.Event
}

func (c *captureRecorder) Record(e metrics.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

type fakeHistory struct {
	records  []models.ResolutionRecord
	feedback []*models.Feedback
}

func (f *fakeHistory) History(ctx context.Context, tenantID string, limit int) ([]models.ResolutionRecord, error) {
	return f.records, nil
}

func (f *fakeHistory) StoreFeedback(ctx context.Context, feedback *models.Feedback) error {
	f.feedback = append(f.feedback, feedback)
	return nil
}

func newService(resolver *fakeResolver, recorder *captureRecorder, history HistoryStore) *Service {
	var rec EventRecorder
	if recorder != nil {
		rec = recorder
	}
	return NewService(resolver, synthesis.NewSynthesizer(nil), recovery.NewRouter(resolver), rec, history)
}

func scenarioB() *query.ResolutionResult {
	return &query.ResolutionResult{
		ID:       "res-b",
		Strategy: quality.StrategySemantic,
		Quality:  quality.Medium,
		Payload: query.Payload{Candidates: []semantic.Candidate{
			{EntityType: semantic.EntityProduct, ID: "p1", Label: "harina de trigo", Similarity: 0.82},
		}},
		Attempts: query.AttemptLog{
			{Strategy: quality.StrategySQL, Outcome: query.OutcomeEmpty},
			{Strategy: quality.StrategySemantic, Outcome: query.OutcomeSuccess, RowCount: 1},
		},
		ResolvedAt: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
		LatencyMs:  140,
	}
}

func TestAsk_ScenarioB(t *testing.T) {
	resolver := &fakeResolver{resolved: scenarioB()}
	recorder := &captureRecorder{}

	answer := newService(resolver, recorder, nil).Ask(context.Background(), "cuánto gasté en harina", "rest-001")

	assert.Equal(t, quality.Medium, answer.Quality)
	assert.Contains(t, answer.Text, "harina de trigo")
	assert.Contains(t, answer.Text, "82%")
	require.NotNil(t, answer.Result)
	assert.Equal(t, answer.Text, answer.Result.Narrative)
	assert.Nil(t, answer.Recovery)

	require.Len(t, recorder.events, 1)
	e := recorder.events[0]
	assert.Equal(t, "res-b", e.ID)
	assert.Equal(t, "MEDIUM", e.Quality)
	assert.Equal(t, 2, e.AttemptCount)
	assert.True(t, e.Success)
	assert.Equal(t, "rest-001", e.TenantID)
}

func TestAsk_ScenarioC_EmptyQuestion(t *testing.T) {
	resolver := &fakeResolver{resolved: scenarioB()}
	recorder := &captureRecorder{}

	answer := newService(resolver, recorder, nil).Ask(context.Background(), "", "rest-001")

	assert.Zero(t, resolver.resolveCalls)
	assert.Empty(t, resolver.strategies)
	assert.Nil(t, answer.Result)
	assert.Equal(t, quality.None, answer.Quality)
	require.NotNil(t, answer.Recovery)
	assert.Equal(t, recovery.InvalidInput, answer.Recovery.Category)
	require.NotNil(t, answer.Recovery.Echo)
	assert.Equal(t, "rest-001", answer.Recovery.Echo.TenantID)
	assert.NotEmpty(t, answer.Text)

	require.Len(t, recorder.events, 1)
	assert.Equal(t, 0, recorder.events[0].AttemptCount)
	assert.False(t, recorder.events[0].Success)
}

func TestAsk_MalformedTenant(t *testing.T) {
	resolver := &fakeResolver{resolved: scenarioB()}

	answer := newService(resolver, nil, nil).Ask(context.Background(), "última factura", "rest 001; drop")

	assert.Zero(t, resolver.resolveCalls)
	require.NotNil(t, answer.Recovery)
	assert.Equal(t, recovery.InvalidInput, answer.Recovery.Category)
}

func TestAskSQL_Success(t *testing.T) {
	resolver := &fakeResolver{byStrategy: map[quality.Strategy]*query.ResolutionResult{
		quality.StrategySQL: {
			ID:       "res-sql",
			Strategy: quality.StrategySQL,
			Quality:  quality.High,
			Payload: query.Payload{Rows: []executor.Row{
				{"invoice_number": "F-77", "supplier_name": "Makro", "invoice_date": "2024-03-05", "total_amount": 310.5},
			}},
			Attempts: query.AttemptLog{{Strategy: quality.StrategySQL, Outcome: query.OutcomeSuccess, RowCount: 1}},
		},
	}}

	answer := newService(resolver, nil, nil).AskSQL(context.Background(), "¿Cuál fue mi última factura?", "rest-001")

	assert.Equal(t, quality.High, answer.Quality)
	assert.Nil(t, answer.Recovery)
	assert.Contains(t, answer.Text, "F-77")
	assert.Equal(t, []quality.Strategy{quality.StrategySQL}, resolver.strategies)
}

func TestAskSQL_ExecutionErrorRecoversWithSemantic(t *testing.T) {
	sqlErr := &executor.ExecutionError{Err: errors.New(`column "fecha" does not exist`)}
	resolver := &fakeResolver{
		byStrategy: map[quality.Strategy]*query.ResolutionResult{
			quality.StrategySQL: {ID: "res-sql", Strategy: quality.StrategySQL, Quality: quality.None, Err: sqlErr, Error: sqlErr.Error()},
			quality.StrategySemantic: {
				ID:       "res-sem",
				Strategy: quality.StrategySemantic,
				Quality:  quality.Medium,
				Payload: query.Payload{Candidates: []semantic.Candidate{
					{EntityType: semantic.EntityProduct, Label: "harina de trigo", Similarity: 0.82},
				}},
				Attempts: query.AttemptLog{{Strategy: quality.StrategySemantic, Outcome: query.OutcomeSuccess, RowCount: 1}},
			},
		},
		errs: map[quality.Strategy]error{quality.StrategySQL: sqlErr},
	}
	recorder := &captureRecorder{}

	answer := newService(resolver, recorder, nil).AskSQL(context.Background(), "cuánto gasté en harina", "rest-001")

	assert.Equal(t, []quality.Strategy{quality.StrategySQL, quality.StrategySemantic}, resolver.strategies)
	require.NotNil(t, answer.Recovery)
	assert.Equal(t, recovery.SQLExecutionError, answer.Recovery.Category)
	assert.True(t, answer.Recovery.Recovered)
	assert.Equal(t, quality.Medium, answer.Quality)
	assert.Contains(t, answer.Text, "harina de trigo")
	assert.NotContains(t, answer.Text, "fecha")

	require.Len(t, recorder.events, 1)
	assert.Equal(t, "res-sem", recorder.events[0].ID)
}

func TestAskSQL_NoRowsFallsToTextual(t *testing.T) {
	resolver := &fakeResolver{byStrategy: map[quality.Strategy]*query.ResolutionResult{
		quality.StrategyTextual: {
			Strategy: quality.StrategyTextual,
			Quality:  quality.Low,
			Payload:  query.Payload{Matches: []textual.Match{{EntityType: textual.EntityProduct, Label: "Levadura fresca"}}},
		},
	}}

	answer := newService(resolver, nil, nil).AskSQL(context.Background(), "levadura", "rest-001")

	assert.Equal(t, []quality.Strategy{quality.StrategySQL, quality.StrategyTextual}, resolver.strategies)
	require.NotNil(t, answer.Recovery)
	assert.Equal(t, recovery.Generic, answer.Recovery.Category)
	assert.Equal(t, ErrNoRows.Error(), answer.Recovery.TechnicalDetail)
	assert.Equal(t, quality.Low, answer.Quality)
	assert.Contains(t, answer.Text, "Levadura fresca")
}

func TestReportAndFeedback(t *testing.T) {
	history := &fakeHistory{records: []models.ResolutionRecord{
		{Quality: "HIGH", LatencyMs: 100},
		{Quality: "MEDIUM", LatencyMs: 200},
		{Quality: "NONE", LatencyMs: 300},
		{Quality: "HIGH", LatencyMs: 200},
	}}
	svc := newService(&fakeResolver{}, nil, history)

	report, err := svc.Report(context.Background(), "rest-001", 50)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Total)
	assert.InDelta(t, 50, report.HighPercentage, 1e-9)
	assert.InDelta(t, 25, report.DegradedPercentage, 1e-9)
	assert.InDelta(t, 200, report.AvgLatencyMs, 1e-9)

	require.NoError(t, svc.Feedback(context.Background(), &models.Feedback{ResolutionID: "res-1", Helpful: true}))
	assert.Len(t, history.feedback, 1)
}

func TestHistory_NotConfigured(t *testing.T) {
	svc := newService(&fakeResolver{}, nil, nil)

	_, err := svc.History(context.Background(), "rest-001", 10)
	assert.Error(t, err)
}
