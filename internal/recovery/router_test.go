package recovery

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/executor"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/query"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/quality"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Category
	}{
		{fmt.Errorf("%w: question is empty", query.ErrInvalidInput), InvalidInput},
		{errors.New("llm completion unavailable: circuit breaker is open"), LLMUnavailable},
		{&executor.ExecutionError{Err: errors.New(`column "fecha" does not exist`)}, SQLExecutionError},
		{errors.New("semantic unavailable: embedding service unavailable: 503"), SemanticUnavailable},
		{errors.New("datastore unavailable: failed to load recent invoices: dial tcp: connection refused"), DatastoreUnavailable},
		{errors.New("textual search failed: context deadline exceeded"), DatastoreUnavailable},
		{errors.New("something odd"), Generic},
		{nil, Generic},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassify_FirstRuleWins(t *testing.T) {
	// Mentions both the model and the datastore; the model rule is listed first.
	assert.Equal(t, LLMUnavailable, ClassifyMessage("llm completion unavailable: dial tcp: connection refused"))
}

func TestClassify_WrapperDecidesOverRootCause(t *testing.T) {
	lost := &executor.ExecutionError{Err: errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")}
	assert.Equal(t, SQLExecutionError, Classify(lost))
	assert.Equal(t, SQLExecutionError, Classify(fmt.Errorf("template failed: %w", lost)))

	unauthorized := errors.New("semantic unavailable: failed to generate embedding: error, status code: 401, message: Incorrect API key provided. See https://platform.openai.com/account/api-keys")
	assert.Equal(t, LLMUnavailable, Classify(unauthorized))
}

type fakeRunner struct {
	result *query.ResolutionResult
	err    error
	got    []quality.Strategy
	panics bool
}

func (f *fakeRunner) RunStrategy(ctx context.Context, q query.Question, strategy quality.Strategy) (*query.ResolutionResult, error) {
	f.got = append(f.got, strategy)
	if f.panics {
		panic("boom")
	}
	return f.result, f.err
}

func TestRecover_InvalidInputEchoesWithoutRetry(t *testing.T) {
	runner := &fakeRunner{}
	q := query.Question{Text: "", TenantID: "rest-001"}

	resp := NewRouter(runner).Recover(context.Background(), q, q.Validate())

	assert.Equal(t, InvalidInput, resp.Category)
	require.NotNil(t, resp.Echo)
	assert.Equal(t, "", resp.Echo.Question)
	assert.Equal(t, "rest-001", resp.Echo.TenantID)
	assert.Empty(t, runner.got)
	assert.False(t, resp.Recovered)
	assert.NotEmpty(t, resp.Explanation)
	assert.NotEmpty(t, resp.Suggestions)
}

func TestRecover_Routes(t *testing.T) {
	tests := []struct {
		cause error
		want  quality.Strategy
	}{
		{errors.New("llm completion unavailable"), quality.StrategyTextual},
		{&executor.ExecutionError{Err: errors.New("syntax error at or near")}, quality.StrategySemantic},
		{errors.New("semantic unavailable"), quality.StrategyTextual},
		{errors.New("datastore unavailable"), quality.StrategyAggregate},
		{errors.New("weird"), quality.StrategyTextual},
	}

	for _, tt := range tests {
		runner := &fakeRunner{result: &query.ResolutionResult{Quality: quality.Low}}
		resp := NewRouter(runner).Recover(context.Background(), query.Question{Text: "harina", TenantID: "rest-001"}, tt.cause)

		assert.Equal(t, []quality.Strategy{tt.want}, runner.got, tt.cause.Error())
		assert.Equal(t, tt.want, resp.RetryStrategy)
		assert.True(t, resp.Recovered)
		assert.Equal(t, tt.cause.Error(), resp.TechnicalDetail)
	}
}

func TestRecover_FailedRetryIsStillAResponse(t *testing.T) {
	runner := &fakeRunner{
		result: &query.ResolutionResult{Quality: quality.None},
		err:    errors.New("datastore unavailable"),
	}

	resp := NewRouter(runner).Recover(context.Background(), query.Question{Text: "harina", TenantID: "rest-001"}, errors.New("datastore unavailable"))

	assert.False(t, resp.Recovered)
	assert.NotEmpty(t, resp.Explanation)
	assert.Contains(t, resp.TechnicalDetail, "retry with aggregate_fallback failed")
}

func TestRecover_NeverPanics(t *testing.T) {
	runner := &fakeRunner{panics: true}

	var resp Response
	assert.NotPanics(t, func() {
		resp = NewRouter(runner).Recover(context.Background(), query.Question{Text: "harina", TenantID: "rest-001"}, errors.New("weird"))
	})
	assert.Equal(t, Generic, resp.Category)
	assert.False(t, resp.Recovered)
	assert.Contains(t, resp.TechnicalDetail, "recovery panic")
}
