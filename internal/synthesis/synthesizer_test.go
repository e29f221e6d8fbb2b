package synthesis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/aggregate"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/executor"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/llm"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/quality"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/query"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/recovery"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/search/semantic"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/search/textual"
)

type fakeCompleter struct {
	content string
	err     error
	got     llm.CompletionRequest
	calls   int
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.calls++
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.content}, nil
}

func result(tier quality.Tier, strategy quality.Strategy, p query.Payload) *query.ResolutionResult {
	return &query.ResolutionResult{
		Question: query.Question{Text: "q", TenantID: "rest-001"},
		Strategy: strategy,
		Quality:  tier,
		Payload:  p,
	}
}

func TestSynthesize_HighUsesSummarizer(t *testing.T) {
	completer := &fakeCompleter{content: "  Tu última factura es de Makro por 310,50 €.  "}
	s := NewSynthesizer(completer)

	res := result(quality.High, quality.StrategySQL, query.Payload{Rows: []executor.Row{
		{"invoice_number": "F-77", "supplier_name": "Makro", "invoice_date": "2024-03-05", "total_amount": 310.5},
	}})

	got := s.Synthesize(context.Background(), "¿Cuál fue mi última factura?", res)

	assert.Equal(t, "Tu última factura es de Makro por 310,50 €.", got)
	assert.Equal(t, 1, completer.calls)
	assert.InDelta(t, 0.3, completer.got.Temperature, 1e-6)
	assert.Equal(t, 400, completer.got.MaxTokens)
	assert.Contains(t, completer.got.UserPrompt, "¿Cuál fue mi última factura?")
	assert.Contains(t, completer.got.UserPrompt, "310,50 €")
	assert.Contains(t, completer.got.UserPrompt, "05/03/2024")
	assert.NotContains(t, got, "Nota:")
}

func TestSynthesize_HighFallsBackToInvoiceTemplate(t *testing.T) {
	s := NewSynthesizer(&fakeCompleter{err: errors.New("llm completion unavailable")})

	res := result(quality.High, quality.StrategySQL, query.Payload{Rows: []executor.Row{
		{"invoice_number": "F-77", "supplier_name": "Makro", "invoice_date": "2024-03-05T00:00:00Z", "total_amount": 310.5},
	}})

	got := s.Synthesize(context.Background(), "¿Cuál fue mi última factura?", res)

	assert.Equal(t, "Es la factura F-77 de Makro del 05/03/2024, por 310,50 €.", got)
}

func TestSynthesize_ScenarioB(t *testing.T) {
	s := NewSynthesizer(&fakeCompleter{err: errors.New("llm completion unavailable")})

	res := result(quality.Medium, quality.StrategySemantic, query.Payload{Candidates: []semantic.Candidate{
		{EntityType: semantic.EntityProduct, ID: "p1", Label: "harina de trigo", Similarity: 0.82, Source: "postgres"},
	}})

	got := s.Synthesize(context.Background(), "cuánto gasté en harina", res)

	assert.Contains(t, got, "harina de trigo")
	assert.Contains(t, got, "82%")
	assert.Contains(t, got, Disclaimer(quality.StrategySemantic))
	assert.Contains(t, got, "búsqueda semántica")
}

func TestSynthesize_DegradedSummaryGetsDisclaimer(t *testing.T) {
	completer := &fakeCompleter{content: "Hay un producto parecido: harina de trigo (82%)."}
	s := NewSynthesizer(completer)

	res := result(quality.Medium, quality.StrategySemantic, query.Payload{Candidates: []semantic.Candidate{
		{EntityType: semantic.EntityProduct, Label: "harina de trigo", Similarity: 0.82},
	}})

	got := s.Synthesize(context.Background(), "cuánto gasté en harina", res)

	assert.Contains(t, completer.got.UserPrompt, `"similitud":"82%"`)
	assert.Contains(t, got, "harina de trigo (82%)")
	assert.Contains(t, got, Disclaimer(quality.StrategySemantic))
}

func TestSynthesize_LowListsMatches(t *testing.T) {
	s := NewSynthesizer(nil)

	res := result(quality.Low, quality.StrategyTextual, query.Payload{Matches: []textual.Match{
		{EntityType: textual.EntityProduct, ID: "p1", Label: "Aceite de oliva virgen"},
		{EntityType: textual.EntitySupplier, ID: "s1", Label: "Aceites del Sur"},
	}})

	got := s.Synthesize(context.Background(), "aceite", res)

	assert.Contains(t, got, "productos: Aceite de oliva virgen")
	assert.Contains(t, got, "proveedores: Aceites del Sur")
	assert.Contains(t, got, "búsqueda por palabras clave")
}

func TestSynthesize_EmptyReplyFallsBack(t *testing.T) {
	s := NewSynthesizer(&fakeCompleter{content: "   "})

	res := result(quality.High, quality.StrategySQL, query.Payload{Rows: []executor.Row{
		{"total_amount": 310.5, "invoice_count": 3.0},
	}})

	got := s.Synthesize(context.Background(), "¿cuánto gasté esta semana?", res)

	assert.Equal(t, "El total es 310,50 €, repartido en 3 facturas.", got)
}

func TestSynthesize_MinimalSkipsSummarizer(t *testing.T) {
	completer := &fakeCompleter{content: "unused"}
	s := NewSynthesizer(completer)

	res := result(quality.Minimal, quality.StrategyAggregate, query.Payload{Aggregate: &aggregate.Snapshot{
		RecentInvoices: []aggregate.InvoiceHeader{{SupplierName: "Makro", InvoiceDate: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), TotalAmount: 310.5}},
		TopSuppliers:   []aggregate.SupplierTotal{{Name: "Makro", InvoiceCount: 4, TotalAmount: 900}},
		TopProducts:    []aggregate.ProductTotal{{Description: "harina de trigo"}, {Description: "aceite"}},
	}})

	got := s.Synthesize(context.Background(), "algo raro", res)

	assert.Zero(t, completer.calls)
	assert.Contains(t, got, "Tu última factura es de Makro del 05/03/2024 por 310,50 €.")
	assert.Contains(t, got, "harina de trigo, aceite")
	assert.Contains(t, got, "Sugerencias:")
}

func TestSynthesize_NoneIsNeverEmpty(t *testing.T) {
	completer := &fakeCompleter{content: "unused"}
	s := NewSynthesizer(completer)

	for _, res := range []*query.ResolutionResult{
		nil,
		result(quality.None, quality.StrategyAggregate, query.Payload{}),
	} {
		got := s.Synthesize(context.Background(), "q", res)
		assert.NotEmpty(t, got)
		assert.Contains(t, got, "Sugerencias:")
	}
	assert.Zero(t, completer.calls)
}

func TestSynthesize_EveryTierProducesText(t *testing.T) {
	s := NewSynthesizer(&fakeCompleter{err: errors.New("down")})
	tiers := []quality.Tier{quality.High, quality.Medium, quality.Low, quality.Minimal, quality.None}

	for _, tier := range tiers {
		got := s.Synthesize(context.Background(), "q", result(tier, quality.StrategySQL, query.Payload{}))
		assert.NotEmpty(t, got, tier)
	}
}

func TestExplain(t *testing.T) {
	s := NewSynthesizer(nil)

	t.Run("unrecovered", func(t *testing.T) {
		got := s.Explain(context.Background(), "", recovery.Response{
			Explanation: "No he podido entender la consulta.",
			Suggestions: []string{"Escribe una pregunta."},
		})
		assert.Equal(t, "No he podido entender la consulta.\n\nSugerencias:\n- Escribe una pregunta.", got)
	})

	t.Run("recovered", func(t *testing.T) {
		got := s.Explain(context.Background(), "aceite", recovery.Response{
			Explanation: "He buscado por palabras clave.",
			Recovered:   true,
			Result: result(quality.Low, quality.StrategyTextual, query.Payload{Matches: []textual.Match{
				{EntityType: textual.EntityProduct, Label: "Aceite de girasol"},
			}}),
		})
		require.NotEmpty(t, got)
		assert.Contains(t, got, "He buscado por palabras clave.")
		assert.Contains(t, got, "Aceite de girasol")
	})
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "310,50 €", FormatEuro(310.5))
	assert.Equal(t, "82%", FormatPercent(0.82))
	assert.Equal(t, "100%", FormatPercent(1))
	assert.Equal(t, "05/03/2024", FormatDate(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "3", FormatNumber(3))
	assert.Equal(t, "2,50", FormatNumber(2.5))
}
