// Package synthesis turns a graded ResolutionResult into the Spanish
// narrative shown to the restaurant.
package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/llm"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/quality"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/query"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/recovery"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/logger"
)

const (
	Temperature = 0.3
	MaxTokens   = 400

	maxPromptRows = 20
)

const systemPrompt = `Eres el asistente de compras de un restaurante. Responde en español, en un máximo de tres frases, usando solo los datos proporcionados.
Reglas:
- Importes en euros con coma decimal, por ejemplo 1.234,50 €.
- Fechas en formato dd/mm/aaaa.
- Si hay porcentajes de similitud, menciónalos tal cual.
- No inventes datos ni menciones SQL, tablas o identificadores internos.`

var (
	minimalSuggestions = []string{
		"Pregunta por una factura, un producto o un proveedor concreto.",
		"Indica un periodo, por ejemplo «este mes» o «la semana pasada».",
	}
	noneSuggestions = []string{
		"Prueba a reformular la pregunta.",
		"Vuelve a intentarlo en unos minutos.",
	}
)

type Synthesizer struct {
	completer llm.Completer
}

// NewSynthesizer accepts a nil completer; every answer then comes from the
// deterministic templates.
func NewSynthesizer(completer llm.Completer) *Synthesizer {
	return &Synthesizer{completer: completer}
}

// Synthesize never returns an empty string.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, res *query.ResolutionResult) string {
	if res == nil {
		return withSuggestions("No he podido procesar tu pregunta.", noneSuggestions)
	}

	switch res.Quality {
	case quality.High, quality.Medium, quality.Low:
		text := s.summarize(ctx, question, res)
		if res.Quality.Degraded() {
			text += "\n\n" + Disclaimer(res.Strategy)
		}
		return text
	case quality.Minimal:
		return withSuggestions(snapshotSentence(res.Payload.Aggregate)+
			" No he encontrado una respuesta concreta a tu pregunta, así que te muestro un resumen general.", minimalSuggestions)
	default:
		return withSuggestions("Lo siento, ahora mismo no puedo consultar tus datos de compras.", noneSuggestions)
	}
}

// Explain phrases a recovery response. A successful retry is summarized like
// any other result, prefixed by the explanation.
func (s *Synthesizer) Explain(ctx context.Context, question string, resp recovery.Response) string {
	if resp.Recovered && resp.Result != nil {
		return resp.Explanation + "\n\n" + s.Synthesize(ctx, question, resp.Result)
	}
	return withSuggestions(resp.Explanation, resp.Suggestions)
}

// Disclaimer names the method behind a degraded answer.
func Disclaimer(strategy quality.Strategy) string {
	return fmt.Sprintf("Nota: esta respuesta se ha obtenido mediante %s y puede no ser exacta.", strategy.Label())
}

func (s *Synthesizer) summarize(ctx context.Context, question string, res *query.ResolutionResult) string {
	fallback := templateAnswer(res.Payload)
	if s.completer == nil {
		return fallback
	}

	data, err := json.Marshal(promptPayload(res.Payload))
	if err != nil {
		logger.Warn("Failed to serialize payload for summarizer", zap.Error(err))
		return fallback
	}

	resp, err := s.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   fmt.Sprintf("Pregunta: %s\nDatos: %s\nRespuesta:", question, data),
		Temperature:  Temperature,
		MaxTokens:    MaxTokens,
	})
	if err != nil {
		logger.Warn("Summarizer unavailable, using template answer",
			zap.String("tenant_id", res.Question.TenantID),
			zap.Error(err),
		)
		return fallback
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return fallback
	}
	return text
}

// promptPayload is the payload with values already formatted for Spanish
// readers, so the model only has to copy them.
func promptPayload(p query.Payload) map[string]any {
	out := map[string]any{}

	if len(p.Rows) > 0 {
		rows := make([]map[string]string, 0, min(len(p.Rows), maxPromptRows))
		for i, r := range p.Rows {
			if i == maxPromptRows {
				break
			}
			row := make(map[string]string, len(r))
			for k, v := range r {
				row[k] = formatValue(k, v)
			}
			rows = append(rows, row)
		}
		out["filas"] = rows
		out["total_filas"] = len(p.Rows)
	}

	if len(p.Candidates) > 0 {
		cs := make([]map[string]string, 0, len(p.Candidates))
		for _, c := range p.Candidates {
			cs = append(cs, map[string]string{
				"tipo":      c.EntityType,
				"nombre":    c.Label,
				"similitud": FormatPercent(c.Similarity),
			})
		}
		out["parecidos"] = cs
	}

	if len(p.Matches) > 0 {
		ms := make([]map[string]string, 0, len(p.Matches))
		for _, m := range p.Matches {
			entry := map[string]string{"tipo": m.EntityType, "nombre": m.Label}
			if m.Detail != "" {
				entry["detalle"] = m.Detail
			}
			ms = append(ms, entry)
		}
		out["coincidencias"] = ms
	}

	return out
}

func withSuggestions(text string, suggestions []string) string {
	if len(suggestions) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\nSugerencias:")
	for _, s := range suggestions {
		b.WriteString("\n- ")
		b.WriteString(s)
	}
	return b.String()
}
