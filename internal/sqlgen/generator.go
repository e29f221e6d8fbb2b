// Package sqlgen turns a question into a tenant-scoped SELECT, either from the
// canonical catalog or through one LLM completion.
package sqlgen

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/catalog"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/llm"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/sqlsafety"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/logger"
)

const (
	Temperature = 0.1
	MaxTokens   = 500

	SafeDefaultLimit = 10
)

type Origin string

const (
	OriginTemplate    Origin = "template"
	OriginLLM         Origin = "llm"
	OriginSafeDefault Origin = "safe_default"
)

type GeneratedSQL struct {
	Text       string `json:"text"`
	Origin     Origin `json:"origin"`
	Validated  bool   `json:"validated"`
	TemplateID string `json:"template_id,omitempty"`
	// Cause is why the safe default replaced the model's answer.
	Cause error `json:"-"`
}

type Generator struct {
	completer llm.Completer
	resolver  *catalog.Resolver
}

func NewGenerator(completer llm.Completer, resolver *catalog.Resolver) *Generator {
	if resolver == nil {
		resolver = catalog.NewResolver()
	}
	return &Generator{completer: completer, resolver: resolver}
}

// Resolve prefers a canonical template and only asks the model when no
// template matches.
func (g *Generator) Resolve(ctx context.Context, question, tenantID string) GeneratedSQL {
	if m, ok := g.resolver.Match(question, tenantID); ok {
		logger.Debug("Canonical template matched",
			zap.String("tenant_id", tenantID),
			zap.String("template_id", m.TemplateID),
		)
		return GeneratedSQL{
			Text:       m.SQL,
			Origin:     OriginTemplate,
			Validated:  sqlsafety.IsSafe(m.SQL, tenantID),
			TemplateID: m.TemplateID,
		}
	}
	return g.Generate(ctx, question, tenantID)
}

// Generate asks the model for a statement. A failed request or a vetoed reply
// yields SafeDefault rather than an error.
func (g *Generator) Generate(ctx context.Context, question, tenantID string) GeneratedSQL {
	if g.completer == nil {
		return safeDefault(tenantID, fmt.Errorf("llm unavailable: no completer configured"))
	}

	resp, err := g.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(question, tenantID),
		Temperature:  Temperature,
		MaxTokens:    MaxTokens,
	})
	if err != nil {
		logger.Warn("SQL generation failed, using safe default",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return safeDefault(tenantID, fmt.Errorf("failed to generate sql: %w", err))
	}

	sql := StripMarkdownSQL(resp.Content)
	if err := sqlsafety.Validate(sql, tenantID); err != nil {
		logger.Warn("Generated SQL vetoed, using safe default",
			zap.String("tenant_id", tenantID),
			zap.String("sql", sql),
			zap.Error(err),
		)
		return safeDefault(tenantID, fmt.Errorf("unsafe generated sql: %w", err))
	}

	return GeneratedSQL{Text: sql, Origin: OriginLLM, Validated: true}
}

// SafeDefault lists the tenant's latest invoices.
func SafeDefault(tenantID string) string {
	literal := "'" + strings.ReplaceAll(tenantID, "'", "''") + "'"
	return fmt.Sprintf(`SELECT id, invoice_number, supplier_name, invoice_date, total_amount
FROM invoices
WHERE tenant_id = %s
ORDER BY invoice_date DESC
LIMIT %d`, literal, SafeDefaultLimit)
}

func safeDefault(tenantID string, cause error) GeneratedSQL {
	sql := SafeDefault(tenantID)
	return GeneratedSQL{
		Text:      sql,
		Origin:    OriginSafeDefault,
		Validated: sqlsafety.IsSafe(sql, tenantID),
		Cause:     cause,
	}
}

// StripMarkdownSQL removes a surrounding fenced code block, if any.
func StripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```SQL")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if i := strings.Index(trimmed, "```"); i >= 0 {
			trimmed = trimmed[:i]
		}
	}
	return strings.TrimSpace(trimmed)
}
