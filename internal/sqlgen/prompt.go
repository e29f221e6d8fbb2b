package sqlgen

import (
	"fmt"
	"strings"
)

const systemPrompt = `You write a single PostgreSQL SELECT statement that answers a restaurant's question about its purchasing data.

Schema:
- invoices(id, tenant_id, invoice_number, supplier_id, supplier_name, invoice_date date, total_amount numeric, tax_amount numeric, status, created_at timestamptz)
- invoice_lines(id, tenant_id, invoice_id, product_id, description, quantity numeric, unit, unit_price numeric, line_total numeric, created_at timestamptz)
- products(id, tenant_id, description, category, unit, usage_count int, last_unit_price numeric, created_at timestamptz)
- suppliers(id, tenant_id, name, tax_id, usage_count int, created_at timestamptz)

Mandatory rules:
1. Every table reference must be filtered with tenant_id = '<tenant>' using the exact tenant id given. Qualify it with the alias when joining.
2. Superlatives (the most, the latest, the cheapest, the biggest) use ORDER BY ... LIMIT 1.
3. "This month" and "this week" windows use date_trunc('month', CURRENT_DATE) and date_trunc('week', CURRENT_DATE).
4. Product descriptions and supplier names are matched fuzzily with ILIKE '%term%', never with equality.
5. Only SELECT. Never modify data. One statement, no comments.
6. Reply with the SQL only. No markdown, no explanation.`

var workedExamples = []struct {
	question string
	sql      string
}{
	{
		question: "¿Cuánto gasté en tomates este mes?",
		sql: `SELECT COALESCE(SUM(l.line_total), 0) AS total_amount
FROM invoice_lines l
JOIN invoices i ON i.id = l.invoice_id AND i.tenant_id = l.tenant_id
WHERE l.tenant_id = '{tenant}'
  AND l.description ILIKE '%tomate%'
  AND i.invoice_date >= date_trunc('month', CURRENT_DATE)`,
	},
	{
		question: "¿Cuál es el proveedor más caro?",
		sql: `SELECT supplier_name, SUM(total_amount) AS total_amount
FROM invoices
WHERE tenant_id = '{tenant}'
GROUP BY supplier_name
ORDER BY total_amount DESC
LIMIT 1`,
	},
	{
		question: "¿A cuánto compré la última vez el aceite?",
		sql: `SELECT l.description, l.unit_price, i.invoice_date
FROM invoice_lines l
JOIN invoices i ON i.id = l.invoice_id AND i.tenant_id = l.tenant_id
WHERE l.tenant_id = '{tenant}'
  AND l.description ILIKE '%aceite%'
ORDER BY i.invoice_date DESC
LIMIT 1`,
	},
}

func buildUserPrompt(question, tenantID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tenant id: %s\n\nExamples:\n", tenantID)
	for _, ex := range workedExamples {
		fmt.Fprintf(&b, "Q: %s\nSQL:\n%s\n\n", ex.question, strings.ReplaceAll(ex.sql, "{tenant}", tenantID))
	}
	fmt.Fprintf(&b, "Q: %s\nSQL:\n", strings.TrimSpace(question))
	return b.String()
}
