// Package catalog holds the canonical, pre-vetted queries for recognized
// question shapes and resolves a question to at most one of them.
package catalog

import (
	"strings"
)

// TenantPlaceholder is replaced by the quoted tenant id when a template is rendered.
const TenantPlaceholder = "{{tenant_id}}"

// Predicate is evaluated against the lowercased question.
type Predicate func(question string) bool

type Template struct {
	ID          string
	Description string
	Match       Predicate
	SQL         string
}

// Render substitutes the tenant placeholder with a SQL string literal.
func (t Template) Render(tenantID string) string {
	literal := "'" + strings.ReplaceAll(tenantID, "'", "''") + "'"
	return strings.ReplaceAll(t.SQL, TenantPlaceholder, literal)
}

func contains(s string) Predicate {
	return func(q string) bool { return strings.Contains(q, s) }
}

func anyOf(ps ...Predicate) Predicate {
	return func(q string) bool {
		for _, p := range ps {
			if p(q) {
				return true
			}
		}
		return false
	}
}

func allOf(ps ...Predicate) Predicate {
	return func(q string) bool {
		for _, p := range ps {
			if !p(q) {
				return false
			}
		}
		return true
	}
}

func containsAny(subs ...string) Predicate {
	ps := make([]Predicate, len(subs))
	for i, s := range subs {
		ps[i] = contains(s)
	}
	return anyOf(ps...)
}

const (
	LatestInvoice      = "latest-invoice"
	WeeklyTotal        = "weekly-total"
	MonthlySpend       = "monthly-spend"
	ActiveSuppliers    = "active-suppliers"
	TopProducts        = "top-products"
	YearlySummary      = "yearly-summary"
	TopSuppliers       = "top-suppliers"
	CategoryBreakdown  = "category-breakdown"
	RecentlyArrived    = "recently-arrived"
	LatestBySystemDate = "latest-by-system-date"
)

var (
	latestWords  = containsAny("última", "ultima", "último", "ultimo", "más reciente", "mas reciente")
	spendWords   = containsAny("gast", "total", "cuánto", "cuanto", "importe")
	invoiceWords = containsAny("factura", "albarán", "albaran")
)

// Default returns the canonical templates in precedence order. A question that
// satisfies several predicates resolves to the first one listed.
func Default() []Template {
	return []Template{
		{
			ID:          LatestInvoice,
			Description: "Most recent invoice by invoice date",
			Match:       allOf(latestWords, invoiceWords),
			SQL: `SELECT id, invoice_number, supplier_name, invoice_date, total_amount
FROM invoices
WHERE tenant_id = {{tenant_id}}
ORDER BY invoice_date DESC
LIMIT 1`,
		},
		{
			ID:          WeeklyTotal,
			Description: "Spend and invoice count for the current week",
			Match:       allOf(contains("semana"), spendWords),
			SQL: `SELECT COUNT(*) AS invoice_count, COALESCE(SUM(total_amount), 0) AS total_amount
FROM invoices
WHERE tenant_id = {{tenant_id}}
  AND invoice_date >= date_trunc('week', CURRENT_DATE)`,
		},
		{
			ID:          MonthlySpend,
			Description: "Spend and invoice count for the current month",
			Match:       allOf(containsAny("este mes", "del mes", "mensual"), spendWords),
			SQL: `SELECT COUNT(*) AS invoice_count, COALESCE(SUM(total_amount), 0) AS total_amount
FROM invoices
WHERE tenant_id = {{tenant_id}}
  AND invoice_date >= date_trunc('month', CURRENT_DATE)`,
		},
		{
			ID:          ActiveSuppliers,
			Description: "Suppliers invoiced in the last 90 days",
			Match:       allOf(contains("proveedores"), containsAny("activos", "cuántos", "cuantos", "qué proveedores", "que proveedores", "lista")),
			SQL: `SELECT supplier_name, COUNT(*) AS invoice_count, MAX(invoice_date) AS last_invoice_date
FROM invoices
WHERE tenant_id = {{tenant_id}}
  AND invoice_date >= CURRENT_DATE - INTERVAL '90 days'
GROUP BY supplier_name
ORDER BY last_invoice_date DESC`,
		},
		{
			ID:          TopProducts,
			Description: "Products with the highest purchased value",
			Match:       allOf(contains("producto"), containsAny("más compr", "mas compr", "top", "principales", "más caro", "mas caro")),
			SQL: `SELECT description, SUM(quantity) AS total_quantity, SUM(line_total) AS total_amount
FROM invoice_lines
WHERE tenant_id = {{tenant_id}}
GROUP BY description
ORDER BY total_amount DESC
LIMIT 10`,
		},
		{
			ID:          YearlySummary,
			Description: "Monthly totals for the current year",
			Match:       allOf(containsAny("este año", "del año", "anual"), anyOf(spendWords, contains("resumen"))),
			SQL: `SELECT date_trunc('month', invoice_date) AS month, COUNT(*) AS invoice_count, SUM(total_amount) AS total_amount
FROM invoices
WHERE tenant_id = {{tenant_id}}
  AND invoice_date >= date_trunc('year', CURRENT_DATE)
GROUP BY month
ORDER BY month`,
		},
		{
			ID:          TopSuppliers,
			Description: "Suppliers ranked by invoiced total",
			Match:       allOf(contains("proveedor"), containsAny("más", "mas ", "mayor", "principal", "top")),
			SQL: `SELECT supplier_name, COUNT(*) AS invoice_count, SUM(total_amount) AS total_amount
FROM invoices
WHERE tenant_id = {{tenant_id}}
GROUP BY supplier_name
ORDER BY total_amount DESC
LIMIT 5`,
		},
		{
			ID:          CategoryBreakdown,
			Description: "Purchased value per product category",
			Match:       contains("categor"),
			SQL: `SELECT COALESCE(p.category, 'sin categoría') AS category, SUM(l.line_total) AS total_amount
FROM invoice_lines l
LEFT JOIN products p ON p.id = l.product_id AND p.tenant_id = l.tenant_id
WHERE l.tenant_id = {{tenant_id}}
GROUP BY 1
ORDER BY total_amount DESC`,
		},
		{
			ID:          RecentlyArrived,
			Description: "Invoices received in the last seven days",
			Match:       containsAny("llegado", "llegaron", "recibido", "recibidas", "recibí", "recibi "),
			SQL: `SELECT id, invoice_number, supplier_name, invoice_date, total_amount
FROM invoices
WHERE tenant_id = {{tenant_id}}
  AND invoice_date >= CURRENT_DATE - INTERVAL '7 days'
ORDER BY invoice_date DESC
LIMIT 20`,
		},
		{
			ID:          LatestBySystemDate,
			Description: "Most recently registered invoice regardless of its invoice date",
			Match:       allOf(latestWords, containsAny("subida", "subido", "procesad", "registrad", "cargad", "sistema")),
			SQL: `SELECT id, invoice_number, supplier_name, invoice_date, total_amount, created_at
FROM invoices
WHERE tenant_id = {{tenant_id}}
ORDER BY created_at DESC
LIMIT 1`,
		},
	}
}
