package synthesis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/aggregate"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/executor"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/query"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/search/semantic"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/search/textual"
)

const maxListed = 5

type shape int

const (
	shapeUnknown shape = iota
	shapeInvoice
	shapeAggregate
	shapeProductList
	shapeCandidates
	shapeMatches
	shapeSnapshot
	shapeRows
)

func payloadShape(p query.Payload) shape {
	if len(p.Rows) > 0 {
		first := p.Rows[0]
		switch {
		case has(first, "invoice_number") || (has(first, "supplier_name") && has(first, "invoice_date")):
			return shapeInvoice
		case has(first, "description"):
			return shapeProductList
		case len(p.Rows) == 1 && (has(first, "total_amount") || has(first, "invoice_count")):
			return shapeAggregate
		default:
			return shapeRows
		}
	}
	if len(p.Candidates) > 0 {
		return shapeCandidates
	}
	if len(p.Matches) > 0 {
		return shapeMatches
	}
	if p.Aggregate != nil {
		return shapeSnapshot
	}
	return shapeUnknown
}

func has(row executor.Row, key string) bool {
	_, ok := row[key]
	return ok
}

// templateAnswer builds a sentence from the payload alone.
func templateAnswer(p query.Payload) string {
	switch payloadShape(p) {
	case shapeInvoice:
		return invoiceSentence(p.Rows)
	case shapeAggregate:
		return aggregateSentence(p.Rows[0])
	case shapeProductList:
		return productListSentence(p.Rows)
	case shapeCandidates:
		return candidateSentence(p.Candidates)
	case shapeMatches:
		return matchSentence(p.Matches)
	case shapeSnapshot:
		return snapshotSentence(p.Aggregate)
	case shapeRows:
		return rowsSentence(p.Rows)
	default:
		return "No he encontrado datos que respondan a tu pregunta."
	}
}

func invoiceSentence(rows []executor.Row) string {
	describe := func(r executor.Row) string {
		var b strings.Builder
		b.WriteString("la factura")
		if n := toString(r["invoice_number"]); n != "" {
			b.WriteString(" " + n)
		}
		if s := toString(r["supplier_name"]); s != "" {
			b.WriteString(" de " + s)
		}
		if t, ok := parseDate(r["invoice_date"]); ok {
			b.WriteString(" del " + FormatDate(t))
		}
		if v, ok := toFloat(r["total_amount"]); ok {
			b.WriteString(", por " + FormatEuro(v))
		}
		return b.String()
	}

	if len(rows) == 1 {
		return "Es " + describe(rows[0]) + "."
	}
	return fmt.Sprintf("He encontrado %d facturas. La primera es %s.", len(rows), describe(rows[0]))
}

func aggregateSentence(row executor.Row) string {
	var parts []string
	if v, ok := toFloat(row["total_amount"]); ok {
		parts = append(parts, "el total es "+FormatEuro(v))
	}
	if n, ok := toFloat(row["invoice_count"]); ok {
		parts = append(parts, fmt.Sprintf("repartido en %s facturas", FormatNumber(n)))
	}
	if len(parts) == 0 {
		return rowsSentence([]executor.Row{row})
	}
	s := strings.Join(parts, ", ")
	return strings.ToUpper(s[:1]) + s[1:] + "."
}

func productListSentence(rows []executor.Row) string {
	items := make([]string, 0, maxListed)
	for i, r := range rows {
		if i == maxListed {
			break
		}
		item := toString(r["description"])
		if v, ok := toFloat(r["total_amount"]); ok {
			item += " (" + FormatEuro(v) + ")"
		} else if v, ok := toFloat(r["line_total"]); ok {
			item += " (" + FormatEuro(v) + ")"
		}
		items = append(items, item)
	}
	return fmt.Sprintf("Estos son los productos encontrados: %s.", strings.Join(items, "; "))
}

func candidateSentence(cs []semantic.Candidate) string {
	items := make([]string, 0, maxListed)
	for i, c := range cs {
		if i == maxListed {
			break
		}
		kind := "producto"
		if c.EntityType == semantic.EntitySupplier {
			kind = "proveedor"
		}
		items = append(items, fmt.Sprintf("%s «%s» (%s de similitud)", kind, c.Label, FormatPercent(c.Similarity)))
	}
	return fmt.Sprintf("No he encontrado un dato exacto, pero sí elementos parecidos en tus compras: %s.", strings.Join(items, "; "))
}

func matchSentence(ms []textual.Match) string {
	var products, suppliers []string
	for _, m := range ms {
		switch m.EntityType {
		case textual.EntitySupplier:
			if len(suppliers) < maxListed {
				suppliers = append(suppliers, m.Label)
			}
		default:
			if len(products) < maxListed {
				products = append(products, m.Label)
			}
		}
	}

	var parts []string
	if len(products) > 0 {
		parts = append(parts, "productos: "+strings.Join(products, ", "))
	}
	if len(suppliers) > 0 {
		parts = append(parts, "proveedores: "+strings.Join(suppliers, ", "))
	}
	return "He encontrado estas coincidencias en tus datos (" + strings.Join(parts, "; ") + ")."
}

func snapshotSentence(s *aggregate.Snapshot) string {
	if s.Empty() {
		return "Todavía no hay facturas registradas en tu cuenta."
	}

	var b strings.Builder
	if len(s.RecentInvoices) > 0 {
		inv := s.RecentInvoices[0]
		fmt.Fprintf(&b, "Tu última factura es de %s del %s por %s.", inv.SupplierName, FormatDate(inv.InvoiceDate), FormatEuro(inv.TotalAmount))
	}
	if len(s.TopSuppliers) > 0 {
		sup := s.TopSuppliers[0]
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "Tu proveedor principal es %s, con %s en %d facturas.", sup.Name, FormatEuro(sup.TotalAmount), sup.InvoiceCount)
	}
	if len(s.TopProducts) > 0 {
		names := make([]string, 0, len(s.TopProducts))
		for _, p := range s.TopProducts {
			names = append(names, p.Description)
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "Tus productos con más gasto son: %s.", strings.Join(names, ", "))
	}
	return b.String()
}

func rowsSentence(rows []executor.Row) string {
	first := rows[0]
	keys := make([]string, 0, len(first))
	for k := range first {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s: %s", strings.ReplaceAll(k, "_", " "), formatValue(k, first[k])))
	}

	if len(rows) == 1 {
		return "Resultado: " + strings.Join(pairs, ", ") + "."
	}
	return fmt.Sprintf("He encontrado %d resultados. El primero: %s.", len(rows), strings.Join(pairs, ", "))
}
