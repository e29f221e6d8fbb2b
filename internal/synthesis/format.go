package synthesis

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.Spanish)

// FormatEuro renders an amount as "1.234,50 €".
func FormatEuro(v float64) string {
	return printer.Sprintf("%.2f €", v)
}

// FormatNumber renders a quantity with Spanish separators and no trailing zeros.
func FormatNumber(v float64) string {
	if v == math.Trunc(v) {
		return printer.Sprintf("%d", int64(v))
	}
	return printer.Sprintf("%.2f", v)
}

// FormatPercent renders a similarity in [0,1] as a whole percentage, e.g. "82%".
func FormatPercent(sim float64) string {
	return strconv.Itoa(int(math.Round(sim*100))) + "%"
}

// FormatDate renders dd/mm/yyyy.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, !d.IsZero()
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, d); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return FormatNumber(s)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// formatValue picks a rendering from the column name: amounts become euros,
// dates become dd/mm/yyyy.
func formatValue(column string, v any) string {
	col := strings.ToLower(column)
	if isAmountColumn(col) {
		if f, ok := toFloat(v); ok {
			return FormatEuro(f)
		}
	}
	if isDateColumn(col) {
		if t, ok := parseDate(v); ok {
			return FormatDate(t)
		}
	}
	if f, ok := toFloat(v); ok && !isIdentifierColumn(col) {
		return FormatNumber(f)
	}
	return toString(v)
}

func isAmountColumn(col string) bool {
	for _, s := range []string{"amount", "total", "price", "importe", "spent", "cost"} {
		if strings.Contains(col, s) && !strings.Contains(col, "count") && !strings.Contains(col, "quantity") {
			return true
		}
	}
	return false
}

func isDateColumn(col string) bool {
	return strings.Contains(col, "date") || strings.HasSuffix(col, "_at") || col == "month" || col == "week"
}

func isIdentifierColumn(col string) bool {
	return col == "id" || strings.HasSuffix(col, "_id") || strings.Contains(col, "number")
}
