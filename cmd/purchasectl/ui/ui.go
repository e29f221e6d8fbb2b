// Package ui renders purchasectl output.
package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/assistant"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/indexer"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/quality"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/storage/models"
)

type UI struct {
	out      io.Writer
	jsonMode bool
}

func New(out io.Writer, jsonMode, noColor bool) *UI {
	if noColor {
		color.NoColor = true
	}
	return &UI{out: out, jsonMode: jsonMode}
}

func (u *UI) Info(format string, args ...interface{}) {
	if u.jsonMode {
		return
	}
	color.New(color.FgCyan).Fprintf(u.out, "ℹ %s\n", fmt.Sprintf(format, args...))
}

func (u *UI) Warning(format string, args ...interface{}) {
	if u.jsonMode {
		return
	}
	color.New(color.FgYellow).Fprintf(u.out, "⚠ %s\n", fmt.Sprintf(format, args...))
}

func (u *UI) Success(format string, args ...interface{}) {
	if u.jsonMode {
		return
	}
	color.New(color.FgGreen).Fprintf(u.out, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Answer prints the narrative with its tier, plus the attempt trail.
func (u *UI) Answer(a assistant.Answer) error {
	if u.jsonMode {
		return u.JSON(a)
	}

	tierColor(a.Quality).Fprintf(u.out, "[%s]", a.Quality)
	if a.Strategy != "" {
		fmt.Fprintf(u.out, " %s", a.Strategy)
	}
	fmt.Fprintf(u.out, "\n\n%s\n", a.Text)

	if a.Result != nil && len(a.Result.Attempts) > 0 {
		fmt.Fprintln(u.out)
		for _, at := range a.Result.Attempts {
			line := fmt.Sprintf("  %-26s %-8s rows=%d %dms", at.Strategy, at.Outcome, at.RowCount, at.DurationMs)
			if at.Error != "" {
				line += " " + at.Error
			}
			color.New(color.Faint).Fprintln(u.out, line)
		}
	}
	if a.Recovery != nil {
		color.New(color.Faint).Fprintf(u.out, "  recovery: %s (recovered=%t)\n", a.Recovery.Category, a.Recovery.Recovered)
	}
	return nil
}

func (u *UI) History(records []models.ResolutionRecord) error {
	if u.jsonMode {
		return u.JSON(records)
	}
	if len(records) == 0 {
		u.Info("No resolutions recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(u.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tQUALITY\tSTRATEGY\tLATENCY\tQUESTION")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%sms\t%s\n",
			r.CreatedAt.Format("02/01/2006 15:04"),
			r.Quality,
			r.Strategy,
			strconv.FormatInt(r.LatencyMs, 10),
			truncate(r.Question, 60),
		)
	}
	return w.Flush()
}

func (u *UI) Report(r quality.Report) error {
	if u.jsonMode {
		return u.JSON(r)
	}
	fmt.Fprintf(u.out, "resolutions: %d  high: %.1f%%  degraded: %.1f%%  failed: %.1f%%  avg latency: %.0fms\n",
		r.Total, r.HighPercentage, r.DegradedPercentage, r.FailedPercentage, r.AvgLatencyMs)
	return nil
}

func (u *UI) Backfill(r *indexer.Report) error {
	if u.jsonMode {
		return u.JSON(r)
	}
	u.Success("Embedded %d products and %d suppliers for %s (%d mirrored)", r.Products, r.Suppliers, r.TenantID, r.Mirrored)
	return nil
}

func (u *UI) JSON(v interface{}) error {
	enc := json.NewEncoder(u.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func tierColor(t quality.Tier) *color.Color {
	switch t {
	case quality.High:
		return color.New(color.FgGreen, color.Bold)
	case quality.Medium, quality.Low:
		return color.New(color.FgYellow, color.Bold)
	case quality.Minimal:
		return color.New(color.FgMagenta, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func truncate(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max-1]) + "…"
}
