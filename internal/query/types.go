package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/aggregate"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/executor"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/quality"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/search/semantic"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/search/textual"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/sqlgen"
)

const MaxQuestionLength = 1000

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnvalidatedSQL = errors.New("generated sql was not validated; execution skipped")

	tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

type Question struct {
	Text     string    `json:"text"`
	TenantID string    `json:"tenant_id"`
	AskedAt  time.Time `json:"asked_at"`
}

// Validate rejects questions no strategy should see.
func (q Question) Validate() error {
	text := strings.TrimSpace(q.Text)
	switch {
	case text == "":
		return fmt.Errorf("%w: question is empty", ErrInvalidInput)
	case utf8.RuneCountInString(text) > MaxQuestionLength:
		return fmt.Errorf("%w: question exceeds %d characters", ErrInvalidInput, MaxQuestionLength)
	case strings.TrimSpace(q.TenantID) == "":
		return fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	case !ValidTenantID(q.TenantID):
		return fmt.Errorf("%w: malformed tenant id %q", ErrInvalidInput, q.TenantID)
	}
	return nil
}

// ValidTenantID reports whether id has the shape of a tenant identifier.
func ValidTenantID(id string) bool {
	return tenantIDPattern.MatchString(id)
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeEmpty   Outcome = "empty"
	OutcomeError   Outcome = "error"
)

type Attempt struct {
	Strategy   quality.Strategy `json:"strategy"`
	Outcome    Outcome          `json:"outcome"`
	RowCount   int              `json:"row_count"`
	Error      string           `json:"error,omitempty"`
	At         time.Time        `json:"at"`
	DurationMs int64            `json:"duration_ms"`
}

// AttemptLog is append-only and kept in execution order.
type AttemptLog []Attempt

func (l AttemptLog) Append(a Attempt) AttemptLog {
	return append(l, a)
}

func (l AttemptLog) Last() (Attempt, bool) {
	if len(l) == 0 {
		return Attempt{}, false
	}
	return l[len(l)-1], true
}

type Payload struct {
	SQL        *sqlgen.GeneratedSQL `json:"sql,omitempty"`
	Rows       []executor.Row       `json:"rows,omitempty"`
	Candidates []semantic.Candidate `json:"candidates,omitempty"`
	Matches    []textual.Match      `json:"matches,omitempty"`
	Aggregate  *aggregate.Snapshot  `json:"aggregate,omitempty"`
}

type ResolutionResult struct {
	ID         string           `json:"id"`
	Question   Question         `json:"question"`
	Strategy   quality.Strategy `json:"strategy"`
	Payload    Payload          `json:"payload"`
	Quality    quality.Tier     `json:"quality"`
	Narrative  string           `json:"narrative,omitempty"`
	Attempts   AttemptLog       `json:"attempts"`
	Error      string           `json:"error,omitempty"`
	ResolvedAt time.Time        `json:"resolved_at"`
	LatencyMs  int64            `json:"latency_ms"`

	// Err is the terminal failure, kept for classification.
	Err error `json:"-"`
}

func (r *ResolutionResult) Succeeded() bool {
	return r.Quality != quality.None
}
