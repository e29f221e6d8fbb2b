// Package executor runs validated statements against the tenant datastore
// through its read-only procedure. It never retries.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/sqlsafety"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/logger"
)

var ErrNotValidated = errors.New("statement rejected by the safety validator")

type Row map[string]any

// Datastore executes sql for tenantID with read-only privileges and returns
// one decoded JSON object per row.
type Datastore interface {
	ExecuteReadOnly(ctx context.Context, sql, tenantID string) ([]Row, error)
}

// ExecutionError is a datastore failure while running an accepted statement.
type ExecutionError struct {
	SQL      string
	TenantID string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("sql execution error: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

type Executor struct {
	store Datastore
}

func NewExecutor(store Datastore) *Executor {
	return &Executor{store: store}
}

// Execute validates sql again, since the caller may not be the generator.
func (e *Executor) Execute(ctx context.Context, sql, tenantID string) ([]Row, error) {
	if err := sqlsafety.Validate(sql, tenantID); err != nil {
		logger.Warn("Refusing to execute unvalidated statement",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrNotValidated, err)
	}

	start := time.Now()
	rows, err := e.store.ExecuteReadOnly(ctx, sql, tenantID)
	if err != nil {
		return nil, &ExecutionError{SQL: sql, TenantID: tenantID, Err: err}
	}

	logger.Debug("Statement executed",
		zap.String("tenant_id", tenantID),
		zap.Int("rows", len(rows)),
		zap.Int64("latency_ms", time.Since(start).Milliseconds()),
	)

	return rows, nil
}
