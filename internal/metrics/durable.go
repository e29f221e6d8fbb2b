package metrics

import (
	"context"
	"fmt"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/storage/models"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/logger"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/retry"
)

type ResolutionWriter interface {
	InsertResolution(ctx context.Context, record *models.ResolutionRecord) error
}

// DurableSink appends each event to the resolution log, retrying transient
// write failures within the recorder's timeout.
type DurableSink struct {
	writer ResolutionWriter
	retry  retry.Config
}

func NewDurableSink(writer ResolutionWriter, cfg retry.Config) *DurableSink {
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	return &DurableSink{writer: writer, retry: cfg}
}

func (s *DurableSink) Name() string {
	return "resolution_log"
}

func (s *DurableSink) Write(ctx context.Context, e Event) error {
	record := &models.ResolutionRecord{
		ID:           e.ID,
		TenantID:     e.TenantID,
		Question:     e.Question,
		Strategy:     e.Strategy,
		Quality:      e.Quality,
		LatencyMs:    e.LatencyMs,
		AttemptCount: e.AttemptCount,
		Success:      e.Success,
		Error:        e.Error,
		CreatedAt:    e.Timestamp,
	}

	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		return s.writer.InsertResolution(ctx, record)
	})
	if err != nil {
		return fmt.Errorf("failed to persist resolution %s: %w", e.ID, err)
	}
	return nil
}
