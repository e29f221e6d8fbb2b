// Package metrics observes resolutions without ever blocking them.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/logger"
)

const defaultWriteTimeout = 2 * time.Second

type AttemptSummary struct {
	Strategy string `json:"strategy"`
	Outcome  string `json:"outcome"`
}

// Event is the per-resolution record handed to every sink.
type Event struct {
	ID           string           `json:"id"`
	Timestamp    time.Time        `json:"timestamp"`
	Question     string           `json:"question"`
	TenantID     string           `json:"tenant_id"`
	Strategy     string           `json:"strategy"`
	Quality      string           `json:"quality"`
	LatencyMs    int64            `json:"latency_ms"`
	AttemptCount int              `json:"attempt_count"`
	Success      bool             `json:"success"`
	Error        string           `json:"error,omitempty"`
	Attempts     []AttemptSummary `json:"attempts,omitempty"`
}

type Sink interface {
	Name() string
	Write(ctx context.Context, e Event) error
}

// Recorder fans events out to its sinks in the background. Record returns
// immediately; sink errors and panics are logged and counted, never returned.
type Recorder struct {
	sinks   []Sink
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewRecorder(timeout time.Duration, sinks ...Sink) *Recorder {
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	return &Recorder{sinks: sinks, timeout: timeout}
}

func (r *Recorder) Record(e Event) {
	if r == nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	for _, sink := range r.sinks {
		r.wg.Add(1)
		go r.write(sink, e)
	}
}

func (r *Recorder) write(sink Sink, e Event) {
	defer r.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("sink panicked: %v", p)
			}
		}()
		return sink.Write(ctx, e)
	}()
	if err == nil {
		return
	}

	SinkFailures.WithLabelValues(sink.Name()).Inc()
	logger.Warn("Metrics sink write failed",
		zap.String("sink", sink.Name()),
		zap.String("resolution_id", e.ID),
		zap.String("tenant_id", e.TenantID),
		zap.Error(err),
	)
}

// Close stops accepting events and waits for in-flight writes.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}
