package models

import "time"

// ResolutionRecord is the durable summary of one answered question.
type ResolutionRecord struct {
	ID           string
	TenantID     string
	Question     string
	Strategy     string
	Quality      string
	LatencyMs    int64
	AttemptCount int
	Success      bool
	Error        string
	CreatedAt    time.Time
}

type Feedback struct {
	ID           int
	ResolutionID string
	TenantID     string
	Helpful      bool
	Comment      string
	CreatedAt    time.Time
}
