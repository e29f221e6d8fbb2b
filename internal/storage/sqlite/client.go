package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/storage/models"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/logger"
)

const MaxHistoryLimit = 200

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

// NewClientWithDB wraps an already opened handle.
func NewClientWithDB(db *sql.DB) *Client {
	return &Client{db: db}
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS resolution_log (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		question TEXT NOT NULL,
		strategy TEXT NOT NULL,
		quality TEXT NOT NULL,
		latency_ms INTEGER NOT NULL,
		attempt_count INTEGER NOT NULL,
		success INTEGER NOT NULL,
		error TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_resolution_tenant ON resolution_log(tenant_id, created_at);

	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		resolution_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		helpful INTEGER NOT NULL,
		comment TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (resolution_id) REFERENCES resolution_log(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_resolution ON feedback(resolution_id);
	`

	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertResolution(ctx context.Context, record *models.ResolutionRecord) error {
	query := `INSERT INTO resolution_log (id, tenant_id, question, strategy, quality, latency_ms, attempt_count, success, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`

	success := 0
	if record.Success {
		success = 1
	}

	_, err := c.db.ExecContext(ctx, query,
		record.ID,
		record.TenantID,
		record.Question,
		record.Strategy,
		record.Quality,
		record.LatencyMs,
		record.AttemptCount,
		success,
		record.Error,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert resolution: %w", err)
	}

	logger.Debug("Resolution recorded",
		zap.String("resolution_id", record.ID),
		zap.String("tenant_id", record.TenantID),
		zap.String("quality", record.Quality),
	)
	return nil
}

// History returns a tenant's most recent resolutions, newest first.
func (c *Client) History(ctx context.Context, tenantID string, limit int) ([]models.ResolutionRecord, error) {
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	query := `
		SELECT id, tenant_id, question, strategy, quality, latency_ms, attempt_count, success, COALESCE(error, ''), created_at
		FROM resolution_log
		WHERE tenant_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get resolution history: %w", err)
	}
	defer rows.Close()

	var records []models.ResolutionRecord
	for rows.Next() {
		var (
			r         models.ResolutionRecord
			success   int
			createdAt int64
		)
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Question, &r.Strategy, &r.Quality,
			&r.LatencyMs, &r.AttemptCount, &success, &r.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Success = success == 1
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}

func (c *Client) StoreFeedback(ctx context.Context, feedback *models.Feedback) error {
	query := `INSERT INTO feedback (resolution_id, tenant_id, helpful, comment, created_at) VALUES (?, ?, ?, ?, ?)`

	helpful := 0
	if feedback.Helpful {
		helpful = 1
	}

	_, err := c.db.ExecContext(ctx, query,
		feedback.ResolutionID,
		feedback.TenantID,
		helpful,
		feedback.Comment,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store feedback: %w", err)
	}

	logger.Info("Feedback stored",
		zap.String("resolution_id", feedback.ResolutionID),
		zap.Bool("helpful", feedback.Helpful),
	)
	return nil
}
