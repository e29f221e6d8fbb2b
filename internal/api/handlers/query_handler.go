package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/assistant"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/quality"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/storage/models"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/logger"
)

const defaultHistoryLimit = 50

type Assistant interface {
	Ask(ctx context.Context, question, tenantID string) assistant.Answer
	AskSQL(ctx context.Context, question, tenantID string) assistant.Answer
	History(ctx context.Context, tenantID string, limit int) ([]models.ResolutionRecord, error)
	Report(ctx context.Context, tenantID string, limit int) (quality.Report, error)
	Feedback(ctx context.Context, feedback *models.Feedback) error
}

type QueryHandler struct {
	assistant Assistant
}

func NewQueryHandler(assistant Assistant) *QueryHandler {
	return &QueryHandler{
		assistant: assistant,
	}
}

type questionRequest struct {
	Question string `json:"question"`
	TenantID string `json:"tenant_id"`
}

// HandleQuery answers through the full hybrid path. Invalid questions still
// get a 200 with the recovery explanation in the answer.
func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req questionRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	answer := h.assistant.Ask(c.Context(), req.Question, req.TenantID)
	return c.JSON(answer)
}

func (h *QueryHandler) HandleSQLQuery(c *fiber.Ctx) error {
	var req questionRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	answer := h.assistant.AskSQL(c.Context(), req.Question, req.TenantID)
	return c.JSON(answer)
}

func (h *QueryHandler) GetQueryHistory(c *fiber.Ctx) error {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "tenant_id is required",
		})
	}

	records, err := h.assistant.History(c.Context(), tenantID, queryLimit(c))
	if err != nil {
		logger.Error("Failed to load resolution history", zap.String("tenant_id", tenantID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}
	if records == nil {
		records = []models.ResolutionRecord{}
	}

	return c.JSON(fiber.Map{
		"tenant_id": tenantID,
		"history":   records,
	})
}

func (h *QueryHandler) GetQualityReport(c *fiber.Ctx) error {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "tenant_id is required",
		})
	}

	report, err := h.assistant.Report(c.Context(), tenantID, queryLimit(c))
	if err != nil {
		logger.Error("Failed to build quality report", zap.String("tenant_id", tenantID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build report",
		})
	}

	return c.JSON(fiber.Map{
		"tenant_id": tenantID,
		"report":    report,
	})
}

func (h *QueryHandler) SubmitFeedback(c *fiber.Ctx) error {
	var req struct {
		ResolutionID string `json:"resolution_id"`
		TenantID     string `json:"tenant_id"`
		Helpful      bool   `json:"helpful"`
		Comment      string `json:"comment"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ResolutionID == "" || req.TenantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "resolution_id and tenant_id are required",
		})
	}

	err := h.assistant.Feedback(c.Context(), &models.Feedback{
		ResolutionID: req.ResolutionID,
		TenantID:     req.TenantID,
		Helpful:      req.Helpful,
		Comment:      req.Comment,
	})
	if err != nil {
		logger.Error("Failed to store feedback", zap.String("resolution_id", req.ResolutionID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store feedback",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "stored",
	})
}

func queryLimit(c *fiber.Ctx) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return defaultHistoryLimit
	}
	return limit
}
