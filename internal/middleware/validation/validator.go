package validation

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/query"
)

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|<object|<embed|javascript:|vbscript:|onerror\s*=|onload\s*=|onclick\s*=|onmouseover\s*=)`)

type Config struct {
	// MaxQuestionBytes caps the raw question before it reaches the
	// assistant, which applies its own character limit.
	MaxQuestionBytes    int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware rejects malformed requests to the query API. Empty questions and
// malformed tenants in a body are left to the assistant, which answers them
// with a recovery message instead of an HTTP error.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQuestionBytes <= 0 {
		cfg.MaxQuestionBytes = 4 * query.MaxQuestionLength
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if !strings.HasPrefix(c.Path(), "/api/v1/query") {
			return c.Next()
		}

		if tenant := c.Query("tenant_id"); tenant != "" && !query.ValidTenantID(tenant) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Malformed tenant_id",
			})
		}

		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		if !allowedContentType(c.Get(fiber.HeaderContentType), cfg.AllowedContentTypes) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		var req map[string]interface{}
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid JSON format",
			})
		}

		raw, present := req["question"]
		if !present {
			return c.Next()
		}

		question, ok := raw.(string)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Question must be a string",
			})
		}

		if len(question) > cfg.MaxQuestionBytes {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": "Question exceeds maximum length",
			})
		}

		if containsXSS(question) {
			cfg.Logger.Warn("Potential XSS attempt",
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid question content",
			})
		}

		return c.Next()
	}
}

func allowedContentType(contentType string, allowed []string) bool {
	if contentType == "" {
		return false
	}
	for _, t := range allowed {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

func containsXSS(input string) bool {
	return xssPattern.MatchString(input)
}
