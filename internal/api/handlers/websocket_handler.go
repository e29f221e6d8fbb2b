package handlers

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/assistant"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/logger"
)

const defaultAnswerTimeout = 60 * time.Second

type WebSocketHandler struct {
	assistant Assistant
	timeout   time.Duration
}

func NewWebSocketHandler(assistant Assistant, timeout time.Duration) *WebSocketHandler {
	if timeout <= 0 {
		timeout = defaultAnswerTimeout
	}
	return &WebSocketHandler{
		assistant: assistant,
		timeout:   timeout,
	}
}

type wsRequest struct {
	Type     string `json:"type"`
	Question string `json:"question"`
	TenantID string `json:"tenant_id"`
}

type wsAnswer struct {
	Type string `json:"type"`
	assistant.Answer
}

// HandleConnection answers each request message with exactly one complete
// answer message.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg wsRequest
		if err := c.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Error("Failed to read WebSocket message", zap.Error(err))
			}
			return
		}

		answer, ok := h.answer(msg)
		if !ok {
			if err := h.sendError(c, "Unsupported message type"); err != nil {
				return
			}
			continue
		}

		if err := c.WriteJSON(wsAnswer{Type: "answer", Answer: answer}); err != nil {
			logger.Error("Failed to write WebSocket answer", zap.Error(err))
			return
		}
	}
}

func (h *WebSocketHandler) answer(msg wsRequest) (assistant.Answer, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	switch msg.Type {
	case "query":
		return h.assistant.Ask(ctx, msg.Question, msg.TenantID), true
	case "sql":
		return h.assistant.AskSQL(ctx, msg.Question, msg.TenantID), true
	default:
		return assistant.Answer{}, false
	}
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
