package handlers

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/saasarch/constitution-service/internal/storage/models"
	"github.com/saasarch/constitution-service/pkg/logger"
)

// WatchHandler streams evaluation log records to connected clients as they
// are appended. A slow subscriber drops messages rather than blocking the
// evaluation path.
type WatchHandler struct {
	mu          sync.Mutex
	subscribers map[*websocket.Conn]chan models.EvaluationLog
}

func NewWatchHandler() *WatchHandler {
	return &WatchHandler{
		subscribers: make(map[*websocket.Conn]chan models.EvaluationLog),
	}
}

// Notify implements the evaluator's OnLogged hook.
func (h *WatchHandler) Notify(log models.EvaluationLog) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, ch := range h.subscribers {
		select {
		case ch <- log:
		default:
			logger.Warn("Dropping audit event for slow subscriber",
				zap.String("remote", conn.RemoteAddr().String()),
			)
		}
	}
}

func (h *WatchHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("Audit tail connected", zap.String("remote", c.RemoteAddr().String()))

	ch := make(chan models.EvaluationLog, 16)

	h.mu.Lock()
	h.subscribers[c] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.subscribers, c)
		h.mu.Unlock()
		c.Close()
		logger.Info("Audit tail disconnected")
	}()

	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case log := <-ch:
			msg := map[string]interface{}{
				"type":                "evaluation",
				"logId":               log.ID,
				"tenantId":            log.TenantID,
				"action":              log.Action,
				"overallScore":        log.OverallScore,
				"compliance":          log.Compliance,
				"principlesEvaluated": log.PrinciplesEvaluated,
				"timestamp":           log.CreatedAt.Format(time.RFC3339),
			}

			if err := c.WriteJSON(msg); err != nil {
				logger.Error("Failed to write audit event", zap.Error(err))
				return
			}
		}
	}
}
