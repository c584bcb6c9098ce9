package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"schedule-bridge-backend/internal/bridge"
	"schedule-bridge-backend/internal/store"
)

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, bridge.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"status": "error", "message": message})
}

// fail records err on the context and answers with the mapped status.
func (h *Handler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	respondError(c, statusFor(err), err.Error())
}

func (h *Handler) flushCache(c *gin.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Flush(c.Request.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("failed to flush response cache")
	}
}
