package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"schedule-bridge-backend/internal/bridge"
)

// FindRooms answers the bot's room search. Solver trouble is reported in the
// reason field with a 200.
func (h *Handler) FindRooms(c *gin.Context) {
	var req bridge.FindRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	resp, err := h.bridge.FindRooms(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// BridgeHealth reports liveness and the solver backlog.
func (h *Handler) BridgeHealth(c *gin.Context) {
	var pending int64
	if h.solver != nil {
		pending = h.solver.Pending()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"service":            "schedule-server",
		"cppServer":          "configured",
		"pendingCppRequests": pending,
	})
}

// CancelBooking releases a booked room.
func (h *Handler) CancelBooking(c *gin.Context) {
	var req bridge.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	res, err := h.bridge.CancelBooking(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		c.JSON(statusFor(err), res)
		return
	}
	if res.Status == bridge.StatusNotFound {
		c.JSON(http.StatusNotFound, res)
		return
	}

	h.flushCache(c)
	c.JSON(http.StatusOK, res)
}
