package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reserva/internal/models"
)

// No-show dispute handlers

// DeclareNoShow - POST /api/reservations/:id/declareNoShow
func (h *Handlers) DeclareNoShow(c *gin.Context) {
	var req models.DeclareNoShowRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondBadRequest(c, err)
		return
	}

	response, err := h.services.Disputes.Declare(c.Request.Context(), c.Param("id"), req.DeclaredBy)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, response)
}

// GetDispute - GET /api/disputes/:id
func (h *Handlers) GetDispute(c *gin.Context) {
	dispute, err := h.services.Disputes.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, dispute)
}

// RespondToDispute - POST /api/disputes/:id/respond
func (h *Handlers) RespondToDispute(c *gin.Context) {
	var req models.DisputeRespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	dispute, err := h.services.Disputes.ClientRespond(c.Request.Context(), c.Param("id"), authedConsumerID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, dispute)
}

// ArbitrateDispute - POST /api/disputes/:id/arbitrate
func (h *Handlers) ArbitrateDispute(c *gin.Context) {
	var req models.ArbitrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	dispute, err := h.services.Disputes.Arbitrate(c.Request.Context(), c.Param("id"), authedConsumerID(c), req.Decision)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, dispute)
}
