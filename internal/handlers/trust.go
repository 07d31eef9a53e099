package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Trust and sanction handlers

// GetClientScore - GET /api/clients/:id/score
func (h *Handlers) GetClientScore(c *gin.Context) {
	snapshot, err := h.services.Scoring.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, snapshot)
}

// GetMyScore - GET /api/me/score
func (h *Handlers) GetMyScore(c *gin.Context) {
	snapshot, err := h.services.Scoring.Snapshot(c.Request.Context(), authedConsumerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, snapshot)
}

// LiftSuspension - POST /api/clients/:id/liftSuspension
func (h *Handlers) LiftSuspension(c *gin.Context) {
	stats := h.services.Scoring.LiftSuspension(c.Request.Context(), c.Param("id"))
	respondOK(c, http.StatusOK, stats)
}

// GetEstablishmentTrust - GET /api/establishments/:id/trust
func (h *Handlers) GetEstablishmentTrust(c *gin.Context) {
	trust, err := h.services.Sanctions.ActiveSanction(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, trust)
}

// GetEstablishmentSanctions - GET /api/establishments/:id/sanctions
func (h *Handlers) GetEstablishmentSanctions(c *gin.Context) {
	history, err := h.services.Sanctions.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, history)
}
