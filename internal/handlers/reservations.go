package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reserva/internal/models"
)

// Reservation handlers

// CreateReservation - POST /api/reservations
func (h *Handlers) CreateReservation(c *gin.Context) {
	var req models.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	response, err := h.services.Reservations.Create(c.Request.Context(), authedConsumerID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, response)
}

// GetReservation - GET /api/reservations/:id
func (h *Handlers) GetReservation(c *gin.Context) {
	res, err := h.services.Reservations.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, models.ReservationFromEntity(res))
}

// GetReservationByRef - GET /api/reservations/ref/:ref
func (h *Handlers) GetReservationByRef(c *gin.Context) {
	res, err := h.services.Reservations.GetByBookingRef(c.Request.Context(), c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, models.ReservationFromEntity(res))
}

// ListReservations - GET /api/reservations
func (h *Handlers) ListReservations(c *gin.Context) {
	list, err := h.services.Reservations.ListByConsumer(c.Request.Context(), authedConsumerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]models.ReservationResponse, 0, len(list))
	for i := range list {
		out = append(out, models.ReservationFromEntity(&list[i]))
	}
	respondOK(c, http.StatusOK, out)
}

// ProAccept - PATCH /api/reservations/:id/accept
func (h *Handlers) ProAccept(c *gin.Context) {
	res, err := h.services.Reservations.ProAccept(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.ReservationFromEntity(res))
}

// ProRefuse - PATCH /api/reservations/:id/refuse
func (h *Handlers) ProRefuse(c *gin.Context) {
	var req models.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondBadRequest(c, err)
		return
	}

	res, err := h.services.Reservations.ProRefuse(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.ReservationFromEntity(res))
}

// ProHold - PATCH /api/reservations/:id/hold
func (h *Handlers) ProHold(c *gin.Context) {
	res, err := h.services.Reservations.ProHold(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.ReservationFromEntity(res))
}

// ProRequestDeposit - PATCH /api/reservations/:id/requestDeposit
func (h *Handlers) ProRequestDeposit(c *gin.Context) {
	var req struct {
		DepositCents int64 `json:"deposit_cents" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	res, err := h.services.Reservations.ProRequestDeposit(c.Request.Context(), c.Param("id"), req.DepositCents)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.ReservationFromEntity(res))
}

// ProCancel - PATCH /api/reservations/:id/proCancel
func (h *Handlers) ProCancel(c *gin.Context) {
	var req models.CancelReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondBadRequest(c, err)
		return
	}

	res, err := h.services.Reservations.ProCancel(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.ReservationFromEntity(res))
}

// ClientCancel - PATCH /api/reservations/:id/cancel
func (h *Handlers) ClientCancel(c *gin.Context) {
	var req models.CancelReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondBadRequest(c, err)
		return
	}

	res, err := h.services.Reservations.ClientCancel(c.Request.Context(), c.Param("id"), authedConsumerID(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.ReservationFromEntity(res))
}

// ConfirmVenue - PATCH /api/reservations/:id/confirmVenue
func (h *Handlers) ConfirmVenue(c *gin.Context) {
	res, err := h.services.Reservations.ConfirmVenue(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.ReservationFromEntity(res))
}

// CheckInQR - PATCH /api/reservations/:id/checkIn
func (h *Handlers) CheckInQR(c *gin.Context) {
	res, err := h.services.Reservations.CheckInQR(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.ReservationFromEntity(res))
}

// UpgradeFreeToPaid - PATCH /api/reservations/:id/upgrade
func (h *Handlers) UpgradeFreeToPaid(c *gin.Context) {
	var req struct {
		DepositCents int64 `json:"deposit_cents" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	res, err := h.services.Reservations.UpgradeFreeToPaid(c.Request.Context(), c.Param("id"), authedConsumerID(c), req.DepositCents)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.ReservationFromEntity(res))
}

// ConfirmDepositPaid - PATCH /api/reservations/:id/depositPaid
// Called by the payment callback flow once funds are captured.
func (h *Handlers) ConfirmDepositPaid(c *gin.Context) {
	res, err := h.services.Reservations.ConfirmDepositPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.ReservationFromEntity(res))
}

// ClaimWaitlistOffer - POST /api/waitlist/claim
func (h *Handlers) ClaimWaitlistOffer(c *gin.Context) {
	var req models.ClaimOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	res, err := h.services.Reservations.ClaimWaitlistOffer(c.Request.Context(), authedConsumerID(c), req.EntryID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.ReservationFromEntity(res))
}
