package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"reserva/internal/middleware"
	"reserva/internal/reserr"
	"reserva/internal/service"
)

type Handlers struct {
	services *service.Services
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{services: services}
}

// statusForCode maps contract error codes to HTTP statuses. Business-rule
// rejections are 409: the request was well-formed, the state disagreed.
var statusForCode = map[reserr.Code]int{
	reserr.CodeNotFound:            http.StatusNotFound,
	reserr.CodeReservationNotFound: http.StatusNotFound,
	reserr.CodeDisputeNotFound:     http.StatusNotFound,
	reserr.CodeSlotNotFound:        http.StatusNotFound,
	reserr.CodeClientNotFound:      http.StatusNotFound,
	reserr.CodeOfferNotFound:       http.StatusNotFound,

	reserr.CodeInvalidArgument:  http.StatusBadRequest,
	reserr.CodeEmailNotVerified: http.StatusBadRequest,
	reserr.CodeInvalidPartySize: http.StatusBadRequest,

	reserr.CodeForbidden:            http.StatusForbidden,
	reserr.CodeSelfBookingForbidden: http.StatusForbidden,
	reserr.CodeUserSuspended:        http.StatusForbidden,

	reserr.CodeInvalidTransition:    http.StatusConflict,
	reserr.CodeReservationProtected: http.StatusConflict,
	reserr.CodeReservationUnpaid:    http.StatusConflict,
	reserr.CodeDoubleBooking:        http.StatusConflict,
	reserr.CodeRedirectToQuote:      http.StatusConflict,
	reserr.CodeSlotFull:             http.StatusConflict,
	reserr.CodeConflict:             http.StatusConflict,
	reserr.CodeDisputeNotPending:    http.StatusConflict,
	reserr.CodeDisputeInvalidState:  http.StatusConflict,
	reserr.CodeDisputeNotArbitrable: http.StatusConflict,

	reserr.CodeDisputeWindowClosed: http.StatusGone,
	reserr.CodeOfferExpired:        http.StatusGone,
}

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"ok": true, "data": data})
}

func respondError(c *gin.Context, err error) {
	code := reserr.CodeOf(err)
	status, known := statusForCode[code]
	if !known {
		slog.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "errorCode": string(reserr.CodeStoreError), "error": "internal error"})
		return
	}

	body := gin.H{"ok": false, "errorCode": string(code), "error": err.Error()}
	var resErr *reserr.Error
	if errors.As(err, &resErr) && len(resErr.Meta) > 0 {
		body["meta"] = resErr.Meta
	}
	c.JSON(status, body)
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"ok": false, "errorCode": string(reserr.CodeInvalidArgument), "error": err.Error()})
}

// authedConsumerID returns the id set by the BasicAuth middleware.
func authedConsumerID(c *gin.Context) string {
	if id, ok := middleware.ConsumerIDFromContext(c.Request.Context()); ok {
		return id
	}
	return ""
}
