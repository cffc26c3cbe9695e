package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-key-reservation/internal/repository"
	"github.com/iliyamo/lab-key-reservation/internal/service"
	"github.com/iliyamo/lab-key-reservation/internal/slot"
	"github.com/iliyamo/lab-key-reservation/internal/token"
)

// getUserID extracts the user_id placed into context by the JWT
// middleware and converts it to uint64.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

// businessError translates engine and storage outcomes into HTTP
// responses. It returns true when it wrote a response; callers fall
// through to a 500 otherwise.
func businessError(c echo.Context, err error) bool {
	var status int
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrNotAllowed):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrAlreadyDecided),
		errors.Is(err, service.ErrCannotCancelStatus),
		errors.Is(err, service.ErrNotApproved),
		errors.Is(err, service.ErrAlreadyCheckedIn),
		errors.Is(err, service.ErrNotCheckedIn),
		errors.Is(err, service.ErrNoLoan),
		errors.Is(err, service.ErrNoAvailableKey),
		errors.Is(err, service.ErrRoomInactive),
		errors.Is(err, repository.ErrSlotConflict),
		errors.Is(err, repository.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, service.ErrCancelTooLate),
		errors.Is(err, service.ErrLateCheckinNoShow):
		status = http.StatusConflict
	case errors.Is(err, service.ErrDateOutOfRange):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, slot.ErrUnknownSlot), errors.Is(err, slot.ErrBadDate):
		status = http.StatusBadRequest
	case errors.Is(err, repository.ErrTokenNotFound),
		errors.Is(err, repository.ErrWrongKind),
		errors.Is(err, repository.ErrAlreadyUsed),
		errors.Is(err, repository.ErrTokenExpired):
		status = http.StatusUnauthorized
	case errors.Is(err, token.ErrBadFormat),
		errors.Is(err, token.ErrBadSignature),
		errors.Is(err, token.ErrBadPayload),
		errors.Is(err, token.ErrExpired):
		status = http.StatusUnauthorized
	default:
		return false
	}
	_ = c.JSON(status, echo.Map{"error": err.Error()})
	return true
}
