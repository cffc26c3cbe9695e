package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-key-reservation/internal/service"
)

// KioskHandler serves the unattended kiosk. No session auth: the
// single-use access secret is the entire credential, so these routes
// sit behind the rate limiter but not the JWT middleware.
type KioskHandler struct {
	Svc *service.CustodyService
}

func NewKioskHandler(svc *service.CustodyService) *KioskHandler {
	return &KioskHandler{Svc: svc}
}

type kioskReq struct {
	AccessToken string `json:"access_token"`
}

// Pickup redeems a pickup secret, dispenses the key and returns a fresh
// return secret for the drop-off.
func (h *KioskHandler) Pickup(c echo.Context) error {
	var req kioskReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.AccessToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "access_token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	loan, returnSecret, err := h.Svc.KioskPickup(ctx, strings.TrimSpace(req.AccessToken))
	if err != nil {
		if businessError(c, err) {
			return nil
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "pickup failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"loan":         toLoanResp(loan),
		"return_token": returnSecret,
	})
}

// Return redeems a return secret and closes out the loan.
func (h *KioskHandler) Return(c echo.Context) error {
	var req kioskReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.AccessToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "access_token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	loan, err := h.Svc.KioskReturn(ctx, strings.TrimSpace(req.AccessToken))
	if err != nil {
		if businessError(c, err) {
			return nil
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "return failed"})
	}
	return c.JSON(http.StatusOK, toLoanResp(loan))
}
