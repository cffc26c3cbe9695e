package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-key-reservation/internal/model"
	"github.com/iliyamo/lab-key-reservation/internal/service"
	"github.com/iliyamo/lab-key-reservation/internal/token"
)

// CustodyHandler exposes the staff-mediated pickup/return endpoints and
// kiosk token issuance. Desk requests carry the borrower's identity
// token; the staff member operating the desk is the authenticated
// caller.
type CustodyHandler struct {
	Svc      *service.CustodyService
	Identity *token.IdentityIssuer
}

func NewCustodyHandler(svc *service.CustodyService, id *token.IdentityIssuer) *CustodyHandler {
	return &CustodyHandler{Svc: svc, Identity: id}
}

// ----- DTOs -----

type deskReq struct {
	IdentityToken string `json:"identity_token"`
}

type loanResp struct {
	ID            uint64     `json:"id"`
	ReservationID uint64     `json:"reservation_id"`
	KeyID         uint64     `json:"key_id"`
	BorrowerID    uint64     `json:"borrower_id"`
	HandledBy     *uint64    `json:"handled_by,omitempty"`
	CheckedOutAt  time.Time  `json:"checked_out_at"`
	CheckedInAt   *time.Time `json:"checked_in_at,omitempty"`
	ReturnedBy    *uint64    `json:"returned_by,omitempty"`
}

func toLoanResp(l *model.Loan) loanResp {
	return loanResp{
		ID:            l.ID,
		ReservationID: l.ReservationID,
		KeyID:         l.KeyID,
		BorrowerID:    l.BorrowerID,
		HandledBy:     l.HandledBy,
		CheckedOutAt:  l.CheckedOutAt,
		CheckedInAt:   l.CheckedInAt,
		ReturnedBy:    l.ReturnedBy,
	}
}

// resolveIdentity verifies the borrower's identity token from the
// request body and returns the asserted user id.
func (h *CustodyHandler) resolveIdentity(c echo.Context) (uint64, bool) {
	var req deskReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.IdentityToken) == "" {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "identity_token required"})
		return 0, false
	}
	uid, err := h.Identity.Verify(strings.TrimSpace(req.IdentityToken))
	if err != nil {
		if businessError(c, err) {
			return 0, false
		}
		_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid identity token"})
		return 0, false
	}
	return uid, true
}

// Pickup hands the room key over at the desk. The authenticated staff
// member is recorded on the loan as its handler.
func (h *CustodyHandler) Pickup(c echo.Context) error {
	staffID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	borrowerID, ok := h.resolveIdentity(c)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	loan, err := h.Svc.Pickup(ctx, id, borrowerID, &staffID)
	if err != nil {
		if businessError(c, err) {
			return nil
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "pickup failed"})
	}
	return c.JSON(http.StatusCreated, toLoanResp(loan))
}

// Return takes the key back at the desk.
func (h *CustodyHandler) Return(c echo.Context) error {
	if _, err := getUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	returnerID, ok := h.resolveIdentity(c)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	loan, err := h.Svc.Return(ctx, id, returnerID)
	if err != nil {
		if businessError(c, err) {
			return nil
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "return failed"})
	}
	return c.JSON(http.StatusOK, toLoanResp(loan))
}

// IssueAccessToken mints a single-use kiosk pickup secret for an
// approved reservation. Staff-only: the secret acts for the borrower
// the reservation names, not for the staff caller. The raw secret
// appears in this response only; afterwards the server knows just its
// hash.
func (h *CustodyHandler) IssueAccessToken(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	role, _ := c.Get("role").(string)
	raw, tok, err := h.Svc.IssuePickupToken(ctx, id, uid, role)
	if err != nil {
		if businessError(c, err) {
			return nil
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"access_token": raw,
		"kind":         tok.Kind,
		"expires_at":   tok.ExpiresAt,
	})
}
