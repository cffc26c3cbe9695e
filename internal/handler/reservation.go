package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-key-reservation/internal/model"
	"github.com/iliyamo/lab-key-reservation/internal/repository"
	"github.com/iliyamo/lab-key-reservation/internal/service"
)

// ReservationHandler exposes the reservation lifecycle endpoints.
type ReservationHandler struct {
	Svc          *service.ReservationService
	Users        *repository.UserRepo
	Reservations *repository.ReservationRepo
	Participants *repository.ParticipantRepo
}

func NewReservationHandler(svc *service.ReservationService, users *repository.UserRepo, reservations *repository.ReservationRepo, participants *repository.ParticipantRepo) *ReservationHandler {
	return &ReservationHandler{Svc: svc, Users: users, Reservations: reservations, Participants: participants}
}

// ----- DTOs -----

type createReservationReq struct {
	RoomID uint64  `json:"room_id"`
	Date   string  `json:"date"` // YYYY-MM-DD
	SlotID string  `json:"slot_id"`
	Note   *string `json:"note"`
}

type decisionReq struct {
	Action string `json:"action"` // APPROVE | REJECT
}

type participantReq struct {
	UserID uint64 `json:"user_id"`
}

type reservationResp struct {
	ID          uint64    `json:"id"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	RoomID      uint64    `json:"room_id"`
	SectionID   *uint64   `json:"section_id,omitempty"`
	RequesterID uint64    `json:"requester_id"`
	ApproverID  *uint64   `json:"approver_id,omitempty"`
	Date        string    `json:"date"`
	SlotID      string    `json:"slot_id"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	Note        *string   `json:"note,omitempty"`
}

func toReservationResp(r *model.Reservation) reservationResp {
	return reservationResp{
		ID:          r.ID,
		Type:        r.Type,
		Status:      r.Status,
		RoomID:      r.RoomID,
		SectionID:   r.SectionID,
		RequesterID: r.RequesterID,
		ApproverID:  r.ApproverID,
		Date:        r.Date,
		SlotID:      r.SlotID,
		StartAt:     r.StartAt,
		EndAt:       r.EndAt,
		Note:        r.Note,
	}
}

// Create books a (room, date, slot) occupancy for the caller.
func (h *ReservationHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.RoomID == 0 || req.Date == "" || req.SlotID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "room_id/date/slot_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}

	res, err := h.Svc.Create(ctx, u, req.RoomID, req.Date, strings.ToUpper(req.SlotID), req.Note)
	if err != nil {
		if businessError(c, err) {
			return nil
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create reservation failed"})
	}
	return c.JSON(http.StatusCreated, toReservationResp(res))
}

// ListMine returns the caller's reservations, newest first.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Reservations.ListByRequester(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]reservationResp, 0, len(items))
	for i := range items {
		out = append(out, toReservationResp(&items[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// ListPending returns every PENDING reservation for staff triage.
func (h *ReservationHandler) ListPending(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Reservations.ListPending(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]reservationResp, 0, len(items))
	for i := range items {
		out = append(out, toReservationResp(&items[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// Get returns one reservation. Requesters see their own; staff and
// admin see any.
func (h *ReservationHandler) Get(c echo.Context) error {
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

	res, err := h.Reservations.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	role, _ := c.Get("role").(string)
	if res.RequesterID != uid && role != model.RoleStaff && role != model.RoleAdmin {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, toReservationResp(res))
}

// Cancel withdraws the caller's reservation.
func (h *ReservationHandler) Cancel(c echo.Context) error {
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

	if err := h.Svc.Cancel(ctx, id, uid); err != nil {
		if businessError(c, err) {
			return nil
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Decide applies a staff APPROVE/REJECT decision.
func (h *ReservationHandler) Decide(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req decisionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	action := strings.ToUpper(strings.TrimSpace(req.Action))
	if action != service.DecisionApprove && action != service.DecisionReject {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "action must be APPROVE or REJECT"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	res, err := h.Svc.Decide(ctx, id, u, action)
	if err != nil {
		if businessError(c, err) {
			return nil
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "decision failed"})
	}
	return c.JSON(http.StatusOK, toReservationResp(res))
}

// AddParticipant registers another user on an ad-hoc reservation so
// they may pick up or return the key. Requester only.
func (h *ReservationHandler) AddParticipant(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req participantReq
	if err := c.Bind(&req); err != nil || req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Reservations.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if res.RequesterID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if res.Type != model.ReservationAdHoc {
		return c.JSON(http.StatusConflict, echo.Map{"error": "participants apply to ad-hoc reservations only"})
	}
	if err := h.Participants.Add(ctx, id, req.UserID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "add participant failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// RemoveParticipant drops a user from an ad-hoc reservation.
func (h *ReservationHandler) RemoveParticipant(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Reservations.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if res.RequesterID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if err := h.Participants.Remove(ctx, id, userID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "remove participant failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ListParticipants returns the registered participants of a reservation.
func (h *ReservationHandler) ListParticipants(c echo.Context) error {
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

	res, err := h.Reservations.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	role, _ := c.Get("role").(string)
	if res.RequesterID != uid && role != model.RoleStaff && role != model.RoleAdmin {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	ids, err := h.Participants.List(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"participants": ids})
}
