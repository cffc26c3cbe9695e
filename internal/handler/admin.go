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

// AdminHandler bundles the room/key catalog management, class timetable
// generation and the manual sweep trigger.
type AdminHandler struct {
	Rooms    *repository.RoomRepo
	Keys     *repository.KeyRepo
	Sections *repository.SectionRepo
	Users    *repository.UserRepo
	Svc      *service.ReservationService
	Sweeper  *service.Sweeper
}

func NewAdminHandler(rooms *repository.RoomRepo, keys *repository.KeyRepo, sections *repository.SectionRepo, users *repository.UserRepo, svc *service.ReservationService, sweeper *service.Sweeper) *AdminHandler {
	return &AdminHandler{Rooms: rooms, Keys: keys, Sections: sections, Users: users, Svc: svc, Sweeper: sweeper}
}

// ----- DTOs -----

type roomReq struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	IsActive *bool  `json:"is_active"`
}

type keyReq struct {
	Label string `json:"label"`
}

type keyStatusReq struct {
	Status string `json:"status"` // AVAILABLE | LOST | DAMAGED
}

type classGenReq struct {
	SectionID uint64 `json:"section_id"`
	RoomID    uint64 `json:"room_id"`
	SlotID    string `json:"slot_id"`
	Weekday   string `json:"weekday"` // "Monday" .. "Sunday"
	TermStart string `json:"term_start"`
	TermEnd   string `json:"term_end"`
}

type roomResp struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	IsActive bool   `json:"is_active"`
}

func toRoomResp(r *model.Room) roomResp {
	return roomResp{ID: r.ID, Name: r.Name, Location: r.Location, IsActive: r.IsActive}
}

type keyResp struct {
	ID     uint64 `json:"id"`
	RoomID uint64 `json:"room_id"`
	Label  string `json:"label"`
	Status string `json:"status"`
}

var weekdays = map[string]time.Weekday{
	"SUNDAY":    time.Sunday,
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
}

// CreateRoom adds a bookable room.
func (h *AdminHandler) CreateRoom(c echo.Context) error {
	var req roomReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	room := &model.Room{Name: strings.TrimSpace(req.Name), Location: strings.TrimSpace(req.Location), IsActive: true}
	if req.IsActive != nil {
		room.IsActive = *req.IsActive
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Rooms.Create(ctx, room); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create room failed"})
	}
	return c.JSON(http.StatusCreated, toRoomResp(room))
}

// UpdateRoom renames, relocates or (de)activates a room. Deactivation
// stops new reservations; existing ones run their course.
func (h *AdminHandler) UpdateRoom(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req roomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	room, err := h.Rooms.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		room.Name = name
	}
	if loc := strings.TrimSpace(req.Location); loc != "" {
		room.Location = loc
	}
	if req.IsActive != nil {
		room.IsActive = *req.IsActive
	}
	if err := h.Rooms.Update(ctx, room); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update room failed"})
	}
	return c.JSON(http.StatusOK, toRoomResp(room))
}

// CreateKey registers a physical key for a room.
func (h *AdminHandler) CreateKey(c echo.Context) error {
	roomID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req keyReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Label) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "label required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Rooms.GetByID(ctx, roomID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	key := &model.Key{RoomID: roomID, Label: strings.TrimSpace(req.Label), Status: model.KeyAvailable}
	if err := h.Keys.Create(ctx, key); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create key failed"})
	}
	return c.JSON(http.StatusCreated, keyResp{ID: key.ID, RoomID: key.RoomID, Label: key.Label, Status: key.Status})
}

// ListKeys returns every key of a room with its current status.
func (h *AdminHandler) ListKeys(c echo.Context) error {
	roomID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	keys, err := h.Keys.ListByRoom(ctx, roomID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]keyResp, 0, len(keys))
	for _, k := range keys {
		out = append(out, keyResp{ID: k.ID, RoomID: k.RoomID, Label: k.Label, Status: k.Status})
	}
	return c.JSON(http.StatusOK, echo.Map{"keys": out})
}

// SetKeyStatus moves a key between AVAILABLE, LOST and DAMAGED.
// BORROWED is owned by the custody engine and cannot be set by hand.
func (h *AdminHandler) SetKeyStatus(c echo.Context) error {
	keyID, ok := pathID(c, "keyId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid key id"})
	}
	var req keyStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	switch status {
	case model.KeyAvailable, model.KeyLost, model.KeyDamaged:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be AVAILABLE, LOST or DAMAGED"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Keys.SetStatus(ctx, keyID, status); err != nil {
		switch err {
		case sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "key not found"})
		case repository.ErrConflict:
			return c.JSON(http.StatusConflict, echo.Map{"error": "key is borrowed"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update key failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// GenerateClassReservations bulk-creates the approved weekly meetings
// of a course section over a term range.
func (h *AdminHandler) GenerateClassReservations(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req classGenReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SectionID == 0 || req.RoomID == 0 || req.SlotID == "" || req.TermStart == "" || req.TermEnd == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "section_id/room_id/slot_id/term_start/term_end required"})
	}
	weekday, ok := weekdays[strings.ToUpper(strings.TrimSpace(req.Weekday))]
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid weekday"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if _, err := h.Sections.GetByID(ctx, req.SectionID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "section not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}

	created, skipped, err := h.Svc.GenerateClass(ctx, u, req.SectionID, req.RoomID, strings.ToUpper(req.SlotID), weekday, req.TermStart, req.TermEnd)
	if err != nil {
		if businessError(c, err) {
			return nil
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "generate failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"created": created, "skipped": skipped})
}

// ClearClassReservations removes the future, unattended class rows of a
// section, e.g. after a timetable change.
func (h *AdminHandler) ClearClassReservations(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sectionID, ok := pathID(c, "sectionId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid section id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	n, err := h.Svc.ClearClass(ctx, u, sectionID)
	if err != nil {
		if businessError(c, err) {
			return nil
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "clear failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}

// Sweep triggers one no-show sweep pass on demand, outside the
// background schedule.
func (h *AdminHandler) Sweep(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	n, err := h.Sweeper.Sweep(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"swept": n})
}
