package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-key-reservation/internal/repository"
	"github.com/iliyamo/lab-key-reservation/internal/slot"
)

// BrowseHandler serves the read-only catalog endpoints used when
// picking a room and slot. These routes sit behind the response cache.
type BrowseHandler struct {
	Rooms        *repository.RoomRepo
	Reservations *repository.ReservationRepo
}

func NewBrowseHandler(rooms *repository.RoomRepo, reservations *repository.ReservationRepo) *BrowseHandler {
	return &BrowseHandler{Rooms: rooms, Reservations: reservations}
}

// Slots returns the fixed slot catalog.
func (h *BrowseHandler) Slots(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"slots": slot.Catalog})
}

// ListRooms lists the active rooms.
func (h *BrowseHandler) ListRooms(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rooms, err := h.Rooms.List(ctx, true)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]roomResp, 0, len(rooms))
	for i := range rooms {
		out = append(out, toRoomResp(&rooms[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"rooms": out})
}

type slotAvailability struct {
	SlotID    string `json:"slot_id"`
	Label     string `json:"label"`
	Available bool   `json:"available"`
}

// Availability reports which slots of a room are still free on a given
// day. A slot is taken while any non-terminal reservation occupies it.
func (h *BrowseHandler) Availability(c echo.Context) error {
	roomID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	date := strings.TrimSpace(c.QueryParam("date"))
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	occupied, err := h.Reservations.OccupiedSlots(ctx, roomID, date)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	taken := make(map[string]bool, len(occupied))
	for _, s := range occupied {
		taken[s] = true
	}

	out := make([]slotAvailability, 0, len(slot.Catalog))
	for _, s := range slot.Catalog {
		out = append(out, slotAvailability{SlotID: s.ID, Label: s.Label, Available: !taken[s.ID]})
	}
	return c.JSON(http.StatusOK, echo.Map{"room_id": roomID, "date": date, "slots": out})
}
