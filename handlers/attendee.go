package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"mandir-backend/checkin"
	"mandir-backend/models"
)

// Lister is the reporting slice of the attendee store.
type Lister interface {
	ListAll(ctx context.Context) ([]models.AttendeeListRow, error)
}

// AttendeeHandler serves the reporting view, the gate scan lookup and the
// three validation updates.
type AttendeeHandler struct {
	store  Lister
	engine *checkin.Engine
}

func NewAttendeeHandler(store Lister, engine *checkin.Engine) *AttendeeHandler {
	return &AttendeeHandler{store: store, engine: engine}
}

// ListAttendees returns every attendee with flags and credential metadata,
// ordered by id.
func (h *AttendeeHandler) ListAttendees(c *gin.Context) {
	rows, err := h.store.ListAll(c)
	if err != nil {
		log.Error().Err(err).Msg("listing attendees failed")
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendees": rows, "count": len(rows)})
}

// Scan resolves a scanned QR payload to the attendee record, flags and
// derived food counts.
func (h *AttendeeHandler) Scan(c *gin.Context) {
	payload := c.Param("payload")

	result, err := h.engine.Resolve(c, payload)
	if err != nil {
		log.Warn().Str("payload", payload).Err(err).Msg("scan resolve failed")
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UpdateEntry validates entry for the attendee.
func (h *AttendeeHandler) UpdateEntry(c *gin.Context) {
	h.update(c, "Entry validated successfully!", h.engine.MarkEntry)
}

// UpdateFood records food collection for the attendee.
func (h *AttendeeHandler) UpdateFood(c *gin.Context) {
	h.update(c, "Food collection validated successfully!", h.engine.MarkFoodCollected)
}

// UpdateParking validates parking for the attendee.
func (h *AttendeeHandler) UpdateParking(c *gin.Context) {
	h.update(c, "Parking status updated successfully!", h.engine.MarkParkingValidated)
}

func (h *AttendeeHandler) update(c *gin.Context, message string, mark func(context.Context, int64) (bool, error)) {
	id, ok := attendeeID(c)
	if !ok {
		return
	}

	already, err := mark(c, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message, "already": already})
}
