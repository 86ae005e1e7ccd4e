package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mandir-backend/models"
)

// respondError maps the core error kinds onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Not found"})
	case errors.Is(err, models.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid QR payload"})
	case errors.Is(err, models.ErrDeliveryFailed):
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": "Email delivery failed", "details": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error", "details": err.Error()})
	}
}

// attendeeID parses the :id route parameter. Writes the 400 itself and
// returns ok=false when the parameter is not a valid id.
func attendeeID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid attendee ID"})
		return 0, false
	}
	return id, true
}
