package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// GetAvailability handles GET /api/availability?date=YYYY-MM-DD. The
// response is the day's full availability map: every configured time slot
// with its derived status and count, slots without reservations defaulting
// to available.
func (h *Handler) GetAvailability(c *gin.Context) {
	date := c.Query("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, use YYYY-MM-DD"})
		return
	}

	slots, err := h.coord.Availability(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve availability"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"date": date, "slots": slots})
}
