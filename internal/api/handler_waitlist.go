package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"reservation-backend/internal/coord"
	"reservation-backend/internal/store"
)

type waitlistRequest struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone"`
	Email    string `json:"email" binding:"required"`
	Date     string `json:"preferred_date" binding:"required"`
	TimeSlot string `json:"preferred_time" binding:"required"`
}

// PostWaitlist handles POST /api/waitlist.
func (h *Handler) PostWaitlist(c *gin.Context) {
	var req waitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid preferred_date, use YYYY-MM-DD"})
		return
	}
	if !h.validSlot(req.TimeSlot) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown time slot"})
		return
	}

	key := store.SlotKey{Date: req.Date, TimeSlot: req.TimeSlot}
	entry, position, err := h.coord.EnqueueWaitlist(c.Request.Context(), key, coord.ReservationRequest{
		Name:  req.Name,
		Phone: req.Phone,
		Email: req.Email,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to join waitlist"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":     fmt.Sprintf("Added to waitlist. You are number %d in line.", position),
		"waitlist_id": entry.ID,
		"position":    position,
	})
}

// GetWaitlistPosition handles GET /api/waitlist/:id/position.
func (h *Handler) GetWaitlistPosition(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid waitlist ID"})
		return
	}

	position, err := h.store.WaitlistPositionOf(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Waitlist entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up position"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"position": position})
}

// DeleteWaitlistEntry handles DELETE /api/admin/waitlist/:id.
func (h *Handler) DeleteWaitlistEntry(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid waitlist ID"})
		return
	}

	if err := h.coord.RemoveWaitlistEntry(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Waitlist entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove waitlist entry"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Waitlist entry removed"})
}

// ListWaitlist handles GET /api/admin/waitlist?date=&time_slot=: the queue
// for one slot in promotion order.
func (h *Handler) ListWaitlist(c *gin.Context) {
	date := c.Query("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, use YYYY-MM-DD"})
		return
	}
	slot := c.Query("time_slot")
	if !h.validSlot(slot) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown time slot"})
		return
	}

	entries, err := h.store.WaitlistForSlot(c.Request.Context(), store.SlotKey{Date: date, TimeSlot: slot})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve waitlist"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// MoveWaitlistToBooking handles POST /api/admin/move_waitlist_to_booking:
// the explicit promotion path, bypassing the automatic cancellation-triggered
// one.
func (h *Handler) MoveWaitlistToBooking(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query("waitlist_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid waitlist_id"})
		return
	}

	booking, err := h.coord.PromoteWaitlistEntry(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Waitlist entry not found"})
		case errors.Is(err, store.ErrCapacityExceeded):
			c.JSON(http.StatusConflict, gin.H{"error": "Slot is fully booked"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to promote waitlist entry"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    fmt.Sprintf("Waitlist entry %d moved to bookings and user notified.", id),
		"booking_id": booking.ID,
		"reference":  booking.Reference,
	})
}
