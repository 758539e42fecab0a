package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"reservation-backend/internal/coord"
	"reservation-backend/internal/store"
)

type bookingRequest struct {
	Name              string `json:"name" binding:"required"`
	Phone             string `json:"phone"`
	Email             string `json:"email" binding:"required"`
	Address           string `json:"address"`
	City              string `json:"city"`
	Zipcode           string `json:"zipcode"`
	Date              string `json:"date" binding:"required"`
	TimeSlot          string `json:"time_slot" binding:"required"`
	ContactPreference string `json:"contact_preference"`
}

// PostBook handles POST /api/book.
func (h *Handler) PostBook(c *gin.Context) {
	var req bookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, use YYYY-MM-DD"})
		return
	}
	if !h.validSlot(req.TimeSlot) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown time slot"})
		return
	}

	key := store.SlotKey{Date: req.Date, TimeSlot: req.TimeSlot}
	booking, err := h.coord.CreateReservation(c.Request.Context(), key, coord.ReservationRequest{
		Name:              req.Name,
		Phone:             req.Phone,
		Email:             req.Email,
		Address:           req.Address,
		City:              req.City,
		Zipcode:           req.Zipcode,
		ContactPreference: req.ContactPreference,
	})
	if err != nil {
		if errors.Is(err, store.ErrCapacityExceeded) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "This slot is fully booked."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create booking"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":    "Booking created successfully",
		"booking_id": booking.ID,
		"reference":  booking.Reference,
	})
}

type cancelBookingRequest struct {
	BookingID int64  `json:"booking_id" binding:"required"`
	Reason    string `json:"reason"`
}

// CancelBooking handles DELETE /api/admin/cancel_booking.
func (h *Handler) CancelBooking(c *gin.Context) {
	var req cancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, err := h.coord.CancelReservation(c.Request.Context(), req.BookingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel booking"})
		return
	}

	log.Printf("booking %s cancelled, reason: %s", booking.Reference, req.Reason)
	c.JSON(http.StatusOK, gin.H{"message": "Booking cancelled and customer notified"})
}

type depositRequest struct {
	BookingID int64 `json:"booking_id" binding:"required"`
}

// MarkDepositReceived handles POST /api/admin/mark_deposit_received.
func (h *Handler) MarkDepositReceived(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.coord.ConfirmDeposit(c.Request.Context(), req.BookingID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update booking"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Deposit marked as received"})
}

// AdminWeekly handles GET /api/admin/weekly?start_date=YYYY-MM-DD: the seven
// days beginning at start_date.
func (h *Handler) AdminWeekly(c *gin.Context) {
	start, err := time.Parse("2006-01-02", c.Query("start_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date, use YYYY-MM-DD"})
		return
	}
	from := start.Format("2006-01-02")
	to := start.AddDate(0, 0, 6).Format("2006-01-02")

	bookings, err := h.store.ListBookingsBetween(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve bookings"})
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// AdminMonthly handles GET /api/admin/monthly?year=&month=.
func (h *Handler) AdminMonthly(c *gin.Context) {
	var year, month int
	if _, err := fmt.Sscanf(c.Query("year"), "%d", &year); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
		return
	}
	if _, err := fmt.Sscanf(c.Query("month"), "%d", &month); err != nil || month < 1 || month > 12 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid month"})
		return
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	bookings, err := h.store.ListBookingsBetween(c.Request.Context(), first.Format("2006-01-02"), last.Format("2006-01-02"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve bookings"})
		return
	}
	c.JSON(http.StatusOK, bookings)
}
