package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"reservation-backend/config"
	"reservation-backend/internal/coord"
	"reservation-backend/internal/hub"
	"reservation-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	coord   *coord.Coordinator
	store   store.Store
	hub     *hub.Hub
	cfg     *config.Config
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(c *coord.Coordinator, s store.Store, h *hub.Hub, cfg *config.Config, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		coord:   c,
		store:   s,
		hub:     h,
		cfg:     cfg,
		webpush: webpushOptions,
	}
}

// validSlot reports whether the label is one of the configured time slots.
func (h *Handler) validSlot(slot string) bool {
	for _, s := range h.cfg.Booking.TimeSlots {
		if s == slot {
			return true
		}
	}
	return false
}
