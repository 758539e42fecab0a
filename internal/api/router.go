package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"reservation-backend/config"
	"reservation-backend/internal/coord"
	"reservation-backend/internal/hub"
	"reservation-backend/internal/mw"
	"reservation-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(c *coord.Coordinator, s store.Store, h *hub.Hub, cfg *config.Config, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(c, s, h, cfg, webpushOptions)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	{
		api.POST("/book", mw.PerMinute(cfg.Server.BookingRatePerMin), handler.PostBook)
		api.GET("/availability", caching, handler.GetAvailability)

		api.POST("/waitlist", mw.PerMinute(cfg.Server.WaitlistRatePerMin), handler.PostWaitlist)
		api.GET("/waitlist/:id/position", handler.GetWaitlistPosition)

		api.GET("/ws", handler.ServeWS)

		api.DELETE("/admin/cancel_booking", handler.CancelBooking)
		api.POST("/admin/mark_deposit_received", handler.MarkDepositReceived)
		api.POST("/admin/move_waitlist_to_booking", handler.MoveWaitlistToBooking)
		api.GET("/admin/waitlist", handler.ListWaitlist)
		api.DELETE("/admin/waitlist/:id", handler.DeleteWaitlistEntry)
		api.GET("/admin/weekly", handler.AdminWeekly)
		api.GET("/admin/monthly", handler.AdminMonthly)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
