package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"reservation-backend/config"
	"reservation-backend/internal/coord"
	"reservation-backend/internal/hub"
	"reservation-backend/internal/model"
	"reservation-backend/internal/sched"
	"reservation-backend/internal/store"
)

type noopNotifier struct{}

func (noopNotifier) NotifyDepositReminder(*model.Booking) {}
func (noopNotifier) NotifyDepositMissing(*model.Booking)  {}
func (noopNotifier) NotifySlotOpened(*model.Booking)      {}

func testRouter(t *testing.T) (*gin.Engine, store.Store) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.SlotCount{},
		&model.Booking{},
		&model.WaitlistEntry{},
		&model.PushSubscription{},
	))

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:               8080,
			BookingRatePerMin:  100,
			WaitlistRatePerMin: 100,
			CacheTTLSeconds:    1,
		},
		Booking: config.BookingConfig{
			MaxPerSlot:        2,
			TimeSlots:         []string{"11:00 AM", "3:00 PM"},
			Timezone:          "America/New_York",
			ReminderOffset:    4 * time.Hour,
			EnforcementOffset: 6 * time.Hour,
		},
	}

	s := store.NewGormStore(db)
	h := hub.New(s, cfg.Booking.TimeSlots, cfg.Booking.MaxPerSlot, hub.Options{})

	var c *coord.Coordinator
	scheduler := sched.New(sched.NewRealClock(), func(bookingID int64, kind sched.JobKind) {
		c.OnDeadline(bookingID, kind)
	})
	t.Cleanup(scheduler.Stop)
	c = coord.New(s, scheduler, h, noopNotifier{}, cfg.Booking)

	return NewRouter(c, s, h, cfg, &webpush.Options{}), s
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func bookingBody(name, date, slot string) gin.H {
	return gin.H{
		"name":      name,
		"email":     name + "@example.com",
		"phone":     "555-0100",
		"date":      date,
		"time_slot": slot,
	}
}

func TestPostBook(t *testing.T) {
	router, _ := testRouter(t)

	w := doJSON(router, http.MethodPost, "/api/book", bookingBody("alice", "2026-09-07", "3:00 PM"))
	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["reference"])
	assert.NotZero(t, resp["booking_id"])
}

func TestPostBookValidation(t *testing.T) {
	router, _ := testRouter(t)

	cases := []struct {
		name string
		body gin.H
	}{
		{"missing name", gin.H{"email": "a@b.c", "date": "2026-09-07", "time_slot": "3:00 PM"}},
		{"bad date", bookingBody("alice", "09/07/2026", "3:00 PM")},
		{"unknown slot", bookingBody("alice", "2026-09-07", "9:00 PM")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(router, http.MethodPost, "/api/book", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestPostBookFullSlot(t *testing.T) {
	router, _ := testRouter(t)

	for i := 0; i < 2; i++ {
		w := doJSON(router, http.MethodPost, "/api/book", bookingBody("holder", "2026-09-07", "3:00 PM"))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(router, http.MethodPost, "/api/book", bookingBody("late", "2026-09-07", "3:00 PM"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "fully booked")
}

func TestGetAvailability(t *testing.T) {
	router, _ := testRouter(t)

	w := doJSON(router, http.MethodPost, "/api/book", bookingBody("alice", "2026-09-07", "3:00 PM"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodGet, "/api/availability?date=2026-09-07", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Date  string                            `json:"date"`
		Slots map[string]store.SlotAvailability `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2026-09-07", resp.Date)
	assert.Equal(t, store.SlotAvailability{Status: store.StatusLimited, Count: 1}, resp.Slots["3:00 PM"])
	assert.Equal(t, store.SlotAvailability{Status: store.StatusAvailable, Count: 0}, resp.Slots["11:00 AM"])

	w = doJSON(router, http.MethodGet, "/api/availability?date=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWaitlistLifecycle(t *testing.T) {
	router, _ := testRouter(t)

	body := gin.H{
		"name":           "queued",
		"email":          "q@example.com",
		"preferred_date": "2026-09-07",
		"preferred_time": "3:00 PM",
	}
	w := doJSON(router, http.MethodPost, "/api/waitlist", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		WaitlistID int64 `json:"waitlist_id"`
		Position   int   `json:"position"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Position)

	w = doJSON(router, http.MethodGet, fmt.Sprintf("/api/waitlist/%d/position", resp.WaitlistID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"position":1`)

	w = doJSON(router, http.MethodDelete, fmt.Sprintf("/api/admin/waitlist/%d", resp.WaitlistID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, fmt.Sprintf("/api/waitlist/%d/position", resp.WaitlistID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListWaitlist(t *testing.T) {
	router, _ := testRouter(t)

	for _, name := range []string{"first", "second"} {
		w := doJSON(router, http.MethodPost, "/api/waitlist", gin.H{
			"name":           name,
			"email":          name + "@example.com",
			"preferred_date": "2026-09-07",
			"preferred_time": "3:00 PM",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(router, http.MethodGet, "/api/admin/waitlist?date=2026-09-07&time_slot=3%3A00+PM", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var entries []model.WaitlistEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Name)

	w = doJSON(router, http.MethodGet, "/api/admin/waitlist?date=2026-09-07&time_slot=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelBooking(t *testing.T) {
	router, _ := testRouter(t)

	w := doJSON(router, http.MethodPost, "/api/book", bookingBody("alice", "2026-09-07", "3:00 PM"))
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		BookingID int64 `json:"booking_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(router, http.MethodDelete, "/api/admin/cancel_booking", gin.H{"booking_id": created.BookingID, "reason": "customer request"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodDelete, "/api/admin/cancel_booking", gin.H{"booking_id": created.BookingID})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMarkDepositReceived(t *testing.T) {
	router, _ := testRouter(t)

	w := doJSON(router, http.MethodPost, "/api/book", bookingBody("alice", "2026-09-07", "3:00 PM"))
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		BookingID int64 `json:"booking_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(router, http.MethodPost, "/api/admin/mark_deposit_received", gin.H{"booking_id": created.BookingID})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/api/admin/mark_deposit_received", gin.H{"booking_id": int64(9999)})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMoveWaitlistToBooking(t *testing.T) {
	router, _ := testRouter(t)

	body := gin.H{
		"name":           "vip",
		"email":          "vip@example.com",
		"preferred_date": "2026-09-07",
		"preferred_time": "11:00 AM",
	}
	w := doJSON(router, http.MethodPost, "/api/waitlist", body)
	require.Equal(t, http.StatusCreated, w.Code)
	var entry struct {
		WaitlistID int64 `json:"waitlist_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))

	w = doJSON(router, http.MethodPost, fmt.Sprintf("/api/admin/move_waitlist_to_booking?waitlist_id=%d", entry.WaitlistID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "reference")

	w = doJSON(router, http.MethodPost, fmt.Sprintf("/api/admin/move_waitlist_to_booking?waitlist_id=%d", entry.WaitlistID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMoveWaitlistToBookingConflict(t *testing.T) {
	router, _ := testRouter(t)

	for i := 0; i < 2; i++ {
		w := doJSON(router, http.MethodPost, "/api/book", bookingBody("holder", "2026-09-07", "11:00 AM"))
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w := doJSON(router, http.MethodPost, "/api/waitlist", gin.H{
		"name":           "blocked",
		"email":          "b@example.com",
		"preferred_date": "2026-09-07",
		"preferred_time": "11:00 AM",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var entry struct {
		WaitlistID int64 `json:"waitlist_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))

	w = doJSON(router, http.MethodPost, fmt.Sprintf("/api/admin/move_waitlist_to_booking?waitlist_id=%d", entry.WaitlistID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminWeekly(t *testing.T) {
	router, _ := testRouter(t)

	w := doJSON(router, http.MethodPost, "/api/book", bookingBody("inweek", "2026-09-08", "3:00 PM"))
	require.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(router, http.MethodPost, "/api/book", bookingBody("nextweek", "2026-09-20", "3:00 PM"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodGet, "/api/admin/weekly?start_date=2026-09-07", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var bookings []model.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bookings))
	require.Len(t, bookings, 1)
	assert.Equal(t, "inweek", bookings[0].Name)

	w = doJSON(router, http.MethodGet, "/api/admin/weekly", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminMonthly(t *testing.T) {
	router, _ := testRouter(t)

	w := doJSON(router, http.MethodPost, "/api/book", bookingBody("september", "2026-09-08", "3:00 PM"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodGet, "/api/admin/monthly?year=2026&month=9", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var bookings []model.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bookings))
	assert.Len(t, bookings, 1)

	w = doJSON(router, http.MethodGet, "/api/admin/monthly?year=2026&month=13", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutSubscription(t *testing.T) {
	router, s := testRouter(t)

	body := gin.H{"endpoint": "https://push.example/sub", "p256dh": "key", "auth": "auth"}
	w := doJSON(router, http.MethodPut, "/api/subscriptions", body)
	assert.Equal(t, http.StatusCreated, w.Code)

	// Upsert on the same endpoint refreshes the keys.
	body["p256dh"] = "rotated"
	w = doJSON(router, http.MethodPut, "/api/subscriptions", body)
	assert.Equal(t, http.StatusCreated, w.Code)

	var sub model.PushSubscription
	require.NoError(t, s.DB().First(&sub, "endpoint = ?", "https://push.example/sub").Error)
	assert.Equal(t, "rotated", sub.P256DH)
}

func TestPutSubscriptionInvalidBody(t *testing.T) {
	router, _ := testRouter(t)

	w := doJSON(router, http.MethodPut, "/api/subscriptions", gin.H{"endpoint": "https://push.example/sub"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request")
}

func TestGetAndDeleteSubscription(t *testing.T) {
	router, _ := testRouter(t)

	endpoint := "https://push.example/sub"
	w := doJSON(router, http.MethodPut, "/api/subscriptions", gin.H{"endpoint": endpoint, "p256dh": "k", "auth": "a"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodDelete, "/api/subscriptions", gin.H{"endpoint": endpoint})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(router, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
