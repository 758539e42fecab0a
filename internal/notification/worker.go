package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"reservation-backend/internal/model"
)

// AlertKind classifies the admin alerts the engine produces.
type AlertKind string

const (
	AlertDepositReminder AlertKind = "deposit_reminder"
	AlertDepositMissing  AlertKind = "deposit_missing"
	AlertSlotOpened      AlertKind = "waitlist_slot_opened"
)

// Alert is one unit of work for the pool: a booking event that subscribed
// admins should hear about.
type Alert struct {
	Kind    AlertKind
	Booking model.Booking
}

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real implementation of Sender using the webpush
// library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool fans admin alerts out to every stored push subscription on a
// fixed set of workers, decoupled from the request path and the scheduler's
// timer goroutines.
type WorkerPool struct {
	size    int
	jobs    chan Alert
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Alert, size*4),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("notification worker %d started", id)
	for {
		select {
		case alert := <-wp.jobs:
			wp.deliver(ctx, alert)
		case <-ctx.Done():
			log.Printf("notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an alert without blocking the caller; if the queue is full
// the alert is dropped with a log line. A lost admin push must never stall a
// reservation.
func (wp *WorkerPool) Dispatch(alert Alert) {
	select {
	case wp.jobs <- alert:
	default:
		log.Printf("notification queue full, dropping %s alert for booking %s", alert.Kind, alert.Booking.Reference)
	}
}

// NotifyDepositReminder implements the coordinator's AdminNotifier hook.
func (wp *WorkerPool) NotifyDepositReminder(b *model.Booking) {
	wp.Dispatch(Alert{Kind: AlertDepositReminder, Booking: *b})
}

// NotifyDepositMissing implements the coordinator's AdminNotifier hook.
func (wp *WorkerPool) NotifyDepositMissing(b *model.Booking) {
	wp.Dispatch(Alert{Kind: AlertDepositMissing, Booking: *b})
}

// NotifySlotOpened implements the coordinator's AdminNotifier hook.
func (wp *WorkerPool) NotifySlotOpened(b *model.Booking) {
	wp.Dispatch(Alert{Kind: AlertSlotOpened, Booking: *b})
}

// deliver sends one alert to every stored subscription.
func (wp *WorkerPool) deliver(ctx context.Context, alert Alert) {
	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).Find(&subscriptions).Error; err != nil {
		log.Printf("Error fetching push subscriptions: %v", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(map[string]string{
		"kind":      string(alert.Kind),
		"title":     alertTitle(alert.Kind),
		"body":      alertBody(alert),
		"reference": alert.Booking.Reference,
	})
	if err != nil {
		log.Printf("Error encoding alert payload: %v", err)
		return
	}

	log.Printf("Sending %d pushes for %s alert (booking %s)", len(subscriptions), alert.Kind, alert.Booking.Reference)
	for _, sub := range subscriptions {
		wp.send(ctx, sub, payload)
	}
}

func alertTitle(kind AlertKind) string {
	switch kind {
	case AlertDepositReminder:
		return "Deposit reminder due"
	case AlertDepositMissing:
		return "Deposit still missing"
	case AlertSlotOpened:
		return "Waitlist promotion"
	}
	return "Booking alert"
}

func alertBody(alert Alert) string {
	b := alert.Booking
	switch alert.Kind {
	case AlertDepositReminder:
		return fmt.Sprintf("Booking %s (%s %s) has not paid its deposit yet.", b.Reference, b.Date, b.TimeSlot)
	case AlertDepositMissing:
		return fmt.Sprintf("Booking %s (%s %s) missed the deposit deadline.", b.Reference, b.Date, b.TimeSlot)
	case AlertSlotOpened:
		return fmt.Sprintf("%s was promoted from the waitlist into %s %s.", b.Name, b.Date, b.TimeSlot)
	}
	return b.Reference
}

// send sends a single web push notification, pruning expired subscriptions.
func (wp *WorkerPool) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
