package coord

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"reservation-backend/config"
	"reservation-backend/internal/hub"
	"reservation-backend/internal/model"
	"reservation-backend/internal/sched"
	"reservation-backend/internal/store"
)

// AdminNotifier receives the out-of-band admin alerts the coordinator and
// scheduler produce. Implemented by the webpush worker pool; a no-op stand-in
// works for tests.
type AdminNotifier interface {
	NotifyDepositReminder(booking *model.Booking)
	NotifyDepositMissing(booking *model.Booking)
	NotifySlotOpened(booking *model.Booking)
}

// Coordinator is the composition root of the availability engine and the only
// component that mutates the slot ledger and the waitlist queue. Every
// capacity mutation runs under a per-slot-key mutex, so reading a count and
// admitting a reservation can never interleave for the same slot.
type Coordinator struct {
	store    store.Store
	sched    *sched.Scheduler
	hub      *hub.Hub
	notifier AdminNotifier
	cfg      config.BookingConfig

	mu    sync.Mutex
	locks map[store.SlotKey]*sync.Mutex
}

// New wires the coordinator. The scheduler must be created with this
// coordinator's OnDeadline as its callback (see cmd wiring).
func New(s store.Store, sc *sched.Scheduler, h *hub.Hub, n AdminNotifier, cfg config.BookingConfig) *Coordinator {
	return &Coordinator{
		store:    s,
		sched:    sc,
		hub:      h,
		notifier: n,
		cfg:      cfg,
		locks:    make(map[store.SlotKey]*sync.Mutex),
	}
}

// keyLock returns the mutex serializing mutations for one slot key.
func (c *Coordinator) keyLock(key store.SlotKey) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

// ReservationRequest carries the customer contact info for a new booking or
// waitlist entry.
type ReservationRequest struct {
	Name              string
	Phone             string
	Email             string
	Address           string
	City              string
	Zipcode           string
	ContactPreference string
}

// CreateReservation admits a reservation for the slot if capacity allows.
// On store.ErrCapacityExceeded nothing has been mutated and the caller
// surfaces the rejection; the request is safe to retry.
func (c *Coordinator) CreateReservation(ctx context.Context, key store.SlotKey, req ReservationRequest) (*model.Booking, error) {
	l := c.keyLock(key)
	l.Lock()
	defer l.Unlock()

	_, status, err := c.store.IncrementSlot(ctx, key, c.cfg.MaxPerSlot)
	if err != nil {
		return nil, err
	}

	booking := &model.Booking{
		Reference:         uuid.NewString(),
		Name:              req.Name,
		Phone:             req.Phone,
		Email:             req.Email,
		Address:           req.Address,
		City:              req.City,
		Zipcode:           req.Zipcode,
		Date:              key.Date,
		TimeSlot:          key.TimeSlot,
		ContactPreference: req.ContactPreference,
		DepositReceived:   false,
		CreatedAt:         c.now(),
	}
	if err := c.store.CreateBooking(ctx, booking); err != nil {
		// Give the admitted capacity back; the booking row never existed.
		if _, _, derr := c.store.DecrementSlot(ctx, key, c.cfg.MaxPerSlot); derr != nil {
			log.Printf("coordinator: rollback decrement for %s %s failed: %v", key.Date, key.TimeSlot, derr)
		}
		return nil, err
	}

	c.sched.Schedule(booking.ID, c.cfg.ReminderOffset, c.cfg.EnforcementOffset)

	c.publishAvailability(key, status)
	return booking, nil
}

// CancelReservation deletes the booking, releases its slot, and promotes the
// oldest waitlist entry if one is queued. The published status reflects the
// post-promotion state, not the bare decrement.
func (c *Coordinator) CancelReservation(ctx context.Context, bookingID int64) (*model.Booking, error) {
	booking, err := c.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	key := store.SlotKey{Date: booking.Date, TimeSlot: booking.TimeSlot}

	l := c.keyLock(key)
	l.Lock()
	defer l.Unlock()

	booking, err = c.store.DeleteBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	c.sched.CancelAll(bookingID)

	count, status, err := c.store.DecrementSlot(ctx, key, c.cfg.MaxPerSlot)
	if err != nil {
		return nil, err
	}

	promoted, perr := c.store.PromoteFirstWaitlist(ctx, key, c.cfg.MaxPerSlot)
	switch {
	case perr == nil:
		// Decrement and increment cancel out; the count is back where it was.
		status = store.StatusFor(count+1, c.cfg.MaxPerSlot)
		c.sched.Schedule(promoted.ID, c.cfg.ReminderOffset, c.cfg.EnforcementOffset)
		c.notifier.NotifySlotOpened(promoted)
		c.hub.Publish(key.Date, hub.Event{
			Type:       hub.EventWaitlistUpdate,
			TimeSlot:   key.TimeSlot,
			SlotOpened: true,
		})
	case errors.Is(perr, store.ErrWaitlistEmpty), errors.Is(perr, store.ErrCapacityExceeded):
		// Nothing to promote, or the slot filled back up before the
		// promotion transaction ran; the entry stays queued.
	default:
		log.Printf("coordinator: waitlist promotion for %s %s failed: %v", key.Date, key.TimeSlot, perr)
	}

	c.publishAvailability(key, status)
	return booking, nil
}

// ConfirmDeposit marks the booking paid and cancels its deadline jobs. No
// capacity change, no broadcast: deposit state is not part of the public
// capacity contract.
func (c *Coordinator) ConfirmDeposit(ctx context.Context, bookingID int64) (*model.Booking, error) {
	booking, err := c.store.MarkDepositReceived(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	c.sched.CancelAll(bookingID)
	return booking, nil
}

// EnqueueWaitlist appends a customer to a slot's waitlist and returns the
// stored entry with its 1-based position.
func (c *Coordinator) EnqueueWaitlist(ctx context.Context, key store.SlotKey, req ReservationRequest) (*model.WaitlistEntry, int, error) {
	entry := &model.WaitlistEntry{
		Name:      req.Name,
		Phone:     req.Phone,
		Email:     req.Email,
		Date:      key.Date,
		TimeSlot:  key.TimeSlot,
		CreatedAt: c.now(),
	}
	position, err := c.store.EnqueueWaitlist(ctx, entry)
	if err != nil {
		return nil, 0, err
	}

	c.hub.Publish(key.Date, hub.Event{
		Type:     hub.EventWaitlistUpdate,
		TimeSlot: key.TimeSlot,
		Position: &position,
	})
	return entry, position, nil
}

// RemoveWaitlistEntry drops an entry from the queue.
func (c *Coordinator) RemoveWaitlistEntry(ctx context.Context, id int64) error {
	removed, err := c.store.RemoveWaitlistEntry(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return store.ErrNotFound
	}
	return nil
}

// PromoteWaitlistEntry is the explicit admin-triggered promotion: convert a
// specific waitlist entry into a booking, bypassing the cancellation path.
func (c *Coordinator) PromoteWaitlistEntry(ctx context.Context, id int64) (*model.Booking, error) {
	entry, err := c.store.GetWaitlistEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	key := store.SlotKey{Date: entry.Date, TimeSlot: entry.TimeSlot}

	l := c.keyLock(key)
	l.Lock()
	defer l.Unlock()

	booking, err := c.store.PromoteWaitlistEntry(ctx, id, c.cfg.MaxPerSlot)
	if err != nil {
		return nil, err
	}

	c.sched.Schedule(booking.ID, c.cfg.ReminderOffset, c.cfg.EnforcementOffset)
	c.notifier.NotifySlotOpened(booking)

	counts, err := c.store.CountsForDate(ctx, key.Date)
	if err != nil {
		log.Printf("coordinator: availability read after promotion failed: %v", err)
	} else {
		c.publishAvailability(key, store.StatusFor(counts[key.TimeSlot], c.cfg.MaxPerSlot))
	}
	return booking, nil
}

// Availability returns the day's full availability map: every configured
// slot with its derived status.
func (c *Coordinator) Availability(ctx context.Context, date string) (map[string]store.SlotAvailability, error) {
	counts, err := c.store.CountsForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	return store.AvailabilityMap(counts, c.cfg.TimeSlots, c.cfg.MaxPerSlot), nil
}

// OnDeadline is the scheduler's fire callback. It re-checks the booking's
// deposit status at fire time: the booking may have paid or been cancelled
// after the job was scheduled, and the stale snapshot must not trigger an
// alert.
func (c *Coordinator) OnDeadline(bookingID int64, kind sched.JobKind) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	booking, err := c.store.GetBooking(ctx, bookingID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("coordinator: deadline lookup for booking %d: %v", bookingID, err)
		}
		return
	}
	if booking.DepositReceived {
		return
	}

	switch kind {
	case sched.KindReminder:
		c.notifier.NotifyDepositReminder(booking)
	case sched.KindEnforcement:
		c.notifier.NotifyDepositMissing(booking)
	}
}

// publishAvailability pushes the slot's new status to date subscribers.
// Broadcast failures are isolated inside the hub and never surface here, so
// a committed capacity change cannot be rolled back by a push problem.
func (c *Coordinator) publishAvailability(key store.SlotKey, status store.CapacityStatus) {
	c.hub.Publish(key.Date, hub.Event{
		Type:     hub.EventAvailabilityUpdate,
		TimeSlot: key.TimeSlot,
		Status:   status,
	})
}

func (c *Coordinator) now() time.Time {
	loc, err := time.LoadLocation(c.cfg.Timezone)
	if err != nil {
		return time.Now().UTC()
	}
	return time.Now().In(loc)
}
