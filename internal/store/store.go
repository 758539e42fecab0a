package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"reservation-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// Slot ledger.
	IncrementSlot(ctx context.Context, key SlotKey, max int) (int, CapacityStatus, error)
	DecrementSlot(ctx context.Context, key SlotKey, max int) (int, CapacityStatus, error)
	CountsForDate(ctx context.Context, date string) (map[string]int, error)

	// Bookings.
	CreateBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	DeleteBooking(ctx context.Context, id int64) (*model.Booking, error)
	MarkDepositReceived(ctx context.Context, id int64) (*model.Booking, error)
	ListBookingsBetween(ctx context.Context, from, to string) ([]model.Booking, error)

	// Waitlist queue.
	EnqueueWaitlist(ctx context.Context, e *model.WaitlistEntry) (int, error)
	GetWaitlistEntry(ctx context.Context, id int64) (*model.WaitlistEntry, error)
	WaitlistPositionOf(ctx context.Context, id int64) (int, error)
	WaitlistForSlot(ctx context.Context, key SlotKey) ([]model.WaitlistEntry, error)
	RemoveWaitlistEntry(ctx context.Context, id int64) (bool, error)
	PromoteFirstWaitlist(ctx context.Context, key SlotKey, max int) (*model.Booking, error)
	PromoteWaitlistEntry(ctx context.Context, id int64, max int) (*model.Booking, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// IncrementSlot adds one reservation to the slot's ledger row, creating the
// row if absent. The increment is a single conditional upsert with an
// affected-row check, so reading the count and admitting the reservation
// cannot interleave with a concurrent increment.
func (s *gormStore) IncrementSlot(ctx context.Context, key SlotKey, max int) (int, CapacityStatus, error) {
	count, err := incrementSlot(s.db.WithContext(ctx), key, max)
	if err != nil {
		return 0, "", err
	}
	return count, StatusFor(count, max), nil
}

// incrementSlot runs the conditional upsert on the given handle (session or
// transaction). Works on both postgres and sqlite: unqualified column
// references in DO UPDATE resolve to the target row on either dialect.
func incrementSlot(db *gorm.DB, key SlotKey, max int) (int, error) {
	if max < 1 {
		return 0, ErrCapacityExceeded
	}

	res := db.Exec(
		`INSERT INTO slot_counts (date, time_slot, count, updated_at) VALUES (?, ?, 1, ?)
		 ON CONFLICT (date, time_slot)
		 DO UPDATE SET count = count + 1, updated_at = excluded.updated_at
		 WHERE count < ?`,
		key.Date, key.TimeSlot, time.Now().UTC(), max,
	)
	if res.Error != nil {
		return 0, fmt.Errorf("conditional increment for %s %s: %w", key.Date, key.TimeSlot, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, ErrCapacityExceeded
	}

	return slotCount(db, key)
}

// DecrementSlot removes one reservation from the slot's ledger row. A
// decrement on a count already at zero is a no-op returning (0, available),
// so a double-cancel cannot drive the count negative.
func (s *gormStore) DecrementSlot(ctx context.Context, key SlotKey, max int) (int, CapacityStatus, error) {
	db := s.db.WithContext(ctx)

	res := db.Exec(
		`UPDATE slot_counts SET count = count - 1, updated_at = ? WHERE date = ? AND time_slot = ? AND count > 0`,
		time.Now().UTC(), key.Date, key.TimeSlot,
	)
	if res.Error != nil {
		return 0, "", fmt.Errorf("decrement for %s %s: %w", key.Date, key.TimeSlot, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, StatusAvailable, nil
	}

	count, err := slotCount(db, key)
	if err != nil {
		return 0, "", err
	}
	return count, StatusFor(count, max), nil
}

// CountsForDate returns the reservation count per time slot for one date.
// Slots without a ledger row are simply absent from the map.
func (s *gormStore) CountsForDate(ctx context.Context, date string) (map[string]int, error) {
	var rows []model.SlotCount
	if err := s.db.WithContext(ctx).Where("date = ?", date).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("counts for %s: %w", date, err)
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.TimeSlot] = r.Count
	}
	return counts, nil
}

func slotCount(db *gorm.DB, key SlotKey) (int, error) {
	var row model.SlotCount
	if err := db.Where("date = ? AND time_slot = ?", key.Date, key.TimeSlot).First(&row).Error; err != nil {
		return 0, fmt.Errorf("read count for %s %s: %w", key.Date, key.TimeSlot, err)
	}
	return row.Count, nil
}
