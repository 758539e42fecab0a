package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"reservation-backend/internal/model"
)

// EnqueueWaitlist appends an entry to its slot's queue and returns the
// 1-based position. Position is derived from the insertion sequence (the
// autoincrement ID), so ties never depend on wall-clock ordering.
func (s *gormStore) EnqueueWaitlist(ctx context.Context, e *model.WaitlistEntry) (int, error) {
	var position int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(e).Error; err != nil {
			return err
		}
		return tx.Model(&model.WaitlistEntry{}).
			Where("date = ? AND time_slot = ? AND id <= ?", e.Date, e.TimeSlot, e.ID).
			Count(&position).Error
	})
	if err != nil {
		return 0, fmt.Errorf("enqueue waitlist: %w", err)
	}
	return int(position), nil
}

// GetWaitlistEntry fetches an entry by ID, returning ErrNotFound when it is
// gone.
func (s *gormStore) GetWaitlistEntry(ctx context.Context, id int64) (*model.WaitlistEntry, error) {
	var e model.WaitlistEntry
	if err := s.db.WithContext(ctx).First(&e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("waitlist entry %d: %w", id, err)
	}
	return &e, nil
}

// WaitlistPositionOf returns the entry's current 1-based position in its
// slot's queue, or ErrNotFound.
func (s *gormStore) WaitlistPositionOf(ctx context.Context, id int64) (int, error) {
	db := s.db.WithContext(ctx)

	var e model.WaitlistEntry
	if err := db.First(&e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("waitlist entry %d: %w", id, err)
	}

	var position int64
	err := db.Model(&model.WaitlistEntry{}).
		Where("date = ? AND time_slot = ? AND id <= ?", e.Date, e.TimeSlot, e.ID).
		Count(&position).Error
	if err != nil {
		return 0, fmt.Errorf("waitlist position of %d: %w", id, err)
	}
	return int(position), nil
}

// WaitlistForSlot returns the queue for one slot in promotion order.
func (s *gormStore) WaitlistForSlot(ctx context.Context, key SlotKey) ([]model.WaitlistEntry, error) {
	var entries []model.WaitlistEntry
	err := s.db.WithContext(ctx).
		Where("date = ? AND time_slot = ?", key.Date, key.TimeSlot).
		Order("id").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("waitlist for %s %s: %w", key.Date, key.TimeSlot, err)
	}
	return entries, nil
}

// RemoveWaitlistEntry deletes an entry by ID. Returns false when the entry
// was already gone; removal is idempotent.
func (s *gormStore) RemoveWaitlistEntry(ctx context.Context, id int64) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&model.WaitlistEntry{}, id)
	if res.Error != nil {
		return false, fmt.Errorf("remove waitlist entry %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// PromoteFirstWaitlist converts the oldest queued entry for the slot into a
// booking. Removal, booking creation, and the ledger increment commit in one
// transaction: if the slot filled again before promotion ran, everything
// rolls back and the entry stays queued.
func (s *gormStore) PromoteFirstWaitlist(ctx context.Context, key SlotKey, max int) (*model.Booking, error) {
	var booking *model.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e model.WaitlistEntry
		err := tx.Where("date = ? AND time_slot = ?", key.Date, key.TimeSlot).
			Order("id").
			First(&e).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWaitlistEmpty
			}
			return err
		}

		booking, err = promoteEntry(tx, &e, max)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrWaitlistEmpty) || errors.Is(err, ErrCapacityExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("promote first waitlist for %s %s: %w", key.Date, key.TimeSlot, err)
	}
	return booking, nil
}

// PromoteWaitlistEntry is the admin-triggered promotion path: it converts a
// specific entry regardless of its queue position, with the same
// all-or-nothing guarantees.
func (s *gormStore) PromoteWaitlistEntry(ctx context.Context, id int64, max int) (*model.Booking, error) {
	var booking *model.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e model.WaitlistEntry
		if err := tx.First(&e, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var err error
		booking, err = promoteEntry(tx, &e, max)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCapacityExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("promote waitlist entry %d: %w", id, err)
	}
	return booking, nil
}

// promoteEntry performs the shared half of both promotion paths inside the
// caller's transaction: delete the entry, admit the reservation, synthesize
// the booking from the entry's contact info.
func promoteEntry(tx *gorm.DB, e *model.WaitlistEntry, max int) (*model.Booking, error) {
	res := tx.Delete(&model.WaitlistEntry{}, e.ID)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	if _, err := incrementSlot(tx, SlotKey{Date: e.Date, TimeSlot: e.TimeSlot}, max); err != nil {
		return nil, err
	}

	b := &model.Booking{
		Reference:         uuid.NewString(),
		Name:              e.Name,
		Phone:             e.Phone,
		Email:             e.Email,
		Date:              e.Date,
		TimeSlot:          e.TimeSlot,
		ContactPreference: "email",
		DepositReceived:   false,
		CreatedAt:         time.Now().UTC(),
	}
	if err := tx.Create(b).Error; err != nil {
		return nil, err
	}
	return b, nil
}
