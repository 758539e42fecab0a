package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"reservation-backend/internal/model"
)

// CreateBooking inserts a new booking row.
func (s *gormStore) CreateBooking(ctx context.Context, b *model.Booking) error {
	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// GetBooking fetches a booking by ID, returning ErrNotFound if it does not
// exist.
func (s *gormStore) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	var b model.Booking
	if err := s.db.WithContext(ctx).First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	return &b, nil
}

// DeleteBooking removes a booking and returns the deleted row. ErrNotFound is
// returned when the booking is already gone, so a double-cancel surfaces as
// not-found rather than a second decrement.
func (s *gormStore) DeleteBooking(ctx context.Context, id int64) (*model.Booking, error) {
	var b model.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&b, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		res := tx.Delete(&model.Booking{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete booking %d: %w", id, err)
	}
	return &b, nil
}

// MarkDepositReceived flips the booking's deposit flag to paid and returns
// the updated row.
func (s *gormStore) MarkDepositReceived(ctx context.Context, id int64) (*model.Booking, error) {
	res := s.db.WithContext(ctx).Model(&model.Booking{}).Where("id = ?", id).Update("deposit_received", true)
	if res.Error != nil {
		return nil, fmt.Errorf("mark deposit for booking %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetBooking(ctx, id)
}

// ListBookingsBetween returns all bookings with from <= date <= to, ordered
// the way the admin views display them.
func (s *gormStore) ListBookingsBetween(ctx context.Context, from, to string) ([]model.Booking, error) {
	var bookings []model.Booking
	err := s.db.WithContext(ctx).
		Where("date BETWEEN ? AND ?", from, to).
		Order("date, time_slot, created_at").
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("list bookings %s..%s: %w", from, to, err)
	}
	return bookings, nil
}
