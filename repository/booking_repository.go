package repository

import (
	"context"
	"time"

	"github.com/citystash/pickup-sms/models"
	"gorm.io/gorm"
)

// BookingRepositoryImpl implements BookingRepository over the upstream
// bookings database. Read-only by contract.
type BookingRepositoryImpl struct {
	*BaseRepository[models.Booking, models.BookingFilter]
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &BookingRepositoryImpl{BaseRepository: NewBaseRepository[models.Booking, models.BookingFilter](db)}
}

func (r *BookingRepositoryImpl) applyFilter(db *gorm.DB, f models.BookingFilter) *gorm.DB {
	if f.Reference != nil {
		db = db.Where("reference = ?", *f.Reference)
	}
	if f.ItemType != nil {
		db = db.Where("item_type = ?", *f.ItemType)
	}
	if f.PickedUpAfter != nil {
		db = db.Where("picked_up_at >= ?", *f.PickedUpAfter)
	}
	if f.PickedUpBefore != nil {
		db = db.Where("picked_up_at < ?", *f.PickedUpBefore)
	}
	return db
}

func (r *BookingRepositoryImpl) ByFilter(ctx context.Context, filter models.BookingFilter, orderBy string, limit, offset int) ([]*models.Booking, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Booking{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Booking
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *BookingRepositoryImpl) ListPickedUpInWindow(ctx context.Context, from, to time.Time, itemType *string) ([]*models.Booking, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Booking{}).
		Where("picked_up_at >= ? AND picked_up_at < ?", from, to).
		Where("status <> ?", models.BookingStatusCancelled).
		Where("paid = ?", true).
		Where("phone <> ''")
	if itemType != nil {
		query = query.Where("item_type = ?", *itemType)
	}
	var rows []*models.Booking
	if err := query.Order("picked_up_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
