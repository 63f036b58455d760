package repository

import (
	"context"

	"github.com/citystash/pickup-sms/models"
	"gorm.io/gorm"
)

// SendLogRepositoryImpl implements SendLogRepository. The table is
// append-only: no update or delete methods exist on purpose.
type SendLogRepositoryImpl struct {
	*BaseRepository[models.SendLog, models.SendLogFilter]
}

func NewSendLogRepository(db *gorm.DB) SendLogRepository {
	return &SendLogRepositoryImpl{BaseRepository: NewBaseRepository[models.SendLog, models.SendLogFilter](db)}
}

func (r *SendLogRepositoryImpl) applyFilter(db *gorm.DB, f models.SendLogFilter) *gorm.DB {
	if f.Feature != nil {
		db = db.Where("feature = ?", *f.Feature)
	}
	if f.BookingReference != nil {
		db = db.Where("booking_reference = ?", *f.BookingReference)
	}
	if f.Phone != nil {
		db = db.Where("phone = ?", *f.Phone)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *SendLogRepositoryImpl) ByFilter(ctx context.Context, filter models.SendLogFilter, orderBy string, limit, offset int) ([]*models.SendLog, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SendLog{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.SendLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SendLogRepositoryImpl) ListByFeature(ctx context.Context, feature string, limit, offset int) ([]*models.SendLog, error) {
	return r.ByFilter(ctx, models.SendLogFilter{Feature: &feature}, "id DESC", limit, offset)
}

func (r *SendLogRepositoryImpl) Count(ctx context.Context, filter models.SendLogFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SendLog{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
