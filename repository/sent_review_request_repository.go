package repository

import (
	"context"
	"fmt"

	"github.com/citystash/pickup-sms/models"
	"github.com/citystash/pickup-sms/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SentReviewRequestRepositoryImpl implements SentReviewRequestRepository
type SentReviewRequestRepositoryImpl struct {
	*BaseRepository[models.SentReviewRequest, models.SentReviewRequestFilter]
}

func NewSentReviewRequestRepository(db *gorm.DB) SentReviewRequestRepository {
	return &SentReviewRequestRepositoryImpl{BaseRepository: NewBaseRepository[models.SentReviewRequest, models.SentReviewRequestFilter](db)}
}

// TryClaim relies on the unique index on booking_reference: the insert is a
// single atomic ON CONFLICT DO NOTHING, so concurrent runs cannot both claim
// the same booking.
func (r *SentReviewRequestRepositoryImpl) TryClaim(ctx context.Context, bookingReference string) (bool, error) {
	db := r.getDB(ctx)
	row := models.SentReviewRequest{
		BookingReference: bookingReference,
		CreatedAt:        utils.UTCNow(),
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim review request for booking %s: %w", bookingReference, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *SentReviewRequestRepositoryImpl) Exists(ctx context.Context, bookingReference string) (bool, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.SentReviewRequest{}).
		Where("booking_reference = ?", bookingReference).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
