package models

import "time"

// SentReviewRequest is the idempotency guard for the daily review job: one
// row per booking reference, claimed with an insert-or-ignore before the send
// so a re-run over the same window never messages the same booking twice.
type SentReviewRequest struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	BookingReference string    `gorm:"size:32;not null;uniqueIndex:uq_sent_review_requests_booking_reference" json:"booking_reference"`
	CreatedAt        time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (SentReviewRequest) TableName() string { return "sent_review_requests" }

// SentReviewRequestFilter provides filter fields for repository queries
type SentReviewRequestFilter struct {
	BookingReference *string
	CreatedAfter     *time.Time
	CreatedBefore    *time.Time
}
