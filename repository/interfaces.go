// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/citystash/pickup-sms/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// BookingRepository reads candidate recipients from the upstream bookings
// database. This service never writes bookings.
type BookingRepository interface {
	ByFilter(ctx context.Context, filter models.BookingFilter, orderBy string, limit, offset int) ([]*models.Booking, error)
	// ListPickedUpInWindow returns bookings whose pickup falls in [from, to),
	// excluding cancelled and unpaid bookings and rows with an empty phone.
	ListPickedUpInWindow(ctx context.Context, from, to time.Time, itemType *string) ([]*models.Booking, error)
}

// SendLogRepository defines operations for the append-only send audit log
type SendLogRepository interface {
	Repository[models.SendLog, models.SendLogFilter]
	ListByFeature(ctx context.Context, feature string, limit, offset int) ([]*models.SendLog, error)
}

// JobRunRepository defines operations for job run summaries
type JobRunRepository interface {
	Repository[models.JobRun, models.JobRunFilter]
	Update(ctx context.Context, run *models.JobRun) error
	LatestByFeature(ctx context.Context, feature string) (*models.JobRun, error)
	ListRecent(ctx context.Context, limit int) ([]*models.JobRun, error)
}

// SentReviewRequestRepository is the durable per-booking idempotency guard
// for the daily review job.
type SentReviewRequestRepository interface {
	// TryClaim inserts the booking reference if absent and reports whether
	// this call made the claim. A false result means the booking was already
	// sent for by an earlier run (or an earlier row in this run).
	TryClaim(ctx context.Context, bookingReference string) (bool, error)
	Exists(ctx context.Context, bookingReference string) (bool, error)
}

// OptOutRepository is the durable ledger of phone numbers that must never
// receive messages. All operations are keyed on the normalized phone; callers
// normalize before calling.
type OptOutRepository interface {
	IsOptedOut(ctx context.Context, phone string) (bool, error)
	Add(ctx context.Context, phone string, source models.OptOutSource, note string) error
	Remove(ctx context.Context, phone string) (bool, error)
	List(ctx context.Context, limit int) ([]*models.OptOut, error)
	Search(ctx context.Context, substring string, limit int) ([]*models.OptOut, error)
}
