package models

import "time"

// SendStatus enumerates the outcome recorded for one candidate in one run.
// Exactly one status is ever recorded per candidate per run.
type SendStatus string

const (
	SendStatusSent               SendStatus = "sent"
	SendStatusFailed             SendStatus = "failed"
	SendStatusSkippedNoPhone     SendStatus = "skipped_no_phone"
	SendStatusSkippedBadPhone    SendStatus = "skipped_invalid_phone"
	SendStatusSkippedNonUK       SendStatus = "skipped_non_uk_number"
	SendStatusSkippedOptedOut    SendStatus = "skipped_opted_out"
	SendStatusSkippedNoLink      SendStatus = "skipped_no_review_link"
	SendStatusSkippedAlreadySent SendStatus = "skipped_already_sent"
)

// IsSkip reports whether the status is one of the skip reasons.
func (s SendStatus) IsSkip() bool {
	switch s {
	case SendStatusSkippedNoPhone, SendStatusSkippedBadPhone, SendStatusSkippedNonUK,
		SendStatusSkippedOptedOut, SendStatusSkippedNoLink, SendStatusSkippedAlreadySent:
		return true
	}
	return false
}

// SendLog is the append-only audit record for one attempted recipient in one
// job run. Rows are never updated or deleted after insert.
type SendLog struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Feature           string     `gorm:"size:32;not null;index:idx_send_logs_feature" json:"feature"`
	BookingReference  string     `gorm:"size:32;not null;index:idx_send_logs_booking_reference" json:"booking_reference"`
	Phone             string     `gorm:"size:32" json:"phone"`
	PickedUpAt        time.Time  `json:"picked_up_at"`
	Status            SendStatus `gorm:"size:32;not null;index:idx_send_logs_status" json:"status"`
	ProviderMessageID *string    `gorm:"size:64" json:"provider_message_id,omitempty"`
	UsedFallbackLink  bool       `json:"used_fallback_link"`
	Error             *string    `gorm:"size:500" json:"error,omitempty"`
	CreatedAt         time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_send_logs_created_at" json:"created_at"`
}

func (SendLog) TableName() string { return "send_logs" }

// SendLogFilter provides filter fields for repository queries
type SendLogFilter struct {
	Feature          *string
	BookingReference *string
	Phone            *string
	Status           *SendStatus
	CreatedAfter     *time.Time
	CreatedBefore    *time.Time
}
