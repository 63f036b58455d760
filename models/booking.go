package models

import "time"

// Booking item types
const (
	ItemTypeBag    = "bag"
	ItemTypeLocker = "locker"
)

// Booking statuses that exclude a booking from messaging
const (
	BookingStatusCancelled = "cancelled"
)

// Booking is one row from the upstream bookings database. This service only
// ever reads it; writes stay with the booking platform.
type Booking struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Reference      string    `gorm:"size:32;not null" json:"reference"`
	FirstName      string    `gorm:"size:100" json:"first_name"`
	LastName       string    `gorm:"size:100" json:"last_name"`
	Phone          string    `gorm:"size:32" json:"phone"`
	City           string    `gorm:"size:100" json:"city"`
	StashpointName string    `gorm:"size:200" json:"stashpoint_name"`
	ItemType       string    `gorm:"size:16" json:"item_type"`
	Status         string    `gorm:"size:32" json:"status"`
	Paid           bool      `json:"paid"`
	PickedUpAt     time.Time `json:"picked_up_at"`
}

func (Booking) TableName() string { return "bookings" }

// BookingFilter provides filter fields for repository queries
type BookingFilter struct {
	Reference      *string
	ItemType       *string
	PickedUpAfter  *time.Time
	PickedUpBefore *time.Time
}
