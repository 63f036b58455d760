// Package scheduler runs the messaging jobs: the eligibility pipeline, the
// job variants, and the timers that trigger them.
package scheduler

import (
	"time"

	"github.com/citystash/pickup-sms/models"
	"github.com/citystash/pickup-sms/utils"
)

// Feature identifies a messaging job.
type Feature string

const (
	FeatureReviewRequest  Feature = "review_request"
	FeatureLockerReminder Feature = "locker_reminder"
)

const reviewRequestTemplate = "Hi {first_name}, thanks for storing your bag with {stashpoint}! " +
	"We'd love to hear how it went - leave us a quick review: {review_link}"

const lockerReminderTemplate = "Hi {first_name}, hope your locker pickup at {stashpoint} went smoothly. " +
	"Need storage in {city} again? Book any time at citystash.com"

// JobSpec describes one job variant. Both variants run through the identical
// pipeline; only the window, candidate filter and message differ.
type JobSpec struct {
	Feature Feature
	// ItemType restricts candidates to one storage type; nil means all.
	ItemType *string
	// Window returns the time window for a run triggered at now.
	Window func(now time.Time) (time.Time, time.Time)
	// AnchorWindow returns the window for an explicitly supplied anchor date.
	// Nil when the job does not accept an anchor.
	AnchorWindow func(anchor time.Time) (time.Time, time.Time)
	// Template is the message body with {name} placeholders.
	Template string
	// Fields produces the placeholder values for one candidate.
	Fields func(b *models.Booking, reviewLink string) map[string]string
	// NeedsReviewLink gates candidates on review-link resolution.
	NeedsReviewLink bool
	// UseGuard claims the durable per-booking idempotency guard before
	// sending.
	UseGuard bool
}

// JobSpecs returns the two job variants keyed by feature.
func JobSpecs() map[Feature]JobSpec {
	return map[Feature]JobSpec{
		FeatureReviewRequest: {
			Feature:         FeatureReviewRequest,
			ItemType:        nil,
			Window:          utils.PreviousDayWindow,
			AnchorWindow:    utils.DayWindow,
			Template:        reviewRequestTemplate,
			Fields:          reviewFields,
			NeedsReviewLink: true,
			UseGuard:        true,
		},
		FeatureLockerReminder: {
			Feature: FeatureLockerReminder,
			// The hourly job covers the previous clock hour only; its narrow,
			// non-overlapping window stands in for a durable guard.
			ItemType:        utils.ToPtr(models.ItemTypeLocker),
			Window:          utils.PreviousHourWindow,
			AnchorWindow:    nil,
			Template:        lockerReminderTemplate,
			Fields:          reviewFields,
			NeedsReviewLink: false,
			UseGuard:        false,
		},
	}
}

func reviewFields(b *models.Booking, reviewLink string) map[string]string {
	return map[string]string{
		"first_name":  b.FirstName,
		"last_name":   b.LastName,
		"city":        b.City,
		"stashpoint":  b.StashpointName,
		"reference":   b.Reference,
		"review_link": reviewLink,
	}
}
