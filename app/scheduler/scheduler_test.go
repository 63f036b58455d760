package scheduler

import (
	"testing"
	"time"

	"github.com/citystash/pickup-sms/utils"
	"github.com/stretchr/testify/assert"
)

func TestNextDailyAt(t *testing.T) {
	loc := utils.ServiceLocation()

	tests := []struct {
		name     string
		now      time.Time
		hour     int
		minute   int
		expected time.Time
	}{
		{
			name:     "before send time runs today",
			now:      time.Date(2025, time.July, 2, 8, 0, 0, 0, loc),
			hour:     10,
			minute:   0,
			expected: time.Date(2025, time.July, 2, 10, 0, 0, 0, loc),
		},
		{
			name:     "after send time runs tomorrow",
			now:      time.Date(2025, time.July, 2, 11, 0, 0, 0, loc),
			hour:     10,
			minute:   0,
			expected: time.Date(2025, time.July, 3, 10, 0, 0, 0, loc),
		},
		{
			name:     "exactly at send time runs tomorrow",
			now:      time.Date(2025, time.July, 2, 10, 0, 0, 0, loc),
			hour:     10,
			minute:   0,
			expected: time.Date(2025, time.July, 3, 10, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextDailyAt(tt.now, tt.hour, tt.minute)
			assert.True(t, got.Equal(tt.expected), "got %s, want %s", got, tt.expected)
		})
	}
}

func TestNextHourlyAt(t *testing.T) {
	loc := utils.ServiceLocation()

	tests := []struct {
		name     string
		now      time.Time
		minute   int
		expected time.Time
	}{
		{
			name:     "before minute runs this hour",
			now:      time.Date(2025, time.July, 2, 14, 2, 0, 0, loc),
			minute:   5,
			expected: time.Date(2025, time.July, 2, 14, 5, 0, 0, loc),
		},
		{
			name:     "after minute runs next hour",
			now:      time.Date(2025, time.July, 2, 14, 10, 0, 0, loc),
			minute:   5,
			expected: time.Date(2025, time.July, 2, 15, 5, 0, 0, loc),
		},
		{
			name:     "hour rollover across midnight",
			now:      time.Date(2025, time.July, 2, 23, 30, 0, 0, loc),
			minute:   5,
			expected: time.Date(2025, time.July, 3, 0, 5, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextHourlyAt(tt.now, tt.minute)
			assert.True(t, got.Equal(tt.expected), "got %s, want %s", got, tt.expected)
		})
	}
}

func TestJobSpecsVariants(t *testing.T) {
	specs := JobSpecs()

	review, ok := specs[FeatureReviewRequest]
	assert.True(t, ok)
	assert.True(t, review.UseGuard)
	assert.True(t, review.NeedsReviewLink)
	assert.Nil(t, review.ItemType)
	assert.NotNil(t, review.AnchorWindow)
	assert.Contains(t, review.Template, "{review_link}")

	locker, ok := specs[FeatureLockerReminder]
	assert.True(t, ok)
	assert.False(t, locker.UseGuard)
	assert.False(t, locker.NeedsReviewLink)
	assert.Nil(t, locker.AnchorWindow)
	assert.NotContains(t, locker.Template, "{review_link}")
	if assert.NotNil(t, locker.ItemType) {
		assert.Equal(t, "locker", *locker.ItemType)
	}
}
