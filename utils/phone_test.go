package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		region   string
		expected string
		ok       bool
	}{
		{
			name:     "national format UK mobile",
			raw:      "07911123456",
			region:   DefaultRegion,
			expected: "+447911123456",
			ok:       true,
		},
		{
			name:     "international format UK mobile",
			raw:      "+447911123456",
			region:   DefaultRegion,
			expected: "+447911123456",
			ok:       true,
		},
		{
			name:     "spaces and dashes stripped",
			raw:      "07911 123-456",
			region:   DefaultRegion,
			expected: "+447911123456",
			ok:       true,
		},
		{
			name:     "00 international prefix",
			raw:      "00447911123456",
			region:   DefaultRegion,
			expected: "+447911123456",
			ok:       true,
		},
		{
			name:     "US number stays US",
			raw:      "+14155552671",
			region:   DefaultRegion,
			expected: "+14155552671",
			ok:       true,
		},
		{
			name:   "empty string",
			raw:    "",
			region: DefaultRegion,
			ok:     false,
		},
		{
			name:   "whitespace only",
			raw:    "   ",
			region: DefaultRegion,
			ok:     false,
		},
		{
			name:   "letters only",
			raw:    "not-a-number",
			region: DefaultRegion,
			ok:     false,
		},
		{
			name:   "too short",
			raw:    "0791",
			region: DefaultRegion,
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizePhone(tt.raw, tt.region)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, got)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestNormalizePhoneIsIdempotent(t *testing.T) {
	first, ok := NormalizePhone("07911123456", DefaultRegion)
	require.True(t, ok)

	second, ok := NormalizePhone(first, DefaultRegion)
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestNormalizePhoneNationalAndInternationalAgree(t *testing.T) {
	national, ok := NormalizePhone("07911123456", DefaultRegion)
	require.True(t, ok)

	international, ok := NormalizePhone("+44 7911 123456", DefaultRegion)
	require.True(t, ok)

	assert.Equal(t, national, international)
}

func TestIsDomesticNumber(t *testing.T) {
	tests := []struct {
		name       string
		normalized string
		raw        string
		expected   bool
	}{
		{
			name:       "normalized UK number",
			normalized: "+447911123456",
			raw:        "07911123456",
			expected:   true,
		},
		{
			name:       "normalized US number",
			normalized: "+14155552671",
			raw:        "+14155552671",
			expected:   false,
		},
		{
			name:     "unnormalized raw 07 prefix",
			raw:      "07911 something",
			expected: true,
		},
		{
			name:     "unnormalized raw 0044 prefix",
			raw:      "0044 7911 123456",
			expected: true,
		},
		{
			name:     "unnormalized raw foreign prefix",
			raw:      "+1 415 555 2671",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsDomesticNumber(tt.normalized, tt.raw))
		})
	}
}
