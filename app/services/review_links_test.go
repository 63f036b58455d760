package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewLinkStoreStartsEmpty(t *testing.T) {
	store := NewReviewLinkStore()

	assert.Equal(t, 0, store.Cities())
	assert.False(t, store.HasLinks("london"))

	_, ok := store.PickLink("london")
	assert.False(t, ok)
}

func TestReviewLinkStorePickLink(t *testing.T) {
	store := NewReviewLinkStore()
	store.Replace(map[string][]string{
		"london":  {"https://g.page/r/one", "https://g.page/r/two"},
		"glasgow": {"https://g.page/r/scot"},
	})

	assert.Equal(t, 2, store.Cities())

	link, ok := store.PickLink("london")
	require.True(t, ok)
	assert.Contains(t, []string{"https://g.page/r/one", "https://g.page/r/two"}, link)

	link, ok = store.PickLink("glasgow")
	require.True(t, ok)
	assert.Equal(t, "https://g.page/r/scot", link)
}

func TestReviewLinkStoreCityMatchingIsCaseInsensitive(t *testing.T) {
	store := NewReviewLinkStore()
	store.Replace(map[string][]string{"London": {"https://g.page/r/one"}})

	assert.True(t, store.HasLinks("LONDON"))
	assert.True(t, store.HasLinks("  london  "))
	assert.False(t, store.HasLinks("londonderry"))
}

func TestReviewLinkStoreNeverSubstitutesFallback(t *testing.T) {
	store := NewReviewLinkStore()
	store.Replace(map[string][]string{"london": {"https://g.page/r/one"}})

	// An unknown city yields nothing; fallback policy lives in the caller.
	_, ok := store.PickLink("aberdeen")
	assert.False(t, ok)
}

func TestReviewLinkStoreReplaceIsWholesale(t *testing.T) {
	store := NewReviewLinkStore()
	store.Replace(map[string][]string{"london": {"https://g.page/r/one"}})
	store.Replace(map[string][]string{"leeds": {"https://g.page/r/two"}})

	assert.False(t, store.HasLinks("london"))
	assert.True(t, store.HasLinks("leeds"))
}

func TestLoadCSV(t *testing.T) {
	tests := []struct {
		name     string
		csv      string
		rows     int
		cities   int
		wantCity string
	}{
		{
			name:     "plain rows",
			csv:      "london,https://g.page/r/one\nglasgow,https://g.page/r/scot\n",
			rows:     2,
			cities:   2,
			wantCity: "glasgow",
		},
		{
			name:     "header row tolerated",
			csv:      "city,url\nlondon,https://g.page/r/one\n",
			rows:     1,
			cities:   1,
			wantCity: "london",
		},
		{
			name:     "blank and short rows skipped",
			csv:      "london,https://g.page/r/one\nmalformed\n,\nleeds,https://g.page/r/two\n",
			rows:     2,
			cities:   2,
			wantCity: "leeds",
		},
		{
			name:     "multiple links per city accumulate",
			csv:      "london,https://g.page/r/one\nLondon,https://g.page/r/two\n",
			rows:     2,
			cities:   1,
			wantCity: "london",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewReviewLinkStore()
			rows, err := store.LoadCSV(strings.NewReader(tt.csv))
			require.NoError(t, err)
			assert.Equal(t, tt.rows, rows)
			assert.Equal(t, tt.cities, store.Cities())
			assert.True(t, store.HasLinks(tt.wantCity))
		})
	}
}

func TestLoadCSVFileMissing(t *testing.T) {
	store := NewReviewLinkStore()
	_, err := store.LoadCSVFile("does/not/exist.csv")
	assert.Error(t, err)
}
