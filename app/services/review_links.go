package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"sync/atomic"

	"github.com/xuri/excelize/v2"
)

// ReviewLinkStore maps lowercased city names to pools of review destination
// URLs. The whole mapping is replaced atomically on reload; readers never see
// a partially loaded pool.
type ReviewLinkStore struct {
	pool atomic.Pointer[map[string][]string]
}

func NewReviewLinkStore() *ReviewLinkStore {
	s := &ReviewLinkStore{}
	empty := map[string][]string{}
	s.pool.Store(&empty)
	return s
}

// HasLinks reports whether the city has at least one link. Matching is
// case-insensitive on the full city string.
func (s *ReviewLinkStore) HasLinks(city string) bool {
	links := (*s.pool.Load())[normalizeCity(city)]
	return len(links) > 0
}

// PickLink returns one of the city's links chosen uniformly at random, or
// ok=false when the city has none. Picks are independent: repeats across
// recipients and runs are acceptable. The store never substitutes a fallback
// city; that policy belongs to the caller.
func (s *ReviewLinkStore) PickLink(city string) (string, bool) {
	links := (*s.pool.Load())[normalizeCity(city)]
	if len(links) == 0 {
		return "", false
	}
	return links[rand.Intn(len(links))], true
}

// Cities returns the number of cities currently loaded.
func (s *ReviewLinkStore) Cities() int {
	return len(*s.pool.Load())
}

// Replace swaps in a new pool wholesale.
func (s *ReviewLinkStore) Replace(pool map[string][]string) {
	normalized := make(map[string][]string, len(pool))
	for city, links := range pool {
		if len(links) == 0 {
			continue
		}
		key := normalizeCity(city)
		normalized[key] = append(normalized[key], links...)
	}
	s.pool.Store(&normalized)
}

// LoadCSVFile reads a city,url CSV from disk and swaps the pool.
func (s *ReviewLinkStore) LoadCSVFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open review links file: %w", err)
	}
	defer f.Close()
	return s.LoadCSV(f)
}

// LoadCSV reads city,url rows and swaps the pool. A header row is tolerated.
func (s *ReviewLinkStore) LoadCSV(r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	pool := map[string][]string{}
	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to parse review links csv: %w", err)
		}
		if !appendRow(pool, record) {
			continue
		}
		rows++
	}
	s.Replace(pool)
	return rows, nil
}

// LoadXLSX reads city,url rows from the first sheet of a workbook and swaps
// the pool.
func (s *ReviewLinkStore) LoadXLSX(r io.Reader) (int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return 0, fmt.Errorf("failed to open review links workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return 0, fmt.Errorf("review links workbook has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return 0, fmt.Errorf("failed to read review links sheet: %w", err)
	}

	pool := map[string][]string{}
	rows := 0
	for _, record := range records {
		if appendRow(pool, record) {
			rows++
		}
	}
	s.Replace(pool)
	return rows, nil
}

func appendRow(pool map[string][]string, record []string) bool {
	if len(record) < 2 {
		return false
	}
	city := normalizeCity(record[0])
	url := strings.TrimSpace(record[1])
	if city == "" || url == "" || city == "city" {
		return false
	}
	pool[city] = append(pool[city], url)
	return true
}

func normalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
