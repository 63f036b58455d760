package models

import "time"

// OptOutSource indicates where an opt-out originated.
type OptOutSource string

const (
	OptOutSourceKeyword OptOutSource = "inbound_keyword"
	OptOutSourceManual  OptOutSource = "manual"
)

// OptOut is one entry in the opt-out ledger. Stored as a JSON value in Redis
// keyed by the normalized phone, so there is at most one record per phone and
// a repeat opt-out overwrites source/note/timestamp rather than duplicating.
type OptOut struct {
	Phone     string       `json:"phone"`
	Source    OptOutSource `json:"source"`
	Note      string       `json:"note,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
