package dto

import "time"

// AddOptOutRequest adds one phone to the opt-out ledger.
type AddOptOutRequest struct {
	Phone string `json:"phone" validate:"required,min=7,max=32"`
	Note  string `json:"note,omitempty" validate:"omitempty,max=200"`
}

// RemoveOptOutRequest removes one phone from the opt-out ledger.
type RemoveOptOutRequest struct {
	Phone string `json:"phone" validate:"required,min=7,max=32"`
}

// OptOutEntry is one ledger record in listings.
type OptOutEntry struct {
	Phone     string    `json:"phone"`
	Source    string    `json:"source"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListOptOutsResponse wraps ledger listings and searches.
type ListOptOutsResponse struct {
	OptOuts []OptOutEntry `json:"opt_outs"`
	Total   int           `json:"total"`
}
