package dto

import "time"

// RunJobRequest triggers one job run. Date anchors the daily job's window to
// an explicit day (YYYY-MM-DD in the service timezone) instead of yesterday.
type RunJobRequest struct {
	Date   string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DryRun bool   `json:"dry_run,omitempty"`
}

// RunJobResponse reports one run's aggregate counts.
type RunJobResponse struct {
	Feature             string `json:"feature"`
	DryRun              bool   `json:"dry_run"`
	Fetched             int    `json:"fetched"`
	Sent                int    `json:"sent"`
	Failed              int    `json:"failed"`
	Skipped             int    `json:"skipped"`
	SkippedNoPhone      int    `json:"skipped_no_phone"`
	SkippedInvalidPhone int    `json:"skipped_invalid_phone"`
	SkippedNonUK        int    `json:"skipped_non_uk_number"`
	SkippedOptedOut     int    `json:"skipped_opted_out"`
	SkippedNoLink       int    `json:"skipped_no_review_link"`
	SkippedAlreadySent  int    `json:"skipped_already_sent"`
}

// PreviewJobResponse lists candidates annotated with the status each would
// receive if the job ran now.
type PreviewJobResponse struct {
	Feature    string `json:"feature"`
	Candidates any    `json:"candidates"`
	Total      int    `json:"total"`
}

// JobRunSummary is one historical run for operator listings.
type JobRunSummary struct {
	ID         uint       `json:"id"`
	Feature    string     `json:"feature"`
	DryRun     bool       `json:"dry_run"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Fetched    int        `json:"fetched"`
	Sent       int        `json:"sent"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	Error      *string    `json:"error,omitempty"`
}

// ListJobRunsResponse wraps the recent-runs listing.
type ListJobRunsResponse struct {
	Runs []JobRunSummary `json:"runs"`
}
