package models

import "time"

// JobRun is the summary row for one execution of a messaging job. It is
// created with zero counts before any data is fetched and finalized when the
// run ends; a row with a null finished_at marks a run that never completed.
type JobRun struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Feature    string     `gorm:"size:32;not null;index:idx_job_runs_feature" json:"feature"`
	DryRun     bool       `json:"dry_run"`
	StartedAt  time.Time  `gorm:"not null;index:idx_job_runs_started_at" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Fetched    int        `json:"fetched"`
	Sent       int        `json:"sent"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	Error      *string    `gorm:"size:500" json:"error,omitempty"`
}

func (JobRun) TableName() string { return "job_runs" }

// JobRunFilter provides filter fields for repository queries
type JobRunFilter struct {
	Feature       *string
	Unfinished    *bool
	StartedAfter  *time.Time
	StartedBefore *time.Time
}
