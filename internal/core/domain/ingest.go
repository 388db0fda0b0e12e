package domain

import "time"

// IngestStats summarises one ingestion run
type IngestStats struct {
	FilesSeen     int           `json:"files_seen"`
	FilesIndexed  int           `json:"files_indexed"`
	FilesSkipped  int           `json:"files_skipped"`
	ChunksIndexed int           `json:"chunks_indexed"`
	Errors        []string      `json:"errors,omitempty"`
	Duration      time.Duration `json:"-"`
}
