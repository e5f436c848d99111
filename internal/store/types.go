package store

import (
	"context"
	"time"
)

// JobRecord is the durable trace of one finished narration job.
type JobRecord struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Stage       string    `json:"stage"`
	Error       string    `json:"error,omitempty"`
	OutputFiles []string  `json:"output_files,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Store persists and retrieves job history.
type Store interface {
	SaveJob(ctx context.Context, record JobRecord) error
	RecentJobs(ctx context.Context, limit int) ([]JobRecord, error)
	Mode() string
	Close() error
}
