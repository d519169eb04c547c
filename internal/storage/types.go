package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotOpen = errors.New("storage not open")

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// Thread is one ingested forum discussion thread.
type Thread struct {
	ID        int64
	Title     string
	Excerpt   string
	Author    string
	Replies   int
	CreatedAt time.Time
}

// Classification is the label assigned to one thread.
type Classification struct {
	ThreadID     int64
	Label        string
	Score        float64
	ClassifiedAt time.Time
}

// LabelCount is one row of a report aggregation.
type LabelCount struct {
	Label    string
	Count    int
	AvgScore float64
}

// Summary aggregates classified threads over a reporting window.
type Summary struct {
	Since      time.Time
	Until      time.Time
	Threads    int
	Classified int
	Labels     []LabelCount
}

// Store is the persistence API consumed by the ingest cycle and the report
// jobs. Implementations must be safe for concurrent use.
type Store interface {
	// UpsertThreads inserts or refreshes threads and reports how many rows
	// were new.
	UpsertThreads(ctx context.Context, threads []Thread) (int, error)

	// PendingThreads returns up to limit threads that have no classification
	// yet, oldest first.
	PendingThreads(ctx context.Context, limit int) ([]Thread, error)

	SaveClassification(ctx context.Context, c Classification) error

	// Summary aggregates classifications whose thread was created in
	// [since, until).
	Summary(ctx context.Context, since, until time.Time) (Summary, error)

	// Ping verifies the database is reachable and writable.
	Ping(ctx context.Context) error

	Close() error
}
