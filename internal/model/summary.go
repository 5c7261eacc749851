package model

import "time"

// SyncSummary is the per-cycle report returned by the orchestrator.
type SyncSummary struct {
	TotalOwners     int
	Succeeded       int
	Failed          int
	MessagesFetched int
	StartedAt       time.Time
	Duration        time.Duration
}

// UpsertResult counts outcomes of one upsert batch.
type UpsertResult struct {
	Inserted int
	Updated  int
	Skipped  int
}

// AccountStats summarizes stored messages for one owner.
type AccountStats struct {
	Total   int64
	Unread  int64
	Starred int64
}

// Read returns the derived read count.
func (s AccountStats) Read() int64 {
	return s.Total - s.Unread
}
