package models

import "time"

// ActivityKind identifies which record stream an activity entry came from.
type ActivityKind string

const (
	ActivityKindApplied ActivityKind = "applied"
	ActivityKindSaved   ActivityKind = "saved"
)

// ActivityEntry is one line of the merged recent-activity feed.
// Time is zero when the source timestamp could not be parsed.
type ActivityEntry struct {
	ID      string       `json:"id"`
	Kind    ActivityKind `json:"kind"`
	Title   string       `json:"title"`
	Company string       `json:"company"`
	Time    time.Time    `json:"time"`
	Status  string       `json:"status"`
}
