package activity

import (
	"fmt"
	"sort"

	"github.com/joescharf/jobdash/internal/models"
)

// Options caps the feed. Each source is truncated to PerSource before
// merging so a large source cannot crowd out the other.
type Options struct {
	PerSource int
	Max       int
}

// DefaultOptions keeps five entries per source and eight overall.
func DefaultOptions() Options {
	return Options{PerSource: 5, Max: 8}
}

// Aggregate builds the feed, newest first. Entries without a parsable
// timestamp sort last. The result is never nil.
func Aggregate(applied []models.ApplicationRecord, saved []models.SavedJobRecord, opts Options) []models.ActivityEntry {
	if opts.PerSource <= 0 {
		opts.PerSource = DefaultOptions().PerSource
	}
	if opts.Max <= 0 {
		opts.Max = DefaultOptions().Max
	}

	entries := make([]models.ActivityEntry, 0, min(len(applied), opts.PerSource)+min(len(saved), opts.PerSource))

	for i, a := range applied[:min(len(applied), opts.PerSource)] {
		t, _ := models.ParseTime(a.DateApplied)
		entries = append(entries, models.ActivityEntry{
			ID:      entryID("applied", string(a.ID), i),
			Kind:    models.ActivityKindApplied,
			Title:   a.Title,
			Company: a.Company,
			Time:    t,
			Status:  string(a.EffectiveStatus()),
		})
	}

	for i, s := range saved[:min(len(saved), opts.PerSource)] {
		t, _ := models.ParseTime(s.DateSaved)
		entries = append(entries, models.ActivityEntry{
			ID:      entryID("saved", string(s.ID), i),
			Kind:    models.ActivityKindSaved,
			Title:   s.Title,
			Company: s.Company,
			Time:    t,
			Status:  "saved",
		})
	}

	// Zero times are older than any real timestamp, so a plain descending
	// comparison already puts them last.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time.After(entries[j].Time)
	})

	if len(entries) > opts.Max {
		entries = entries[:opts.Max]
	}
	return entries
}

// entryID falls back to the record's position when the backend sent no id.
func entryID(kind, id string, i int) string {
	if id == "" {
		return fmt.Sprintf("%s-%d", kind, i)
	}
	return kind + "-" + id
}
