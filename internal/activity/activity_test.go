package activity

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/jobdash/internal/models"
)

var base = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func appliedAt(n int, offset time.Duration) models.ApplicationRecord {
	return models.ApplicationRecord{
		ID:          models.RecordID(fmt.Sprint(n)),
		Title:       fmt.Sprintf("Applied %d", n),
		Company:     "Acme",
		DateApplied: base.Add(offset).Format(time.RFC3339),
	}
}

func savedAt(n int, offset time.Duration) models.SavedJobRecord {
	return models.SavedJobRecord{
		ID:        models.RecordID(fmt.Sprint(n)),
		Title:     fmt.Sprintf("Saved %d", n),
		Company:   "Globex",
		DateSaved: base.Add(offset).Format("2006-01-02T15:04:05"),
	}
}

func assertSortedDesc(t *testing.T, entries []models.ActivityEntry) {
	t.Helper()
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].Time.After(entries[i-1].Time), "entry %d newer than entry %d", i, i-1)
	}
}

func TestAggregate_Empty(t *testing.T) {
	entries := Aggregate(nil, nil, DefaultOptions())
	require.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestAggregate_MergesAndSorts(t *testing.T) {
	applied := []models.ApplicationRecord{appliedAt(1, 1*time.Hour), appliedAt(2, 3*time.Hour)}
	saved := []models.SavedJobRecord{savedAt(1, 2*time.Hour)}

	entries := Aggregate(applied, saved, DefaultOptions())
	require.Len(t, entries, 3)
	assert.Equal(t, "applied-2", entries[0].ID)
	assert.Equal(t, "saved-1", entries[1].ID)
	assert.Equal(t, "applied-1", entries[2].ID)

	assert.Equal(t, models.ActivityKindSaved, entries[1].Kind)
	assert.Equal(t, "saved", entries[1].Status)
	assert.Equal(t, "applied", entries[0].Status, "missing status defaults to applied")
}

func TestAggregate_PerSourceCapBeforeMerge(t *testing.T) {
	// Ten applied records all newer than the saved ones.
	var applied []models.ApplicationRecord
	for i := 0; i < 10; i++ {
		applied = append(applied, appliedAt(i, time.Duration(100+i)*time.Hour))
	}
	saved := []models.SavedJobRecord{savedAt(1, time.Hour), savedAt(2, 2*time.Hour), savedAt(3, 3*time.Hour)}

	entries := Aggregate(applied, saved, DefaultOptions())
	require.Len(t, entries, 8)

	kinds := map[models.ActivityKind]int{}
	for _, e := range entries {
		kinds[e.Kind]++
	}
	assert.Equal(t, 5, kinds[models.ActivityKindApplied], "applied truncated to five")
	assert.Equal(t, 3, kinds[models.ActivityKindSaved], "saved entries survive")

	// Truncation keeps source order: the first five applied records.
	for _, e := range entries[:5] {
		assert.Contains(t, []string{"applied-0", "applied-1", "applied-2", "applied-3", "applied-4"}, e.ID)
	}
	assertSortedDesc(t, entries)
}

func TestAggregate_UnparsableTimesSortLast(t *testing.T) {
	applied := []models.ApplicationRecord{
		{ID: "bad", Title: "No date", DateApplied: "sometime"},
		appliedAt(1, 0),
	}
	saved := []models.SavedJobRecord{{ID: "empty", Title: "Blank"}}

	entries := Aggregate(applied, saved, DefaultOptions())
	require.Len(t, entries, 3)
	assert.Equal(t, "applied-1", entries[0].ID)
	assert.True(t, entries[1].Time.IsZero())
	assert.True(t, entries[2].Time.IsZero())
	assertSortedDesc(t, entries)
}

func TestAggregate_CapAndOrderProperty(t *testing.T) {
	for na := 0; na <= 12; na += 3 {
		for ns := 0; ns <= 12; ns += 4 {
			var applied []models.ApplicationRecord
			for i := 0; i < na; i++ {
				applied = append(applied, appliedAt(i, time.Duration((i*7)%11)*time.Hour))
			}
			var saved []models.SavedJobRecord
			for i := 0; i < ns; i++ {
				saved = append(saved, savedAt(i, time.Duration((i*5)%13)*time.Hour))
			}

			opts := Options{PerSource: 5, Max: 8}
			entries := Aggregate(applied, saved, opts)
			assert.LessOrEqual(t, len(entries), opts.Max)
			assert.Equal(t, min(opts.Max, min(na, 5)+min(ns, 5)), len(entries))
			assertSortedDesc(t, entries)
		}
	}
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	applied := []models.ApplicationRecord{appliedAt(1, 0), appliedAt(2, time.Hour)}
	before := append([]models.ApplicationRecord(nil), applied...)

	Aggregate(applied, nil, DefaultOptions())
	assert.Equal(t, before, applied)
}

func TestAggregate_MissingIDsStayUnique(t *testing.T) {
	applied := []models.ApplicationRecord{appliedAt(1, 0), appliedAt(2, time.Hour)}
	saved := []models.SavedJobRecord{savedAt(1, 2*time.Hour), savedAt(2, 3*time.Hour)}
	for i := range applied {
		applied[i].ID = ""
	}
	for i := range saved {
		saved[i].ID = ""
	}

	entries := Aggregate(applied, saved, DefaultOptions())
	require.Len(t, entries, 4)

	seen := map[string]bool{}
	for _, e := range entries {
		assert.False(t, seen[e.ID], "duplicate id %q", e.ID)
		seen[e.ID] = true
	}
	assert.True(t, seen["applied-0"])
	assert.True(t, seen["saved-1"])
}
