package analytics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joescharf/jobdash/internal/models"
)

const (
	monthLayout = "Jan 2006"
	unknown     = "Unknown"
)

// Window restricts analytics to records applied within the last Days days.
// Days <= 0 means all time.
type Window struct {
	Days int
}

// AllTime covers every record.
var AllTime = Window{}

// LastDays returns a window covering the last n days.
func LastDays(n int) Window {
	return Window{Days: n}
}

// ParseWindow accepts a day count ("7", "30", "90d") or "all".
func ParseWindow(s string) (Window, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "all" {
		return AllTime, nil
	}
	n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
	if err != nil || n <= 0 {
		return Window{}, fmt.Errorf("invalid time window %q (use a positive number of days or \"all\")", s)
	}
	return LastDays(n), nil
}

// IsAll reports whether the window covers all time.
func (w Window) IsAll() bool {
	return w.Days <= 0
}

func (w Window) String() string {
	if w.IsAll() {
		return "all"
	}
	return strconv.Itoa(w.Days)
}

// Snapshot is a freshly computed set of application statistics.
type Snapshot struct {
	Window                    string         `json:"window"`
	Total                     int            `json:"total"`
	StatusCounts              map[string]int `json:"statusCounts"`
	CompanyCounts             map[string]int `json:"companyCounts"`
	LocationCounts            map[string]int `json:"locationCounts"`
	MonthlyData               map[string]int `json:"monthlyData"`
	SuccessRate               float64        `json:"successRate"`
	ResponseRate              float64        `json:"responseRate"`
	AverageApplicationsPerDay float64        `json:"averageApplicationsPerDay"`
	// DaysCovered is the divisor behind AverageApplicationsPerDay.
	DaysCovered int `json:"daysCovered"`
}

// Engine computes snapshots against an injectable clock.
type Engine struct {
	now func() time.Time
}

// NewEngine returns an Engine using the wall clock.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// NewEngineAt returns an Engine whose notion of "now" comes from now.
func NewEngineAt(now func() time.Time) *Engine {
	return &Engine{now: now}
}

// Compute builds a snapshot of the records that fall inside w. Records are
// not modified. Undated records are excluded when a window is active.
func (e *Engine) Compute(records []models.ApplicationRecord, w Window) *Snapshot {
	snap := &Snapshot{
		Window:         w.String(),
		StatusCounts:   make(map[string]int),
		CompanyCounts:  make(map[string]int),
		LocationCounts: make(map[string]int),
		MonthlyData:    make(map[string]int),
	}

	var cutoff time.Time
	if !w.IsAll() {
		cutoff = e.now().Add(-time.Duration(w.Days) * 24 * time.Hour)
	}

	var earliest, latest time.Time
	successes, responses := 0, 0

	for _, r := range records {
		applied, dated := models.ParseTime(r.DateApplied)
		if !w.IsAll() && (!dated || applied.Before(cutoff)) {
			continue
		}

		snap.Total++
		status := r.EffectiveStatus()
		snap.StatusCounts[string(status)]++
		snap.CompanyCounts[orUnknown(r.Company)]++
		snap.LocationCounts[orUnknown(r.Location)]++

		switch status {
		case models.ApplicationStatusInterview, models.ApplicationStatusOffer:
			successes++
		}
		if status != models.ApplicationStatusApplied {
			responses++
		}

		if dated {
			snap.MonthlyData[applied.Format(monthLayout)]++
			if earliest.IsZero() || applied.Before(earliest) {
				earliest = applied
			}
			if latest.IsZero() || applied.After(latest) {
				latest = applied
			}
		}
	}

	snap.SuccessRate = percent(successes, snap.Total)
	snap.ResponseRate = percent(responses, snap.Total)

	// A fixed window divides by its length. All time divides by the
	// inclusive span of days between the earliest and latest dated record.
	days := w.Days
	if w.IsAll() {
		days = 1
		if !earliest.IsZero() {
			days = int(latest.Sub(earliest).Hours()/24) + 1
		}
	}
	snap.DaysCovered = max(days, 1)
	snap.AverageApplicationsPerDay = float64(snap.Total) / float64(snap.DaysCovered)

	return snap
}

// percent returns 100*n/total rounded to one decimal, or 0 for an empty set.
func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)*1000/float64(total)) / 10
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return unknown
	}
	return s
}

// Count is a labelled tally.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// MonthlyTrend returns the monthly tallies in chronological order.
func (s *Snapshot) MonthlyTrend() []Count {
	type month struct {
		at time.Time
		Count
	}
	months := make([]month, 0, len(s.MonthlyData))
	for label, n := range s.MonthlyData {
		at, _ := time.Parse(monthLayout, label)
		months = append(months, month{at: at, Count: Count{Label: label, Count: n}})
	}
	sort.Slice(months, func(i, j int) bool { return months[i].at.Before(months[j].at) })

	out := make([]Count, len(months))
	for i, m := range months {
		out[i] = m.Count
	}
	return out
}

// TopCompanies returns the n companies with the most applications.
func (s *Snapshot) TopCompanies(n int) []Count {
	return top(s.CompanyCounts, n)
}

// TopLocations returns the n locations with the most applications.
func (s *Snapshot) TopLocations(n int) []Count {
	return top(s.LocationCounts, n)
}

// StatusBreakdown returns counts for every known status in pipeline order,
// followed by any unrecognised statuses the backend reported.
func (s *Snapshot) StatusBreakdown() []Count {
	out := make([]Count, 0, len(s.StatusCounts))
	seen := make(map[string]bool)
	for _, st := range models.ApplicationStatuses {
		seen[string(st)] = true
		out = append(out, Count{Label: string(st), Count: s.StatusCounts[string(st)]})
	}
	var extra []Count
	for label, n := range s.StatusCounts {
		if !seen[label] {
			extra = append(extra, Count{Label: label, Count: n})
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Label < extra[j].Label })
	return append(out, extra...)
}

func top(m map[string]int, n int) []Count {
	out := make([]Count, 0, len(m))
	for label, c := range m {
		out = append(out, Count{Label: label, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
