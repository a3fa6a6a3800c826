package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ApplicationStatus represents where a job application stands.
type ApplicationStatus string

const (
	ApplicationStatusApplied     ApplicationStatus = "applied"
	ApplicationStatusUnderReview ApplicationStatus = "under_review"
	ApplicationStatusInterview   ApplicationStatus = "interview"
	ApplicationStatusOffer       ApplicationStatus = "offer"
	ApplicationStatusRejected    ApplicationStatus = "rejected"
	ApplicationStatusWithdrawn   ApplicationStatus = "withdrawn"
)

// ApplicationStatuses lists every known status in pipeline order.
var ApplicationStatuses = []ApplicationStatus{
	ApplicationStatusApplied,
	ApplicationStatusUnderReview,
	ApplicationStatusInterview,
	ApplicationStatusOffer,
	ApplicationStatusRejected,
	ApplicationStatusWithdrawn,
}

// RecordID is a backend record identifier. The backend emits either JSON
// numbers or strings, so both decode into the same string form.
type RecordID string

func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = RecordID(n.String())
	return nil
}

// Note is a timestamped free-text note attached to an application.
type Note struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// ApplicationRecord is a job application as reported by the backend.
type ApplicationRecord struct {
	ID          RecordID          `json:"id"`
	Title       string            `json:"title"`
	Company     string            `json:"company"`
	Location    string            `json:"location"`
	URL         string            `json:"url,omitempty"`
	Status      ApplicationStatus `json:"status"`
	DateApplied string            `json:"date_applied"`
	Notes       []Note            `json:"notes"`
}

// EffectiveStatus returns the record status, defaulting to applied when absent.
func (a ApplicationRecord) EffectiveStatus() ApplicationStatus {
	s := ApplicationStatus(strings.TrimSpace(string(a.Status)))
	if s == "" {
		return ApplicationStatusApplied
	}
	return s
}

// SavedJobRecord is a bookmarked job as reported by the backend.
type SavedJobRecord struct {
	ID        RecordID `json:"id"`
	Title     string   `json:"title"`
	Company   string   `json:"company"`
	Location  string   `json:"location"`
	URL       string   `json:"url,omitempty"`
	DateSaved string   `json:"date_saved"`
}
