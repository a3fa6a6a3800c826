package models

// ChecklistPriority ranks how important a setup step is.
type ChecklistPriority string

const (
	ChecklistPriorityCritical ChecklistPriority = "critical"
	ChecklistPriorityHigh     ChecklistPriority = "high"
	ChecklistPriorityMedium   ChecklistPriority = "medium"
	ChecklistPriorityLow      ChecklistPriority = "low"
)

// ChecklistItem is one onboarding precondition shown on the dashboard.
type ChecklistItem struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Completed bool              `json:"completed"`
	Required  bool              `json:"required"`
	Priority  ChecklistPriority `json:"priority"`
	Action    string            `json:"action"`
	Link      string            `json:"link"`
}

// Blocking reports whether the item, while incomplete, prevents automation start.
func (c ChecklistItem) Blocking() bool {
	return c.Required && c.Priority == ChecklistPriorityCritical && !c.Completed
}
