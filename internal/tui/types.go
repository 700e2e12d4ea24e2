package tui

// PlanItem is one ranked action in the plan view
type PlanItem struct {
	ID               string
	Title            string
	ActionType       string
	State            string
	DueDate          string
	Lane             string
	Score            float64
	EstimatedMinutes *int
	RelationshipID   string
	Breakdown        map[string]float64
}

// PlanView is the daily plan as shown in the TUI
type PlanView struct {
	Date        string
	Level       string
	Source      string
	ActionCount int
	Items       []PlanItem
}
