package engine

import "github.com/nextbestmove/nbm/internal/models"

// ScoredAction is an action tagged with its lane and next-move score.
type ScoredAction struct {
	Action    models.Action  `json:"action"`
	Lane      models.Lane    `json:"lane"`
	Score     float64        `json:"next_move_score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// better reports whether a outranks b: lane first, then score.
func better(a, b ScoredAction) bool {
	if a.Lane.Rank() != b.Lane.Rank() {
		return a.Lane.Rank() < b.Lane.Rank()
	}
	return a.Score > b.Score
}

// GetActionForDuration picks the best action whose estimate fits in
// durationMinutes. Actions without a positive estimate never fit. Ties keep the
// earliest input. Returns nil when nothing qualifies.
func GetActionForDuration(actions []ScoredAction, durationMinutes int) *ScoredAction {
	var best *ScoredAction
	for i := range actions {
		m := actions[i].Action.EstimatedMinutes
		if m == nil || *m <= 0 || *m > durationMinutes {
			continue
		}
		if best == nil || better(actions[i], *best) {
			best = &actions[i]
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}
