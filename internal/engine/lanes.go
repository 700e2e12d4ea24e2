package engine

import (
	"time"

	"github.com/nextbestmove/nbm/internal/models"
)

// AssignRelationshipLane buckets a relationship by how urgently it needs a
// human. A nil snapshot lands on deck.
func AssignRelationshipLane(rel *models.RelationshipSnapshot) models.Lane {
	if rel == nil {
		return models.LaneOnDeck
	}
	switch rel.State {
	case models.StateActiveConversation, models.StateOpportunity:
		if rel.OverdueActionsCount > 0 || rel.AwaitingResponse {
			return models.LanePriority
		}
		return models.LaneInMotion
	case models.StateUnengaged:
		if rel.OverdueActionsCount > 0 {
			return models.LaneInMotion
		}
		return models.LaneOnDeck
	case models.StateWarmButPassive, models.StateDormant:
		return models.LaneOnDeck
	default:
		// Unknown or unset states get no urgency.
		return models.LaneOnDeck
	}
}

// AssignActionLane refines a relationship lane using the action's own
// urgency. It never demotes.
func AssignActionLane(action models.Action, relationshipLane models.Lane, referenceDate time.Time) models.Lane {
	lane := relationshipLane
	if !lane.Valid() {
		lane = models.LaneOnDeck
	}
	if IsOverdue(action, referenceDate) {
		return models.LanePriority
	}
	if action.PromisedDueAt != nil && action.PromisedDueAt.Before(referenceDate) {
		return models.LanePriority
	}
	dueToday := !action.DueDate.IsZero() && daysBetween(action.DueDate, referenceDate) == 0
	if (dueToday || action.State == models.ActionStateReplied) && lane.Rank() > models.LaneInMotion.Rank() {
		return models.LaneInMotion
	}
	return lane
}
