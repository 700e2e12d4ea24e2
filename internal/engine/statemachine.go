// Package engine ranks a user's pending relationship work into a daily plan.
//
// Everything in this package is a pure function of its arguments: no I/O, no
// wall-clock reads and no shared state. Callers fetch rows, pass a reference
// time, and persist whatever they want to keep.
package engine

import (
	"time"

	"github.com/nextbestmove/nbm/internal/models"
)

const (
	// DormantSilenceDays is the silence after which a relationship goes dormant.
	DormantSilenceDays = 90
	activeWindowDays   = 7
	warmWindowDays     = 30
	recentSignalWindow = 7 * 24 * time.Hour
)

// StateInput carries the signals used to classify a relationship.
type StateInput struct {
	DaysSinceLastInteraction *int
	HasRecentEmail           bool
	HasRecentResponse        bool
	HasScheduledMeeting      bool
	HasOpenOpportunity       bool
	HasExplicitNo            bool
	SilenceDays              int
	Tier                     models.Tier
}

// DetectState classifies a relationship. Rules are evaluated in order and the
// first match wins.
func DetectState(in StateInput) models.RelationshipState {
	if in.HasExplicitNo || in.SilenceDays >= DormantSilenceDays {
		return models.StateDormant
	}
	if in.HasOpenOpportunity {
		return models.StateOpportunity
	}
	days := in.DaysSinceLastInteraction
	if in.HasScheduledMeeting ||
		(in.HasRecentEmail && in.HasRecentResponse && days != nil && *days <= activeWindowDays) {
		return models.StateActiveConversation
	}
	if days != nil && *days > activeWindowDays && *days <= warmWindowDays {
		return models.StateWarmButPassive
	}
	return models.StateUnengaged
}

// StateInputFrom derives detector inputs from a relationship row, its
// snapshot and optional email signals.
func StateInputFrom(rel models.Relationship, snap models.RelationshipSnapshot, email *models.EmailSignals, now time.Time) StateInput {
	in := StateInput{
		DaysSinceLastInteraction: snap.DaysSinceLastInteraction,
		HasOpenOpportunity:       rel.HasOpenOpportunity(),
		HasExplicitNo:            rel.DeclinedAt != nil,
		Tier:                     rel.Tier,
	}
	if snap.DaysSinceLastInteraction != nil {
		in.SilenceDays = *snap.DaysSinceLastInteraction
	}
	if email != nil && email.DaysSinceLastEmail != nil && *email.DaysSinceLastEmail <= activeWindowDays {
		in.HasRecentEmail = true
	}
	if rel.LastReplyAt != nil && !rel.LastReplyAt.After(now) && now.Sub(*rel.LastReplyAt) <= recentSignalWindow {
		in.HasRecentResponse = true
	}
	if rel.NextMeetingAt != nil && rel.NextMeetingAt.After(now) {
		in.HasScheduledMeeting = true
	}
	return in
}

var validActions = map[models.RelationshipState][]models.ActionType{
	models.StateUnengaged:          {models.ActionTypeOutreach, models.ActionTypeNurture},
	models.StateActiveConversation: {models.ActionTypePostCall, models.ActionTypeFollowUp},
	models.StateOpportunity:        {models.ActionTypeFollowUp, models.ActionTypePostCall},
	models.StateWarmButPassive:     {models.ActionTypeNurture},
	// Dormant relationships only get occasional nurture touches.
	models.StateDormant: {models.ActionTypeNurture},
}

// ValidActionTypes returns the action types that make sense for a state.
// Unknown states have none.
func ValidActionTypes(state models.RelationshipState) []models.ActionType {
	types := validActions[state]
	out := make([]models.ActionType, len(types))
	copy(out, types)
	return out
}

// IsValidAction reports whether actionType belongs to state's table entry.
func IsValidAction(state models.RelationshipState, actionType models.ActionType) bool {
	for _, t := range validActions[state] {
		if t == actionType {
			return true
		}
	}
	return false
}

// TransitionContext is what the caller knows when an action is completed.
type TransitionContext struct {
	CompletionEvents models.CompletionEvents
}

// DetermineNextState returns the relationship state after an action of
// actionType is completed.
func DetermineNextState(current models.RelationshipState, ctx TransitionContext, actionType models.ActionType) models.RelationshipState {
	ev := ctx.CompletionEvents
	if ev.GotResponseAt != nil || ev.NextCallCalendaredAt != nil {
		switch current {
		case models.StateUnengaged, models.StateActiveConversation:
			return models.StateActiveConversation
		}
		return current
	}
	if ev.RepliedToEmailAt != nil && current == models.StateUnengaged {
		return models.StateActiveConversation
	}
	if actionType == models.ActionTypeOutreach && current == models.StateUnengaged {
		return models.StateActiveConversation
	}
	// POST_CALL keeps an active conversation where it is; promotion to
	// OPPORTUNITY is a manual step.
	return current
}

// CanTransitionToState reports whether moving from one state to another is
// allowed. The state machine is advisory, so every pair is accepted.
func CanTransitionToState(from, to models.RelationshipState) bool {
	return true
}
