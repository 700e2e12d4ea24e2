package engine

import (
	"sort"
	"time"

	"github.com/nextbestmove/nbm/internal/models"
)

// ManualHoldDays is how long a manual state change outranks detection when
// no interaction follows it.
const ManualHoldDays = 30

// ManualStateHeld reports whether a hand-set state still stands. An
// interaction after the change releases it.
func ManualStateHeld(rel models.Relationship, now time.Time) bool {
	if rel.StatePinnedAt == nil || !rel.State.Valid() {
		return false
	}
	if rel.LastInteractionAt != nil && rel.LastInteractionAt.After(*rel.StatePinnedAt) {
		return false
	}
	return now.Sub(*rel.StatePinnedAt) < ManualHoldDays*24*time.Hour
}

// ReconcileState combines the persisted state with a fresh detection. A held
// manual state wins. Otherwise strong detected signals win, and an
// ACTIVE_CONVERSATION reached through a completion is kept while the last
// interaction is inside the active window.
func ReconcileState(rel models.Relationship, detected models.RelationshipState, snap models.RelationshipSnapshot, now time.Time) models.RelationshipState {
	if ManualStateHeld(rel, now) {
		return rel.State
	}
	switch detected {
	case models.StateDormant, models.StateOpportunity, models.StateActiveConversation:
		return detected
	}
	if rel.State == models.StateActiveConversation &&
		snap.DaysSinceLastInteraction != nil && *snap.DaysSinceLastInteraction <= activeWindowDays {
		return rel.State
	}
	return detected
}

// RankInput is everything one scoring pass needs for a single user.
type RankInput struct {
	Relationships []models.Relationship
	Actions       []models.Action
	// EmailSignals is keyed by relationship id; missing entries mean no signal.
	EmailSignals map[string]*models.EmailSignals
	Now          time.Time
}

// RankResult is the output of a scoring pass.
type RankResult struct {
	Snapshots map[string]models.RelationshipSnapshot
	Lanes     map[string]models.Lane
	Actions   []ScoredAction
}

// Rank classifies every relationship, then scores and lane-tags every open
// action. Actions are returned in input order.
func (s *Scorer) Rank(in RankInput) RankResult {
	snaps := BuildSnapshots(in.Relationships, in.Actions, in.Now)
	lanes := make(map[string]models.Lane, len(snaps))
	for _, rel := range in.Relationships {
		snap := snaps[rel.ID]
		detected := DetectState(StateInputFrom(rel, snap, in.EmailSignals[rel.ID], in.Now))
		snap.State = ReconcileState(rel, detected, snap, in.Now)
		snaps[rel.ID] = snap
		lanes[rel.ID] = AssignRelationshipLane(&snap)
	}

	res := RankResult{Snapshots: snaps, Lanes: lanes}
	best := make(map[string]ScoredAction)
	for _, a := range in.Actions {
		if a.State == models.ActionStateDone || a.State == models.ActionStateArchived {
			continue
		}
		var snapPtr *models.RelationshipSnapshot
		relLane := models.LaneOnDeck
		key := a.RelationshipKey()
		if snap, ok := snaps[key]; ok {
			snapPtr = &snap
			relLane = lanes[key]
		}
		sc := s.Score(a, snapPtr, in.Now, in.EmailSignals[key])
		scored := ScoredAction{
			Action:    a,
			Lane:      AssignActionLane(a, relLane, in.Now),
			Score:     sc.Score,
			Breakdown: sc.Breakdown,
		}
		res.Actions = append(res.Actions, scored)
		if snapPtr == nil || !Actionable(a, in.Now) {
			continue
		}
		if cur, ok := best[key]; !ok || better(scored, cur) {
			best[key] = scored
		}
	}
	for key, sa := range best {
		snap := snaps[key]
		snap.NextMoveActionID = sa.Action.ID
		snaps[key] = snap
	}
	return res
}

// Actionable reports whether an action can be put on today's plan.
func Actionable(a models.Action, now time.Time) bool {
	switch a.State {
	case models.ActionStateNew, models.ActionStateSent, models.ActionStateReplied:
		return true
	case models.ActionStateSnoozed:
		return a.SnoozeUntil == nil || !a.SnoozeUntil.After(now)
	}
	return false
}

// BuildPlan orders actionable entries by lane, then score, then input order,
// and keeps as many as the capacity allows.
func BuildPlan(scored []ScoredAction, capacity models.Capacity, now time.Time) []ScoredAction {
	plan := make([]ScoredAction, 0, len(scored))
	for _, sa := range scored {
		if Actionable(sa.Action, now) {
			plan = append(plan, sa)
		}
	}
	sort.SliceStable(plan, func(i, j int) bool {
		return better(plan[i], plan[j])
	})
	if capacity.ActionCount >= 0 && len(plan) > capacity.ActionCount {
		plan = plan[:capacity.ActionCount]
	}
	return plan
}
