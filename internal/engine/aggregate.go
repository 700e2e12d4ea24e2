package engine

import (
	"math"
	"time"

	"github.com/nextbestmove/nbm/internal/models"
)

const (
	day            = 24 * time.Hour
	momentumWindow = 14 * day
)

// dayStart truncates t to midnight UTC.
func dayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween counts calendar days from a to b; positive when b is later.
func daysBetween(a, b time.Time) int {
	return int(dayStart(b).Sub(dayStart(a)) / day)
}

// IsOverdue reports whether a pending action's due date is before now's day.
func IsOverdue(a models.Action, now time.Time) bool {
	if a.DueDate.IsZero() || !a.State.IsPending() {
		return false
	}
	return daysBetween(a.DueDate, now) > 0
}

// DaysSince returns floor((now - t) / 24h), or nil when t is nil.
func DaysSince(t *time.Time, now time.Time) *int {
	if t == nil {
		return nil
	}
	d := int(math.Floor(float64(now.Sub(*t)) / float64(day)))
	if d < 0 {
		d = 0
	}
	return &d
}

// ComputeMomentum scores how actively a relationship is moving from its
// recent completions and replies.
func ComputeMomentum(actions []models.Action, now time.Time) (float64, models.MomentumTrend) {
	var recent, prior, replies int
	for _, a := range actions {
		if a.State == models.ActionStateReplied && !a.UpdatedAt.After(now) && now.Sub(a.UpdatedAt) <= momentumWindow {
			replies++
		}
		if a.CompletedAt == nil || a.CompletedAt.After(now) {
			continue
		}
		age := now.Sub(*a.CompletedAt)
		switch {
		case age <= momentumWindow:
			recent++
		case age <= 2*momentumWindow:
			prior++
		}
	}

	score := math.Min(100, float64(recent*20+replies*10))
	trend := models.TrendStable
	switch {
	case recent > prior:
		trend = models.TrendIncreasing
	case recent < prior:
		trend = models.TrendDeclining
	}
	return score, trend
}

// BuildSnapshot derives the snapshot of one relationship from its row and the
// actions attached to it. It always recomputes from scratch.
func BuildSnapshot(rel models.Relationship, actions []models.Action, now time.Time) models.RelationshipSnapshot {
	snap := models.RelationshipSnapshot{
		RelationshipID:           rel.ID,
		UserID:                   rel.UserID,
		State:                    rel.State,
		DaysSinceLastInteraction: DaysSince(rel.LastInteractionAt, now),
		Cadence:                  rel.Cadence,
		CadenceDays:              rel.Cadence.Days(),
		Tier:                     rel.Tier,
		LastInteractionAt:        rel.LastInteractionAt,
		NextTouchDueAt:           rel.NextTouchDueAt,
	}
	for _, a := range actions {
		if a.RelationshipKey() != rel.ID {
			continue
		}
		if a.State.IsPending() {
			snap.PendingActionsCount++
			if IsOverdue(a, now) {
				snap.OverdueActionsCount++
			}
		}
		if a.State == models.ActionStateSent {
			snap.AwaitingResponse = true
		}
	}
	snap.MomentumScore, snap.MomentumTrend = ComputeMomentum(relatedActions(rel.ID, actions), now)
	return snap
}

// BuildSnapshots builds a snapshot for every relationship, keyed by id.
func BuildSnapshots(rels []models.Relationship, actions []models.Action, now time.Time) map[string]models.RelationshipSnapshot {
	byRel := make(map[string][]models.Action)
	for _, a := range actions {
		if key := a.RelationshipKey(); key != "" {
			byRel[key] = append(byRel[key], a)
		}
	}
	out := make(map[string]models.RelationshipSnapshot, len(rels))
	for _, rel := range rels {
		out[rel.ID] = BuildSnapshot(rel, byRel[rel.ID], now)
	}
	return out
}

func relatedActions(relID string, actions []models.Action) []models.Action {
	var out []models.Action
	for _, a := range actions {
		if a.RelationshipKey() == relID {
			out = append(out, a)
		}
	}
	return out
}
