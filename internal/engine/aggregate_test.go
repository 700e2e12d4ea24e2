package engine

import (
	"testing"
	"time"

	"github.com/nextbestmove/nbm/internal/models"
)

func TestBuildSnapshot(t *testing.T) {
	now := time.Date(2026, 6, 15, 18, 0, 0, 0, time.UTC)
	relID := "r1"
	other := "r2"
	rel := models.Relationship{
		ID:                relID,
		UserID:            "u1",
		Tier:              models.TierActive,
		Cadence:           models.CadenceModerate,
		LastInteractionAt: timePtr(now.Add(-(10*24*time.Hour + time.Hour))),
		State:             models.StateWarmButPassive,
	}
	actions := []models.Action{
		{ID: "a1", RelationshipID: &relID, State: models.ActionStateNew, DueDate: dayStart(now).AddDate(0, 0, -2)},
		{ID: "a2", RelationshipID: &relID, State: models.ActionStateSent, DueDate: dayStart(now)},
		{ID: "a3", RelationshipID: &relID, State: models.ActionStateSnoozed, DueDate: dayStart(now).AddDate(0, 0, -1)},
		{ID: "a4", RelationshipID: &relID, State: models.ActionStateDone, DueDate: dayStart(now).AddDate(0, 0, -5), CompletedAt: timePtr(now.Add(-24 * time.Hour))},
		{ID: "a5", RelationshipID: &other, State: models.ActionStateNew, DueDate: dayStart(now).AddDate(0, 0, -9)},
		{ID: "a6", State: models.ActionStateNew, DueDate: dayStart(now).AddDate(0, 0, -9)},
	}

	snap := BuildSnapshot(rel, actions, now)
	if snap.PendingActionsCount != 3 {
		t.Errorf("Expected 3 pending, got %d", snap.PendingActionsCount)
	}
	if snap.OverdueActionsCount != 2 {
		t.Errorf("Expected 2 overdue, got %d", snap.OverdueActionsCount)
	}
	if !snap.AwaitingResponse {
		t.Error("Expected awaiting response")
	}
	if snap.DaysSinceLastInteraction == nil || *snap.DaysSinceLastInteraction != 10 {
		t.Errorf("Expected 10 days since interaction, got %v", snap.DaysSinceLastInteraction)
	}
	if snap.CadenceDays != 14 || snap.Tier != models.TierActive || snap.State != models.StateWarmButPassive {
		t.Errorf("Unexpected copied fields: %+v", snap)
	}
	if snap.MomentumScore != 20 || snap.MomentumTrend != models.TrendIncreasing {
		t.Errorf("Expected momentum 20/increasing, got %v/%s", snap.MomentumScore, snap.MomentumTrend)
	}
}

func TestBuildSnapshot_NeverInteracted(t *testing.T) {
	snap := BuildSnapshot(models.Relationship{ID: "r"}, nil, time.Now())
	if snap.DaysSinceLastInteraction != nil {
		t.Errorf("Expected nil days, got %d", *snap.DaysSinceLastInteraction)
	}
	if snap.PendingActionsCount != 0 || snap.AwaitingResponse {
		t.Errorf("Expected empty counts, got %+v", snap)
	}
}

func TestBuildSnapshots_Pure(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	r1, r2 := "r1", "r2"
	rels := []models.Relationship{{ID: r1}, {ID: r2}}
	actions := []models.Action{
		{ID: "a", RelationshipID: &r1, State: models.ActionStateNew, DueDate: now.AddDate(0, 0, -1)},
		{ID: "b", RelationshipID: &r2, State: models.ActionStateSent, DueDate: now},
	}
	first := BuildSnapshots(rels, actions, now)
	second := BuildSnapshots(rels, actions, now)
	if len(first) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(first))
	}
	if first[r1].OverdueActionsCount != 1 || first[r2].OverdueActionsCount != 0 || !first[r2].AwaitingResponse {
		t.Errorf("Unexpected snapshots: %+v", first)
	}
	if first[r1].PendingActionsCount != second[r1].PendingActionsCount ||
		first[r2].AwaitingResponse != second[r2].AwaitingResponse {
		t.Error("Expected identical snapshots for identical inputs")
	}
}

func TestComputeMomentum(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	daysAgo := func(d int) *time.Time { return timePtr(now.AddDate(0, 0, -d)) }

	score, trend := ComputeMomentum([]models.Action{
		{CompletedAt: daysAgo(20)},
		{CompletedAt: daysAgo(25)},
		{CompletedAt: daysAgo(3)},
	}, now)
	if score != 20 || trend != models.TrendDeclining {
		t.Errorf("Expected 20/declining, got %v/%s", score, trend)
	}

	score, trend = ComputeMomentum(nil, now)
	if score != 0 || trend != models.TrendStable {
		t.Errorf("Expected 0/stable, got %v/%s", score, trend)
	}

	var many []models.Action
	for i := 0; i < 8; i++ {
		many = append(many, models.Action{CompletedAt: daysAgo(1)})
	}
	if score, _ = ComputeMomentum(many, now); score != 100 {
		t.Errorf("Expected capped score 100, got %v", score)
	}
}

func TestDaysSince_Floors(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	if got := DaysSince(timePtr(now.Add(-47*time.Hour)), now); *got != 1 {
		t.Errorf("Expected 1, got %d", *got)
	}
	if got := DaysSince(timePtr(now.Add(time.Hour)), now); *got != 0 {
		t.Errorf("Expected future clamp to 0, got %d", *got)
	}
}
