package engine

import (
	"testing"
	"time"

	"github.com/nextbestmove/nbm/internal/models"
)

var refDate = time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)

func baseAction() models.Action {
	relID := "rel-1"
	return models.Action{
		ID:             "act-1",
		RelationshipID: &relID,
		Type:           models.ActionTypeNurture,
		State:          models.ActionStateNew,
		DueDate:        dayStart(refDate).AddDate(0, 0, 3),
	}
}

func baseSnapshot() *models.RelationshipSnapshot {
	return &models.RelationshipSnapshot{
		RelationshipID: "rel-1",
		State:          models.StateUnengaged,
		Tier:           models.TierWarm,
		MomentumScore:  20,
		MomentumTrend:  models.TrendStable,
	}
}

func TestScore_Deterministic(t *testing.T) {
	a := baseAction()
	a.PromisedDueAt = timePtr(refDate.Add(-time.Hour))
	email := &models.EmailSignals{HasUnread: true, ThreadCount: 3, DaysSinceLastEmail: intPtr(1)}

	first := CalculateNextMoveScore(a, baseSnapshot(), refDate, email)
	for i := 0; i < 50; i++ {
		got := CalculateNextMoveScore(a, baseSnapshot(), refDate, email)
		if got.Score != first.Score {
			t.Fatalf("run %d: expected %v, got %v", i, first.Score, got.Score)
		}
	}
	if first.ActionID != a.ID {
		t.Errorf("Expected action id %s, got %s", a.ID, first.ActionID)
	}
}

func TestScore_DueOrdering(t *testing.T) {
	overdue := baseAction()
	overdue.DueDate = dayStart(refDate).AddDate(0, 0, -1)
	today := baseAction()
	today.DueDate = dayStart(refDate)
	future := baseAction()
	future.DueDate = dayStart(refDate).AddDate(0, 0, 1)

	so := CalculateNextMoveScore(overdue, baseSnapshot(), refDate, nil).Score
	st := CalculateNextMoveScore(today, baseSnapshot(), refDate, nil).Score
	sf := CalculateNextMoveScore(future, baseSnapshot(), refDate, nil).Score
	if !(so > st && st > sf) {
		t.Errorf("Expected overdue > today > future, got %v, %v, %v", so, st, sf)
	}
}

func TestScore_OverdueMonotonicWithPlateau(t *testing.T) {
	prev := -1.0
	for days := 1; days <= 40; days++ {
		a := baseAction()
		a.DueDate = dayStart(refDate).AddDate(0, 0, -days)
		got := CalculateNextMoveScore(a, baseSnapshot(), refDate, nil).Score
		if got < prev {
			t.Fatalf("%d days overdue scored %v, below %v", days, got, prev)
		}
		prev = got
	}

	a := baseAction()
	a.DueDate = dayStart(refDate).AddDate(0, 0, -20)
	b := baseAction()
	b.DueDate = dayStart(refDate).AddDate(0, 0, -200)
	if sa, sb := CalculateNextMoveScore(a, nil, refDate, nil).Score, CalculateNextMoveScore(b, nil, refDate, nil).Score; sa != sb {
		t.Errorf("Expected plateau, got %v and %v", sa, sb)
	}
}

func TestScore_PromiseBoost(t *testing.T) {
	plain := baseAction()
	broken := baseAction()
	broken.PromisedDueAt = timePtr(refDate.Add(-2 * time.Hour))
	later := baseAction()
	later.PromisedDueAt = timePtr(refDate.Add(10 * 24 * time.Hour))

	sp := CalculateNextMoveScore(plain, baseSnapshot(), refDate, nil).Score
	sb := CalculateNextMoveScore(broken, baseSnapshot(), refDate, nil).Score
	sl := CalculateNextMoveScore(later, baseSnapshot(), refDate, nil).Score
	if sb <= sp {
		t.Errorf("Expected broken promise %v above no promise %v", sb, sp)
	}
	if sb <= sl {
		t.Errorf("Expected broken promise %v above future promise %v", sb, sl)
	}
}

func TestScore_TierOrdering(t *testing.T) {
	tiers := []models.Tier{models.TierInner, models.TierActive, models.TierWarm, models.TierBackground}
	var scores []float64
	for _, tier := range tiers {
		snap := baseSnapshot()
		snap.Tier = tier
		scores = append(scores, CalculateNextMoveScore(baseAction(), snap, refDate, nil).Score)
	}
	for i := 1; i < len(scores); i++ {
		if scores[i-1] <= scores[i] {
			t.Errorf("Expected %s (%v) > %s (%v)", tiers[i-1], scores[i-1], tiers[i], scores[i])
		}
	}
}

func TestScore_MomentumNeverPenalises(t *testing.T) {
	a := baseAction()
	noRel := CalculateNextMoveScore(a, nil, refDate, nil)

	declining := baseSnapshot()
	declining.MomentumScore = 0
	declining.MomentumTrend = models.TrendDeclining
	low := CalculateNextMoveScore(a, declining, refDate, nil)
	if low.Breakdown.Momentum < 0 {
		t.Errorf("Expected non-negative momentum, got %v", low.Breakdown.Momentum)
	}

	rising := baseSnapshot()
	rising.MomentumScore = 80
	rising.MomentumTrend = models.TrendIncreasing
	high := CalculateNextMoveScore(a, rising, refDate, nil)
	if high.Score <= low.Score {
		t.Errorf("Expected rising momentum %v above declining %v", high.Score, low.Score)
	}
	if low.Score < noRel.Score {
		t.Errorf("Expected relationship context never below baseline, got %v < %v", low.Score, noRel.Score)
	}
}

func TestScore_EmailSignals(t *testing.T) {
	a := baseAction()
	none := CalculateNextMoveScore(a, baseSnapshot(), refDate, nil)
	empty := CalculateNextMoveScore(a, baseSnapshot(), refDate, &models.EmailSignals{})
	if none.Score != empty.Score {
		t.Errorf("Expected missing signals to equal empty signals, got %v and %v", none.Score, empty.Score)
	}

	for name, e := range map[string]*models.EmailSignals{
		"unread":     {HasUnread: true},
		"open loops": {HasOpenLoops: true},
		"asks":       {HasUnansweredAsks: true},
	} {
		if got := CalculateNextMoveScore(a, baseSnapshot(), refDate, e).Score; got <= none.Score {
			t.Errorf("%s: expected nudge above %v, got %v", name, none.Score, got)
		}
	}
}

func TestScore_GracefulDegradation(t *testing.T) {
	bare := models.Action{ID: "x", Type: models.ActionTypeContent, State: models.ActionStateNew}
	got := CalculateNextMoveScore(bare, nil, refDate, nil)
	if got.Score < 0 || got.Score > 100 {
		t.Errorf("Expected score in [0,100], got %v", got.Score)
	}
}

// maxedInputs turns every factor to its largest contribution.
func maxedInputs() (models.Action, *models.RelationshipSnapshot, *models.EmailSignals) {
	a := baseAction()
	a.DueDate = dayStart(refDate).AddDate(0, 0, -400)
	a.PromisedDueAt = timePtr(refDate.Add(-time.Hour))
	a.EstimatedMinutes = intPtr(5)
	a.Type = models.ActionTypeFollowUp
	snap := baseSnapshot()
	snap.Tier = models.TierInner
	snap.State = models.StateOpportunity
	snap.MomentumScore = 100
	snap.MomentumTrend = models.TrendIncreasing
	snap.AwaitingResponse = true
	snap.NextTouchDueAt = timePtr(refDate.Add(-time.Hour))
	email := &models.EmailSignals{HasUnread: true, HasOpenLoops: true, HasUnansweredAsks: true, ThreadCount: 10, DaysSinceLastEmail: intPtr(0)}
	return a, snap, email
}

func TestScore_EveryFactorMaxedStaysUnderClamp(t *testing.T) {
	w := DefaultWeights()
	a, snap, email := maxedInputs()

	got := CalculateNextMoveScore(a, snap, refDate, email)
	if got.Score != got.Breakdown.Total() {
		t.Errorf("Expected unclamped score %v, got %v", got.Breakdown.Total(), got.Score)
	}
	if got.Score != w.MaxTotal() {
		t.Errorf("Expected score %v, got %v", w.MaxTotal(), got.Score)
	}
	if got.Score > 100 {
		t.Errorf("Expected score at most 100, got %v", got.Score)
	}

	noPromise := a
	noPromise.PromisedDueAt = nil
	if without := CalculateNextMoveScore(noPromise, snap, refDate, email).Score; got.Score <= without {
		t.Errorf("Expected broken promise %v above no promise %v at the top of the range", got.Score, without)
	}

	active := *snap
	active.Tier = models.TierActive
	if lower := CalculateNextMoveScore(a, &active, refDate, email).Score; got.Score <= lower {
		t.Errorf("Expected inner %v above active %v at the top of the range", got.Score, lower)
	}
}

func TestScore_CustomWeightsRespectOrdering(t *testing.T) {
	w := DefaultWeights()
	w.Tier = map[string]float64{"inner": 10, "active": 7, "warm": 4, "background": 2}
	if err := w.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	s := NewScorer(w)
	inner := baseSnapshot()
	inner.Tier = models.TierInner
	bg := baseSnapshot()
	bg.Tier = models.TierBackground
	if s.Score(baseAction(), inner, refDate, nil).Score <= s.Score(baseAction(), bg, refDate, nil).Score {
		t.Error("Expected inner above background with custom weights")
	}
}
