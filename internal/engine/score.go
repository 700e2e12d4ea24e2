package engine

import (
	"math"
	"time"

	"github.com/nextbestmove/nbm/internal/models"
)

const (
	minScore = 0
	maxScore = 100
)

// ScoreBreakdown itemises each factor's contribution before clamping.
type ScoreBreakdown struct {
	DueUrgency     float64 `json:"due_urgency"`
	PromiseUrgency float64 `json:"promise_urgency"`
	Momentum       float64 `json:"momentum"`
	Tier           float64 `json:"tier"`
	State          float64 `json:"state"`
	Cadence        float64 `json:"cadence"`
	Email          float64 `json:"email"`
	Duration       float64 `json:"duration"`
}

// Total sums every factor.
func (b ScoreBreakdown) Total() float64 {
	return b.DueUrgency + b.PromiseUrgency + b.Momentum + b.Tier + b.State + b.Cadence + b.Email + b.Duration
}

// Score is the ranking result for one action.
type Score struct {
	ActionID  string         `json:"action_id"`
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// Scorer computes next-move scores under a fixed set of weights.
type Scorer struct {
	w *Weights
}

// NewScorer creates a scorer. A nil weights value uses DefaultWeights.
func NewScorer(w *Weights) *Scorer {
	if w == nil {
		w = DefaultWeights()
	}
	return &Scorer{w: w}
}

// Weights returns the policy the scorer runs with.
func (s *Scorer) Weights() *Weights {
	return s.w
}

// CalculateNextMoveScore scores an action with the default weights.
func CalculateNextMoveScore(action models.Action, rel *models.RelationshipSnapshot, referenceDate time.Time, email *models.EmailSignals) Score {
	return defaultScorer.Score(action, rel, referenceDate, email)
}

var defaultScorer = NewScorer(nil)

// Score computes the clamped priority score of an action. Every optional
// input degrades to a zero contribution.
func (s *Scorer) Score(action models.Action, rel *models.RelationshipSnapshot, referenceDate time.Time, email *models.EmailSignals) Score {
	b := ScoreBreakdown{
		DueUrgency:     s.dueUrgency(action, referenceDate),
		PromiseUrgency: s.promiseUrgency(action, referenceDate),
		Email:          s.emailSignals(email),
		Duration:       s.duration(action),
	}
	if rel != nil {
		b.Momentum = s.momentum(*rel)
		b.Tier = s.w.Tier[string(rel.Tier)]
		b.State = s.state(action, *rel)
		b.Cadence = s.cadence(*rel, referenceDate)
	}
	return Score{
		ActionID:  action.ID,
		Score:     clamp(b.Total(), minScore, maxScore),
		Breakdown: b,
	}
}

func (s *Scorer) dueUrgency(a models.Action, ref time.Time) float64 {
	if a.DueDate.IsZero() {
		return 0
	}
	overdue := daysBetween(a.DueDate, ref)
	switch {
	case overdue > 0:
		if overdue > s.w.OverduePlateauDays {
			overdue = s.w.OverduePlateauDays
		}
		return s.w.OverdueBase + s.w.OverduePerDay*float64(overdue)
	case overdue == 0:
		return s.w.DueToday
	default:
		return math.Max(0, s.w.FutureBase-s.w.FutureDecayPerDay*float64(-overdue))
	}
}

func (s *Scorer) promiseUrgency(a models.Action, ref time.Time) float64 {
	if a.PromisedDueAt == nil {
		return 0
	}
	until := a.PromisedDueAt.Sub(ref)
	switch {
	case until < 0:
		return s.w.PromiseBroken
	case until <= time.Duration(s.w.PromiseImminentHours)*time.Hour:
		return s.w.PromiseImminent
	}
	return 0
}

func (s *Scorer) momentum(rel models.RelationshipSnapshot) float64 {
	v := s.w.MomentumMax * clamp(rel.MomentumScore, 0, 100) / 100
	switch rel.MomentumTrend {
	case models.TrendIncreasing:
		v += s.w.TrendIncreasing
	case models.TrendStable:
		v += s.w.TrendStable
	case models.TrendDeclining:
		v += s.w.TrendDeclining
	}
	return v
}

func (s *Scorer) state(a models.Action, rel models.RelationshipSnapshot) float64 {
	v := s.w.State[string(rel.State)]
	if IsValidAction(rel.State, a.Type) {
		v += s.w.ValidForState
	}
	if rel.AwaitingResponse && a.Type == models.ActionTypeFollowUp {
		v += s.w.AwaitingResponse
	}
	return v
}

func (s *Scorer) cadence(rel models.RelationshipSnapshot, ref time.Time) float64 {
	if rel.NextTouchDueAt != nil && !rel.NextTouchDueAt.After(ref) {
		return s.w.CadenceTouchDue
	}
	if rel.CadenceDays > 0 && rel.DaysSinceLastInteraction != nil && *rel.DaysSinceLastInteraction >= rel.CadenceDays {
		return s.w.CadenceTouchDue
	}
	return 0
}

func (s *Scorer) emailSignals(e *models.EmailSignals) float64 {
	if e == nil {
		return 0
	}
	var v float64
	if e.HasUnread {
		v += s.w.EmailUnread
	}
	if e.HasOpenLoops {
		v += s.w.EmailOpenLoops
	}
	if e.HasUnansweredAsks {
		v += s.w.EmailUnansweredAsks
	}
	if e.DaysSinceLastEmail != nil && *e.DaysSinceLastEmail <= s.w.EmailRecentDays {
		v += s.w.EmailRecent
	}
	if e.ThreadCount > 0 {
		v += math.Min(s.w.EmailThreadMaxCredit, s.w.EmailThreadPerCount*float64(e.ThreadCount))
	}
	return v
}

func (s *Scorer) duration(a models.Action) float64 {
	if a.EstimatedMinutes == nil || *a.EstimatedMinutes <= 0 {
		return 0
	}
	if *a.EstimatedMinutes <= s.w.QuickWinMaxMinutes {
		return s.w.QuickWin
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
