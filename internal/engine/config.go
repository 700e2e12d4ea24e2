package engine

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Weights holds the tunable scoring policy.
type Weights struct {
	// Due-date urgency.
	OverdueBase        float64 `yaml:"overdue_base"`
	OverduePerDay      float64 `yaml:"overdue_per_day"`
	OverduePlateauDays int     `yaml:"overdue_plateau_days"`
	DueToday           float64 `yaml:"due_today"`
	FutureBase         float64 `yaml:"future_base"`
	FutureDecayPerDay  float64 `yaml:"future_decay_per_day"`

	// Promise urgency.
	PromiseBroken   float64 `yaml:"promise_broken"`
	PromiseImminent float64 `yaml:"promise_imminent"`
	// PromiseImminentHours is how close a future promise must be to count.
	PromiseImminentHours int `yaml:"promise_imminent_hours"`

	// Momentum.
	MomentumMax        float64 `yaml:"momentum_max"`
	TrendIncreasing    float64 `yaml:"trend_increasing"`
	TrendStable        float64 `yaml:"trend_stable"`
	TrendDeclining     float64 `yaml:"trend_declining"`
	AwaitingResponse   float64 `yaml:"awaiting_response"`
	CadenceTouchDue    float64 `yaml:"cadence_touch_due"`
	ValidForState      float64 `yaml:"valid_for_state"`
	QuickWin           float64 `yaml:"quick_win"`
	QuickWinMaxMinutes int     `yaml:"quick_win_max_minutes"`

	Tier  map[string]float64 `yaml:"tier"`
	State map[string]float64 `yaml:"state"`

	// Email signals.
	EmailUnread          float64 `yaml:"email_unread"`
	EmailOpenLoops       float64 `yaml:"email_open_loops"`
	EmailUnansweredAsks  float64 `yaml:"email_unanswered_asks"`
	EmailRecent          float64 `yaml:"email_recent"`
	EmailRecentDays      int     `yaml:"email_recent_days"`
	EmailThreadPerCount  float64 `yaml:"email_thread_per_count"`
	EmailThreadMaxCredit float64 `yaml:"email_thread_max_credit"`
}

// DefaultWeights returns the calibrated scoring policy.
func DefaultWeights() *Weights {
	return &Weights{
		OverdueBase:          22,
		OverduePerDay:        1,
		OverduePlateauDays:   14,
		DueToday:             20,
		FutureBase:           12,
		FutureDecayPerDay:    1,
		PromiseBroken:        12,
		PromiseImminent:      4,
		PromiseImminentHours: 48,
		MomentumMax:          8,
		TrendIncreasing:      3,
		TrendStable:          1,
		TrendDeclining:       0,
		AwaitingResponse:     2,
		CadenceTouchDue:      4,
		ValidForState:        2,
		QuickWin:             2,
		QuickWinMaxMinutes:   15,
		Tier: map[string]float64{
			"inner":      8,
			"active":     6,
			"warm":       3,
			"background": 1,
		},
		State: map[string]float64{
			"OPPORTUNITY":         7,
			"ACTIVE_CONVERSATION": 6,
			"WARM_BUT_PASSIVE":    2,
			"UNENGAGED":           1,
			"DORMANT":             0,
		},
		EmailUnread:          2,
		EmailOpenLoops:       3,
		EmailUnansweredAsks:  3,
		EmailRecent:          1,
		EmailRecentDays:      3,
		EmailThreadPerCount:  0.5,
		EmailThreadMaxCredit: 1,
	}
}

// LoadWeights reads weights from a YAML file layered over the defaults.
// A missing file yields the defaults.
func LoadWeights(path string) (*Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultWeights(), nil
		}
		return nil, fmt.Errorf("reading weights file: %w", err)
	}

	w := DefaultWeights()
	if err := yaml.Unmarshal(data, w); err != nil {
		return nil, fmt.Errorf("parsing weights file: %w", err)
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weights: %w", err)
	}
	return w, nil
}

// SaveWeights writes weights to a YAML file, creating parent directories.
func SaveWeights(path string, w *Weights) error {
	if w == nil {
		return fmt.Errorf("weights cannot be nil")
	}
	if err := w.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating weights dir: %w", err)
	}
	data, err := yaml.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshaling weights: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing weights file: %w", err)
	}
	return nil
}

// Validate checks that the orderings the scorer guarantees still hold.
func (w *Weights) Validate() error {
	nonNegative := map[string]float64{
		"overdue_base": w.OverdueBase, "overdue_per_day": w.OverduePerDay, "due_today": w.DueToday,
		"future_base": w.FutureBase, "future_decay_per_day": w.FutureDecayPerDay,
		"promise_broken": w.PromiseBroken, "promise_imminent": w.PromiseImminent,
		"momentum_max": w.MomentumMax, "trend_increasing": w.TrendIncreasing,
		"trend_stable": w.TrendStable, "trend_declining": w.TrendDeclining,
		"awaiting_response": w.AwaitingResponse, "cadence_touch_due": w.CadenceTouchDue,
		"valid_for_state": w.ValidForState, "quick_win": w.QuickWin,
		"email_unread": w.EmailUnread, "email_open_loops": w.EmailOpenLoops,
		"email_unanswered_asks": w.EmailUnansweredAsks, "email_recent": w.EmailRecent,
		"email_thread_per_count": w.EmailThreadPerCount, "email_thread_max_credit": w.EmailThreadMaxCredit,
	}
	for name, v := range nonNegative {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	for name, v := range w.State {
		if v < 0 {
			return fmt.Errorf("state weight %s must not be negative", name)
		}
	}
	if w.OverduePlateauDays < 1 {
		return fmt.Errorf("overdue_plateau_days must be at least 1")
	}
	if w.OverdueBase+w.OverduePerDay <= w.DueToday {
		return fmt.Errorf("overdue_base + overdue_per_day must exceed due_today")
	}
	if w.FutureBase >= w.DueToday {
		return fmt.Errorf("future_base must be below due_today")
	}
	if w.PromiseBroken <= w.PromiseImminent {
		return fmt.Errorf("promise_broken must exceed promise_imminent")
	}
	if !(w.TrendIncreasing >= w.TrendStable && w.TrendStable >= w.TrendDeclining) {
		return fmt.Errorf("trend weights must be ordered increasing >= stable >= declining")
	}
	tiers := []string{"inner", "active", "warm", "background"}
	for i, name := range tiers {
		v, ok := w.Tier[name]
		if !ok {
			return fmt.Errorf("missing tier weight %q", name)
		}
		if v < 0 {
			return fmt.Errorf("tier weight %s must not be negative", name)
		}
		if i > 0 && w.Tier[tiers[i-1]] <= v {
			return fmt.Errorf("tier weight %s must be below %s", name, tiers[i-1])
		}
	}
	// Clamping would flatten the orderings above.
	if total := w.MaxTotal(); total > maxScore {
		return fmt.Errorf("largest possible score %.1f exceeds %d", total, maxScore)
	}
	return nil
}

// MaxTotal is the largest unclamped score these weights can produce.
func (w *Weights) MaxTotal() float64 {
	due := math.Max(w.OverdueBase+w.OverduePerDay*float64(w.OverduePlateauDays), math.Max(w.DueToday, w.FutureBase))
	promise := math.Max(w.PromiseBroken, w.PromiseImminent)
	momentum := w.MomentumMax + math.Max(w.TrendIncreasing, math.Max(w.TrendStable, w.TrendDeclining))
	state := maxWeight(w.State) + w.ValidForState + w.AwaitingResponse
	email := w.EmailUnread + w.EmailOpenLoops + w.EmailUnansweredAsks + w.EmailRecent + w.EmailThreadMaxCredit
	return due + promise + momentum + maxWeight(w.Tier) + state + w.CadenceTouchDue + email + w.QuickWin
}

func maxWeight(m map[string]float64) float64 {
	var out float64
	for _, v := range m {
		if v > out {
			out = v
		}
	}
	return out
}
