package engine

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultWeightsValid(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights invalid: %v", err)
	}
}

func TestDefaultWeightsFitUnderClamp(t *testing.T) {
	w := DefaultWeights()
	if got := w.MaxTotal(); got > 100 {
		t.Errorf("Expected max total at most 100, got %v", got)
	}
}

func TestLoadWeights_MissingFile(t *testing.T) {
	w, err := LoadWeights(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadWeights failed: %v", err)
	}
	if w.DueToday != DefaultWeights().DueToday {
		t.Errorf("Expected defaults, got %+v", w)
	}
}

func TestLoadWeights_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	data := []byte("promise_broken: 14\ntier:\n  inner: 10\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	w, err := LoadWeights(path)
	if err != nil {
		t.Fatalf("LoadWeights failed: %v", err)
	}
	if w.PromiseBroken != 14 {
		t.Errorf("Expected promise_broken 14, got %v", w.PromiseBroken)
	}
	if w.Tier["inner"] != 10 || w.Tier["background"] != 1 {
		t.Errorf("Expected merged tiers, got %v", w.Tier)
	}
	if w.DueToday != 20 {
		t.Errorf("Expected untouched due_today, got %v", w.DueToday)
	}
}

func TestLoadWeights_RejectsBrokenOrdering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	if err := os.WriteFile(path, []byte("tier:\n  warm: 50\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWeights(path); err == nil {
		t.Error("Expected error for out-of-order tiers")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(w *Weights)
	}{
		{"negative weight", func(w *Weights) { w.EmailUnread = -1 }},
		{"future above today", func(w *Weights) { w.FutureBase = 25 }},
		{"overdue not above today", func(w *Weights) { w.OverdueBase = 10 }},
		{"promise ordering", func(w *Weights) { w.PromiseImminent = 20 }},
		{"trend ordering", func(w *Weights) { w.TrendDeclining = 9 }},
		{"missing tier", func(w *Weights) { delete(w.Tier, "warm") }},
		{"zero plateau", func(w *Weights) { w.OverduePlateauDays = 0 }},
		{"total above clamp", func(w *Weights) { w.Tier["inner"] = 20 }},
		{"long plateau above clamp", func(w *Weights) { w.OverduePlateauDays = 30 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := DefaultWeights()
			tt.mutate(w)
			if err := w.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestSaveWeightsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "weights.yaml")
	w := DefaultWeights()
	w.QuickWin = 7
	if err := SaveWeights(path, w); err != nil {
		t.Fatalf("SaveWeights failed: %v", err)
	}
	got, err := LoadWeights(path)
	if err != nil {
		t.Fatalf("LoadWeights failed: %v", err)
	}
	if got.QuickWin != 7 {
		t.Errorf("Expected quick_win 7, got %v", got.QuickWin)
	}
	if err := SaveWeights(path, nil); err == nil {
		t.Error("Expected error for nil weights")
	}
}
