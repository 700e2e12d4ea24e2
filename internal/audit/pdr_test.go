package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/nextbestmove/nbm/internal/models"
)

type memorySink struct {
	decisions []models.Decision
	err       error
}

func (m *memorySink) WriteDecision(_ context.Context, d models.Decision) (*models.Decision, error) {
	if m.err != nil {
		return nil, m.err
	}
	d.ID = "d1"
	m.decisions = append(m.decisions, d)
	return &d, nil
}

func TestRecord(t *testing.T) {
	sink := &memorySink{}
	r := NewRecorder(sink)

	inputs := map[string]string{"action_id": "a1"}
	d, err := r.Record(context.Background(), "u1", "action.complete", inputs, "success", "a1", "")
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if d.InputsHash != HashInputs(inputs) {
		t.Errorf("Expected hash %s, got %s", HashInputs(inputs), d.InputsHash)
	}
	if len(sink.decisions) != 1 || sink.decisions[0].Kind != "action.complete" {
		t.Errorf("Unexpected decisions: %+v", sink.decisions)
	}
}

func TestRecord_SinkError(t *testing.T) {
	r := NewRecorder(&memorySink{err: errors.New("disk full")})
	if _, err := r.Record(context.Background(), "u1", "k", nil, "failed", "", ""); err == nil {
		t.Error("Expected sink error")
	}
}

func TestHashInputs(t *testing.T) {
	a := HashInputs(map[string]int{"x": 1})
	b := HashInputs(map[string]int{"x": 1})
	c := HashInputs(map[string]int{"x": 2})
	if a != b {
		t.Error("Expected identical hashes for identical inputs")
	}
	if a == c {
		t.Error("Expected different hashes for different inputs")
	}
	if len(a) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(a))
	}
	if got := HashInputs(make(chan int)); got != "hash_error" {
		t.Errorf("Expected hash_error, got %s", got)
	}
}
