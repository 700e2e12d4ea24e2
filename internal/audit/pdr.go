// Package audit records decision trails for state-mutating operations.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/nextbestmove/nbm/internal/models"
)

// Sink persists decision records.
type Sink interface {
	WriteDecision(ctx context.Context, d models.Decision) (*models.Decision, error)
}

// Recorder writes decision records for audit trails.
type Recorder struct {
	sink Sink
}

// NewRecorder creates a new decision recorder.
func NewRecorder(s Sink) *Recorder {
	return &Recorder{sink: s}
}

// Record writes a decision entry for a state-mutating operation.
func (r *Recorder) Record(ctx context.Context, userID, kind string, inputs interface{}, outcome, subjectID, details string) (*models.Decision, error) {
	return r.sink.WriteDecision(ctx, models.Decision{
		UserID:     userID,
		Kind:       kind,
		InputsHash: HashInputs(inputs),
		Outcome:    outcome,
		SubjectID:  subjectID,
		Details:    details,
	})
}

// HashInputs creates a SHA256 hash of the inputs for reproducibility.
func HashInputs(inputs interface{}) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
