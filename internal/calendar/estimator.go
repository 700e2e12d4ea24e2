// Package calendar estimates daily capacity from calendar busy time.
package calendar

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nextbestmove/nbm/internal/models"
)

// BusySource lists busy blocks overlapping a window.
type BusySource interface {
	ListBusyBlocks(ctx context.Context, userID string, from, to time.Time) ([]models.BusyBlock, error)
}

// Estimator maps free working minutes to a capacity level.
type Estimator struct {
	source    BusySource
	workStart time.Duration
	workEnd   time.Duration
}

// NewEstimator creates an estimator with a 09:00-17:00 UTC working day.
func NewEstimator(source BusySource) *Estimator {
	return &Estimator{
		source:    source,
		workStart: 9 * time.Hour,
		workEnd:   17 * time.Hour,
	}
}

// WithWorkingHours overrides the working window, given as offsets from midnight UTC.
func (e *Estimator) WithWorkingHours(start, end time.Duration) *Estimator {
	if start >= 0 && end > start && end <= 24*time.Hour {
		e.workStart = start
		e.workEnd = end
	}
	return e
}

// EstimateCapacity returns the level for the day, or ok=false when there is no busy data.
func (e *Estimator) EstimateCapacity(ctx context.Context, userID string, date time.Time) (models.CapacityLevel, bool, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	from := day.Add(e.workStart)
	to := day.Add(e.workEnd)

	blocks, err := e.source.ListBusyBlocks(ctx, userID, day, day.Add(24*time.Hour))
	if err != nil {
		return "", false, fmt.Errorf("list busy blocks: %w", err)
	}
	if len(blocks) == 0 {
		return "", false, nil
	}

	free := int((to.Sub(from) - busyWithin(blocks, from, to)) / time.Minute)
	return LevelForFreeMinutes(free), true, nil
}

// LevelForFreeMinutes maps free working minutes to a capacity level.
func LevelForFreeMinutes(free int) models.CapacityLevel {
	switch {
	case free < 90:
		return models.CapacityMicro
	case free < 180:
		return models.CapacityLight
	case free < 300:
		return models.CapacityStandard
	default:
		return models.CapacityHeavy
	}
}

// busyWithin returns the union of blocks clipped to [from, to).
func busyWithin(blocks []models.BusyBlock, from, to time.Time) time.Duration {
	type span struct{ start, end time.Time }
	var spans []span
	for _, b := range blocks {
		start, end := b.StartAt, b.EndAt
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		if end.After(start) {
			spans = append(spans, span{start, end})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start.Before(spans[j].start) })

	var total time.Duration
	var cur *span
	for i := range spans {
		s := spans[i]
		if cur == nil || s.start.After(cur.end) {
			if cur != nil {
				total += cur.end.Sub(cur.start)
			}
			cur = &s
			continue
		}
		if s.end.After(cur.end) {
			cur.end = s.end
		}
	}
	if cur != nil {
		total += cur.end.Sub(cur.start)
	}
	return total
}
