package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/nextbestmove/nbm/internal/models"
)

// ActionCountForLevel maps a capacity level to the number of plan slots.
// Unrecognised levels get the standard count.
func ActionCountForLevel(level models.CapacityLevel) int {
	switch level {
	case models.CapacityMicro:
		return 2
	case models.CapacityLight:
		return 4
	case models.CapacityStandard:
		return 6
	case models.CapacityHeavy:
		return 8
	}
	return 6
}

// CapacityStore is the persistence the resolver reads overrides from.
type CapacityStore interface {
	// GetCapacityOverride returns nil when no override exists for that day.
	GetCapacityOverride(ctx context.Context, userID string, date time.Time) (*models.CapacityOverride, error)
	// GetDefaultCapacity returns "" when the user has no default.
	GetDefaultCapacity(ctx context.Context, userID string) (models.CapacityLevel, error)
}

// CalendarEstimator turns free/busy data into a capacity level. ok is false
// when there is nothing to estimate from.
type CalendarEstimator interface {
	EstimateCapacity(ctx context.Context, userID string, date time.Time) (level models.CapacityLevel, ok bool, err error)
}

// GetCapacityWithOverrides resolves the day's capacity: a per-day override
// wins, then the user default, then the calendar estimate.
func GetCapacityWithOverrides(ctx context.Context, store CapacityStore, cal CalendarEstimator, userID string, date time.Time) (models.Capacity, error) {
	override, err := store.GetCapacityOverride(ctx, userID, date)
	if err != nil {
		return models.Capacity{}, fmt.Errorf("get capacity override: %w", err)
	}
	if override != nil {
		return newCapacity(override.Level, models.CapacitySourceOverride, override.Reason), nil
	}

	def, err := store.GetDefaultCapacity(ctx, userID)
	if err != nil {
		return models.Capacity{}, fmt.Errorf("get default capacity: %w", err)
	}
	if def != "" {
		return newCapacity(def, models.CapacitySourceUserDefault, ""), nil
	}

	if cal != nil {
		level, ok, err := cal.EstimateCapacity(ctx, userID, date)
		if err != nil {
			return models.Capacity{}, fmt.Errorf("estimate capacity: %w", err)
		}
		if ok {
			return newCapacity(level, models.CapacitySourceCalendar, ""), nil
		}
	}
	return newCapacity(models.CapacityDefault, models.CapacitySourceDefault, ""), nil
}

func newCapacity(level models.CapacityLevel, source models.CapacitySource, reason string) models.Capacity {
	return models.Capacity{
		Level:       level,
		ActionCount: ActionCountForLevel(level),
		Source:      source,
		Reason:      reason,
	}
}
