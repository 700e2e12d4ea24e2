package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nextbestmove/nbm/internal/models"
)

// --- Capacity Operations ---

// SetCapacityOverride creates or replaces the override for one user and day.
func (s *Store) SetCapacityOverride(ctx context.Context, o models.CapacityOverride) (*models.CapacityOverride, error) {
	o.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO capacity_overrides (user_id, date, level, reason, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET level = excluded.level, reason = excluded.reason, updated_at = excluded.updated_at`,
		o.UserID, o.Date, o.Level, nullString(o.Reason), o.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert capacity override: %w", err)
	}
	return &o, nil
}

// GetCapacityOverride returns the override for the user's calendar day, or nil.
func (s *Store) GetCapacityOverride(ctx context.Context, userID string, date time.Time) (*models.CapacityOverride, error) {
	var o models.CapacityOverride
	var reason sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, date, level, reason, updated_at FROM capacity_overrides WHERE user_id = ? AND date = ?`,
		userID, models.DateKey(date),
	).Scan(&o.UserID, &o.Date, &o.Level, &reason, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query capacity override: %w", err)
	}
	o.Reason = reason.String
	return &o, nil
}

// DeleteCapacityOverride removes an override; missing rows are not an error.
func (s *Store) DeleteCapacityOverride(ctx context.Context, userID string, date time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM capacity_overrides WHERE user_id = ? AND date = ?`, userID, models.DateKey(date))
	if err != nil {
		return fmt.Errorf("delete capacity override: %w", err)
	}
	return nil
}

// SetDefaultCapacity stores the user's default capacity. An empty level clears it.
func (s *Store) SetDefaultCapacity(ctx context.Context, userID string, level models.CapacityLevel) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, default_capacity, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET default_capacity = excluded.default_capacity, updated_at = excluded.updated_at`,
		userID, level, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert default capacity: %w", err)
	}
	return nil
}

// GetDefaultCapacity returns the user's default capacity, or "" when unset.
func (s *Store) GetDefaultCapacity(ctx context.Context, userID string) (models.CapacityLevel, error) {
	var level models.CapacityLevel
	err := s.db.QueryRowContext(ctx,
		`SELECT default_capacity FROM user_settings WHERE user_id = ?`, userID).Scan(&level)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query default capacity: %w", err)
	}
	return level, nil
}

// --- Email Signal Operations ---

// UpsertEmailSignals replaces the cached email signals for a relationship.
func (s *Store) UpsertEmailSignals(ctx context.Context, userID string, e models.EmailSignals) (*models.EmailSignals, error) {
	e.UpdatedAt = time.Now().UTC()
	var days sql.NullInt64
	if e.DaysSinceLastEmail != nil {
		days = sql.NullInt64{Int64: int64(*e.DaysSinceLastEmail), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO email_signals (relationship_id, user_id, days_since_last_email, has_unread, thread_count,
			has_open_loops, has_unanswered_asks, recent_email_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(relationship_id) DO UPDATE SET
			days_since_last_email = excluded.days_since_last_email,
			has_unread = excluded.has_unread,
			thread_count = excluded.thread_count,
			has_open_loops = excluded.has_open_loops,
			has_unanswered_asks = excluded.has_unanswered_asks,
			recent_email_count = excluded.recent_email_count,
			updated_at = excluded.updated_at`,
		e.RelationshipID, userID, days, e.HasUnread, e.ThreadCount, e.HasOpenLoops,
		e.HasUnansweredAsks, e.RecentEmailCount, e.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert email signals: %w", err)
	}
	return &e, nil
}

// ListEmailSignals returns a user's email signals keyed by relationship id.
func (s *Store) ListEmailSignals(ctx context.Context, userID string) (map[string]*models.EmailSignals, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT relationship_id, days_since_last_email, has_unread, thread_count, has_open_loops,
			has_unanswered_asks, recent_email_count, updated_at
		FROM email_signals WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query email signals: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*models.EmailSignals)
	for rows.Next() {
		var e models.EmailSignals
		var days sql.NullInt64
		if err := rows.Scan(&e.RelationshipID, &days, &e.HasUnread, &e.ThreadCount, &e.HasOpenLoops,
			&e.HasUnansweredAsks, &e.RecentEmailCount, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan email signals: %w", err)
		}
		if days.Valid {
			d := int(days.Int64)
			e.DaysSinceLastEmail = &d
		}
		out[e.RelationshipID] = &e
	}
	return out, rows.Err()
}

// --- Calendar Operations ---

// AddBusyBlock stores a calendar busy interval.
func (s *Store) AddBusyBlock(ctx context.Context, b models.BusyBlock) (*models.BusyBlock, error) {
	b.ID = uuid.New().String()
	b.StartAt = b.StartAt.UTC()
	b.EndAt = b.EndAt.UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO busy_blocks (id, user_id, start_at, end_at) VALUES (?, ?, ?, ?)`,
		b.ID, b.UserID, b.StartAt, b.EndAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert busy block: %w", err)
	}
	return &b, nil
}

// ListBusyBlocks returns the user's busy blocks overlapping [from, to).
func (s *Store) ListBusyBlocks(ctx context.Context, userID string, from, to time.Time) ([]models.BusyBlock, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, start_at, end_at FROM busy_blocks WHERE user_id = ? ORDER BY start_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query busy blocks: %w", err)
	}
	defer rows.Close()

	var blocks []models.BusyBlock
	for rows.Next() {
		var b models.BusyBlock
		if err := rows.Scan(&b.ID, &b.UserID, &b.StartAt, &b.EndAt); err != nil {
			return nil, fmt.Errorf("scan busy block: %w", err)
		}
		if b.EndAt.After(from) && b.StartAt.Before(to) {
			blocks = append(blocks, b)
		}
	}
	return blocks, rows.Err()
}

// HasBusyData reports whether the user has ever synced calendar data.
func (s *Store) HasBusyData(ctx context.Context, userID string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM busy_blocks WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return false, fmt.Errorf("count busy blocks: %w", err)
	}
	return n > 0, nil
}

// --- Decision Operations ---

// WriteDecision appends an audit record.
func (s *Store) WriteDecision(ctx context.Context, d models.Decision) (*models.Decision, error) {
	d.ID = uuid.New().String()
	d.Timestamp = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (id, user_id, kind, inputs_hash, outcome, subject_id, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, nullString(d.UserID), d.Kind, d.InputsHash, d.Outcome, nullString(d.SubjectID),
		nullString(d.Details), d.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert decision: %w", err)
	}
	return &d, nil
}

// ListDecisions returns a user's most recent decisions, newest first.
func (s *Store) ListDecisions(ctx context.Context, userID string, limit int) ([]models.Decision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, kind, inputs_hash, outcome, subject_id, details, timestamp
		FROM decisions WHERE user_id = ? ORDER BY timestamp DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []models.Decision
	for rows.Next() {
		var d models.Decision
		var user, subject, details sql.NullString
		if err := rows.Scan(&d.ID, &user, &d.Kind, &d.InputsHash, &d.Outcome, &subject, &details, &d.Timestamp); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.UserID = user.String
		d.SubjectID = subject.String
		d.Details = details.String
		out = append(out, d)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
