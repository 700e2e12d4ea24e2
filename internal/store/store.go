// Package store provides SQLite-backed persistence for NextBestMove.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/nextbestmove/nbm/internal/models"
	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// ErrNotFound indicates the row does not exist or belongs to another user.
var ErrNotFound = errors.New("not found")

// Store provides access to the NextBestMove SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS relationships (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		tier TEXT NOT NULL DEFAULT 'warm',
		cadence TEXT NOT NULL DEFAULT '',
		deal_stage TEXT NOT NULL DEFAULT 'none',
		declined_at DATETIME,
		next_meeting_at DATETIME,
		last_interaction_at DATETIME,
		last_reply_at DATETIME,
		next_touch_due_at DATETIME,
		relationship_state TEXT NOT NULL DEFAULT 'UNENGAGED',
		state_pinned_at DATETIME,
		momentum_score REAL NOT NULL DEFAULT 0,
		momentum_trend TEXT NOT NULL DEFAULT 'stable',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS actions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		relationship_id TEXT,
		title TEXT NOT NULL DEFAULT '',
		action_type TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'NEW',
		due_date TEXT NOT NULL DEFAULT '',
		promised_due_at DATETIME,
		estimated_minutes INTEGER,
		auto_created INTEGER NOT NULL DEFAULT 0,
		completed_at DATETIME,
		snooze_until DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (relationship_id) REFERENCES relationships(id)
	);

	CREATE TABLE IF NOT EXISTS capacity_overrides (
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		level TEXT NOT NULL,
		reason TEXT,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, date)
	);

	CREATE TABLE IF NOT EXISTS user_settings (
		user_id TEXT PRIMARY KEY,
		default_capacity TEXT NOT NULL DEFAULT '',
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS email_signals (
		relationship_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		days_since_last_email INTEGER,
		has_unread INTEGER NOT NULL DEFAULT 0,
		thread_count INTEGER NOT NULL DEFAULT 0,
		has_open_loops INTEGER NOT NULL DEFAULT 0,
		has_unanswered_asks INTEGER NOT NULL DEFAULT 0,
		recent_email_count INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS busy_blocks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		start_at DATETIME NOT NULL,
		end_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		kind TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		subject_id TEXT,
		details TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_relationships_user ON relationships(user_id);
	CREATE INDEX IF NOT EXISTS idx_actions_user_state ON actions(user_id, state);
	CREATE INDEX IF NOT EXISTS idx_actions_relationship ON actions(relationship_id);
	CREATE INDEX IF NOT EXISTS idx_busy_blocks_user ON busy_blocks(user_id, start_at);
	CREATE INDEX IF NOT EXISTS idx_decisions_user ON decisions(user_id, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Relationship Operations ---

const relationshipColumns = `id, user_id, name, tier, cadence, deal_stage, declined_at, next_meeting_at,
	last_interaction_at, last_reply_at, next_touch_due_at, relationship_state, state_pinned_at,
	momentum_score, momentum_trend, created_at, updated_at`

// CreateRelationship inserts a relationship, assigning its id and timestamps.
func (s *Store) CreateRelationship(ctx context.Context, r models.Relationship) (*models.Relationship, error) {
	now := time.Now().UTC()
	r.ID = uuid.New().String()
	r.CreatedAt = now
	r.UpdatedAt = now
	if r.Tier == "" {
		r.Tier = models.TierWarm
	}
	if r.DealStage == "" {
		r.DealStage = models.DealStageNone
	}
	if r.State == "" {
		r.State = models.StateUnengaged
	}
	if r.MomentumTrend == "" {
		r.MomentumTrend = models.TrendStable
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO relationships (`+relationshipColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Name, r.Tier, r.Cadence, r.DealStage, nullTime(r.DeclinedAt), nullTime(r.NextMeetingAt),
		nullTime(r.LastInteractionAt), nullTime(r.LastReplyAt), nullTime(r.NextTouchDueAt), r.State,
		nullTime(r.StatePinnedAt), r.MomentumScore, r.MomentumTrend, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert relationship: %w", err)
	}
	return &r, nil
}

// GetRelationship retrieves one of the user's relationships, or nil.
func (s *Store) GetRelationship(ctx context.Context, userID, id string) (*models.Relationship, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+relationshipColumns+` FROM relationships WHERE id = ? AND user_id = ?`, id, userID)
	r, err := scanRelationship(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query relationship: %w", err)
	}
	return r, nil
}

// ListRelationships returns all of a user's relationships ordered by name.
func (s *Store) ListRelationships(ctx context.Context, userID string) ([]models.Relationship, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+relationshipColumns+` FROM relationships WHERE user_id = ? ORDER BY name, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	defer rows.Close()

	var rels []models.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		rels = append(rels, *r)
	}
	return rels, rows.Err()
}

// SetRelationshipState caches the derived lifecycle state and momentum.
func (s *Store) SetRelationshipState(ctx context.Context, id string, state models.RelationshipState, momentum float64, trend models.MomentumTrend) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE relationships SET relationship_state = ?, momentum_score = ?, momentum_trend = ?, updated_at = ? WHERE id = ?`,
		state, momentum, trend, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update relationship state: %w", err)
	}
	return expectOne(res)
}

// ApplyTransition writes a manual state change together with the fields
// detection reads, and pins the state at r.StatePinnedAt.
func (s *Store) ApplyTransition(ctx context.Context, r models.Relationship) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE relationships SET deal_stage = ?, declined_at = ?, last_interaction_at = ?, relationship_state = ?,
			state_pinned_at = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		r.DealStage, nullTime(r.DeclinedAt), nullTime(r.LastInteractionAt), r.State,
		nullTime(r.StatePinnedAt), time.Now().UTC(), r.ID, r.UserID,
	)
	if err != nil {
		return fmt.Errorf("apply transition: %w", err)
	}
	return expectOne(res)
}

// TouchRelationship records an interaction, and a reply when replied is set.
func (s *Store) TouchRelationship(ctx context.Context, id string, at time.Time, replied bool) error {
	query := `UPDATE relationships SET last_interaction_at = ?, updated_at = ? WHERE id = ?`
	args := []interface{}{at.UTC(), time.Now().UTC(), id}
	if replied {
		query = `UPDATE relationships SET last_interaction_at = ?, last_reply_at = ?, updated_at = ? WHERE id = ?`
		args = []interface{}{at.UTC(), at.UTC(), time.Now().UTC(), id}
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("touch relationship: %w", err)
	}
	return expectOne(res)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRelationship(sc scanner) (*models.Relationship, error) {
	var r models.Relationship
	var declinedAt, meetingAt, lastAt, replyAt, touchAt, pinnedAt sql.NullTime
	err := sc.Scan(&r.ID, &r.UserID, &r.Name, &r.Tier, &r.Cadence, &r.DealStage, &declinedAt, &meetingAt,
		&lastAt, &replyAt, &touchAt, &r.State, &pinnedAt, &r.MomentumScore, &r.MomentumTrend, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.DeclinedAt = timePtr(declinedAt)
	r.NextMeetingAt = timePtr(meetingAt)
	r.LastInteractionAt = timePtr(lastAt)
	r.LastReplyAt = timePtr(replyAt)
	r.NextTouchDueAt = timePtr(touchAt)
	r.StatePinnedAt = timePtr(pinnedAt)
	return &r, nil
}

// --- Action Operations ---

const actionColumns = `id, user_id, relationship_id, title, action_type, state, due_date, promised_due_at,
	estimated_minutes, auto_created, completed_at, snooze_until, created_at, updated_at`

// CreateAction inserts an action, assigning its id and timestamps.
func (s *Store) CreateAction(ctx context.Context, a models.Action) (*models.Action, error) {
	now := time.Now().UTC()
	a.ID = uuid.New().String()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.State == "" {
		a.State = models.ActionStateNew
	}

	var relID sql.NullString
	if a.RelationshipID != nil {
		relID = sql.NullString{String: *a.RelationshipID, Valid: true}
	}
	var minutes sql.NullInt64
	if a.EstimatedMinutes != nil {
		minutes = sql.NullInt64{Int64: int64(*a.EstimatedMinutes), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO actions (`+actionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, relID, a.Title, a.Type, a.State, formatDate(a.DueDate), nullTime(a.PromisedDueAt),
		minutes, a.AutoCreated, nullTime(a.CompletedAt), nullTime(a.SnoozeUntil), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert action: %w", err)
	}
	return &a, nil
}

// GetAction retrieves one of the user's actions, or nil.
func (s *Store) GetAction(ctx context.Context, userID, id string) (*models.Action, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+actionColumns+` FROM actions WHERE id = ? AND user_id = ?`, id, userID)
	a, err := scanAction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query action: %w", err)
	}
	return a, nil
}

// ListActions returns a user's actions, optionally filtered by state.
func (s *Store) ListActions(ctx context.Context, userID string, state models.ActionState) ([]models.Action, error) {
	query := `SELECT ` + actionColumns + ` FROM actions WHERE user_id = ?`
	args := []interface{}{userID}
	if state != "" {
		query += ` AND state = ?`
		args = append(args, state)
	}
	query += ` ORDER BY created_at, id`
	return s.queryActions(ctx, query, args...)
}

// ListRelationshipActions returns every action attached to a relationship.
func (s *Store) ListRelationshipActions(ctx context.Context, relationshipID string) ([]models.Action, error) {
	return s.queryActions(ctx,
		`SELECT `+actionColumns+` FROM actions WHERE relationship_id = ? ORDER BY created_at, id`, relationshipID)
}

func (s *Store) queryActions(ctx context.Context, query string, args ...interface{}) ([]models.Action, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	var actions []models.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		actions = append(actions, *a)
	}
	return actions, rows.Err()
}

// UpdateActionState moves an action to a new state.
func (s *Store) UpdateActionState(ctx context.Context, id string, state models.ActionState) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE actions SET state = ?, updated_at = ? WHERE id = ?`, state, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update action state: %w", err)
	}
	return expectOne(res)
}

// SnoozeAction hides an action until the given time.
func (s *Store) SnoozeAction(ctx context.Context, id string, until time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE actions SET state = ?, snooze_until = ?, updated_at = ? WHERE id = ?`,
		models.ActionStateSnoozed, until.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("snooze action: %w", err)
	}
	return expectOne(res)
}

// SetActionPromise records a promise made to the relationship.
func (s *Store) SetActionPromise(ctx context.Context, id string, at *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE actions SET promised_due_at = ?, updated_at = ? WHERE id = ?`, nullTime(at), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set action promise: %w", err)
	}
	return expectOne(res)
}

// Completion is the relationship update that goes with completing an action.
type Completion struct {
	RelationshipID string
	Replied        bool
	State          models.RelationshipState
	MomentumScore  float64
	MomentumTrend  models.MomentumTrend
}

// CompleteAction marks an action DONE at the given time. A non-nil rel is
// applied in the same transaction: the interaction is recorded, the new state
// and momentum are cached and any manual pin is released.
func (s *Store) CompleteAction(ctx context.Context, id string, at time.Time, rel *Completion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stamp := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE actions SET state = ?, completed_at = ?, snooze_until = NULL, updated_at = ? WHERE id = ?`,
		models.ActionStateDone, at.UTC(), stamp, id)
	if err != nil {
		return fmt.Errorf("complete action: %w", err)
	}
	if err := expectOne(res); err != nil {
		return err
	}

	if rel != nil {
		var reply sql.NullTime
		if rel.Replied {
			reply = sql.NullTime{Time: at.UTC(), Valid: true}
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE relationships SET last_interaction_at = ?, last_reply_at = COALESCE(?, last_reply_at),
				relationship_state = ?, state_pinned_at = NULL, momentum_score = ?, momentum_trend = ?, updated_at = ?
			WHERE id = ?`,
			at.UTC(), reply, rel.State, rel.MomentumScore, rel.MomentumTrend, stamp, rel.RelationshipID)
		if err != nil {
			return fmt.Errorf("advance relationship: %w", err)
		}
		if err := expectOne(res); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ArchivePolicy describes when old actions are archived.
type ArchivePolicy struct {
	// DoneAfter archives DONE actions completed longer ago than this.
	DoneAfter time.Duration
	// StaleAutoAfter archives auto-created overdue actions untouched this long.
	StaleAutoAfter time.Duration
}

// DefaultArchivePolicy archives DONE work after 90 days and abandoned
// auto-created work after 7 days.
func DefaultArchivePolicy() ArchivePolicy {
	return ArchivePolicy{
		DoneAfter:      90 * 24 * time.Hour,
		StaleAutoAfter: 7 * 24 * time.Hour,
	}
}

// ArchiveStaleActions applies the archive policy to a user's actions and
// returns the archived ids.
func (s *Store) ArchiveStaleActions(ctx context.Context, userID string, now time.Time, policy ArchivePolicy) ([]string, error) {
	actions, err := s.ListActions(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	today := now.UTC().Format(dateLayout)

	var ids []string
	for _, a := range actions {
		switch {
		case a.State == models.ActionStateDone:
			if a.CompletedAt != nil && now.Sub(*a.CompletedAt) > policy.DoneAfter {
				ids = append(ids, a.ID)
			}
		case a.AutoCreated && a.State.IsPending():
			overdue := !a.DueDate.IsZero() && formatDate(a.DueDate) < today
			if overdue && now.Sub(a.UpdatedAt) > policy.StaleAutoAfter {
				ids = append(ids, a.ID)
			}
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stamp := time.Now().UTC()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE actions SET state = ?, updated_at = ? WHERE id = ?`, models.ActionStateArchived, stamp, id); err != nil {
			return nil, fmt.Errorf("archive action: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return ids, nil
}

// ListUserIDs returns every user that owns relationships or actions.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM relationships UNION SELECT user_id FROM actions ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanAction(sc scanner) (*models.Action, error) {
	var a models.Action
	var relID sql.NullString
	var dueDate string
	var promised, completed, snooze sql.NullTime
	var minutes sql.NullInt64
	err := sc.Scan(&a.ID, &a.UserID, &relID, &a.Title, &a.Type, &a.State, &dueDate, &promised,
		&minutes, &a.AutoCreated, &completed, &snooze, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if relID.Valid {
		a.RelationshipID = &relID.String
	}
	if dueDate != "" {
		if d, err := time.Parse(dateLayout, dueDate); err == nil {
			a.DueDate = d
		}
	}
	if minutes.Valid {
		m := int(minutes.Int64)
		a.EstimatedMinutes = &m
	}
	a.PromisedDueAt = timePtr(promised)
	a.CompletedAt = timePtr(completed)
	a.SnoozeUntil = timePtr(snooze)
	return &a, nil
}

// --- Helpers ---

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
