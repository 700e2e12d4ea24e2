// Package planner provides the service layer and HTTP API for NextBestMove.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nextbestmove/nbm/internal/audit"
	"github.com/nextbestmove/nbm/internal/engine"
	"github.com/nextbestmove/nbm/internal/models"
	"github.com/nextbestmove/nbm/internal/store"
)

// Service orchestrates persistence and the decision engine.
type Service struct {
	store    *store.Store
	recorder *audit.Recorder
	scorer   *engine.Scorer
	calendar engine.CalendarEstimator
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new planner service. A nil scorer uses default weights.
func NewService(s *store.Store, rec *audit.Recorder, scorer *engine.Scorer, cal engine.CalendarEstimator, logger *slog.Logger) *Service {
	if scorer == nil {
		scorer = engine.NewScorer(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    s,
		recorder: rec,
		scorer:   scorer,
		calendar: cal,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) record(ctx context.Context, userID, kind string, inputs interface{}, subjectID, details string) {
	if _, err := s.recorder.Record(ctx, userID, kind, inputs, "success", subjectID, details); err != nil {
		s.logger.Warn("decision record failed", "kind", kind, "subject_id", subjectID, "error", err)
	}
}

// --- Relationship Operations ---

// RelationshipInput is the writable part of a relationship.
type RelationshipInput struct {
	Name           string           `json:"name"`
	Tier           models.Tier      `json:"tier"`
	Cadence        models.Cadence   `json:"cadence"`
	DealStage      models.DealStage `json:"deal_stage"`
	NextMeetingAt  *time.Time       `json:"next_meeting_at,omitempty"`
	NextTouchDueAt *time.Time       `json:"next_touch_due_at,omitempty"`
}

// CreateRelationship validates and stores a new relationship.
func (s *Service) CreateRelationship(ctx context.Context, userID string, in RelationshipInput) (*models.Relationship, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.Tier != "" && !in.Tier.Valid() {
		return nil, fmt.Errorf("%w: unknown tier %q", ErrInvalidInput, in.Tier)
	}
	if in.Cadence != "" && in.Cadence.Days() == 0 {
		return nil, fmt.Errorf("%w: unknown cadence %q", ErrInvalidInput, in.Cadence)
	}
	switch in.DealStage {
	case "", models.DealStageNone, models.DealStageOpen, models.DealStageWon, models.DealStageLost:
	default:
		return nil, fmt.Errorf("%w: unknown deal stage %q", ErrInvalidInput, in.DealStage)
	}

	rel := models.Relationship{
		UserID:         userID,
		Name:           strings.TrimSpace(in.Name),
		Tier:           in.Tier,
		Cadence:        in.Cadence,
		DealStage:      in.DealStage,
		NextMeetingAt:  in.NextMeetingAt,
		NextTouchDueAt: in.NextTouchDueAt,
	}
	if in.DealStage == models.DealStageOpen {
		rel.State = models.StateOpportunity
	}
	created, err := s.store.CreateRelationship(ctx, rel)
	if err != nil {
		return nil, err
	}
	s.record(ctx, userID, "relationship.create", in, created.ID, "")
	return created, nil
}

// ListRelationships returns the user's relationships.
func (s *Service) ListRelationships(ctx context.Context, userID string) ([]models.Relationship, error) {
	return s.store.ListRelationships(ctx, userID)
}

// GetRelationship returns one relationship or ErrRelationshipNotFound.
func (s *Service) GetRelationship(ctx context.Context, userID, id string) (*models.Relationship, error) {
	rel, err := s.store.GetRelationship(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, ErrRelationshipNotFound
	}
	return rel, nil
}

// RelationshipView is the derived state of one relationship.
type RelationshipView struct {
	Relationship     models.Relationship         `json:"relationship"`
	Snapshot         models.RelationshipSnapshot `json:"snapshot"`
	DetectedState    models.RelationshipState    `json:"detected_state"`
	Lane             models.Lane                 `json:"lane"`
	ValidActionTypes []models.ActionType         `json:"valid_action_types"`
}

// RelationshipState derives a relationship's current snapshot, state and lane.
func (s *Service) RelationshipState(ctx context.Context, userID, id string) (*RelationshipView, error) {
	rel, err := s.GetRelationship(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	actions, err := s.store.ListRelationshipActions(ctx, rel.ID)
	if err != nil {
		return nil, err
	}
	signals, err := s.store.ListEmailSignals(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	res := s.scorer.Rank(engine.RankInput{
		Relationships: []models.Relationship{*rel},
		Actions:       actions,
		EmailSignals:  signals,
		Now:           now,
	})
	snap := res.Snapshots[rel.ID]
	return &RelationshipView{
		Relationship:     *rel,
		Snapshot:         snap,
		DetectedState:    engine.DetectState(engine.StateInputFrom(*rel, snap, signals[rel.ID], now)),
		Lane:             res.Lanes[rel.ID],
		ValidActionTypes: engine.ValidActionTypes(snap.State),
	}, nil
}

// TransitionInput is a manual state change request.
type TransitionInput struct {
	To     models.RelationshipState `json:"to"`
	Reason string                   `json:"reason,omitempty"`
}

// TransitionRelationship applies a manual state change. The fields detection
// reads are rewritten to match: OPPORTUNITY opens the deal, leaving it closes
// the deal, DORMANT records an explicit no and ACTIVE_CONVERSATION records an
// interaction. The new state is pinned so a refresh keeps it until the next
// interaction or engine.ManualHoldDays pass.
func (s *Service) TransitionRelationship(ctx context.Context, userID, id string, in TransitionInput) (*models.Relationship, error) {
	if !in.To.Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidInput, in.To)
	}
	rel, err := s.GetRelationship(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	from := rel.State
	if !engine.CanTransitionToState(from, in.To) {
		return nil, ErrTransitionNotAllowed
	}

	now := s.now()
	switch in.To {
	case models.StateOpportunity:
		rel.DealStage = models.DealStageOpen
		rel.DeclinedAt = nil
	case models.StateDormant:
		if rel.HasOpenOpportunity() {
			rel.DealStage = models.DealStageLost
		}
		rel.DeclinedAt = &now
	default:
		if rel.HasOpenOpportunity() {
			rel.DealStage = models.DealStageNone
		}
		rel.DeclinedAt = nil
	}
	if in.To == models.StateActiveConversation {
		rel.LastInteractionAt = &now
	}
	rel.State = in.To
	rel.StatePinnedAt = &now
	if err := s.store.ApplyTransition(ctx, *rel); err != nil {
		return nil, err
	}

	s.record(ctx, userID, "relationship.transition", map[string]interface{}{
		"relationship_id": rel.ID, "from": from, "to": in.To,
	}, rel.ID, in.Reason)
	s.logger.Info("relationship transitioned", "relationship_id", rel.ID, "from", from, "to", in.To)
	return s.GetRelationship(ctx, userID, id)
}

// EmailSignalsInput is an email summary pushed by an external collector.
type EmailSignalsInput struct {
	DaysSinceLastEmail *int `json:"days_since_last_email,omitempty"`
	HasUnread          bool `json:"has_unread"`
	ThreadCount        int  `json:"thread_count"`
	HasOpenLoops       bool `json:"has_open_loops"`
	HasUnansweredAsks  bool `json:"has_unanswered_asks"`
	RecentEmailCount   int  `json:"recent_email_count"`
}

// SetEmailSignals replaces the email signals for a relationship.
func (s *Service) SetEmailSignals(ctx context.Context, userID, relID string, in EmailSignalsInput) (*models.EmailSignals, error) {
	if in.ThreadCount < 0 || in.RecentEmailCount < 0 || (in.DaysSinceLastEmail != nil && *in.DaysSinceLastEmail < 0) {
		return nil, fmt.Errorf("%w: counts must not be negative", ErrInvalidInput)
	}
	if _, err := s.GetRelationship(ctx, userID, relID); err != nil {
		return nil, err
	}
	return s.store.UpsertEmailSignals(ctx, userID, models.EmailSignals{
		RelationshipID:     relID,
		DaysSinceLastEmail: in.DaysSinceLastEmail,
		HasUnread:          in.HasUnread,
		ThreadCount:        in.ThreadCount,
		HasOpenLoops:       in.HasOpenLoops,
		HasUnansweredAsks:  in.HasUnansweredAsks,
		RecentEmailCount:   in.RecentEmailCount,
	})
}

// --- Action Operations ---

// ActionInput is the writable part of an action.
type ActionInput struct {
	RelationshipID   *string           `json:"relationship_id,omitempty"`
	Title            string            `json:"title"`
	Type             models.ActionType `json:"action_type"`
	DueDate          string            `json:"due_date"` // YYYY-MM-DD
	PromisedDueAt    *time.Time        `json:"promised_due_at,omitempty"`
	EstimatedMinutes *int              `json:"estimated_minutes,omitempty"`
	AutoCreated      bool              `json:"auto_created"`
}

// CreateAction validates and stores a new action.
func (s *Service) CreateAction(ctx context.Context, userID string, in ActionInput) (*models.Action, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown action type %q", ErrInvalidInput, in.Type)
	}
	due, err := ParseDate(in.DueDate)
	if err != nil {
		return nil, err
	}
	if in.EstimatedMinutes != nil && *in.EstimatedMinutes <= 0 {
		return nil, fmt.Errorf("%w: estimated_minutes must be positive", ErrInvalidInput)
	}
	if in.RelationshipID != nil {
		if _, err := s.GetRelationship(ctx, userID, *in.RelationshipID); err != nil {
			return nil, err
		}
	}

	action, err := s.store.CreateAction(ctx, models.Action{
		UserID:           userID,
		RelationshipID:   in.RelationshipID,
		Title:            in.Title,
		Type:             in.Type,
		DueDate:          due,
		PromisedDueAt:    in.PromisedDueAt,
		EstimatedMinutes: in.EstimatedMinutes,
		AutoCreated:      in.AutoCreated,
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, userID, "action.create", in, action.ID, "")
	return action, nil
}

// ListActions returns the user's actions filtered by state.
func (s *Service) ListActions(ctx context.Context, userID string, state models.ActionState) ([]models.Action, error) {
	if state != "" && !state.Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidInput, state)
	}
	return s.store.ListActions(ctx, userID, state)
}

// GetAction returns one action or ErrActionNotFound.
func (s *Service) GetAction(ctx context.Context, userID, id string) (*models.Action, error) {
	a, err := s.store.GetAction(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrActionNotFound
	}
	return a, nil
}

func (s *Service) openAction(ctx context.Context, userID, id string) (*models.Action, error) {
	a, err := s.GetAction(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if a.State == models.ActionStateDone || a.State == models.ActionStateArchived {
		return nil, ErrActionClosed
	}
	return a, nil
}

// CompletionResult reports a completed action and its relationship's new state.
type CompletionResult struct {
	Action            *models.Action           `json:"action"`
	RelationshipState models.RelationshipState `json:"relationship_state,omitempty"`
	PreviousState     models.RelationshipState `json:"previous_state,omitempty"`
}

// CompleteAction marks an action DONE and advances its relationship. Both
// writes commit together.
func (s *Service) CompleteAction(ctx context.Context, userID, id string, events models.CompletionEvents) (*CompletionResult, error) {
	a, err := s.openAction(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	now := s.now()

	result := &CompletionResult{}
	var completion *store.Completion
	if relID := a.RelationshipKey(); relID != "" {
		rel, err := s.GetRelationship(ctx, userID, relID)
		if err != nil {
			return nil, err
		}
		actions, err := s.store.ListRelationshipActions(ctx, rel.ID)
		if err != nil {
			return nil, err
		}
		for i := range actions {
			if actions[i].ID == a.ID {
				actions[i].State = models.ActionStateDone
				actions[i].CompletedAt = &now
			}
		}
		momentum, trend := engine.ComputeMomentum(actions, now)
		next := engine.DetermineNextState(rel.State, engine.TransitionContext{CompletionEvents: events}, a.Type)
		completion = &store.Completion{
			RelationshipID: rel.ID,
			Replied:        events.GotResponseAt != nil || events.RepliedToEmailAt != nil,
			State:          next,
			MomentumScore:  momentum,
			MomentumTrend:  trend,
		}
		result.PreviousState = rel.State
		result.RelationshipState = next
	}
	if err := s.store.CompleteAction(ctx, a.ID, now, completion); err != nil {
		return nil, err
	}

	s.record(ctx, userID, "action.complete", map[string]interface{}{
		"action_id": a.ID, "action_type": a.Type, "events": events,
	}, a.ID, fmt.Sprintf("%s -> %s", result.PreviousState, result.RelationshipState))

	result.Action, err = s.GetAction(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SnoozeAction hides an open action until the given time.
func (s *Service) SnoozeAction(ctx context.Context, userID, id string, until time.Time) (*models.Action, error) {
	if !until.After(s.now()) {
		return nil, fmt.Errorf("%w: snooze_until must be in the future", ErrInvalidInput)
	}
	a, err := s.openAction(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.SnoozeAction(ctx, a.ID, until); err != nil {
		return nil, err
	}
	s.record(ctx, userID, "action.snooze", map[string]interface{}{"action_id": a.ID, "until": until}, a.ID, "")
	return s.GetAction(ctx, userID, id)
}

// PromiseAction records (or clears, with nil) a promised delivery time.
func (s *Service) PromiseAction(ctx context.Context, userID, id string, at *time.Time) (*models.Action, error) {
	a, err := s.openAction(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetActionPromise(ctx, a.ID, at); err != nil {
		return nil, err
	}
	s.record(ctx, userID, "action.promise", map[string]interface{}{"action_id": a.ID, "at": at}, a.ID, "")
	return s.GetAction(ctx, userID, id)
}

// SetActionState moves an open action to SENT or REPLIED.
func (s *Service) SetActionState(ctx context.Context, userID, id string, state models.ActionState) (*models.Action, error) {
	if state != models.ActionStateSent && state != models.ActionStateReplied && state != models.ActionStateNew {
		return nil, fmt.Errorf("%w: use the dedicated endpoint for %q", ErrInvalidInput, state)
	}
	a, err := s.openAction(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateActionState(ctx, a.ID, state); err != nil {
		return nil, err
	}
	if state == models.ActionStateReplied && a.RelationshipID != nil {
		if err := s.store.TouchRelationship(ctx, *a.RelationshipID, s.now(), true); err != nil {
			return nil, err
		}
	}
	s.record(ctx, userID, "action.state", map[string]interface{}{"action_id": a.ID, "from": a.State, "to": state}, a.ID, "")
	return s.GetAction(ctx, userID, id)
}

// ArchiveAction archives an action regardless of its state.
func (s *Service) ArchiveAction(ctx context.Context, userID, id string) (*models.Action, error) {
	a, err := s.GetAction(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if a.State == models.ActionStateArchived {
		return a, nil
	}
	if err := s.store.UpdateActionState(ctx, a.ID, models.ActionStateArchived); err != nil {
		return nil, err
	}
	s.record(ctx, userID, "action.archive", map[string]string{"action_id": a.ID}, a.ID, "manual")
	return s.GetAction(ctx, userID, id)
}

// --- Planning ---

// Plan is the ordered daily plan for one user.
type Plan struct {
	Date     string                `json:"date"`
	Capacity models.Capacity       `json:"capacity"`
	Actions  []engine.ScoredAction `json:"actions"`
	Lanes    map[models.Lane]int   `json:"lanes"`
}

func (s *Service) rank(ctx context.Context, userID string, now time.Time) (engine.RankResult, error) {
	rels, err := s.store.ListRelationships(ctx, userID)
	if err != nil {
		return engine.RankResult{}, err
	}
	actions, err := s.store.ListActions(ctx, userID, "")
	if err != nil {
		return engine.RankResult{}, err
	}
	signals, err := s.store.ListEmailSignals(ctx, userID)
	if err != nil {
		return engine.RankResult{}, err
	}
	return s.scorer.Rank(engine.RankInput{
		Relationships: rels,
		Actions:       actions,
		EmailSignals:  signals,
		Now:           now,
	}), nil
}

// referenceTime returns the clock for today and midnight UTC for other days.
func (s *Service) referenceTime(date time.Time) time.Time {
	now := s.now()
	if date.IsZero() || models.DateKey(date) == models.DateKey(now) {
		return now
	}
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
}

// BuildPlan ranks the user's open actions and keeps as many as the day's
// capacity allows.
func (s *Service) BuildPlan(ctx context.Context, userID string, date time.Time) (*Plan, error) {
	ref := s.referenceTime(date)
	capacity, err := s.GetCapacity(ctx, userID, ref)
	if err != nil {
		return nil, err
	}
	res, err := s.rank(ctx, userID, ref)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Date:     models.DateKey(ref),
		Capacity: capacity,
		Actions:  engine.BuildPlan(res.Actions, capacity, ref),
		Lanes:    make(map[models.Lane]int),
	}
	for _, sa := range plan.Actions {
		plan.Lanes[sa.Lane]++
	}
	s.logger.Debug("plan built", "user_id", userID, "date", plan.Date, "actions", len(plan.Actions), "capacity", capacity.ActionCount)
	return plan, nil
}

// FitAction returns the best open action that fits in the given minutes, or nil.
func (s *Service) FitAction(ctx context.Context, userID string, minutes int) (*engine.ScoredAction, error) {
	if minutes < 0 {
		return nil, fmt.Errorf("%w: minutes must not be negative", ErrInvalidInput)
	}
	now := s.now()
	res, err := s.rank(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	candidates := make([]engine.ScoredAction, 0, len(res.Actions))
	for _, sa := range res.Actions {
		if engine.Actionable(sa.Action, now) {
			candidates = append(candidates, sa)
		}
	}
	return engine.GetActionForDuration(candidates, minutes), nil
}

// --- Capacity ---

// GetCapacity resolves the capacity for the user's day.
func (s *Service) GetCapacity(ctx context.Context, userID string, date time.Time) (models.Capacity, error) {
	return engine.GetCapacityWithOverrides(ctx, s.store, s.calendar, userID, date)
}

// CapacityInput sets a capacity level, optionally with a reason.
type CapacityInput struct {
	Level  models.CapacityLevel `json:"level"`
	Reason string               `json:"reason,omitempty"`
}

// SetCapacityOverride pins the capacity for one day. Repeating it is idempotent.
func (s *Service) SetCapacityOverride(ctx context.Context, userID string, date time.Time, in CapacityInput) (*models.CapacityOverride, error) {
	if !in.Level.Valid() {
		return nil, fmt.Errorf("%w: unknown capacity level %q", ErrInvalidInput, in.Level)
	}
	o, err := s.store.SetCapacityOverride(ctx, models.CapacityOverride{
		UserID: userID,
		Date:   models.DateKey(date),
		Level:  in.Level,
		Reason: in.Reason,
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, userID, "capacity.override", o, o.Date, in.Reason)
	return o, nil
}

// ClearCapacityOverride removes the override for one day.
func (s *Service) ClearCapacityOverride(ctx context.Context, userID string, date time.Time) error {
	if err := s.store.DeleteCapacityOverride(ctx, userID, date); err != nil {
		return err
	}
	s.record(ctx, userID, "capacity.clear", map[string]string{"date": models.DateKey(date)}, models.DateKey(date), "")
	return nil
}

// SetDefaultCapacity stores the user's default level. An empty level clears it.
func (s *Service) SetDefaultCapacity(ctx context.Context, userID string, level models.CapacityLevel) error {
	if level != "" && !level.Valid() {
		return fmt.Errorf("%w: unknown capacity level %q", ErrInvalidInput, level)
	}
	if err := s.store.SetDefaultCapacity(ctx, userID, level); err != nil {
		return err
	}
	s.record(ctx, userID, "capacity.default", map[string]string{"level": string(level)}, userID, "")
	return nil
}

// AddBusyBlocks stores calendar busy intervals.
func (s *Service) AddBusyBlocks(ctx context.Context, userID string, blocks []models.BusyBlock) ([]models.BusyBlock, error) {
	for _, b := range blocks {
		if !b.EndAt.After(b.StartAt) {
			return nil, fmt.Errorf("%w: busy block must end after it starts", ErrInvalidInput)
		}
	}
	out := make([]models.BusyBlock, 0, len(blocks))
	for _, b := range blocks {
		b.UserID = userID
		stored, err := s.store.AddBusyBlock(ctx, b)
		if err != nil {
			return nil, err
		}
		out = append(out, *stored)
	}
	return out, nil
}

// ListDecisions returns the user's recent decision records.
func (s *Service) ListDecisions(ctx context.Context, userID string, limit int) ([]models.Decision, error) {
	return s.store.ListDecisions(ctx, userID, limit)
}

// --- Background maintenance ---

// ListUserIDs returns every user with data.
func (s *Service) ListUserIDs(ctx context.Context) ([]string, error) {
	return s.store.ListUserIDs(ctx)
}

// RefreshUser re-derives and persists every relationship's cached state and
// momentum. It returns how many relationships changed.
func (s *Service) RefreshUser(ctx context.Context, userID string, now time.Time) (int, error) {
	rels, err := s.store.ListRelationships(ctx, userID)
	if err != nil {
		return 0, err
	}
	actions, err := s.store.ListActions(ctx, userID, "")
	if err != nil {
		return 0, err
	}
	signals, err := s.store.ListEmailSignals(ctx, userID)
	if err != nil {
		return 0, err
	}
	res := s.scorer.Rank(engine.RankInput{Relationships: rels, Actions: actions, EmailSignals: signals, Now: now})

	changed := 0
	for _, rel := range rels {
		snap := res.Snapshots[rel.ID]
		if snap.State == rel.State && snap.MomentumScore == rel.MomentumScore && snap.MomentumTrend == rel.MomentumTrend {
			continue
		}
		if err := s.store.SetRelationshipState(ctx, rel.ID, snap.State, snap.MomentumScore, snap.MomentumTrend); err != nil {
			return changed, err
		}
		if snap.State != rel.State {
			s.record(ctx, userID, "relationship.refresh", map[string]interface{}{
				"relationship_id": rel.ID, "from": rel.State, "to": snap.State,
			}, rel.ID, "")
		}
		changed++
	}
	return changed, nil
}

// ArchiveStale applies the archive policy to the user's actions.
func (s *Service) ArchiveStale(ctx context.Context, userID string, now time.Time, policy store.ArchivePolicy) ([]string, error) {
	ids, err := s.store.ArchiveStaleActions(ctx, userID, now, policy)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		s.record(ctx, userID, "action.archive", map[string]interface{}{"action_ids": ids}, "", fmt.Sprintf("archived %d", len(ids)))
	}
	return ids, nil
}

// ParseDate parses a YYYY-MM-DD date. Empty input gives the zero time.
func ParseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidInput, v)
	}
	return t, nil
}
