// Package models defines the core domain types for NextBestMove.
package models

import "time"

// ActionState represents where an action is in its lifecycle.
type ActionState string

const (
	ActionStateNew      ActionState = "NEW"
	ActionStateSent     ActionState = "SENT"
	ActionStateReplied  ActionState = "REPLIED"
	ActionStateSnoozed  ActionState = "SNOOZED"
	ActionStateDone     ActionState = "DONE"
	ActionStateArchived ActionState = "ARCHIVED"
)

// AllActionStates lists every action state in lifecycle order.
func AllActionStates() []ActionState {
	return []ActionState{
		ActionStateNew, ActionStateSent, ActionStateReplied,
		ActionStateSnoozed, ActionStateDone, ActionStateArchived,
	}
}

// Valid reports whether s is a known action state.
func (s ActionState) Valid() bool {
	switch s {
	case ActionStateNew, ActionStateSent, ActionStateReplied, ActionStateSnoozed, ActionStateDone, ActionStateArchived:
		return true
	}
	return false
}

// IsPending reports whether the action still represents open work.
func (s ActionState) IsPending() bool {
	return s == ActionStateNew || s == ActionStateSent || s == ActionStateSnoozed
}

// ActionType classifies the kind of outreach an action represents.
type ActionType string

const (
	ActionTypeOutreach ActionType = "OUTREACH"
	ActionTypeFollowUp ActionType = "FOLLOW_UP"
	ActionTypeNurture  ActionType = "NURTURE"
	ActionTypeCallPrep ActionType = "CALL_PREP"
	ActionTypePostCall ActionType = "POST_CALL"
	ActionTypeContent  ActionType = "CONTENT"
	ActionTypeFastWin  ActionType = "FAST_WIN"
)

// AllActionTypes lists every action type.
func AllActionTypes() []ActionType {
	return []ActionType{
		ActionTypeOutreach, ActionTypeFollowUp, ActionTypeNurture, ActionTypeCallPrep,
		ActionTypePostCall, ActionTypeContent, ActionTypeFastWin,
	}
}

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	for _, v := range AllActionTypes() {
		if v == t {
			return true
		}
	}
	return false
}

// RelationshipState is the derived lifecycle state of a relationship.
type RelationshipState string

const (
	StateUnengaged          RelationshipState = "UNENGAGED"
	StateActiveConversation RelationshipState = "ACTIVE_CONVERSATION"
	StateOpportunity        RelationshipState = "OPPORTUNITY"
	StateWarmButPassive     RelationshipState = "WARM_BUT_PASSIVE"
	StateDormant            RelationshipState = "DORMANT"
)

// AllRelationshipStates lists every lifecycle state.
func AllRelationshipStates() []RelationshipState {
	return []RelationshipState{
		StateUnengaged, StateActiveConversation, StateOpportunity, StateWarmButPassive, StateDormant,
	}
}

// Valid reports whether s is a known lifecycle state.
func (s RelationshipState) Valid() bool {
	switch s {
	case StateUnengaged, StateActiveConversation, StateOpportunity, StateWarmButPassive, StateDormant:
		return true
	}
	return false
}

// Lane is the coarse triage bucket an action or relationship falls into.
type Lane string

const (
	LanePriority Lane = "priority"
	LaneInMotion Lane = "in_motion"
	LaneOnDeck   Lane = "on_deck"
)

// Rank orders lanes for selection; lower ranks win.
func (l Lane) Rank() int {
	switch l {
	case LanePriority:
		return 0
	case LaneInMotion:
		return 1
	case LaneOnDeck:
		return 2
	}
	return 3
}

// Valid reports whether l is a known lane.
func (l Lane) Valid() bool {
	return l.Rank() < 3
}

// CapacityLevel describes how heavy a day's plan should be.
type CapacityLevel string

const (
	CapacityMicro    CapacityLevel = "micro"
	CapacityLight    CapacityLevel = "light"
	CapacityStandard CapacityLevel = "standard"
	CapacityHeavy    CapacityLevel = "heavy"
	CapacityDefault  CapacityLevel = "default"
)

// Valid reports whether c is a known capacity level.
func (c CapacityLevel) Valid() bool {
	switch c {
	case CapacityMicro, CapacityLight, CapacityStandard, CapacityHeavy, CapacityDefault:
		return true
	}
	return false
}

// CapacitySource records which rule produced a resolved capacity.
type CapacitySource string

const (
	CapacitySourceOverride    CapacitySource = "override"
	CapacitySourceUserDefault CapacitySource = "user_default"
	CapacitySourceCalendar    CapacitySource = "calendar"
	CapacitySourceDefault     CapacitySource = "default"
)

// Tier is a relationship's strategic importance bucket.
type Tier string

const (
	TierInner      Tier = "inner"
	TierActive     Tier = "active"
	TierWarm       Tier = "warm"
	TierBackground Tier = "background"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierInner, TierActive, TierWarm, TierBackground:
		return true
	}
	return false
}

// MomentumTrend is the direction a relationship's momentum is moving.
type MomentumTrend string

const (
	TrendIncreasing MomentumTrend = "increasing"
	TrendStable     MomentumTrend = "stable"
	TrendDeclining  MomentumTrend = "declining"
)

// Cadence is the expected touch frequency for a relationship.
type Cadence string

const (
	CadenceFrequent   Cadence = "frequent"
	CadenceModerate   Cadence = "moderate"
	CadenceOccasional Cadence = "occasional"
	CadenceRare       Cadence = "rare"
)

// Days returns the expected number of days between touches, or 0 when unknown.
func (c Cadence) Days() int {
	switch c {
	case CadenceFrequent:
		return 7
	case CadenceModerate:
		return 14
	case CadenceOccasional:
		return 30
	case CadenceRare:
		return 90
	}
	return 0
}

// DealStage tracks whether a relationship has a live opportunity.
type DealStage string

const (
	DealStageNone DealStage = "none"
	DealStageOpen DealStage = "open"
	DealStageWon  DealStage = "won"
	DealStageLost DealStage = "lost"
)

// Action is a unit of outreach work.
type Action struct {
	ID               string      `json:"id"`
	UserID           string      `json:"user_id"`
	RelationshipID   *string     `json:"relationship_id,omitempty"`
	Title            string      `json:"title"`
	Type             ActionType  `json:"action_type"`
	State            ActionState `json:"state"`
	DueDate          time.Time   `json:"due_date"`
	PromisedDueAt    *time.Time  `json:"promised_due_at,omitempty"`
	EstimatedMinutes *int        `json:"estimated_minutes,omitempty"`
	AutoCreated      bool        `json:"auto_created"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty"`
	SnoozeUntil      *time.Time  `json:"snooze_until,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// RelationshipKey returns the relationship id or "" when the action stands alone.
func (a Action) RelationshipKey() string {
	if a.RelationshipID == nil {
		return ""
	}
	return *a.RelationshipID
}

// Relationship is a tracked contact or lead.
type Relationship struct {
	ID                string            `json:"id"`
	UserID            string            `json:"user_id"`
	Name              string            `json:"name"`
	Tier              Tier              `json:"tier"`
	Cadence           Cadence           `json:"cadence"`
	DealStage         DealStage         `json:"deal_stage"`
	DeclinedAt        *time.Time        `json:"declined_at,omitempty"`
	NextMeetingAt     *time.Time        `json:"next_meeting_at,omitempty"`
	LastInteractionAt *time.Time        `json:"last_interaction_at,omitempty"`
	LastReplyAt       *time.Time        `json:"last_reply_at,omitempty"`
	NextTouchDueAt    *time.Time        `json:"next_touch_due_at,omitempty"`
	State             RelationshipState `json:"relationship_state"`
	// StatePinnedAt is when State was last set by hand.
	StatePinnedAt     *time.Time        `json:"state_pinned_at,omitempty"`
	MomentumScore     float64           `json:"momentum_score"`
	MomentumTrend     MomentumTrend     `json:"momentum_trend"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// HasOpenOpportunity is the single source of truth for the OPPORTUNITY state.
func (r Relationship) HasOpenOpportunity() bool {
	return r.DealStage == DealStageOpen
}

// RelationshipSnapshot is the per-pass derived view of one relationship.
type RelationshipSnapshot struct {
	RelationshipID           string            `json:"relationship_id"`
	UserID                   string            `json:"user_id"`
	State                    RelationshipState `json:"state,omitempty"`
	DaysSinceLastInteraction *int              `json:"days_since_last_interaction"`
	PendingActionsCount      int               `json:"pending_actions_count"`
	OverdueActionsCount      int               `json:"overdue_actions_count"`
	AwaitingResponse         bool              `json:"awaiting_response"`
	Cadence                  Cadence           `json:"cadence,omitempty"`
	CadenceDays              int               `json:"cadence_days"`
	Tier                     Tier              `json:"tier,omitempty"`
	LastInteractionAt        *time.Time        `json:"last_interaction_at,omitempty"`
	NextTouchDueAt           *time.Time        `json:"next_touch_due_at,omitempty"`
	MomentumScore            float64           `json:"momentum_score"`
	MomentumTrend            MomentumTrend     `json:"momentum_trend"`
	NextMoveActionID         string            `json:"next_move_action_id,omitempty"`
}

// EmailSignals summarises recent mail activity with a relationship.
type EmailSignals struct {
	RelationshipID     string    `json:"relationship_id"`
	DaysSinceLastEmail *int      `json:"days_since_last_email,omitempty"`
	HasUnread          bool      `json:"has_unread"`
	ThreadCount        int       `json:"thread_count"`
	HasOpenLoops       bool      `json:"has_open_loops"`
	HasUnansweredAsks  bool      `json:"has_unanswered_asks"`
	RecentEmailCount   int       `json:"recent_email_count"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CompletionEvents are the facts captured when an action is closed out.
type CompletionEvents struct {
	GotResponseAt        *time.Time `json:"got_response_at,omitempty"`
	NextCallCalendaredAt *time.Time `json:"next_call_calendared_at,omitempty"`
	RepliedToEmailAt     *time.Time `json:"replied_to_email_at,omitempty"`
}

// CapacityOverride pins the capacity for one user on one day.
type CapacityOverride struct {
	UserID    string        `json:"user_id"`
	Date      string        `json:"date"` // YYYY-MM-DD
	Level     CapacityLevel `json:"level"`
	Reason    string        `json:"reason,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Capacity is a resolved daily action quota.
type Capacity struct {
	Level       CapacityLevel  `json:"level"`
	ActionCount int            `json:"action_count"`
	Source      CapacitySource `json:"source"`
	Reason      string         `json:"reason,omitempty"`
}

// BusyBlock is a calendar interval during which the user is unavailable.
type BusyBlock struct {
	ID      string    `json:"id"`
	UserID  string    `json:"user_id"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

// Decision is an audit record for a state-mutating decision.
type Decision struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	Kind       string    `json:"kind"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	SubjectID  string    `json:"subject_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// DateKey formats t as the calendar-day key used for overrides.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
