package planner

import "errors"

// Sentinel errors for planner operations.
var (
	ErrMissingUser          = errors.New("missing user id")
	ErrInvalidInput         = errors.New("invalid input")
	ErrRelationshipNotFound = errors.New("relationship not found")
	ErrActionNotFound       = errors.New("action not found")
	ErrTransitionNotAllowed = errors.New("transition not allowed")
	ErrActionClosed         = errors.New("action already closed")
)
