// Package shared contains common domain types, errors and events used across
// all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
	"strings"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// Scoring errors
	ErrInvalidRound    = errors.New("invalid round")
	ErrIncompleteRound = errors.New("incomplete round")
	ErrRecomputeFailed = errors.New("recompute failed")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Infrastructure errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "game", "player", "daily"
	Op      string // Operation that failed, e.g., "Save", "Get"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching against both the kind and the cause.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORING ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// InvalidRoundError is returned when a round does not carry exactly four
// scores, or carries a score for someone outside the game roster.
type InvalidRoundError struct {
	// Round is the 1-based round index, 0 when the round stands alone.
	Round int
	// Count is the number of scores the round carried.
	Count int
	// Unknown lists score holders that are not part of the roster.
	Unknown []string
}

func (e *InvalidRoundError) Error() string {
	var b strings.Builder
	b.WriteString("invalid round")
	if e.Round > 0 {
		fmt.Fprintf(&b, " %d", e.Round)
	}
	fmt.Fprintf(&b, ": expected 4 scores, got %d", e.Count)
	if len(e.Unknown) > 0 {
		fmt.Fprintf(&b, " (not in roster: %s)", strings.Join(e.Unknown, ", "))
	}
	return b.String()
}

func (e *InvalidRoundError) Is(target error) bool {
	return target == ErrInvalidRound || target == ErrValidation
}

// IncompleteRoundError is returned when a round is missing the score of at
// least one roster player.
type IncompleteRoundError struct {
	Round   int
	Missing []string
}

func (e *IncompleteRoundError) Error() string {
	return fmt.Sprintf("round %d is incomplete: missing scores for %s",
		e.Round, strings.Join(e.Missing, ", "))
}

func (e *IncompleteRoundError) Is(target error) bool {
	return target == ErrIncompleteRound || target == ErrValidation
}

// RecomputeFailedError reports that a replace-as-a-unit write did not commit.
// The previously committed state is still in place.
type RecomputeFailedError struct {
	Scope string // "game" or "daily"
	Key   string // game id or date
	Err   error
}

func (e *RecomputeFailedError) Error() string {
	return fmt.Sprintf("recompute of %s %s failed: %v", e.Scope, e.Key, e.Err)
}

func (e *RecomputeFailedError) Unwrap() error { return e.Err }

func (e *RecomputeFailedError) Is(target error) bool {
	return target == ErrRecomputeFailed
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// Player domain errors
var (
	ErrPlayerNotFound    = NewDomainError("player", "Get", ErrNotFound, "player not found")
	ErrPlayerNameInvalid = NewDomainError("player", "Validate", ErrInvalidInput, "player name must be 1 to 50 characters")
	ErrPlayerExists      = NewDomainError("player", "Create", ErrAlreadyExists, "player already exists")
)

// Game domain errors
var (
	ErrGameNotFound    = NewDomainError("game", "Get", ErrNotFound, "game not found")
	ErrInvalidRoster   = NewDomainError("game", "Validate", ErrInvalidInput, "roster must hold exactly four distinct players")
	ErrNoRounds        = NewDomainError("game", "Validate", ErrInvalidInput, "game must have at least one round")
	ErrRosterImmutable = NewDomainError("game", "Edit", ErrInvalidInput, "roster of an existing game cannot change")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsRecomputeFailed checks if a replace-as-a-unit write was rolled back.
func IsRecomputeFailed(err error) bool {
	return errors.Is(err, ErrRecomputeFailed)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
