package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/synera-br/splennet-backend/internal/models"
)

// Errors returned by the core services. Handlers map them to HTTP responses with errors.Is.
var (
	ErrAuthRequired           = errors.New("authentication required")
	ErrValidationFailed       = errors.New("validation failed")
	ErrRateLimited            = errors.New("too many requests")
	ErrLimitReached           = errors.New("usage limit reached")
	ErrGenerationFailed       = errors.New("essay generation failed")
	ErrEntitlementUnavailable = errors.New("entitlement record unavailable")
	ErrUnknownAction          = errors.New("unknown action type")

	// ErrPersistenceFailed and ErrStatusUpdateFailed describe secondary writes that failed
	// after the primary action succeeded. They are reported next to a successful result.
	ErrPersistenceFailed  = errors.New("essay could not be saved")
	ErrStatusUpdateFailed = errors.New("essay review status could not be updated")

	ErrUserNotFound      = errors.New("user not found")
	ErrAccountExists     = errors.New("an account with this email already exists")
	ErrEssayNotFound     = errors.New("essay not found")
	ErrReviewNotFound    = errors.New("review request not found")
	ErrForbidden         = errors.New("user does not have permission for this action")
	ErrInvalidTransition = errors.New("review status transition not allowed")
)

// LimitReachedError is returned when the usage gate denies an action.
type LimitReachedError struct {
	Action models.ActionType
	// Tier is the plan of the user at the time of the check.
	Tier     models.PlanTier
	Decision UsageDecision
}

func (e *LimitReachedError) Error() string {
	return fmt.Sprintf("%s: %s used %d of %d", ErrLimitReached, e.Action, e.Decision.Used, e.Decision.Limit)
}

// Is makes errors.Is(err, ErrLimitReached) match.
func (e *LimitReachedError) Is(target error) bool {
	return target == ErrLimitReached
}

// RateLimitedError is returned when a user exceeds the generation rate.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter.Round(time.Second))
}

// Is makes errors.Is(err, ErrRateLimited) match.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, fmt.Sprintf(format, args...))
}
